package service

import (
	"context"
	"testing"
	"time"

	"github.com/Haufe-Lexware/wicked.portal-test/internal/clock"
	"github.com/Haufe-Lexware/wicked.portal-test/internal/events/domain"
	"github.com/Haufe-Lexware/wicked.portal-test/internal/events/repository"
	identitydomain "github.com/Haufe-Lexware/wicked.portal-test/internal/identity/domain"
	"github.com/Haufe-Lexware/wicked.portal-test/pkg/db"
	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
)

func setup(t *testing.T, notifier domain.Notifier) (*Service, *gorm.DB) {
	t.Helper()
	conn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&domain.Listener{}, &domain.Event{}))

	if notifier == nil {
		notifier = noopNotifier{}
	}
	svc := New(Params{
		DB:       conn,
		Log:      zaptest.NewLogger(t),
		Clock:    clock.NewFakeClock(time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)),
		Repo:     repository.Provide(),
		Notifier: notifier,
	}).(*Service)
	return svc, conn
}

func adminCtx() context.Context {
	return identitydomain.WithIdentity(context.Background(), &identitydomain.Identity{UserID: 1, Admin: true})
}

func TestPublishFansOutPerListener(t *testing.T) {
	svc, conn := setup(t, nil)
	ctx := adminCtx()

	_, err := svc.UpsertListener(ctx, "kong-adapter", "http://kong-adapter:3002")
	require.NoError(t, err)
	_, err = svc.UpsertListener(ctx, "mailer", "http://mailer:3003")
	require.NoError(t, err)

	err = conn.Transaction(func(tx *gorm.DB) error {
		return svc.Publish(ctx, tx,
			domain.Change{Type: domain.EventSubscriptionCreated, ApplicationID: "app1", APIID: "petstore"},
			domain.Change{Type: domain.EventSubscriptionDeleted, ApplicationID: "app1", APIID: "petstore"},
		)
	})
	require.NoError(t, err)

	kong, err := svc.ListEvents(ctx, "kong-adapter", 0)
	require.NoError(t, err)
	require.Len(t, kong, 2)
	assert.Equal(t, domain.EventSubscriptionCreated, kong[0].Type)
	assert.Equal(t, domain.EventSubscriptionDeleted, kong[1].Type)

	mailer, err := svc.ListEvents(ctx, "mailer", 0)
	require.NoError(t, err)
	require.Len(t, mailer, 2)
	assert.Equal(t, kong[0].ID, mailer[0].ID)

	require.NoError(t, svc.Ack(ctx, "kong-adapter", kong[0].ID))
	assert.ErrorIs(t, svc.Ack(ctx, "kong-adapter", kong[0].ID), domain.ErrEventNotFound)

	kong, err = svc.ListEvents(ctx, "kong-adapter", 0)
	require.NoError(t, err)
	assert.Len(t, kong, 1)

	require.NoError(t, svc.Flush(ctx, "mailer"))
	mailer, err = svc.ListEvents(ctx, "mailer", 0)
	require.NoError(t, err)
	assert.Empty(t, mailer)
}

func TestPublishRolledBackWithTransaction(t *testing.T) {
	svc, conn := setup(t, nil)
	ctx := adminCtx()
	_, err := svc.UpsertListener(ctx, "kong-adapter", "http://kong-adapter:3002")
	require.NoError(t, err)

	_ = conn.Transaction(func(tx *gorm.DB) error {
		require.NoError(t, svc.Publish(ctx, tx, domain.Change{Type: domain.EventApplicationDeleted, ApplicationID: "app1"}))
		return assert.AnError
	})

	events, err := svc.ListEvents(ctx, "kong-adapter", 0)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestWebhookManagementIsAdminOnly(t *testing.T) {
	svc, _ := setup(t, nil)
	ctx := identitydomain.WithIdentity(context.Background(), &identitydomain.Identity{UserID: 2})

	_, err := svc.UpsertListener(ctx, "x", "http://x")
	assert.ErrorIs(t, err, domain.ErrAdminOnly)
	_, err = svc.ListEvents(context.Background(), "x", 0)
	assert.ErrorIs(t, err, domain.ErrAdminOnly)
}

func TestDeleteListenerDropsPendingEvents(t *testing.T) {
	svc, conn := setup(t, nil)
	ctx := adminCtx()
	_, err := svc.UpsertListener(ctx, "kong-adapter", "http://kong-adapter:3002")
	require.NoError(t, err)
	require.NoError(t, conn.Transaction(func(tx *gorm.DB) error {
		return svc.Publish(ctx, tx, domain.Change{Type: domain.EventApplicationDeleted, ApplicationID: "app1"})
	}))

	require.NoError(t, svc.DeleteListener(ctx, "kong-adapter"))
	assert.ErrorIs(t, svc.DeleteListener(ctx, "kong-adapter"), domain.ErrListenerNotFound)

	var count int64
	require.NoError(t, conn.Model(&domain.Event{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestRedisNotifierPublishes(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	sub := client.Subscribe(context.Background(), Channel)
	defer sub.Close()
	_, err := sub.Receive(context.Background())
	require.NoError(t, err)

	n := NewNotifier(client, zaptest.NewLogger(t))
	n.Notify(context.Background(), domain.Change{Type: domain.EventSubscriptionApproved, ApplicationID: "app1", APIID: "petstore"})

	select {
	case msg := <-sub.Channel():
		assert.JSONEq(t, `{"type":"subscription.approved","applicationId":"app1","apiId":"petstore"}`, msg.Payload)
	case <-time.After(2 * time.Second):
		t.Fatal("no notification received")
	}
}
