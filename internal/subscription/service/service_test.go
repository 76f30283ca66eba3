package service

import (
	"context"
	"errors"
	"testing"
	"time"

	appdomain "github.com/Haufe-Lexware/wicked.portal-test/internal/application/domain"
	apprepository "github.com/Haufe-Lexware/wicked.portal-test/internal/application/repository"
	catalogdomain "github.com/Haufe-Lexware/wicked.portal-test/internal/catalog/domain"
	"github.com/Haufe-Lexware/wicked.portal-test/internal/catalog/registry"
	"github.com/Haufe-Lexware/wicked.portal-test/internal/clock"
	"github.com/Haufe-Lexware/wicked.portal-test/internal/credential"
	eventsdomain "github.com/Haufe-Lexware/wicked.portal-test/internal/events/domain"
	eventsrepository "github.com/Haufe-Lexware/wicked.portal-test/internal/events/repository"
	eventsservice "github.com/Haufe-Lexware/wicked.portal-test/internal/events/service"
	identitydomain "github.com/Haufe-Lexware/wicked.portal-test/internal/identity/domain"
	"github.com/Haufe-Lexware/wicked.portal-test/internal/locking"
	"github.com/Haufe-Lexware/wicked.portal-test/internal/policy"
	"github.com/Haufe-Lexware/wicked.portal-test/internal/subscription/domain"
	"github.com/Haufe-Lexware/wicked.portal-test/internal/subscription/repository"
	"github.com/Haufe-Lexware/wicked.portal-test/pkg/db"
	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

var (
	admin    = &identitydomain.Identity{UserID: 1, Admin: true, Approver: true, Groups: []string{"admin"}}
	owner    = &identitydomain.Identity{UserID: 10}
	partner  = &identitydomain.Identity{UserID: 11, Groups: []string{"partner"}}
	reader   = &identitydomain.Identity{UserID: 12}
	stranger = &identitydomain.Identity{UserID: 13}
)

type fixture struct {
	svc    *Service
	conn   *gorm.DB
	apps   appdomain.Repository
	events eventsdomain.Service
}

func setup(t *testing.T) fixture {
	t.Helper()
	conn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(
		&appdomain.Application{},
		&appdomain.Owner{},
		&domain.Subscription{},
		&domain.APIIndexEntry{},
		&domain.ClientIndexEntry{},
		&eventsdomain.Listener{},
		&eventsdomain.Event{},
	))

	log := zaptest.NewLogger(t)
	fake := clock.NewFakeClock(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	catalog, err := registry.NewStatic(registry.DefaultCatalog())
	require.NoError(t, err)

	apps := apprepository.Provide()
	events := eventsservice.New(eventsservice.Params{
		DB:       conn,
		Log:      log,
		Clock:    fake,
		Repo:     eventsrepository.Provide(),
		Notifier: eventsservice.NewNotifier(nil, log),
	})

	svc := New(Params{
		DB:      conn,
		Log:     log,
		Clock:   fake,
		GenID:   node,
		Repo:    repository.Provide(),
		Apps:    apps,
		Catalog: catalog,
		Policy:  policy.New(policy.Params{DB: conn, Apps: apps}),
		Issuer:  credential.NewIssuer(),
		Locks:   locking.NewLocal(),
		Events:  events,
	}).(*Service)

	return fixture{svc: svc, conn: conn, apps: apps, events: events}
}

func (f fixture) seedApp(t *testing.T, id, redirect string) {
	t.Helper()
	ctx := context.Background()
	app := appdomain.Application{ID: id, Name: id, CreatedBy: owner.UserID, CreatedAt: time.Now(), UpdatedAt: time.Now()}
	if redirect != "" {
		app.RedirectURI = &redirect
	}
	require.NoError(t, f.apps.Insert(ctx, f.conn, &app))
	require.NoError(t, f.apps.InsertOwner(ctx, f.conn, &appdomain.Owner{ApplicationID: id, UserID: owner.UserID, Role: "owner"}))
	require.NoError(t, f.apps.InsertOwner(ctx, f.conn, &appdomain.Owner{ApplicationID: id, UserID: partner.UserID, Role: "collaborator"}))
	require.NoError(t, f.apps.InsertOwner(ctx, f.conn, &appdomain.Owner{ApplicationID: id, UserID: reader.UserID, Role: "reader"}))
}

func as(id *identitydomain.Identity) context.Context {
	return identitydomain.WithIdentity(context.Background(), id)
}

func TestCreateApprovedIssuesAPIKey(t *testing.T) {
	f := setup(t)
	f.seedApp(t, "my-app", "")

	v, err := f.svc.Create(as(owner), domain.CreateSubscriptionRequest{ApplicationID: "my-app", APIID: "petstore", PlanID: "basic"})
	require.NoError(t, err)
	assert.True(t, v.Approved)
	require.NotNil(t, v.APIKey)
	assert.Len(t, *v.APIKey, 64)
	assert.Nil(t, v.ClientID)
	assert.Equal(t, "/applications/my-app/subscriptions/petstore", v.Links["self"].Href)

	got, err := f.svc.Get(as(reader), "my-app", "petstore")
	require.NoError(t, err)
	assert.Equal(t, *v.APIKey, *got.APIKey)

	subscribers, err := f.svc.ListByAPI(as(admin), "petstore")
	require.NoError(t, err)
	assert.Equal(t, []domain.APISubscriber{{Application: "my-app", Plan: "basic"}}, subscribers)
}

func TestCreateNeedingApprovalHasNoCredential(t *testing.T) {
	f := setup(t)
	f.seedApp(t, "my-app", "")

	v, err := f.svc.Create(as(owner), domain.CreateSubscriptionRequest{ApplicationID: "my-app", APIID: "petstore", PlanID: "unlimited"})
	require.NoError(t, err)
	assert.False(t, v.Approved)
	assert.Nil(t, v.APIKey)

	var stored domain.Subscription
	require.NoError(t, f.conn.Where("application_id = ?", "my-app").First(&stored).Error)
	assert.Nil(t, stored.APIKey)
}

func TestAdminSubscriptionIsApprovedImmediately(t *testing.T) {
	f := setup(t)
	f.seedApp(t, "my-app", "")

	v, err := f.svc.Create(as(admin), domain.CreateSubscriptionRequest{ApplicationID: "my-app", APIID: "petstore", PlanID: "unlimited"})
	require.NoError(t, err)
	assert.True(t, v.Approved)
	assert.NotNil(t, v.APIKey)
}

func TestCreateRejections(t *testing.T) {
	f := setup(t)
	f.seedApp(t, "my-app", "")

	cases := []struct {
		name   string
		caller *identitydomain.Identity
		req    domain.CreateSubscriptionRequest
		want   error
	}{
		{"unknown application", owner, domain.CreateSubscriptionRequest{ApplicationID: "nope", APIID: "petstore", PlanID: "basic"}, appdomain.ErrApplicationNotFound},
		{"unknown api", owner, domain.CreateSubscriptionRequest{ApplicationID: "my-app", APIID: "nope", PlanID: "basic"}, catalogdomain.ErrAPINotFound},
		{"deprecated api", owner, domain.CreateSubscriptionRequest{ApplicationID: "my-app", APIID: "legacy", PlanID: "basic"}, domain.ErrAPIDeprecated},
		{"plan of another api", owner, domain.CreateSubscriptionRequest{ApplicationID: "my-app", APIID: "petstore", PlanID: "oauth2_basic"}, domain.ErrInvalidPlan},
		{"not an owner", stranger, domain.CreateSubscriptionRequest{ApplicationID: "my-app", APIID: "petstore", PlanID: "basic"}, policy.ErrForbidden},
		{"reader cannot subscribe", reader, domain.CreateSubscriptionRequest{ApplicationID: "my-app", APIID: "petstore", PlanID: "basic"}, policy.ErrForbidden},
		{"restricted plan", owner, domain.CreateSubscriptionRequest{ApplicationID: "my-app", APIID: "partner", PlanID: "partner_basic"}, policy.ErrGroupRestricted},
		{"oauth2 without redirect uri", owner, domain.CreateSubscriptionRequest{ApplicationID: "my-app", APIID: "superduper", PlanID: "oauth2_basic"}, domain.ErrMissingRedirectURI},
		{"trusted by non admin", owner, domain.CreateSubscriptionRequest{ApplicationID: "my-app", APIID: "petstore", PlanID: "basic", Trusted: true}, domain.ErrTrustedAdminOnly},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.Create(as(tc.caller), tc.req)
			assert.ErrorIs(t, err, tc.want)
		})
	}

	var count int64
	require.NoError(t, f.conn.Model(&domain.Subscription{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestGroupMemberMaySubscribeToRestrictedPlan(t *testing.T) {
	f := setup(t)
	f.seedApp(t, "my-app", "")

	v, err := f.svc.Create(as(partner), domain.CreateSubscriptionRequest{ApplicationID: "my-app", APIID: "partner", PlanID: "partner_basic"})
	require.NoError(t, err)
	assert.True(t, v.Approved)
}

func TestCreateOAuth2IssuesClientAndIndex(t *testing.T) {
	f := setup(t)
	f.seedApp(t, "oauth-app", "https://app.example.com/cb")

	v, err := f.svc.Create(as(admin), domain.CreateSubscriptionRequest{ApplicationID: "oauth-app", APIID: "superduper", PlanID: "oauth2_basic", Trusted: true})
	require.NoError(t, err)
	require.NotNil(t, v.ClientID)
	require.NotNil(t, v.ClientSecret)
	assert.Len(t, *v.ClientID, 40)
	assert.Len(t, *v.ClientSecret, 64)
	assert.Nil(t, v.APIKey)
	assert.True(t, v.Trusted)

	client, err := f.svc.ResolveClient(context.Background(), *v.ClientID)
	require.NoError(t, err)
	assert.Equal(t, "oauth-app", client.Application.ID)
	assert.Equal(t, "superduper", client.Subscription.APIID)
	assert.Equal(t, *v.ClientSecret, *client.Subscription.ClientSecret)

	lookup, err := f.svc.LookupByClientID(as(admin), *v.ClientID)
	require.NoError(t, err)
	assert.Equal(t, "oauth-app", lookup.Application.ID)
	assert.Equal(t, "superduper", lookup.Subscription.API)

	_, err = f.svc.LookupByClientID(as(owner), *v.ClientID)
	assert.ErrorIs(t, err, domain.ErrLookupAdminOnly)

	_, err = f.svc.ResolveClient(context.Background(), "unknown")
	assert.ErrorIs(t, err, domain.ErrClientNotFound)
}

func TestDuplicateSubscriptionConflicts(t *testing.T) {
	f := setup(t)
	f.seedApp(t, "my-app", "")
	req := domain.CreateSubscriptionRequest{ApplicationID: "my-app", APIID: "petstore", PlanID: "basic"}

	_, err := f.svc.Create(as(owner), req)
	require.NoError(t, err)

	req.PlanID = "unlimited"
	_, err = f.svc.Create(as(owner), req)
	assert.ErrorIs(t, err, domain.ErrSubscriptionExists)
}

func TestConcurrentCreateHasSingleWinner(t *testing.T) {
	f := setup(t)
	f.seedApp(t, "my-app", "")

	const workers = 8
	results := make([]error, workers)
	var g errgroup.Group
	for i := 0; i < workers; i++ {
		g.Go(func() error {
			_, err := f.svc.Create(as(owner), domain.CreateSubscriptionRequest{ApplicationID: "my-app", APIID: "petstore", PlanID: "basic"})
			results[i] = err
			return nil
		})
	}
	require.NoError(t, g.Wait())

	wins := 0
	for _, err := range results {
		if err == nil {
			wins++
			continue
		}
		assert.ErrorIs(t, err, domain.ErrSubscriptionExists)
	}
	assert.Equal(t, 1, wins)

	var entries int64
	require.NoError(t, f.conn.Model(&domain.APIIndexEntry{}).Count(&entries).Error)
	assert.Equal(t, int64(1), entries)
}

func TestDeleteRemovesIndices(t *testing.T) {
	f := setup(t)
	f.seedApp(t, "oauth-app", "https://app.example.com/cb")

	v, err := f.svc.Create(as(owner), domain.CreateSubscriptionRequest{ApplicationID: "oauth-app", APIID: "superduper", PlanID: "oauth2_basic"})
	require.NoError(t, err)

	assert.ErrorIs(t, f.svc.Delete(as(reader), "oauth-app", "superduper"), policy.ErrForbidden)
	require.NoError(t, f.svc.Delete(as(partner), "oauth-app", "superduper"))

	_, err = f.svc.ResolveClient(context.Background(), *v.ClientID)
	assert.ErrorIs(t, err, domain.ErrClientNotFound)
	subscribers, err := f.svc.ListByAPI(as(admin), "superduper")
	require.NoError(t, err)
	assert.Empty(t, subscribers)

	assert.ErrorIs(t, f.svc.Delete(as(owner), "oauth-app", "superduper"), domain.ErrSubscriptionNotFound)
	assert.ErrorIs(t, f.svc.Delete(as(owner), "missing", "superduper"), appdomain.ErrApplicationNotFound)
}

func TestListByAPIIsAdminOnly(t *testing.T) {
	f := setup(t)
	_, err := f.svc.ListByAPI(as(owner), "petstore")
	assert.ErrorIs(t, err, domain.ErrListByAPIAdminOnly)

	_, err = f.svc.ListByAPI(as(admin), "nope")
	assert.ErrorIs(t, err, catalogdomain.ErrAPINotFound)
}

func TestSetTrustedIsAdminOnly(t *testing.T) {
	f := setup(t)
	f.seedApp(t, "oauth-app", "https://app.example.com/cb")
	v, err := f.svc.Create(as(owner), domain.CreateSubscriptionRequest{ApplicationID: "oauth-app", APIID: "superduper", PlanID: "oauth2_basic"})
	require.NoError(t, err)
	assert.False(t, v.Trusted)

	_, err = f.svc.SetTrusted(as(owner), "oauth-app", "superduper", true)
	assert.ErrorIs(t, err, domain.ErrTrustedAdminOnly)

	updated, err := f.svc.SetTrusted(as(admin), "oauth-app", "superduper", true)
	require.NoError(t, err)
	assert.True(t, updated.Trusted)

	var entry domain.ClientIndexEntry
	require.NoError(t, f.conn.Where("client_id = ?", *v.ClientID).First(&entry).Error)
	assert.True(t, entry.Trusted)
}

func TestDeleteForApplicationCascades(t *testing.T) {
	f := setup(t)
	f.seedApp(t, "oauth-app", "https://app.example.com/cb")
	_, err := f.events.UpsertListener(as(admin), "kong-adapter", "http://kong-adapter:3002")
	require.NoError(t, err)

	_, err = f.svc.Create(as(owner), domain.CreateSubscriptionRequest{ApplicationID: "oauth-app", APIID: "petstore", PlanID: "basic"})
	require.NoError(t, err)
	_, err = f.svc.Create(as(owner), domain.CreateSubscriptionRequest{ApplicationID: "oauth-app", APIID: "superduper", PlanID: "oauth2_basic"})
	require.NoError(t, err)

	ctx := context.Background()
	err = f.svc.DeleteForApplication(ctx, "oauth-app", func(tx *gorm.DB) error {
		if err := f.apps.DeleteOwners(ctx, tx, "oauth-app"); err != nil {
			return err
		}
		return f.apps.Delete(ctx, tx, "oauth-app")
	})
	require.NoError(t, err)

	for _, model := range []any{&domain.Subscription{}, &domain.APIIndexEntry{}, &domain.ClientIndexEntry{}, &appdomain.Application{}} {
		var n int64
		require.NoError(t, f.conn.Model(model).Count(&n).Error)
		assert.Zero(t, n, "%T", model)
	}

	pending, err := f.events.ListEvents(as(admin), "kong-adapter", 0)
	require.NoError(t, err)
	deleted := 0
	for _, e := range pending {
		if e.Type == eventsdomain.EventSubscriptionDeleted {
			deleted++
		}
	}
	assert.Equal(t, 2, deleted)

	_, err = f.svc.Create(as(admin), domain.CreateSubscriptionRequest{ApplicationID: "oauth-app", APIID: "petstore", PlanID: "basic"})
	assert.ErrorIs(t, err, appdomain.ErrApplicationNotFound)
}

func TestDeleteForApplicationRollsBackOnFailure(t *testing.T) {
	f := setup(t)
	f.seedApp(t, "my-app", "")
	_, err := f.svc.Create(as(owner), domain.CreateSubscriptionRequest{ApplicationID: "my-app", APIID: "petstore", PlanID: "basic"})
	require.NoError(t, err)

	boom := errors.New("boom")
	err = f.svc.DeleteForApplication(context.Background(), "my-app", func(*gorm.DB) error { return boom })
	assert.ErrorIs(t, err, boom)

	_, err = f.svc.Get(as(owner), "my-app", "petstore")
	assert.NoError(t, err)
}

func TestCreateRacingApplicationDeleteLeavesNoOrphans(t *testing.T) {
	for round := 0; round < 5; round++ {
		f := setup(t)
		f.seedApp(t, "my-app", "")
		ctx := context.Background()

		var g errgroup.Group
		for _, api := range []string{"petstore", "partner"} {
			plan := "basic"
			if api == "partner" {
				plan = "partner_basic"
			}
			g.Go(func() error {
				_, err := f.svc.Create(as(admin), domain.CreateSubscriptionRequest{ApplicationID: "my-app", APIID: api, PlanID: plan})
				if err != nil && !errors.Is(err, appdomain.ErrApplicationNotFound) {
					return err
				}
				return nil
			})
		}
		g.Go(func() error {
			return f.svc.DeleteForApplication(ctx, "my-app", func(tx *gorm.DB) error {
				if err := f.apps.DeleteOwners(ctx, tx, "my-app"); err != nil {
					return err
				}
				return f.apps.Delete(ctx, tx, "my-app")
			})
		})
		require.NoError(t, g.Wait())

		var orphans int64
		require.NoError(t, f.conn.Model(&domain.Subscription{}).
			Where("application_id NOT IN (?)", f.conn.Model(&appdomain.Application{}).Select("id")).
			Count(&orphans).Error)
		assert.Zero(t, orphans)
	}
}
