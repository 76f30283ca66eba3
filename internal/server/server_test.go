package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	appdomain "github.com/Haufe-Lexware/wicked.portal-test/internal/application/domain"
	apprepository "github.com/Haufe-Lexware/wicked.portal-test/internal/application/repository"
	appservice "github.com/Haufe-Lexware/wicked.portal-test/internal/application/service"
	approvalservice "github.com/Haufe-Lexware/wicked.portal-test/internal/approval/service"
	"github.com/Haufe-Lexware/wicked.portal-test/internal/authorization"
	"github.com/Haufe-Lexware/wicked.portal-test/internal/catalog/registry"
	"github.com/Haufe-Lexware/wicked.portal-test/internal/clock"
	"github.com/Haufe-Lexware/wicked.portal-test/internal/credential"
	eventsdomain "github.com/Haufe-Lexware/wicked.portal-test/internal/events/domain"
	eventsrepository "github.com/Haufe-Lexware/wicked.portal-test/internal/events/repository"
	eventsservice "github.com/Haufe-Lexware/wicked.portal-test/internal/events/service"
	identitydomain "github.com/Haufe-Lexware/wicked.portal-test/internal/identity/domain"
	identityrepository "github.com/Haufe-Lexware/wicked.portal-test/internal/identity/repository"
	identityservice "github.com/Haufe-Lexware/wicked.portal-test/internal/identity/service"
	"github.com/Haufe-Lexware/wicked.portal-test/internal/locking"
	"github.com/Haufe-Lexware/wicked.portal-test/internal/observability"
	"github.com/Haufe-Lexware/wicked.portal-test/internal/policy"
	subscriptiondomain "github.com/Haufe-Lexware/wicked.portal-test/internal/subscription/domain"
	subscriptionrepository "github.com/Haufe-Lexware/wicked.portal-test/internal/subscription/repository"
	subscriptionservice "github.com/Haufe-Lexware/wicked.portal-test/internal/subscription/service"
	"github.com/Haufe-Lexware/wicked.portal-test/pkg/db"
	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const (
	adminID    = "1"
	aliceID    = "10"
	bobID      = "11"
	approverID = "12"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	conn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(
		&identitydomain.User{},
		&appdomain.Application{},
		&appdomain.Owner{},
		&subscriptiondomain.Subscription{},
		&subscriptiondomain.APIIndexEntry{},
		&subscriptiondomain.ClientIndexEntry{},
		&eventsdomain.Listener{},
		&eventsdomain.Event{},
	))
	for _, u := range []identitydomain.User{
		{ID: 1, Username: "admin", Groups: []string{identitydomain.GroupAdmin}},
		{ID: 10, Username: "alice"},
		{ID: 11, Username: "bob"},
		{ID: 12, Username: "approver", Groups: []string{identitydomain.GroupApprover}},
	} {
		require.NoError(t, conn.Create(&u).Error)
	}

	log := zaptest.NewLogger(t)
	fake := clock.NewFakeClock(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	catalog, err := registry.NewStatic(registry.DefaultCatalog())
	require.NoError(t, err)
	enforcer, err := authorization.NewEnforcer(conn)
	require.NoError(t, err)

	users := identityrepository.New(conn)
	apps := apprepository.Provide()
	subsRepo := subscriptionrepository.Provide()
	pol := policy.New(policy.Params{DB: conn, Apps: apps})
	locks := locking.NewLocal()
	issuer := credential.NewIssuer()
	events := eventsservice.New(eventsservice.Params{
		DB:       conn,
		Log:      log,
		Clock:    fake,
		Repo:     eventsrepository.Provide(),
		Notifier: eventsservice.NewNotifier(nil, log),
	})
	subs := subscriptionservice.New(subscriptionservice.Params{
		DB: conn, Log: log, Clock: fake, GenID: node, Repo: subsRepo, Apps: apps,
		Catalog: catalog, Policy: pol, Issuer: issuer, Locks: locks, Events: events,
	})

	return NewServer(ServerParams{
		Gin:         NewEngine(observability.Config{}, nil),
		IdentitySvc: identityservice.New(identityservice.Params{Log: log, Clock: fake, GenID: node, Repo: users}),
		AuthzSvc:    authorization.NewService(authorization.Params{Log: log, Enforcer: enforcer}),
		ApplicationSvc: appservice.New(appservice.Params{
			DB: conn, Log: log, Clock: fake, Repo: apps, Users: users, Policy: pol, Events: events, Cascade: subs,
		}),
		SubscriptionSvc: subs,
		ApprovalSvc: approvalservice.New(approvalservice.Params{
			DB: conn, Log: log, Clock: fake, Subscriptions: subsRepo, Apps: apps,
			Catalog: catalog, Policy: pol, Issuer: issuer, Locks: locks, Events: events,
		}),
		EventsSvc: events,
		Catalog:   catalog,
	})
}

type call struct {
	method string
	path   string
	user   string
	scope  *string
	body   any
}

func (s *Server) do(t *testing.T, c call) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	if c.body != nil {
		require.NoError(t, json.NewEncoder(&body).Encode(c.body))
	}
	req := httptest.NewRequest(c.method, c.path, &body)
	req.Header.Set("Content-Type", "application/json")
	if c.user != "" {
		req.Header.Set(HeaderUserID, c.user)
	}
	if c.scope != nil {
		req.Header.Set(HeaderScope, *c.scope)
	}
	rec := httptest.NewRecorder()
	s.engine.ServeHTTP(rec, req)
	return rec
}

func scope(v string) *string { return &v }

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func (s *Server) createApp(t *testing.T, user, id string) {
	t.Helper()
	rec := s.do(t, call{method: http.MethodPost, path: "/applications", user: user, body: gin.H{
		"id":          id,
		"name":        id,
		"redirectUri": "https://" + id + ".example.com/callback",
	}})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, call{method: http.MethodGet, path: "/health"})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestUnknownUserIsForbidden(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, call{method: http.MethodGet, path: "/applications"})
	require.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "forbidden", decode[errorResponse](t, rec).Error.Type)

	rec = s.do(t, call{method: http.MethodGet, path: "/applications", user: "999"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestSubscriptionLifecycleOverHTTP(t *testing.T) {
	s := newTestServer(t)
	s.createApp(t, aliceID, "alice-app")

	rec := s.do(t, call{method: http.MethodPost, path: "/applications/alice-app/subscriptions", user: aliceID, body: gin.H{
		"api":  "petstore",
		"plan": "basic",
	}})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[subscriptiondomain.View](t, rec)
	assert.True(t, created.Approved)
	require.NotNil(t, created.APIKey)

	rec = s.do(t, call{method: http.MethodPost, path: "/applications/alice-app/subscriptions", user: aliceID, body: gin.H{
		"api":  "petstore",
		"plan": "unlimited",
	}})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(t, call{method: http.MethodGet, path: "/applications/alice-app/subscriptions/petstore", user: aliceID})
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[subscriptiondomain.View](t, rec)
	assert.Equal(t, *created.APIKey, *got.APIKey)
	assert.Contains(t, got.Links, "self")

	rec = s.do(t, call{method: http.MethodGet, path: "/applications/alice-app/subscriptions/petstore", user: bobID})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, call{method: http.MethodDelete, path: "/applications/alice-app/subscriptions/petstore", user: aliceID})
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.do(t, call{method: http.MethodGet, path: "/applications/alice-app/subscriptions/petstore", user: aliceID})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSubscriptionValidationErrors(t *testing.T) {
	s := newTestServer(t)
	s.createApp(t, aliceID, "alice-app")

	rec := s.do(t, call{method: http.MethodPost, path: "/applications/alice-app/subscriptions", user: aliceID, body: gin.H{
		"api":  "legacy",
		"plan": "basic",
	}})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decode[errorResponse](t, rec)
	assert.Equal(t, "validation_error", resp.Error.Type)
	assert.Equal(t, "API is deprecated. Subscribing not possible.", resp.Error.Message)

	rec = s.do(t, call{method: http.MethodPost, path: "/applications/alice-app/subscriptions", user: aliceID, body: gin.H{
		"api":  "partner",
		"plan": "partner_basic",
	}})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, call{method: http.MethodPost, path: "/applications", user: aliceID, body: gin.H{"id": "Not Valid!", "name": "x"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestScopeEnforcement(t *testing.T) {
	s := newTestServer(t)
	s.createApp(t, aliceID, "alice-app")

	rec := s.do(t, call{method: http.MethodPost, path: "/applications", user: aliceID, scope: scope("read_applications"), body: gin.H{
		"id":   "second-app",
		"name": "Second",
	}})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, call{method: http.MethodGet, path: "/applications/alice-app", user: aliceID, scope: scope("read_applications")})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, call{method: http.MethodGet, path: "/applications/alice-app/subscriptions", user: aliceID, scope: scope("read_applications")})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, call{method: http.MethodGet, path: "/applications/alice-app/subscriptions", user: aliceID, scope: scope("write_subscriptions")})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, call{method: http.MethodGet, path: "/applications/alice-app", user: aliceID, scope: scope("")})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestApprovalOverHTTP(t *testing.T) {
	s := newTestServer(t)
	s.createApp(t, aliceID, "alice-app")

	rec := s.do(t, call{method: http.MethodPost, path: "/applications/alice-app/subscriptions", user: aliceID, body: gin.H{
		"api":  "petstore",
		"plan": "unlimited",
	}})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	pending := decode[subscriptiondomain.View](t, rec)
	assert.False(t, pending.Approved)
	assert.Nil(t, pending.APIKey)

	rec = s.do(t, call{method: http.MethodGet, path: "/approvals", user: approverID})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]map[string]any](t, rec), 1)

	rec = s.do(t, call{method: http.MethodGet, path: "/approvals", user: bobID})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[[]map[string]any](t, rec))

	rec = s.do(t, call{method: http.MethodPatch, path: "/applications/alice-app/subscriptions/petstore", user: aliceID, body: gin.H{"approved": true}})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, call{method: http.MethodPatch, path: "/applications/alice-app/subscriptions/petstore", user: approverID, body: gin.H{"approved": true}})
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	rec = s.do(t, call{method: http.MethodGet, path: "/applications/alice-app/subscriptions/petstore", user: aliceID})
	require.Equal(t, http.StatusOK, rec.Code)
	approved := decode[subscriptiondomain.View](t, rec)
	assert.True(t, approved.Approved)
	assert.NotNil(t, approved.APIKey)

	rec = s.do(t, call{method: http.MethodGet, path: "/approvals", user: adminID})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[[]map[string]any](t, rec))
}

func TestTrustedPatchIsAdminOnly(t *testing.T) {
	s := newTestServer(t)
	s.createApp(t, aliceID, "alice-app")
	rec := s.do(t, call{method: http.MethodPost, path: "/applications/alice-app/subscriptions", user: aliceID, body: gin.H{
		"api":  "superduper",
		"plan": "oauth2_basic",
	}})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	view := decode[subscriptiondomain.View](t, rec)
	require.NotNil(t, view.ClientID)

	rec = s.do(t, call{method: http.MethodPatch, path: "/applications/alice-app/subscriptions/superduper", user: aliceID, body: gin.H{"trusted": true}})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, call{method: http.MethodPatch, path: "/applications/alice-app/subscriptions/superduper", user: adminID, body: gin.H{"trusted": true}})
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.do(t, call{method: http.MethodGet, path: "/subscriptions/" + *view.ClientID, user: aliceID})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, call{method: http.MethodGet, path: "/subscriptions/" + *view.ClientID, user: adminID})
	require.Equal(t, http.StatusOK, rec.Code)
	lookup := decode[subscriptiondomain.ClientLookup](t, rec)
	assert.Equal(t, "alice-app", lookup.Application.ID)
	assert.True(t, lookup.Subscription.Trusted)

	rec = s.do(t, call{method: http.MethodGet, path: "/apis/superduper/subscriptions", user: aliceID})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = s.do(t, call{method: http.MethodGet, path: "/apis/superduper/subscriptions", user: adminID})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCombinedApproveAndTrustNeedsAdmin(t *testing.T) {
	s := newTestServer(t)
	s.createApp(t, aliceID, "alice-app")
	rec := s.do(t, call{method: http.MethodPost, path: "/applications/alice-app/subscriptions", user: aliceID, body: gin.H{
		"api":  "petstore",
		"plan": "unlimited",
	}})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = s.do(t, call{method: http.MethodPatch, path: "/applications/alice-app/subscriptions/petstore", user: approverID, body: gin.H{
		"approved": true,
		"trusted":  true,
	}})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, call{method: http.MethodGet, path: "/applications/alice-app/subscriptions/petstore", user: aliceID})
	require.Equal(t, http.StatusOK, rec.Code)
	view := decode[subscriptiondomain.View](t, rec)
	assert.False(t, view.Approved)
	assert.False(t, view.Trusted)
	assert.Nil(t, view.APIKey)

	rec = s.do(t, call{method: http.MethodGet, path: "/approvals", user: approverID})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]map[string]any](t, rec), 1)
}

func TestApplicationDeleteCascadesAndEmitsEvents(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, call{method: http.MethodPut, path: "/webhooks/listeners/kong", user: adminID, body: gin.H{"url": "http://kong-adapter:3002"}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = s.do(t, call{method: http.MethodPut, path: "/webhooks/listeners/kong", user: aliceID, body: gin.H{"url": "http://x"}})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	s.createApp(t, aliceID, "alice-app")
	rec = s.do(t, call{method: http.MethodPost, path: "/applications/alice-app/subscriptions", user: aliceID, body: gin.H{
		"api":  "petstore",
		"plan": "basic",
	}})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = s.do(t, call{method: http.MethodDelete, path: "/applications/alice-app", user: aliceID})
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	rec = s.do(t, call{method: http.MethodGet, path: "/applications/alice-app", user: aliceID})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, call{method: http.MethodGet, path: "/webhooks/events/kong", user: adminID})
	require.Equal(t, http.StatusOK, rec.Code)
	events := decode[[]eventsdomain.Event](t, rec)
	var types []eventsdomain.EventType
	for _, e := range events {
		types = append(types, e.Type)
	}
	assert.Contains(t, types, eventsdomain.EventSubscriptionCreated)
	assert.Contains(t, types, eventsdomain.EventSubscriptionDeleted)
	assert.Contains(t, types, eventsdomain.EventApplicationDeleted)

	rec = s.do(t, call{method: http.MethodDelete, path: "/webhooks/events/kong", user: adminID})
	require.Equal(t, http.StatusNoContent, rec.Code)
	rec = s.do(t, call{method: http.MethodGet, path: "/webhooks/events/kong", user: adminID})
	assert.Empty(t, decode[[]eventsdomain.Event](t, rec))
}

func TestUserEndpoints(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, call{method: http.MethodPost, path: "/users", body: gin.H{
		"username": "dave",
		"email":    "dave@example.com",
		"password": "secret123",
	}})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	dave := decode[identitydomain.UserView](t, rec)

	rec = s.do(t, call{method: http.MethodPost, path: "/users", body: gin.H{
		"username": "dave2",
		"email":    "dave@example.com",
		"password": "secret123",
	}})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(t, call{method: http.MethodGet, path: "/users/" + dave.ID, user: dave.ID})
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = s.do(t, call{method: http.MethodGet, path: "/users/" + dave.ID, user: aliceID})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, call{method: http.MethodPatch, path: "/users/" + dave.ID, user: dave.ID, body: gin.H{"groups": []string{"admin"}}})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = s.do(t, call{method: http.MethodPatch, path: "/users/" + dave.ID, user: adminID, body: gin.H{"groups": []string{"partner"}}})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"partner"}, decode[identitydomain.UserView](t, rec).Groups)

	rec = s.do(t, call{method: http.MethodGet, path: "/users?email=dave@example.com", user: adminID})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, call{method: http.MethodDelete, path: "/users/" + dave.ID, user: adminID})
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = s.do(t, call{method: http.MethodGet, path: "/users/" + dave.ID, user: adminID})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCatalogEndpoints(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, call{method: http.MethodGet, path: "/apis/petstore/plans", user: aliceID})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]map[string]any](t, rec), 2)

	rec = s.do(t, call{method: http.MethodGet, path: "/apis/nope", user: aliceID})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
