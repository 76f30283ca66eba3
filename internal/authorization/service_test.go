package authorization

import (
	"context"
	"testing"

	identitydomain "github.com/Haufe-Lexware/wicked.portal-test/internal/identity/domain"
	"github.com/Haufe-Lexware/wicked.portal-test/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestService(t *testing.T) Service {
	t.Helper()
	conn, err := db.NewTest()
	require.NoError(t, err)
	enforcer, err := NewEnforcer(conn)
	require.NoError(t, err)
	return NewService(Params{Log: zaptest.NewLogger(t), Enforcer: enforcer})
}

func withScopes(scopes ...string) *identitydomain.Identity {
	return &identitydomain.Identity{UserID: 10, Scopes: scopes, ScopesKnown: true}
}

func TestAuthorizeByScope(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	cases := []struct {
		name    string
		caller  *identitydomain.Identity
		object  string
		action  string
		allowed bool
	}{
		{"read with read scope", withScopes(ScopeReadSubscriptions), ObjectSubscription, ActionRead, true},
		{"write with read scope", withScopes(ScopeReadSubscriptions), ObjectSubscription, ActionWrite, false},
		{"write implies read", withScopes(ScopeWriteSubscriptions), ObjectSubscription, ActionRead, true},
		{"scope of another object", withScopes(ScopeReadApplications), ObjectSubscription, ActionRead, false},
		{"any matching scope", withScopes("profile", ScopeReadApprovals), ObjectApproval, ActionRead, true},
		{"empty scope set", withScopes(), ObjectUser, ActionRead, false},
		{"no scope header", &identitydomain.Identity{UserID: 10}, ObjectWebhook, ActionWrite, true},
		{"anonymous", nil, ObjectApplication, ActionRead, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := svc.Authorize(ctx, tc.caller, tc.object, tc.action)
			if tc.allowed {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, ErrForbidden)
		})
	}
}

func TestSeedingIsIdempotent(t *testing.T) {
	conn, err := db.NewTest()
	require.NoError(t, err)

	_, err = NewEnforcer(conn)
	require.NoError(t, err)
	enforcer, err := NewEnforcer(conn)
	require.NoError(t, err)

	policies, err := enforcer.GetPolicy()
	require.NoError(t, err)
	assert.Len(t, policies, 10)
}
