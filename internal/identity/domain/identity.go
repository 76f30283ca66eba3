package domain

import (
	"context"
	"slices"

	"github.com/bwmarrin/snowflake"
)

// Identity is the capability set of the caller of a request.
type Identity struct {
	UserID   snowflake.ID
	Username string
	Groups   []string
	Admin    bool
	Approver bool
	// Scopes holds the OAuth scopes forwarded by the gateway. ScopesKnown
	// is false for calls that did not pass through the gateway.
	Scopes      []string
	ScopesKnown bool
}

func NewIdentity(u User, scopes []string, scopesKnown bool) *Identity {
	admin := u.IsAdmin()
	return &Identity{
		UserID:      u.ID,
		Username:    u.Username,
		Groups:      slices.Clone(u.Groups),
		Admin:       admin,
		Approver:    admin || u.InGroup(GroupApprover),
		Scopes:      scopes,
		ScopesKnown: scopesKnown,
	}
}

func (i *Identity) InGroup(group string) bool {
	return i != nil && slices.Contains(i.Groups, group)
}

// HasScope reports whether the gateway granted scope. Internal calls carry
// no scope header and are granted every scope.
func (i *Identity) HasScope(scope string) bool {
	if i == nil {
		return false
	}
	if !i.ScopesKnown {
		return true
	}
	return slices.Contains(i.Scopes, scope)
}

type identityKey struct{}

func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// FromContext returns the caller identity placed by the HTTP middleware.
func FromContext(ctx context.Context) (*Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(*Identity)
	return id, ok && id != nil
}
