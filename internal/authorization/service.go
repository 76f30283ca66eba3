// Package authorization decides which gateway scopes grant which portal
// operations. Scope to permission rows live in casbin_rule.
package authorization

import (
	"context"

	"github.com/Haufe-Lexware/wicked.portal-test/internal/apierror"
	identitydomain "github.com/Haufe-Lexware/wicked.portal-test/internal/identity/domain"
	"go.uber.org/fx"
)

const (
	ObjectSubscription = "subscription"
	ObjectApproval     = "approval"
	ObjectApplication  = "application"
	ObjectUser         = "user"
	ObjectWebhook      = "webhook"
	ObjectCatalog      = "catalog"
)

const (
	ActionRead  = "read"
	ActionWrite = "write"
)

const (
	ScopeReadSubscriptions  = "read_subscriptions"
	ScopeWriteSubscriptions = "write_subscriptions"
	ScopeReadApprovals      = "read_approvals"
	ScopeReadApplications   = "read_applications"
	ScopeWriteApplications  = "write_applications"
	ScopeReadUsers          = "read_users"
	ScopeWriteUsers         = "write_users"
	ScopeReadWebhooks       = "read_webhooks"
	ScopeWriteWebhooks      = "write_webhooks"
	ScopeReadAPIs           = "read_apis"
)

var ErrForbidden = apierror.Forbidden("Not allowed. Missing scope for this operation.")

type Service interface {
	// Authorize succeeds when any scope of the caller grants act on obj.
	Authorize(ctx context.Context, caller *identitydomain.Identity, object, action string) error
}

var Module = fx.Module("authorization.service",
	fx.Provide(NewEnforcer),
	fx.Provide(NewService),
)
