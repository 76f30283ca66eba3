package authorization

import (
	"context"
	_ "embed"
	"strings"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	identitydomain "github.com/Haufe-Lexware/wicked.portal-test/internal/identity/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

//go:embed model.conf
var modelText string

type Params struct {
	fx.In

	Log      *zap.Logger
	Enforcer *casbin.SyncedEnforcer
}

type ServiceImpl struct {
	log      *zap.Logger
	enforcer *casbin.SyncedEnforcer
}

func NewEnforcer(db *gorm.DB) (*casbin.SyncedEnforcer, error) {
	adapter, err := gormadapter.NewAdapterByDB(db)
	if err != nil {
		return nil, err
	}
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, err
	}
	enforcer, err := casbin.NewSyncedEnforcer(m, adapter)
	if err != nil {
		return nil, err
	}
	enforcer.EnableAutoSave(true)
	enforcer.EnableAutoBuildRoleLinks(true)
	if err := enforcer.LoadPolicy(); err != nil {
		return nil, err
	}
	if err := seedPolicies(enforcer); err != nil {
		return nil, err
	}
	if err := enforcer.BuildRoleLinks(); err != nil {
		return nil, err
	}
	return enforcer, nil
}

func NewService(p Params) Service {
	return &ServiceImpl{
		log:      p.Log.Named("authorization.service"),
		enforcer: p.Enforcer,
	}
}

func (s *ServiceImpl) Authorize(ctx context.Context, caller *identitydomain.Identity, object, action string) error {
	if caller == nil {
		return ErrForbidden
	}
	// Calls that bypass the gateway carry no scope header.
	if !caller.ScopesKnown {
		return nil
	}

	object, action = strings.TrimSpace(object), strings.TrimSpace(action)
	for _, scope := range caller.Scopes {
		allowed, err := s.enforcer.Enforce(scopeSubject(scope), object, action)
		if err != nil {
			return err
		}
		if allowed {
			return nil
		}
	}

	s.log.Debug("scope denied",
		zap.String("user_id", caller.UserID.String()),
		zap.String("object", object),
		zap.String("action", action),
		zap.Strings("scopes", caller.Scopes),
	)
	return ErrForbidden
}

func scopeSubject(scope string) string {
	return "scope:" + strings.TrimSpace(scope)
}

func seedPolicies(enforcer *casbin.SyncedEnforcer) error {
	policies := [][]string{
		{scopeSubject(ScopeReadSubscriptions), ObjectSubscription, ActionRead},
		{scopeSubject(ScopeWriteSubscriptions), ObjectSubscription, ActionWrite},
		{scopeSubject(ScopeReadApprovals), ObjectApproval, ActionRead},
		{scopeSubject(ScopeReadApplications), ObjectApplication, ActionRead},
		{scopeSubject(ScopeWriteApplications), ObjectApplication, ActionWrite},
		{scopeSubject(ScopeReadUsers), ObjectUser, ActionRead},
		{scopeSubject(ScopeWriteUsers), ObjectUser, ActionWrite},
		{scopeSubject(ScopeReadWebhooks), ObjectWebhook, ActionRead},
		{scopeSubject(ScopeWriteWebhooks), ObjectWebhook, ActionWrite},
		{scopeSubject(ScopeReadAPIs), ObjectCatalog, ActionRead},
	}

	for _, policy := range policies {
		has, err := enforcer.HasPolicy(policy)
		if err != nil {
			return err
		}
		if has {
			continue
		}
		if _, err := enforcer.AddPolicy(policy); err != nil {
			return err
		}
	}

	// write_subscriptions implies read_subscriptions.
	groupings := [][]string{
		{scopeSubject(ScopeWriteSubscriptions), scopeSubject(ScopeReadSubscriptions)},
	}
	for _, g := range groupings {
		has, err := enforcer.HasGroupingPolicy(g)
		if err != nil {
			return err
		}
		if has {
			continue
		}
		if _, err := enforcer.AddGroupingPolicy(g); err != nil {
			return err
		}
	}
	return nil
}
