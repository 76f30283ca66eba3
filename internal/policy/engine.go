// Package policy answers who may act on an application and who may
// subscribe to a plan. Every check consults IsAdmin first.
package policy

import (
	"context"

	"github.com/Haufe-Lexware/wicked.portal-test/internal/apierror"
	appdomain "github.com/Haufe-Lexware/wicked.portal-test/internal/application/domain"
	catalogdomain "github.com/Haufe-Lexware/wicked.portal-test/internal/catalog/domain"
	identitydomain "github.com/Haufe-Lexware/wicked.portal-test/internal/identity/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var (
	ErrForbidden       = apierror.Forbidden("Not allowed.")
	ErrGroupRestricted = apierror.Forbidden("Not allowed. This plan is restricted to members of a user group.")
	ErrNotApprover     = apierror.Forbidden("Not allowed. Only admins and approvers may approve subscriptions.")
)

type Params struct {
	fx.In

	DB   *gorm.DB
	Apps appdomain.Repository
}

type Engine struct {
	db   *gorm.DB
	apps appdomain.Repository
}

func New(p Params) *Engine {
	return &Engine{db: p.DB, apps: p.Apps}
}

// IsAdmin is the single admin predicate.
func (e *Engine) IsAdmin(id *identitydomain.Identity) bool {
	return id != nil && id.Admin
}

// RoleOf returns the caller's role on appID. Admins without an ownership
// record get RoleNone; unknown applications yield ErrApplicationNotFound.
func (e *Engine) RoleOf(ctx context.Context, id *identitydomain.Identity, appID string) (Role, error) {
	if _, err := e.apps.FindByID(ctx, e.db, appID); err != nil {
		return RoleNone, err
	}
	if id == nil {
		return RoleNone, nil
	}
	owner, err := e.apps.FindOwner(ctx, e.db, appID, id.UserID)
	if err != nil {
		return RoleNone, err
	}
	if owner == nil {
		return RoleNone, nil
	}
	role, _ := ParseRole(owner.Role)
	return role, nil
}

// CheckApplicationAccess fails with ErrForbidden unless the caller is admin
// or holds at least min on appID.
func (e *Engine) CheckApplicationAccess(ctx context.Context, id *identitydomain.Identity, appID string, min Role) error {
	role, err := e.RoleOf(ctx, id, appID)
	if err != nil {
		return err
	}
	if e.IsAdmin(id) {
		return nil
	}
	if id == nil || !role.AtLeast(min) {
		return ErrForbidden
	}
	return nil
}

// CheckGroupRestriction fails unless the caller is admin, the plan is open,
// or the caller belongs to the plan's required group.
func (e *Engine) CheckGroupRestriction(id *identitydomain.Identity, plan catalogdomain.Plan) error {
	if e.IsAdmin(id) || plan.RequiredGroup == "" {
		return nil
	}
	if id.InGroup(plan.RequiredGroup) {
		return nil
	}
	return ErrGroupRestricted
}

// CanApprove reports whether the caller may approve subscriptions at all.
func (e *Engine) CanApprove(id *identitydomain.Identity) bool {
	return e.IsAdmin(id) || (id != nil && id.Approver)
}

// CanSeePending reports whether an approver may see a pending subscription
// to plan: admins see everything, approvers only plans open to them.
func (e *Engine) CanSeePending(id *identitydomain.Identity, plan catalogdomain.Plan) bool {
	if e.IsAdmin(id) {
		return true
	}
	if !e.CanApprove(id) {
		return false
	}
	return plan.RequiredGroup == "" || id.InGroup(plan.RequiredGroup)
}
