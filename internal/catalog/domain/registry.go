package domain

import (
	"context"

	"github.com/Haufe-Lexware/wicked.portal-test/internal/apierror"
)

var (
	ErrAPINotFound  = apierror.NotFound("API not found.")
	ErrPlanNotFound = apierror.NotFound("Plan not found.")
)

type Registry interface {
	GetAPI(ctx context.Context, id string) (*API, error)
	GetPlan(ctx context.Context, id string) (*Plan, error)
	ListAPIs(ctx context.Context) []API
	ListPlans(ctx context.Context) []Plan
}
