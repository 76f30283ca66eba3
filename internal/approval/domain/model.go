// Package domain describes pending subscription approvals. An approval
// request is not stored on its own; it is every unapproved subscription.
package domain

import (
	"context"
	"time"

	"github.com/Haufe-Lexware/wicked.portal-test/internal/apierror"
	subscriptiondomain "github.com/Haufe-Lexware/wicked.portal-test/internal/subscription/domain"
)

var (
	ErrNoPendingSubscription = apierror.NotFound("No pending subscription found.")
	ErrSelfApproval          = apierror.Forbidden("Not allowed. Approving your own subscription is not permitted.")
)

type Ref struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

type Approval struct {
	Application Ref       `json:"application"`
	API         Ref       `json:"api"`
	Plan        Ref       `json:"plan"`
	CreatedBy   string    `json:"createdBy"`
	CreatedAt   time.Time `json:"createdAt"`
}

type Service interface {
	// ListPending returns the approvals the caller may act on.
	ListPending(ctx context.Context) ([]Approval, error)
	Approve(ctx context.Context, appID, apiID string) (*subscriptiondomain.View, error)
}
