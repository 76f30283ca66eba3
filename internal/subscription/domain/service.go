package domain

import (
	"context"

	"gorm.io/gorm"
)

type CreateSubscriptionRequest struct {
	ApplicationID string
	APIID         string
	PlanID        string
	Trusted       bool
}

type Service interface {
	Create(ctx context.Context, req CreateSubscriptionRequest) (*View, error)
	Get(ctx context.Context, appID, apiID string) (*View, error)
	List(ctx context.Context, appID string) ([]View, error)
	ListByAPI(ctx context.Context, apiID string) ([]APISubscriber, error)
	LookupByClientID(ctx context.Context, clientID string) (*ClientLookup, error)
	// ResolveClient is the unchecked lookup used by the OAuth2 grant engine.
	ResolveClient(ctx context.Context, clientID string) (*Client, error)
	Delete(ctx context.Context, appID, apiID string) error
	SetTrusted(ctx context.Context, appID, apiID string, trusted bool) (*View, error)
	DeleteForApplication(ctx context.Context, appID string, within func(tx *gorm.DB) error) error
}
