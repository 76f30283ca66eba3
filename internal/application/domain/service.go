package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type CreateApplicationRequest struct {
	ID           string
	Name         string
	Description  string
	RedirectURI  string
	Confidential bool
}

type UpdateApplicationRequest struct {
	Name         *string
	Description  *string
	RedirectURI  *string
	Confidential *bool
}

type ListApplicationsRequest struct {
	Offset int
	Limit  int
}

type AddOwnerRequest struct {
	UserID *snowflake.ID
	Email  string
	Role   string
}

type Service interface {
	Create(ctx context.Context, req CreateApplicationRequest) (*ApplicationView, error)
	Get(ctx context.Context, id string) (*ApplicationView, error)
	List(ctx context.Context, req ListApplicationsRequest) ([]ApplicationView, error)
	Update(ctx context.Context, id string, req UpdateApplicationRequest) (*ApplicationView, error)
	Delete(ctx context.Context, id string) error
	AddOwner(ctx context.Context, id string, req AddOwnerRequest) (*ApplicationView, error)
	RemoveOwner(ctx context.Context, id string, userID snowflake.ID) (*ApplicationView, error)
}

// SubscriptionCascade removes every subscription of an application under
// the subscription locks and runs within inside the same transaction.
type SubscriptionCascade interface {
	DeleteForApplication(ctx context.Context, appID string, within func(tx *gorm.DB) error) error
}
