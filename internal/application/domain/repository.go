package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, app *Application) error
	FindByID(ctx context.Context, db *gorm.DB, id string) (*Application, error)
	// Touch bumps updated_at and reports whether the row still exists. Inside
	// a transaction it also takes the row lock, ordering the caller against a
	// concurrent delete of the application.
	Touch(ctx context.Context, db *gorm.DB, id string, at time.Time) (bool, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]Application, error)
	Update(ctx context.Context, db *gorm.DB, app *Application) error
	Delete(ctx context.Context, db *gorm.DB, id string) error

	InsertOwner(ctx context.Context, db *gorm.DB, owner *Owner) error
	FindOwner(ctx context.Context, db *gorm.DB, appID string, userID snowflake.ID) (*Owner, error)
	ListOwners(ctx context.Context, db *gorm.DB, appID string) ([]Owner, error)
	DeleteOwner(ctx context.Context, db *gorm.DB, appID string, userID snowflake.ID) error
	DeleteOwners(ctx context.Context, db *gorm.DB, appID string) error
}

type ListFilter struct {
	// OwnerID restricts the listing to applications the user has a role on.
	OwnerID *snowflake.ID
	Offset  int
	Limit   int
}
