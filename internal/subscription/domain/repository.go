package domain

import (
	"context"
	"time"

	"github.com/Haufe-Lexware/wicked.portal-test/internal/credential"
	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, sub *Subscription) error
	FindByPair(ctx context.Context, db *gorm.DB, appID, apiID string) (*Subscription, error)
	ListByApplication(ctx context.Context, db *gorm.DB, appID string) ([]Subscription, error)
	ListPending(ctx context.Context, db *gorm.DB) ([]Subscription, error)
	// Approve stores credentials on a pending subscription. It reports false
	// when the subscription was approved or removed in the meantime.
	Approve(ctx context.Context, db *gorm.DB, id snowflake.ID, creds credential.Credentials, at time.Time) (bool, error)
	SetTrusted(ctx context.Context, db *gorm.DB, id snowflake.ID, trusted bool, at time.Time) error
	Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) error

	InsertAPIIndex(ctx context.Context, db *gorm.DB, entry *APIIndexEntry) error
	ListAPIIndex(ctx context.Context, db *gorm.DB, apiID string) ([]APIIndexEntry, error)
	DeleteAPIIndex(ctx context.Context, db *gorm.DB, apiID, appID string) error

	InsertClientIndex(ctx context.Context, db *gorm.DB, entry *ClientIndexEntry) error
	FindClientIndex(ctx context.Context, db *gorm.DB, clientID string) (*ClientIndexEntry, error)
	SetClientTrusted(ctx context.Context, db *gorm.DB, clientID string, trusted bool) error
	DeleteClientIndex(ctx context.Context, db *gorm.DB, clientID string) error
}
