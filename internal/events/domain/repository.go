package domain

import (
	"context"

	"gorm.io/gorm"
)

type Repository interface {
	UpsertListener(ctx context.Context, db *gorm.DB, listener *Listener) error
	DeleteListener(ctx context.Context, db *gorm.DB, id string) error
	ListListeners(ctx context.Context, db *gorm.DB) ([]Listener, error)
	ListenerIDs(ctx context.Context, db *gorm.DB) ([]string, error)

	InsertEvents(ctx context.Context, db *gorm.DB, events []Event) error
	ListEvents(ctx context.Context, db *gorm.DB, listenerID string, limit int) ([]Event, error)
	DeleteEvent(ctx context.Context, db *gorm.DB, listenerID, eventID string) error
	DeleteEvents(ctx context.Context, db *gorm.DB, listenerID string) error
}
