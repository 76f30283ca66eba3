package domain

import (
	"context"

	"github.com/Haufe-Lexware/wicked.portal-test/internal/apierror"
	"gorm.io/gorm"
)

var (
	ErrListenerNotFound = apierror.NotFound("Listener not found.")
	ErrEventNotFound    = apierror.NotFound("Event not found.")
	ErrInvalidListener  = apierror.Validation("Listener requires an id and a url.")
	ErrAdminOnly        = apierror.Forbidden("Not allowed. Only admins may manage webhooks.")
)

// Publisher records changes inside the caller's transaction and notifies
// listeners once that transaction has committed.
type Publisher interface {
	Publish(ctx context.Context, tx *gorm.DB, changes ...Change) error
	Notify(ctx context.Context, changes ...Change)
}

// Notifier signals listeners that new events are pending.
type Notifier interface {
	Notify(ctx context.Context, change Change)
}

type Service interface {
	Publisher
	UpsertListener(ctx context.Context, id, url string) (*Listener, error)
	DeleteListener(ctx context.Context, id string) error
	ListListeners(ctx context.Context) ([]Listener, error)
	ListEvents(ctx context.Context, listenerID string, limit int) ([]Event, error)
	Ack(ctx context.Context, listenerID, eventID string) error
	Flush(ctx context.Context, listenerID string) error
}
