// Package domain holds the change events consumed by the gateway sync
// adapter. Every event is copied once per registered listener.
package domain

import (
	"time"

	"gorm.io/datatypes"
)

type EventType string

const (
	EventSubscriptionCreated  EventType = "subscription.created"
	EventSubscriptionApproved EventType = "subscription.approved"
	EventSubscriptionUpdated  EventType = "subscription.updated"
	EventSubscriptionDeleted  EventType = "subscription.deleted"
	EventApplicationCreated   EventType = "application.created"
	EventApplicationUpdated   EventType = "application.updated"
	EventApplicationDeleted   EventType = "application.deleted"
)

type Listener struct {
	ID        string    `gorm:"primaryKey;type:text" json:"id"`
	URL       string    `gorm:"type:text;not null" json:"url"`
	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"createdAt"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updatedAt"`
}

func (Listener) TableName() string { return "webhook_listeners" }

// Event is one pending delivery for one listener. ID is a ULID shared by all
// copies of the same change, so it sorts in emission order.
type Event struct {
	ListenerID    string            `gorm:"primaryKey;type:text" json:"-"`
	ID            string            `gorm:"primaryKey;type:text" json:"id"`
	Type          EventType         `gorm:"type:text;not null" json:"type"`
	ApplicationID string            `gorm:"column:application_id;type:text;not null" json:"applicationId"`
	APIID         string            `gorm:"column:api_id;type:text" json:"apiId,omitempty"`
	Payload       datatypes.JSONMap `json:"data"`
	CreatedAt     time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"createdAt"`
}

func (Event) TableName() string { return "webhook_events" }

// Change is what services emit; the publisher assigns the id and fans it out.
type Change struct {
	Type          EventType
	ApplicationID string
	APIID         string
	Payload       map[string]any
}
