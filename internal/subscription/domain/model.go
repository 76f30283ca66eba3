package domain

import (
	"time"

	appdomain "github.com/Haufe-Lexware/wicked.portal-test/internal/application/domain"
	catalogdomain "github.com/Haufe-Lexware/wicked.portal-test/internal/catalog/domain"
	"github.com/Haufe-Lexware/wicked.portal-test/internal/credential"
	"github.com/bwmarrin/snowflake"
)

// Subscription binds one application to one API under a plan. Credentials
// are present exactly when the subscription is approved.
type Subscription struct {
	ID            snowflake.ID           `gorm:"primaryKey"`
	ApplicationID string                 `gorm:"type:text;not null;uniqueIndex:ux_subscriptions_app_api,priority:1"`
	APIID         string                 `gorm:"column:api_id;type:text;not null;uniqueIndex:ux_subscriptions_app_api,priority:2"`
	PlanID        string                 `gorm:"type:text;not null"`
	Auth          catalogdomain.AuthType `gorm:"type:text;not null"`
	Trusted       bool                   `gorm:"not null;default:false"`
	Approved      bool                   `gorm:"not null;default:false;index"`
	APIKey        *string                `gorm:"column:api_key;type:text"`
	ClientID      *string                `gorm:"column:client_id;type:text;uniqueIndex"`
	ClientSecret  *string                `gorm:"column:client_secret;type:text"`
	CreatedBy     snowflake.ID           `gorm:"not null"`
	CreatedAt     time.Time              `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt     time.Time              `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Subscription) TableName() string { return "subscriptions" }

func (s Subscription) Credentials() credential.Credentials {
	return credential.Credentials{APIKey: s.APIKey, ClientID: s.ClientID, ClientSecret: s.ClientSecret}
}

// APIIndexEntry lists the applications subscribed to an API.
type APIIndexEntry struct {
	APIID         string    `gorm:"column:api_id;primaryKey;type:text"`
	ApplicationID string    `gorm:"primaryKey;type:text"`
	PlanID        string    `gorm:"type:text;not null"`
	CreatedAt     time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (APIIndexEntry) TableName() string { return "subscription_api_index" }

// ClientIndexEntry resolves an OAuth2 client id to its subscription.
type ClientIndexEntry struct {
	ClientID      string    `gorm:"primaryKey;type:text"`
	ApplicationID string    `gorm:"type:text;not null;index"`
	APIID         string    `gorm:"column:api_id;type:text;not null"`
	Trusted       bool      `gorm:"not null;default:false"`
	CreatedAt     time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (ClientIndexEntry) TableName() string { return "subscription_client_index" }

type View struct {
	Application  string                    `json:"application"`
	API          string                    `json:"api"`
	Plan         string                    `json:"plan"`
	Auth         catalogdomain.AuthType    `json:"auth"`
	APIKey       *string                   `json:"apikey,omitempty"`
	ClientID     *string                   `json:"clientId,omitempty"`
	ClientSecret *string                   `json:"clientSecret,omitempty"`
	Approved     bool                      `json:"approved"`
	Trusted      bool                      `json:"trusted"`
	CreatedAt    time.Time                 `json:"createdAt"`
	Links        map[string]appdomain.Link `json:"_links"`
}

// ToView renders a subscription. Credentials of an unapproved subscription
// are never shown; reveal controls whether an approved one's are.
func ToView(s Subscription, reveal bool) View {
	v := View{
		Application: s.ApplicationID,
		API:         s.APIID,
		Plan:        s.PlanID,
		Auth:        s.Auth,
		Approved:    s.Approved,
		Trusted:     s.Trusted,
		CreatedAt:   s.CreatedAt,
		Links: map[string]appdomain.Link{
			"self":        {Href: "/applications/" + s.ApplicationID + "/subscriptions/" + s.APIID},
			"application": {Href: "/applications/" + s.ApplicationID},
			"plans":       {Href: "/plans"},
			"apis":        {Href: "/apis"},
		},
	}
	if reveal && s.Approved {
		v.APIKey = s.APIKey
		v.ClientID = s.ClientID
		v.ClientSecret = s.ClientSecret
	}
	return v
}

// APISubscriber is one entry of the per-API listing.
type APISubscriber struct {
	Application string `json:"application"`
	Plan        string `json:"plan"`
}

// Client is what an OAuth2 client id resolves to.
type Client struct {
	Application  appdomain.Application
	Subscription Subscription
}

type ClientLookup struct {
	Application  appdomain.ApplicationView `json:"application"`
	Subscription View                      `json:"subscription"`
}
