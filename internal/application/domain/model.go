package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Application is a client of one or more APIs, owned by portal users.
type Application struct {
	ID           string       `gorm:"primaryKey;type:text"`
	Name         string       `gorm:"type:text;not null"`
	Description  string       `gorm:"type:text"`
	RedirectURI  *string      `gorm:"column:redirect_uri;type:text"`
	Confidential bool         `gorm:"not null;default:false"`
	CreatedBy    snowflake.ID `gorm:"column:created_by;not null"`
	CreatedAt    time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt    time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Application) TableName() string { return "applications" }

func (a Application) HasRedirectURI() bool {
	return a.RedirectURI != nil && *a.RedirectURI != ""
}

// Owner links a user to an application with a role name
// ("owner", "collaborator" or "reader").
type Owner struct {
	ApplicationID string       `gorm:"primaryKey;type:text"`
	UserID        snowflake.ID `gorm:"primaryKey;index"`
	Role          string       `gorm:"type:text;not null"`
	CreatedAt     time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Owner) TableName() string { return "application_owners" }

type OwnerView struct {
	UserID string `json:"userId"`
	Email  string `json:"email,omitempty"`
	Role   string `json:"role"`
}

type Link struct {
	Href string `json:"href"`
}

type ApplicationView struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Description  string          `json:"description,omitempty"`
	RedirectURI  string          `json:"redirectUri,omitempty"`
	Confidential bool            `json:"confidential"`
	Owners       []OwnerView     `json:"owners"`
	CreatedAt    time.Time       `json:"createdAt"`
	Links        map[string]Link `json:"_links"`
}

func (a Application) View(owners []OwnerView) ApplicationView {
	if owners == nil {
		owners = []OwnerView{}
	}
	redirect := ""
	if a.RedirectURI != nil {
		redirect = *a.RedirectURI
	}
	return ApplicationView{
		ID:           a.ID,
		Name:         a.Name,
		Description:  a.Description,
		RedirectURI:  redirect,
		Confidential: a.Confidential,
		Owners:       owners,
		CreatedAt:    a.CreatedAt,
		Links: map[string]Link{
			"self":          {Href: "/applications/" + a.ID},
			"subscriptions": {Href: "/applications/" + a.ID + "/subscriptions"},
		},
	}
}
