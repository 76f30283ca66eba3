// Package domain contains the portal user directory and the resolved
// caller identity.
package domain

import (
	"slices"
	"time"

	"github.com/bwmarrin/snowflake"
)

const (
	GroupAdmin    = "admin"
	GroupApprover = "approver"
)

// User is a portal user. Email and PasswordHash are absent for
// non-interactive users.
type User struct {
	ID           snowflake.ID `gorm:"primaryKey"`
	Username     string       `gorm:"type:text;not null;uniqueIndex"`
	Email        *string      `gorm:"type:text;uniqueIndex"`
	PasswordHash *string      `gorm:"type:text"`
	Groups       []string     `gorm:"type:text;serializer:json"`
	Validated    bool         `gorm:"not null;default:false"`
	CreatedAt    time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt    time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (User) TableName() string { return "users" }

func (u User) InGroup(group string) bool {
	return slices.Contains(u.Groups, group)
}

func (u User) IsAdmin() bool {
	return u.InGroup(GroupAdmin)
}

// UserView is the JSON shape returned by the users endpoints.
type UserView struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email,omitempty"`
	Groups    []string  `json:"groups"`
	Admin     bool      `json:"admin"`
	Validated bool      `json:"validated"`
	CreatedAt time.Time `json:"createdAt"`
}

func (u User) View() UserView {
	groups := u.Groups
	if groups == nil {
		groups = []string{}
	}
	email := ""
	if u.Email != nil {
		email = *u.Email
	}
	return UserView{
		ID:        u.ID.String(),
		Username:  u.Username,
		Email:     email,
		Groups:    groups,
		Admin:     u.IsAdmin(),
		Validated: u.Validated,
		CreatedAt: u.CreatedAt,
	}
}
