// Package domain describes the API and plan catalog that subscriptions are
// made against.
package domain

import "slices"

type AuthType string

const (
	AuthAPIKey         AuthType = "apikey"
	AuthOAuth2         AuthType = "oauth2"
	AuthOAuth2Implicit AuthType = "oauth2-implicit"
)

func (a AuthType) Valid() bool {
	switch a {
	case AuthAPIKey, AuthOAuth2, AuthOAuth2Implicit:
		return true
	}
	return false
}

// IsOAuth2 reports whether credentials for this auth type are a client
// id/secret pair bound to a redirect URI.
func (a AuthType) IsOAuth2() bool {
	return a == AuthOAuth2 || a == AuthOAuth2Implicit
}

type API struct {
	ID           string   `mapstructure:"id" json:"id"`
	Name         string   `mapstructure:"name" json:"name"`
	Description  string   `mapstructure:"description" json:"description,omitempty"`
	AuthServerID string   `mapstructure:"authServer" json:"authServer,omitempty"`
	Deprecated   bool     `mapstructure:"deprecated" json:"deprecated"`
	Plans        []string `mapstructure:"plans" json:"plans"`
	Scopes       []string `mapstructure:"scopes" json:"scopes,omitempty"`
}

func (a API) HasPlan(planID string) bool {
	return slices.Contains(a.Plans, planID)
}

func (a API) HasScope(scope string) bool {
	return slices.Contains(a.Scopes, scope)
}

type Plan struct {
	ID            string   `mapstructure:"id" json:"id"`
	Name          string   `mapstructure:"name" json:"name"`
	Description   string   `mapstructure:"description" json:"description,omitempty"`
	AuthType      AuthType `mapstructure:"authType" json:"authType"`
	RequiredGroup string   `mapstructure:"requiredGroup" json:"requiredGroup,omitempty"`
	NeedsApproval bool     `mapstructure:"needsApproval" json:"needsApproval"`
}

// Catalog is one consistent snapshot of the registry.
type Catalog struct {
	APIs  []API  `mapstructure:"apis"`
	Plans []Plan `mapstructure:"plans"`
}
