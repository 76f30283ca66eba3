package oauth2provider

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// LoginSession holds a pending authorize request while the user logs in.
// The cookie carries the raw token; only its hash is stored.
type LoginSession struct {
	TokenHash   string     `gorm:"column:token_hash;type:text;primaryKey"`
	CSRFToken   string     `gorm:"column:csrf_token;type:text;not null"`
	AuthMethod  string     `gorm:"column:auth_method;type:text;not null"`
	APIID       string     `gorm:"column:api_id;type:text;not null"`
	ClientID    string     `gorm:"column:client_id;type:text;not null"`
	RedirectURI string     `gorm:"column:redirect_uri;type:text;not null"`
	Scopes      []string   `gorm:"column:scopes;type:text;serializer:json"`
	State       string     `gorm:"column:state;type:text"`
	ExpiresAt   time.Time  `gorm:"column:expires_at;not null;index"`
	CompletedAt *time.Time `gorm:"column:completed_at"`
	CreatedAt   time.Time  `gorm:"column:created_at;not null;default:CURRENT_TIMESTAMP"`
}

func (LoginSession) TableName() string { return "oauth_login_sessions" }

// AuthorizationCode stores an issued OAuth2 authorization code.
type AuthorizationCode struct {
	CodeHash    string       `gorm:"column:code_hash;type:text;primaryKey"`
	ClientID    string       `gorm:"column:client_id;type:text;not null;index"`
	APIID       string       `gorm:"column:api_id;type:text;not null"`
	RedirectURI string       `gorm:"column:redirect_uri;type:text;not null"`
	UserID      snowflake.ID `gorm:"column:user_id;not null;index"`
	Scopes      []string     `gorm:"column:scopes;type:text;serializer:json"`
	ExpiresAt   time.Time    `gorm:"column:expires_at;not null;index"`
	UsedAt      *time.Time   `gorm:"column:used_at"`
	CreatedAt   time.Time    `gorm:"column:created_at;not null;default:CURRENT_TIMESTAMP"`
}

func (AuthorizationCode) TableName() string { return "oauth_authorization_codes" }

// AccessToken stores an issued OAuth2 access token.
type AccessToken struct {
	TokenHash string       `gorm:"column:token_hash;type:text;primaryKey"`
	ClientID  string       `gorm:"column:client_id;type:text;not null;index"`
	APIID     string       `gorm:"column:api_id;type:text;not null"`
	UserID    snowflake.ID `gorm:"column:user_id;not null;index"`
	Scopes    []string     `gorm:"column:scopes;type:text;serializer:json"`
	ExpiresAt time.Time    `gorm:"column:expires_at;not null;index"`
	RevokedAt *time.Time   `gorm:"column:revoked_at"`
	CreatedAt time.Time    `gorm:"column:created_at;not null;default:CURRENT_TIMESTAMP"`
}

func (AccessToken) TableName() string { return "oauth_access_tokens" }

// RefreshToken is single use: rotation revokes it and issues a new one.
type RefreshToken struct {
	TokenHash string       `gorm:"column:token_hash;type:text;primaryKey"`
	ClientID  string       `gorm:"column:client_id;type:text;not null;index"`
	APIID     string       `gorm:"column:api_id;type:text;not null"`
	UserID    snowflake.ID `gorm:"column:user_id;not null;index"`
	Scopes    []string     `gorm:"column:scopes;type:text;serializer:json"`
	ExpiresAt time.Time    `gorm:"column:expires_at;not null;index"`
	RevokedAt *time.Time   `gorm:"column:revoked_at"`
	CreatedAt time.Time    `gorm:"column:created_at;not null;default:CURRENT_TIMESTAMP"`
}

func (RefreshToken) TableName() string { return "oauth_refresh_tokens" }
