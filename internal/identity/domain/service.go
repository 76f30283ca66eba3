package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
)

type CreateUserRequest struct {
	Username  string
	Email     string
	Password  string
	Groups    []string
	Validated bool
}

type UpdateUserRequest struct {
	Groups    *[]string
	Validated *bool
	Password  *string
}

type Service interface {
	// Resolve turns the gateway-forwarded user id and scope header into an
	// Identity. An unknown user yields ErrUnknownUser.
	Resolve(ctx context.Context, userID string, scopeHeader *string) (*Identity, error)
	Create(ctx context.Context, req CreateUserRequest) (*User, error)
	Get(ctx context.Context, id snowflake.ID) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
	// Authenticate looks the login name up as username, then email, and
	// verifies the password. Every failure is ErrInvalidCredentials.
	Authenticate(ctx context.Context, login, password string) (*User, error)
	Update(ctx context.Context, id snowflake.ID, req UpdateUserRequest) (*User, error)
	Delete(ctx context.Context, id snowflake.ID) error
}
