package domain

import (
	"errors"

	"github.com/Haufe-Lexware/wicked.portal-test/internal/apierror"
)

var (
	ErrUserNotFound       = apierror.NotFound("User not found.")
	ErrUnknownUser        = apierror.Forbidden("Not allowed. User invalid.")
	ErrNotAllowed         = apierror.Forbidden("Not allowed.")
	ErrAdminOnly          = apierror.Forbidden("Not allowed. Only admins may change groups.")
	ErrEmailTaken         = apierror.Conflict("A user with the given email address already exists.")
	ErrUsernameTaken      = apierror.Conflict("A user with the given username already exists.")
	ErrInvalidEmail       = apierror.Validation("Invalid email address.")
	ErrInvalidUsername    = apierror.Validation("Invalid username.")
	ErrPasswordTooShort   = apierror.Validation("Password must be at least 6 characters long.")
	ErrInvalidCredentials = errors.New("invalid_credentials")
)
