package domain

import "github.com/Haufe-Lexware/wicked.portal-test/internal/apierror"

var (
	ErrApplicationNotFound = apierror.NotFound("Application not found.")
	ErrApplicationExists   = apierror.Conflict("Application ID already exists.")
	ErrInvalidID           = apierror.Validation("Invalid application ID, allowed chars are: a-z, 0-9, - and _")
	ErrInvalidIDLength     = apierror.Validation("Invalid application ID, must have at least 4, max 50 characters.")
	ErrInvalidName         = apierror.Validation("Application name is required.")
	ErrInvalidRedirectURI  = apierror.Validation("redirectUri must be a https URI")
	ErrInvalidRole         = apierror.Validation("Invalid role, must be collaborator or reader.")
	ErrOwnerNotFound       = apierror.NotFound("User is not an owner of this application.")
	ErrOwnerExists         = apierror.Conflict("User is already an owner of this application.")
	ErrOwnerImmutable      = apierror.Forbidden("The owner of an application cannot be removed.")
	ErrLoginRequired       = apierror.Forbidden("Not allowed. User invalid.")
)
