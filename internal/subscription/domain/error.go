package domain

import "github.com/Haufe-Lexware/wicked.portal-test/internal/apierror"

var (
	ErrSubscriptionNotFound = apierror.NotFound("Subscription not found.")
	ErrSubscriptionExists   = apierror.Conflict("Application already has a subscription for this API.")
	ErrClientNotFound       = apierror.NotFound("Client ID not found.")
	ErrAPIDeprecated        = apierror.Validation("API is deprecated. Subscribing not possible.")
	ErrInvalidPlan          = apierror.Validation("Invalid plan")
	ErrMissingRedirectURI   = apierror.Validation("Application does not have a redirectUri")
	ErrTrustedAdminOnly     = apierror.Forbidden("Not allowed. Only admins may create trusted subscriptions.")
	ErrListByAPIAdminOnly   = apierror.Forbidden("Not Allowed. Only Admins can get subscriptions for an API.")
	ErrLookupAdminOnly      = apierror.Forbidden("Not allowed. Only admins may look up client ids.")
)
