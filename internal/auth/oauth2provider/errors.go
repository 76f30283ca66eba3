package oauth2provider

import "errors"

var (
	ErrUnknownAuthMethod    = errors.New("unknown_auth_method")
	ErrInvalidResponseType  = errors.New("invalid_response_type")
	ErrInvalidClientID      = errors.New("invalid_client_id")
	ErrInvalidRedirectURI   = errors.New("invalid_redirect_uri")
	ErrRedirectURIMismatch  = errors.New("redirect_uri_mismatch")
	ErrNoRegisteredRedirect = errors.New("no_registered_redirect_uri")
	ErrClientAPIMismatch    = errors.New("client_api_mismatch")
	ErrInvalidScope         = errors.New("invalid_scope")

	ErrNoSession      = errors.New("no_login_session")
	ErrCSRFMismatch   = errors.New("csrf_mismatch")
	ErrLoginFailed    = errors.New("login_failed")
	ErrLoginThrottled = errors.New("login_throttled")

	ErrInvalidRequest       = errors.New("invalid_request")
	ErrUnauthorizedClient   = errors.New("unauthorized_client")
	ErrUnsupportedGrantType = errors.New("unsupported_grant_type")
	ErrInvalidCode          = errors.New("invalid_code")
	ErrCodeUsed             = errors.New("authorization_code_used")
	ErrCodeExpired          = errors.New("authorization_code_expired")
	ErrInvalidToken         = errors.New("invalid_token")
)
