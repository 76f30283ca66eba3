package oauth2provider

import (
	"encoding/base64"
	"errors"
	"net/http"
	"strings"

	"github.com/Haufe-Lexware/wicked.portal-test/internal/apierror"
	"github.com/Haufe-Lexware/wicked.portal-test/internal/auth/session"
	"github.com/Haufe-Lexware/wicked.portal-test/internal/observability/metrics"
	"github.com/Haufe-Lexware/wicked.portal-test/internal/ratelimit"
	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const loginFailedMessage = "Username or password invalid."

type HandlerParams struct {
	fx.In

	Service  *Service
	Sessions *session.Manager
	Limiter  ratelimit.LoginLimiter
	Log      *zap.Logger
	Metrics  *metrics.Metrics `optional:"true"`
}

// Handler serves the authorization server endpoints.
type Handler struct {
	svc      *Service
	sessions *session.Manager
	limiter  ratelimit.LoginLimiter
	metrics  *metrics.Metrics
	log      *zap.Logger
}

func NewHandler(p HandlerParams) *Handler {
	return &Handler{
		svc:      p.Service,
		sessions: p.Sessions,
		limiter:  p.Limiter,
		metrics:  p.Metrics,
		log:      p.Log.Named("auth.oauth2.handler"),
	}
}

func RegisterRoutes(r *gin.Engine, h *Handler) {
	group := r.Group("/:authMethod/api/:apiId", h.requireAuthMethod)
	group.GET("/authorize", h.Authorize)
	group.POST("/login", h.Login)
	group.POST("/token", h.Token)
	group.GET("/introspect", h.Introspect)
}

func (h *Handler) requireAuthMethod(c *gin.Context) {
	if !h.svc.cfg.HasAuthMethod(c.Param("authMethod")) {
		c.AbortWithStatus(http.StatusNotFound)
		return
	}
	c.Next()
}

func (h *Handler) Authorize(c *gin.Context) {
	authMethod := c.Param("authMethod")
	result, err := h.svc.Authorize(c.Request.Context(), AuthorizeRequest{
		AuthMethod:   authMethod,
		APIID:        c.Param("apiId"),
		ResponseType: c.Query("response_type"),
		ClientID:     c.Query("client_id"),
		RedirectURI:  c.Query("redirect_uri"),
		Scope:        c.Query("scope"),
		State:        c.Query("state"),
	})
	if err != nil {
		c.Header("Cache-Control", "no-store")
		c.JSON(mapAuthorizeErrorStatus(err), gin.H{
			"error":             mapAuthorizeErrorCode(err),
			"error_description": describeAuthorizeError(err),
		})
		return
	}

	h.sessions.Set(c, authMethod, result.SessionToken, h.svc.cfg.SessionTTL)
	c.JSON(http.StatusOK, gin.H{
		"template":  "login",
		"csrfToken": result.CSRFToken,
		"loginUrl":  result.LoginURL,
	})
}

func (h *Handler) Login(c *gin.Context) {
	authMethod := c.Param("authMethod")
	apiID := c.Param("apiId")

	allowed, err := h.limiter.Allow(c.Request.Context(), c.ClientIP())
	if err != nil {
		h.log.Warn("login rate limiter unavailable", zap.Error(err))
	} else if !allowed.Allowed {
		h.metrics.RecordRateLimitDenied(c.Request.Context(), "login", "client_ip")
		writeOAuthError(c, http.StatusTooManyRequests, "too_many_requests")
		return
	}

	// a missing cookie goes through Login too so it pays the same delay
	token, _ := h.sessions.ReadToken(c)

	username := strings.TrimSpace(c.PostForm("username"))
	result, err := h.svc.Login(c.Request.Context(), LoginRequest{
		AuthMethod:   authMethod,
		APIID:        apiID,
		SessionToken: token,
		CSRFToken:    c.PostForm("_csrf"),
		Username:     username,
		Password:     c.PostForm("password"),
	})
	if errors.Is(err, ErrLoginFailed) {
		c.JSON(http.StatusOK, gin.H{
			"template":        "login",
			"errorMessage":    loginFailedMessage,
			"prefillUsername": username,
			"csrfToken":       c.PostForm("_csrf"),
			"loginUrl":        loginURL(authMethod, apiID),
		})
		return
	}
	if err != nil {
		writeOAuthError(c, mapLoginErrorStatus(err), mapLoginErrorCode(err))
		return
	}

	h.sessions.Clear(c, authMethod)
	c.Redirect(http.StatusFound, result.RedirectURL)
}

func (h *Handler) Token(c *gin.Context) {
	if err := c.Request.ParseForm(); err != nil {
		writeOAuthError(c, http.StatusBadRequest, "invalid_request")
		return
	}

	clientID := strings.TrimSpace(c.PostForm("client_id"))
	clientSecret := strings.TrimSpace(c.PostForm("client_secret"))

	basicID, basicSecret := parseBasicAuth(c)
	if basicID != "" {
		if clientID != "" && clientID != basicID {
			writeOAuthError(c, http.StatusBadRequest, "invalid_request")
			return
		}
		clientID = basicID
		clientSecret = basicSecret
	}

	grantType := strings.TrimSpace(c.PostForm("grant_type"))
	resp, err := h.svc.Token(c.Request.Context(), TokenRequest{
		APIID:        c.Param("apiId"),
		GrantType:    grantType,
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Code:         strings.TrimSpace(c.PostForm("code")),
		RedirectURI:  strings.TrimSpace(c.PostForm("redirect_uri")),
		RefreshToken: strings.TrimSpace(c.PostForm("refresh_token")),
	})
	if err != nil {
		writeOAuthError(c, mapTokenErrorStatus(err), mapTokenErrorCode(err))
		return
	}

	h.log.Info("oauth2 token response",
		zap.String("request_id", requestID(c)),
		zap.String("client_id", clientID),
		zap.String("grant_type", grantType),
	)

	c.Header("Cache-Control", "no-store")
	c.Header("Pragma", "no-cache")
	c.JSON(http.StatusOK, gin.H{
		"access_token":  resp.AccessToken,
		"refresh_token": resp.RefreshToken,
		"token_type":    resp.TokenType,
		"expires_in":    resp.ExpiresIn,
		"scope":         strings.Join(resp.Scopes, " "),
	})
}

// Introspect is called by the gateway. On success it answers with the
// headers the upstream API consumes.
func (h *Handler) Introspect(c *gin.Context) {
	parts := strings.Fields(strings.TrimSpace(c.GetHeader("Authorization")))
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		c.Status(http.StatusUnauthorized)
		return
	}

	info, err := h.svc.Introspect(c.Request.Context(), c.Param("apiId"), parts[1])
	if errors.Is(err, ErrInvalidToken) {
		c.Status(http.StatusUnauthorized)
		return
	}
	if err != nil {
		writeOAuthError(c, http.StatusInternalServerError, "server_error")
		return
	}

	scope := strings.Join(info.Scopes, " ")
	c.Header("X-Authenticated-Userid", info.UserID)
	c.Header("X-Authenticated-Scope", scope)
	c.JSON(http.StatusOK, gin.H{
		"active":    true,
		"client_id": info.ClientID,
		"user_id":   info.UserID,
		"scope":     scope,
		"exp":       info.ExpiresAt.Unix(),
	})
}

func parseBasicAuth(c *gin.Context) (string, string) {
	header := strings.TrimSpace(c.GetHeader("Authorization"))
	if header == "" {
		return "", ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Basic") {
		return "", ""
	}
	decoded, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		return "", ""
	}
	creds := strings.SplitN(string(decoded), ":", 2)
	if len(creds) != 2 {
		return "", ""
	}
	return creds[0], creds[1]
}

func writeOAuthError(c *gin.Context, status int, code string) {
	c.Header("Cache-Control", "no-store")
	c.Header("Pragma", "no-cache")
	c.JSON(status, gin.H{"error": code})
}

func mapAuthorizeErrorStatus(err error) int {
	if apierror.IsKind(err, apierror.KindNotFound) {
		return http.StatusNotFound
	}
	switch err {
	case ErrUnknownAuthMethod:
		return http.StatusNotFound
	case ErrInvalidResponseType, ErrInvalidClientID, ErrInvalidRedirectURI,
		ErrRedirectURIMismatch, ErrNoRegisteredRedirect, ErrClientAPIMismatch, ErrInvalidScope:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func mapAuthorizeErrorCode(err error) string {
	if apierror.IsKind(err, apierror.KindNotFound) {
		return "not_found"
	}
	switch err {
	case ErrUnknownAuthMethod:
		return "not_found"
	case ErrInvalidResponseType:
		return "unsupported_response_type"
	case ErrInvalidClientID:
		return "invalid_client"
	case ErrInvalidRedirectURI, ErrRedirectURIMismatch, ErrNoRegisteredRedirect:
		return "invalid_redirect_uri"
	case ErrClientAPIMismatch:
		return "unauthorized_client"
	case ErrInvalidScope:
		return "invalid_scope"
	default:
		return "server_error"
	}
}

func describeAuthorizeError(err error) string {
	if apiErr, ok := apierror.As(err); ok {
		return apiErr.Message
	}
	switch err {
	case ErrInvalidResponseType:
		return "Invalid response_type"
	case ErrInvalidClientID:
		return "Invalid client_id"
	case ErrInvalidRedirectURI:
		return "Invalid redirect_uri"
	case ErrRedirectURIMismatch:
		return "The redirect_uri does not match the registered redirect URI"
	case ErrNoRegisteredRedirect:
		return "The application does not have a registered redirect_uri"
	case ErrClientAPIMismatch:
		return "The client is not subscribed to this API"
	case ErrInvalidScope:
		return "Invalid scope"
	default:
		return ""
	}
}

func mapLoginErrorStatus(err error) int {
	switch err {
	case ErrNoSession, ErrCSRFMismatch:
		return http.StatusBadRequest
	case ErrLoginThrottled:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func mapLoginErrorCode(err error) string {
	switch err {
	case ErrNoSession:
		return "invalid_request"
	case ErrCSRFMismatch:
		return "csrf_mismatch"
	case ErrLoginThrottled:
		return "too_many_requests"
	default:
		return "server_error"
	}
}

func mapTokenErrorStatus(err error) int {
	switch err {
	case ErrUnauthorizedClient:
		return http.StatusUnauthorized
	case ErrInvalidRequest, ErrInvalidCode, ErrCodeUsed, ErrCodeExpired, ErrInvalidToken, ErrUnsupportedGrantType:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func mapTokenErrorCode(err error) string {
	switch err {
	case ErrUnauthorizedClient:
		return "unauthorized_client"
	case ErrUnsupportedGrantType:
		return "unsupported_grant_type"
	case ErrInvalidRequest, ErrInvalidCode, ErrCodeUsed, ErrCodeExpired, ErrInvalidToken:
		return "invalid_request"
	default:
		return "server_error"
	}
}

func requestID(c *gin.Context) string {
	if v := strings.TrimSpace(c.GetHeader("X-Request-Id")); v != "" {
		return v
	}
	return strings.TrimSpace(c.GetString("request_id"))
}
