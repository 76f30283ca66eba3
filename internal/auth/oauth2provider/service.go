package oauth2provider

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"net/url"
	"strings"
	"time"

	catalogdomain "github.com/Haufe-Lexware/wicked.portal-test/internal/catalog/domain"
	"github.com/Haufe-Lexware/wicked.portal-test/internal/clock"
	identitydomain "github.com/Haufe-Lexware/wicked.portal-test/internal/identity/domain"
	"github.com/Haufe-Lexware/wicked.portal-test/internal/observability/metrics"
	subscriptiondomain "github.com/Haufe-Lexware/wicked.portal-test/internal/subscription/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	GrantAuthorizationCode = "authorization_code"
	GrantRefreshToken      = "refresh_token"
)

type TokenGenerator interface {
	NewToken() (string, error)
}

// ClientResolver maps an OAuth2 client id to its application and
// subscription.
type ClientResolver interface {
	ResolveClient(ctx context.Context, clientID string) (*subscriptiondomain.Client, error)
}

// Authenticator verifies interactive user credentials.
type Authenticator interface {
	Authenticate(ctx context.Context, login, password string) (*identitydomain.User, error)
}

type defaultTokenGenerator struct{}

func (defaultTokenGenerator) NewToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

type Params struct {
	fx.In

	Config  Config
	Store   Store
	Clients ClientResolver
	Users   Authenticator
	Catalog catalogdomain.Registry
	Clock   clock.Clock
	Log     *zap.Logger
	Metrics *metrics.Metrics `optional:"true"`
}

type Service struct {
	cfg      Config
	store    Store
	clients  ClientResolver
	users    Authenticator
	catalog  catalogdomain.Registry
	clock    clock.Clock
	tokenGen TokenGenerator
	metrics  *metrics.Metrics
	log      *zap.Logger
}

func NewService(p Params) *Service {
	return &Service{
		cfg:      p.Config,
		store:    p.Store,
		clients:  p.Clients,
		users:    p.Users,
		catalog:  p.Catalog,
		clock:    p.Clock,
		tokenGen: defaultTokenGenerator{},
		metrics:  p.Metrics,
		log:      p.Log.Named("auth.oauth2.provider"),
	}
}

type AuthorizeRequest struct {
	AuthMethod   string
	APIID        string
	ResponseType string
	ClientID     string
	RedirectURI  string
	Scope        string
	State        string
}

type AuthorizeResult struct {
	SessionToken string
	CSRFToken    string
	LoginURL     string
	ExpiresAt    time.Time
}

// Authorize validates an authorization request and opens the login session
// that the login form completes.
func (s *Service) Authorize(ctx context.Context, req AuthorizeRequest) (*AuthorizeResult, error) {
	if !s.cfg.HasAuthMethod(req.AuthMethod) {
		return nil, ErrUnknownAuthMethod
	}
	api, err := s.catalog.GetAPI(ctx, req.APIID)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.ResponseType) != "code" {
		return nil, ErrInvalidResponseType
	}

	client, err := s.resolveClient(ctx, req.ClientID, ErrInvalidClientID)
	if err != nil {
		return nil, err
	}
	redirectURI := strings.TrimSpace(req.RedirectURI)
	if redirectURI == "" {
		return nil, ErrInvalidRedirectURI
	}
	if !client.Application.HasRedirectURI() {
		return nil, ErrNoRegisteredRedirect
	}
	if redirectURI != *client.Application.RedirectURI {
		return nil, ErrRedirectURIMismatch
	}
	if client.Subscription.APIID != api.ID {
		return nil, ErrClientAPIMismatch
	}

	scopes, err := grantedScopes(*api, client.Subscription.Trusted, parseScopeList(req.Scope))
	if err != nil {
		return nil, err
	}

	rawToken, err := s.tokenGen.NewToken()
	if err != nil {
		return nil, err
	}
	csrf, err := s.tokenGen.NewToken()
	if err != nil {
		return nil, err
	}

	expiresAt := s.clock.Now().Add(s.cfg.SessionTTL)
	session := &LoginSession{
		TokenHash:   hashToken(rawToken),
		CSRFToken:   csrf,
		AuthMethod:  req.AuthMethod,
		APIID:       api.ID,
		ClientID:    req.ClientID,
		RedirectURI: redirectURI,
		Scopes:      scopes,
		State:       req.State,
		ExpiresAt:   expiresAt,
	}
	if err := s.store.CreateLoginSession(ctx, session); err != nil {
		return nil, err
	}

	return &AuthorizeResult{
		SessionToken: rawToken,
		CSRFToken:    csrf,
		LoginURL:     loginURL(req.AuthMethod, api.ID),
		ExpiresAt:    expiresAt,
	}, nil
}

type LoginRequest struct {
	AuthMethod   string
	APIID        string
	SessionToken string
	CSRFToken    string
	Username     string
	Password     string
}

type LoginResult struct {
	RedirectURL string
	UserID      string
}

// Login completes a login session and issues an authorization code. Every
// call, including failures, takes at least cfg.LoginDelay.
func (s *Service) Login(ctx context.Context, req LoginRequest) (res *LoginResult, err error) {
	floor := time.Now().Add(s.cfg.LoginDelay)
	defer func() {
		if werr := waitUntil(ctx, floor); werr != nil && err == nil {
			res, err = nil, werr
		}
	}()

	res, err = s.login(ctx, req)
	switch {
	case err == nil:
		s.metrics.RecordLoginAttempt(ctx, req.APIID, "success")
	case errors.Is(err, ErrLoginFailed):
		s.metrics.RecordLoginAttempt(ctx, req.APIID, "failure")
	}
	return res, err
}

func (s *Service) login(ctx context.Context, req LoginRequest) (*LoginResult, error) {
	if strings.TrimSpace(req.SessionToken) == "" {
		return nil, ErrNoSession
	}
	tokenHash := hashToken(req.SessionToken)
	session, err := s.store.GetLoginSession(ctx, tokenHash)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()
	if session.CompletedAt != nil || now.After(session.ExpiresAt) {
		return nil, ErrNoSession
	}
	if session.AuthMethod != req.AuthMethod || session.APIID != req.APIID {
		return nil, ErrNoSession
	}
	if req.CSRFToken == "" || !subtleConstantEquals(req.CSRFToken, session.CSRFToken) {
		return nil, ErrCSRFMismatch
	}

	user, err := s.users.Authenticate(ctx, req.Username, req.Password)
	if errors.Is(err, identitydomain.ErrInvalidCredentials) {
		return nil, ErrLoginFailed
	}
	if err != nil {
		return nil, err
	}

	rawCode, err := s.tokenGen.NewToken()
	if err != nil {
		return nil, err
	}
	code := &AuthorizationCode{
		CodeHash:    hashToken(rawCode),
		ClientID:    session.ClientID,
		APIID:       session.APIID,
		RedirectURI: session.RedirectURI,
		UserID:      user.ID,
		Scopes:      session.Scopes,
		ExpiresAt:   now.Add(s.cfg.CodeTTL),
	}

	err = s.store.Transaction(ctx, func(tx Store) error {
		completed, err := tx.CompleteLoginSession(ctx, tokenHash, now)
		if err != nil {
			return err
		}
		if !completed {
			return ErrNoSession
		}
		return tx.CreateAuthorizationCode(ctx, code)
	})
	if err != nil {
		return nil, err
	}

	redirectURL, err := appendAuthCode(session.RedirectURI, rawCode, session.State)
	if err != nil {
		return nil, err
	}

	s.log.Info("oauth2 authorization code issued",
		zap.String("api_id", session.APIID),
		zap.String("client_id", session.ClientID),
		zap.String("user_id", user.ID.String()),
	)
	return &LoginResult{RedirectURL: redirectURL, UserID: user.ID.String()}, nil
}

type TokenRequest struct {
	APIID        string
	GrantType    string
	ClientID     string
	ClientSecret string
	Code         string
	RedirectURI  string
	RefreshToken string
}

type TokenResponse struct {
	AccessToken  string
	RefreshToken string
	TokenType    string
	ExpiresIn    int
	Scopes       []string
}

func (s *Service) Token(ctx context.Context, req TokenRequest) (*TokenResponse, error) {
	var (
		resp *TokenResponse
		err  error
	)
	switch strings.TrimSpace(req.GrantType) {
	case GrantAuthorizationCode:
		resp, err = s.exchangeCode(ctx, req)
	case GrantRefreshToken:
		resp, err = s.refresh(ctx, req)
	default:
		return nil, ErrUnsupportedGrantType
	}
	if err != nil {
		return nil, err
	}
	s.metrics.RecordTokenIssued(ctx, req.APIID, req.GrantType)
	return resp, nil
}

func (s *Service) exchangeCode(ctx context.Context, req TokenRequest) (*TokenResponse, error) {
	client, err := s.authenticateClient(ctx, req)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.Code) == "" {
		return nil, ErrInvalidRequest
	}

	codeHash := hashToken(req.Code)
	code, err := s.store.GetAuthorizationCode(ctx, codeHash)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	if code.UsedAt != nil {
		return nil, ErrCodeUsed
	}
	if now.After(code.ExpiresAt) {
		return nil, ErrCodeExpired
	}
	if code.ClientID != req.ClientID || code.APIID != client.Subscription.APIID {
		return nil, ErrInvalidRequest
	}
	if req.RedirectURI != "" && req.RedirectURI != code.RedirectURI {
		return nil, ErrInvalidRequest
	}

	var resp *TokenResponse
	err = s.store.Transaction(ctx, func(tx Store) error {
		used, err := tx.MarkAuthorizationCodeUsed(ctx, codeHash, now)
		if err != nil {
			return err
		}
		if !used {
			return ErrCodeUsed
		}
		resp, err = s.issueTokens(ctx, tx, code.ClientID, code.APIID, code)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("oauth2 token issued",
		zap.String("grant_type", GrantAuthorizationCode),
		zap.String("client_id", code.ClientID),
		zap.String("api_id", code.APIID),
	)
	return resp, nil
}

func (s *Service) refresh(ctx context.Context, req TokenRequest) (*TokenResponse, error) {
	if strings.TrimSpace(req.ClientSecret) == "" {
		return nil, ErrUnauthorizedClient
	}
	if _, err := s.authenticateClient(ctx, req); err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.RefreshToken) == "" {
		return nil, ErrInvalidRequest
	}

	tokenHash := hashToken(req.RefreshToken)
	stored, err := s.store.GetRefreshToken(ctx, tokenHash)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()
	if stored.RevokedAt != nil || now.After(stored.ExpiresAt) || stored.ClientID != req.ClientID {
		return nil, ErrInvalidToken
	}

	var resp *TokenResponse
	err = s.store.Transaction(ctx, func(tx Store) error {
		revoked, err := tx.RevokeRefreshToken(ctx, tokenHash, now)
		if err != nil {
			return err
		}
		if !revoked {
			return ErrInvalidToken
		}
		resp, err = s.issueTokens(ctx, tx, stored.ClientID, stored.APIID, &AuthorizationCode{
			UserID: stored.UserID,
			Scopes: stored.Scopes,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("oauth2 token issued",
		zap.String("grant_type", GrantRefreshToken),
		zap.String("client_id", stored.ClientID),
		zap.String("api_id", stored.APIID),
	)
	return resp, nil
}

// authenticateClient resolves the client of a token request. Public
// clients cannot use the token endpoint.
func (s *Service) authenticateClient(ctx context.Context, req TokenRequest) (*subscriptiondomain.Client, error) {
	client, err := s.resolveClient(ctx, req.ClientID, ErrInvalidRequest)
	if err != nil {
		return nil, err
	}
	if !client.Application.Confidential {
		return nil, ErrUnauthorizedClient
	}
	secret := client.Subscription.ClientSecret
	if secret == nil || !subtleConstantEquals(req.ClientSecret, *secret) {
		return nil, ErrInvalidRequest
	}
	if client.Subscription.APIID != req.APIID {
		return nil, ErrInvalidRequest
	}
	return client, nil
}

func (s *Service) resolveClient(ctx context.Context, clientID string, notFound error) (*subscriptiondomain.Client, error) {
	clientID = strings.TrimSpace(clientID)
	if clientID == "" {
		return nil, notFound
	}
	client, err := s.clients.ResolveClient(ctx, clientID)
	if errors.Is(err, subscriptiondomain.ErrClientNotFound) {
		return nil, notFound
	}
	if err != nil {
		return nil, err
	}
	if !client.Subscription.Approved {
		return nil, notFound
	}
	return client, nil
}

func (s *Service) issueTokens(ctx context.Context, tx Store, clientID, apiID string, grant *AuthorizationCode) (*TokenResponse, error) {
	rawAccess, err := s.tokenGen.NewToken()
	if err != nil {
		return nil, err
	}
	rawRefresh, err := s.tokenGen.NewToken()
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	if err := tx.CreateAccessToken(ctx, &AccessToken{
		TokenHash: hashToken(rawAccess),
		ClientID:  clientID,
		APIID:     apiID,
		UserID:    grant.UserID,
		Scopes:    grant.Scopes,
		ExpiresAt: now.Add(s.cfg.AccessTTL),
	}); err != nil {
		return nil, err
	}
	if err := tx.CreateRefreshToken(ctx, &RefreshToken{
		TokenHash: hashToken(rawRefresh),
		ClientID:  clientID,
		APIID:     apiID,
		UserID:    grant.UserID,
		Scopes:    grant.Scopes,
		ExpiresAt: now.Add(s.cfg.RefreshTTL),
	}); err != nil {
		return nil, err
	}

	return &TokenResponse{
		AccessToken:  rawAccess,
		RefreshToken: rawRefresh,
		TokenType:    "bearer",
		ExpiresIn:    int(s.cfg.AccessTTL.Seconds()),
		Scopes:       grant.Scopes,
	}, nil
}

type Introspection struct {
	UserID    string
	ClientID  string
	APIID     string
	Scopes    []string
	ExpiresAt time.Time
}

// Introspect validates a bearer access token for apiID.
func (s *Service) Introspect(ctx context.Context, apiID, accessToken string) (*Introspection, error) {
	if strings.TrimSpace(accessToken) == "" {
		return nil, ErrInvalidToken
	}
	stored, err := s.store.GetAccessToken(ctx, hashToken(accessToken))
	if err != nil {
		return nil, err
	}
	if stored.RevokedAt != nil || s.clock.Now().After(stored.ExpiresAt) || stored.APIID != apiID {
		return nil, ErrInvalidToken
	}
	return &Introspection{
		UserID:    stored.UserID.String(),
		ClientID:  stored.ClientID,
		APIID:     stored.APIID,
		Scopes:    stored.Scopes,
		ExpiresAt: stored.ExpiresAt,
	}, nil
}

// grantedScopes gives trusted clients the API's full scope set. Other
// clients get what they asked for, as long as the API defines it.
func grantedScopes(api catalogdomain.API, trusted bool, requested []string) ([]string, error) {
	if trusted {
		return append([]string{}, api.Scopes...), nil
	}
	granted := make([]string, 0, len(requested))
	for _, scope := range requested {
		if !api.HasScope(scope) {
			return nil, ErrInvalidScope
		}
		granted = append(granted, scope)
	}
	return granted, nil
}

func waitUntil(ctx context.Context, deadline time.Time) error {
	remaining := time.Until(deadline)
	if remaining <= 0 {
		return nil
	}
	timer := time.NewTimer(remaining)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func loginURL(authMethod, apiID string) string {
	return "/" + authMethod + "/api/" + apiID + "/login"
}

func subtleConstantEquals(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func parseScopeList(raw string) []string {
	parts := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n' || r == '\r'
	})
	if len(parts) == 0 {
		return nil
	}
	return parts
}

func appendAuthCode(rawRedirectURI, code, state string) (string, error) {
	redirectURL, err := url.Parse(rawRedirectURI)
	if err != nil {
		return "", err
	}
	query := redirectURL.Query()
	query.Set("code", code)
	if state != "" {
		query.Set("state", state)
	}
	redirectURL.RawQuery = query.Encode()
	return redirectURL.String(), nil
}

func hashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
