package oauth2provider

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/Haufe-Lexware/wicked.portal-test/internal/auth/session"
	"github.com/Haufe-Lexware/wicked.portal-test/internal/config"
	"github.com/Haufe-Lexware/wicked.portal-test/internal/ratelimit"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestRouter(t *testing.T, limiter ratelimit.LoginLimiter) *gin.Engine {
	t.Helper()
	return newDelayedTestRouter(t, limiter, 0)
}

func newDelayedTestRouter(t *testing.T, limiter ratelimit.LoginLimiter, loginDelay time.Duration) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	env := newTestService(t, loginDelay)
	h := NewHandler(HandlerParams{
		Service:  env.svc,
		Sessions: session.NewManager(config.Config{}),
		Limiter:  limiter,
		Log:      zaptest.NewLogger(t),
	})
	r := gin.New()
	RegisterRoutes(r, h)
	return r
}

func serve(r http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func authorizeURL(clientID string) string {
	q := url.Values{}
	q.Set("response_type", "code")
	q.Set("client_id", clientID)
	q.Set("redirect_uri", testRedirect)
	q.Set("scope", "profile")
	q.Set("state", "abc")
	return "/local/api/superduper/authorize?" + q.Encode()
}

func loginRequest(cookies []*http.Cookie, csrf, username, password string) *http.Request {
	form := url.Values{}
	form.Set("_csrf", csrf)
	form.Set("username", username)
	form.Set("password", password)
	req := httptest.NewRequest(http.MethodPost, "/local/api/superduper/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	return req
}

func TestAuthorizationCodeFlowOverHTTP(t *testing.T) {
	r := newTestRouter(t, ratelimit.NewLocalLoginLimiter(100, 100))

	rec := serve(r, httptest.NewRequest(http.MethodGet, authorizeURL("webapp-client"), nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "login", body["template"])
	assert.Equal(t, "/local/api/superduper/login", body["loginUrl"])
	csrf, _ := body["csrfToken"].(string)
	require.NotEmpty(t, csrf)
	cookies := rec.Result().Cookies()
	require.NotEmpty(t, cookies)

	rec = serve(r, loginRequest(cookies, csrf, "alice", "wrong"))
	require.Equal(t, http.StatusOK, rec.Code)
	body = decodeBody(t, rec)
	assert.Equal(t, "Username or password invalid.", body["errorMessage"])
	assert.Equal(t, "alice", body["prefillUsername"])

	rec = serve(r, loginRequest(cookies, csrf, "alice", "wonderland"))
	require.Equal(t, http.StatusFound, rec.Code)
	location, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "abc", location.Query().Get("state"))
	code := location.Query().Get("code")
	require.NotEmpty(t, code)

	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	req := httptest.NewRequest(http.MethodPost, "/local/api/superduper/token", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth("webapp-client", testSecret)
	rec = serve(r, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	body = decodeBody(t, rec)
	assert.Equal(t, "bearer", body["token_type"])
	assert.Equal(t, "profile", body["scope"])
	accessToken, _ := body["access_token"].(string)
	require.NotEmpty(t, accessToken)

	req = httptest.NewRequest(http.MethodGet, "/local/api/superduper/introspect", nil)
	req.Header.Set("Authorization", "Bearer "+accessToken)
	rec = serve(r, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, testUserID.String(), rec.Header().Get("X-Authenticated-Userid"))
	assert.Equal(t, "profile", rec.Header().Get("X-Authenticated-Scope"))

	req = httptest.NewRequest(http.MethodGet, "/local/api/superduper/introspect", nil)
	req.Header.Set("Authorization", "Bearer bogus")
	assert.Equal(t, http.StatusUnauthorized, serve(r, req).Code)
}

func TestAuthorizeErrorsOverHTTP(t *testing.T) {
	r := newTestRouter(t, ratelimit.NewLocalLoginLimiter(100, 100))

	rec := serve(r, httptest.NewRequest(http.MethodGet, "/github/api/superduper/authorize", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = serve(r, httptest.NewRequest(http.MethodGet, "/local/api/nope/authorize?response_type=code", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = serve(r, httptest.NewRequest(http.MethodGet, "/local/api/superduper/authorize?response_type=token", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid response_type", decodeBody(t, rec)["error_description"])

	rec = serve(r, httptest.NewRequest(http.MethodGet, authorizeURL("noredirect-client"), nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "The application does not have a registered redirect_uri", decodeBody(t, rec)["error_description"])
}

func TestLoginWithoutSessionCookie(t *testing.T) {
	const delay = 150 * time.Millisecond
	r := newDelayedTestRouter(t, ratelimit.NewLocalLoginLimiter(100, 100), delay)

	start := time.Now()
	rec := serve(r, loginRequest(nil, "csrf", "alice", "wonderland"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_request", decodeBody(t, rec)["error"])
	assert.GreaterOrEqual(t, time.Since(start), delay)
}

func TestLoginThrottledPerClient(t *testing.T) {
	r := newTestRouter(t, ratelimit.NewLocalLoginLimiter(0.001, 1))

	assert.Equal(t, http.StatusBadRequest, serve(r, loginRequest(nil, "", "", "")).Code)
	rec := serve(r, loginRequest(nil, "", "", ""))
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "too_many_requests", decodeBody(t, rec)["error"])
}

func TestTokenEndpointErrors(t *testing.T) {
	r := newTestRouter(t, ratelimit.NewLocalLoginLimiter(100, 100))

	post := func(form url.Values) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/local/api/superduper/token", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		return serve(r, req)
	}

	rec := post(url.Values{"grant_type": {"password"}})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "unsupported_grant_type", decodeBody(t, rec)["error"])

	rec = post(url.Values{"grant_type": {"authorization_code"}, "client_id": {"spa-client"}, "code": {"x"}})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "unauthorized_client", decodeBody(t, rec)["error"])

	for _, grant := range []url.Values{
		{"grant_type": {"authorization_code"}, "client_id": {"spa-client"}, "client_secret": {testSecret}, "code": {"x"}},
		{"grant_type": {"refresh_token"}, "client_id": {"spa-client"}, "client_secret": {testSecret}, "refresh_token": {"x"}},
	} {
		rec = post(grant)
		require.Equal(t, http.StatusUnauthorized, rec.Code, grant.Get("grant_type"))
		assert.Equal(t, "unauthorized_client", decodeBody(t, rec)["error"])
	}

	rec = post(url.Values{
		"grant_type":    {"authorization_code"},
		"client_id":     {"webapp-client"},
		"client_secret": {"wrong"},
		"code":          {"x"},
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_request", decodeBody(t, rec)["error"])

	rec = post(url.Values{
		"grant_type":    {"authorization_code"},
		"client_id":     {"webapp-client"},
		"client_secret": {testSecret},
		"code":          {"unknown"},
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_request", decodeBody(t, rec)["error"])
}
