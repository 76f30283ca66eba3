package session

import (
	"net/http"
	"strings"
	"time"

	"github.com/Haufe-Lexware/wicked.portal-test/internal/config"
	"github.com/gin-gonic/gin"
)

// DefaultCookieName carries the pending login session between the
// authorize redirect and the login form post.
const DefaultCookieName = "wicked_auth_session"

// Manager manages login session cookies for the authorization server.
type Manager struct {
	cookieName string
	secure     bool
}

func NewManager(cfg config.Config) *Manager {
	return &Manager{
		cookieName: DefaultCookieName,
		secure:     cfg.AuthCookieSecure,
	}
}

func (m *Manager) CookieName() string {
	return m.cookieName
}

func (m *Manager) ReadToken(c *gin.Context) (string, bool) {
	token, err := c.Cookie(m.cookieName)
	if err != nil {
		return "", false
	}
	if strings.TrimSpace(token) == "" {
		return "", false
	}
	return token, true
}

// Set writes the session cookie scoped to the auth method prefix so sessions
// of different auth methods never collide.
func (m *Manager) Set(c *gin.Context, authMethod, value string, ttl time.Duration) {
	maxAge := int(ttl.Seconds())
	if maxAge < 0 {
		maxAge = 0
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(m.cookieName, value, maxAge, cookiePath(authMethod), "", m.secure, true)
}

func (m *Manager) Clear(c *gin.Context, authMethod string) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(m.cookieName, "", -1, cookiePath(authMethod), "", m.secure, true)
}

func cookiePath(authMethod string) string {
	authMethod = strings.Trim(strings.TrimSpace(authMethod), "/")
	if authMethod == "" {
		return "/"
	}
	return "/" + authMethod
}
