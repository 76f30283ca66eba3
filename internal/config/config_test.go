package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("ENVIRONMENT", "development")
	t.Setenv("OAUTH2_AUTH_METHODS", "")

	cfg := Load()

	assert.Equal(t, "portal-api", cfg.AppName)
	assert.False(t, cfg.AuthCookieSecure)
	assert.Equal(t, []string{"local"}, cfg.OAuth2.AuthMethods)
	assert.Equal(t, 500*time.Millisecond, cfg.OAuth2.LoginDelay)
	assert.False(t, cfg.Redis.Enabled())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("OAUTH2_AUTH_METHODS", "local, github ,")
	t.Setenv("OAUTH2_LOGIN_DELAY", "750ms")
	t.Setenv("OAUTH2_CODE_TTL", "120")
	t.Setenv("REDIS_ADDR", "redis:6379")

	cfg := Load()

	assert.True(t, cfg.AuthCookieSecure)
	assert.Equal(t, []string{"local", "github"}, cfg.OAuth2.AuthMethods)
	assert.Equal(t, 750*time.Millisecond, cfg.OAuth2.LoginDelay)
	assert.Equal(t, 2*time.Minute, cfg.OAuth2.CodeTTL)
	assert.True(t, cfg.Redis.Enabled())
}
