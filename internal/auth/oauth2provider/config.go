package oauth2provider

import (
	"slices"
	"strings"
	"time"

	"github.com/Haufe-Lexware/wicked.portal-test/internal/config"
)

// Config holds OAuth2 grant engine configuration.
type Config struct {
	AuthMethods []string
	CodeTTL     time.Duration
	AccessTTL   time.Duration
	RefreshTTL  time.Duration
	SessionTTL  time.Duration
	// LoginDelay is the minimum wall-clock duration of every login attempt.
	LoginDelay time.Duration
}

func NewConfig(cfg config.Config) Config {
	return Config{
		AuthMethods: cfg.OAuth2.AuthMethods,
		CodeTTL:     cfg.OAuth2.CodeTTL,
		AccessTTL:   cfg.OAuth2.AccessTokenTTL,
		RefreshTTL:  cfg.OAuth2.RefreshTokenTTL,
		SessionTTL:  cfg.OAuth2.SessionTTL,
		LoginDelay:  cfg.OAuth2.LoginDelay,
	}
}

func (c Config) HasAuthMethod(method string) bool {
	return slices.Contains(c.AuthMethods, strings.TrimSpace(method))
}
