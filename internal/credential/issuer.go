// Package credential mints API keys and OAuth2 client credentials for
// approved subscriptions.
package credential

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	catalogdomain "github.com/Haufe-Lexware/wicked.portal-test/internal/catalog/domain"
)

const (
	apiKeyBytes       = 32
	clientIDBytes     = 20
	clientSecretBytes = 32
)

// Generator returns n random bytes, hex encoded.
type Generator interface {
	Hex(n int) (string, error)
}

type randGenerator struct{}

func (randGenerator) Hex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// Credentials is the secret material attached to a subscription.
type Credentials struct {
	APIKey       *string
	ClientID     *string
	ClientSecret *string
}

// Issued reports whether any credential is present.
func (c Credentials) Issued() bool {
	return c.APIKey != nil || c.ClientID != nil
}

type Issuer struct {
	gen Generator
}

func NewIssuer() *Issuer {
	return &Issuer{gen: randGenerator{}}
}

func NewIssuerWithGenerator(gen Generator) *Issuer {
	return &Issuer{gen: gen}
}

// Issue returns credentials matching the plan's auth type. Existing
// credentials are returned untouched, so a retried approval never rotates a
// key that was already handed out.
func (i *Issuer) Issue(authType catalogdomain.AuthType, existing Credentials) (Credentials, bool, error) {
	if existing.Issued() {
		return existing, false, nil
	}

	switch {
	case authType == catalogdomain.AuthAPIKey:
		key, err := i.gen.Hex(apiKeyBytes)
		if err != nil {
			return Credentials{}, false, fmt.Errorf("generate api key: %w", err)
		}
		return Credentials{APIKey: &key}, true, nil
	case authType.IsOAuth2():
		clientID, err := i.gen.Hex(clientIDBytes)
		if err != nil {
			return Credentials{}, false, fmt.Errorf("generate client id: %w", err)
		}
		secret, err := i.gen.Hex(clientSecretBytes)
		if err != nil {
			return Credentials{}, false, fmt.Errorf("generate client secret: %w", err)
		}
		return Credentials{ClientID: &clientID, ClientSecret: &secret}, true, nil
	default:
		return Credentials{}, false, fmt.Errorf("unsupported auth type %q", authType)
	}
}
