package registry

import "github.com/Haufe-Lexware/wicked.portal-test/internal/catalog/domain"

// DefaultCatalog is served when no apis.yml is present, so a development
// portal starts with a usable set of APIs.
func DefaultCatalog() domain.Catalog {
	return domain.Catalog{
		APIs: []domain.API{
			{
				ID:     "petstore",
				Name:   "Petstore",
				Plans:  []string{"basic", "unlimited"},
				Scopes: []string{"read_pets", "write_pets"},
			},
			{
				ID:    "partner",
				Name:  "Partner API",
				Plans: []string{"partner_basic", "partner_gold"},
			},
			{
				ID:           "superduper",
				Name:         "Super Duper API",
				AuthServerID: "default",
				Plans:        []string{"oauth2_basic", "oauth2_restricted"},
				Scopes:       []string{"profile", "read_stuff", "write_stuff"},
			},
			{
				ID:         "legacy",
				Name:       "Legacy API",
				Deprecated: true,
				Plans:      []string{"basic"},
			},
		},
		Plans: []domain.Plan{
			{ID: "basic", Name: "Basic", AuthType: domain.AuthAPIKey},
			{ID: "unlimited", Name: "Unlimited", AuthType: domain.AuthAPIKey, NeedsApproval: true},
			{ID: "partner_basic", Name: "Partner Basic", AuthType: domain.AuthAPIKey, RequiredGroup: "partner"},
			{ID: "partner_gold", Name: "Partner Gold", AuthType: domain.AuthAPIKey, RequiredGroup: "partner", NeedsApproval: true},
			{ID: "oauth2_basic", Name: "OAuth2 Basic", AuthType: domain.AuthOAuth2},
			{ID: "oauth2_restricted", Name: "OAuth2 Restricted", AuthType: domain.AuthOAuth2, NeedsApproval: true},
		},
	}
}
