package oauth2provider

import (
	"github.com/Haufe-Lexware/wicked.portal-test/internal/auth/session"
	identitydomain "github.com/Haufe-Lexware/wicked.portal-test/internal/identity/domain"
	subscriptiondomain "github.com/Haufe-Lexware/wicked.portal-test/internal/subscription/domain"
	"go.uber.org/fx"
)

var Module = fx.Module("auth.oauth2.provider",
	fx.Provide(NewConfig),
	fx.Provide(NewStore),
	fx.Provide(session.NewManager),
	fx.Provide(
		func(svc subscriptiondomain.Service) ClientResolver { return svc },
		func(svc identitydomain.Service) Authenticator { return svc },
	),
	fx.Provide(NewService),
	fx.Provide(NewHandler),
	fx.Invoke(RegisterRoutes),
)
