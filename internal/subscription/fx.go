package subscription

import (
	appdomain "github.com/Haufe-Lexware/wicked.portal-test/internal/application/domain"
	"github.com/Haufe-Lexware/wicked.portal-test/internal/subscription/domain"
	"github.com/Haufe-Lexware/wicked.portal-test/internal/subscription/repository"
	"github.com/Haufe-Lexware/wicked.portal-test/internal/subscription/service"
	"go.uber.org/fx"
)

var Module = fx.Module("subscription.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
	fx.Provide(func(s domain.Service) appdomain.SubscriptionCascade { return s }),
)
