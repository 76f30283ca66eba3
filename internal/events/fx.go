package events

import (
	"github.com/Haufe-Lexware/wicked.portal-test/internal/events/domain"
	"github.com/Haufe-Lexware/wicked.portal-test/internal/events/repository"
	"github.com/Haufe-Lexware/wicked.portal-test/internal/events/service"
	"go.uber.org/fx"
)

var Module = fx.Module("events.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewNotifier),
	fx.Provide(service.New),
	fx.Provide(func(s domain.Service) domain.Publisher { return s }),
)
