package application

import (
	"github.com/Haufe-Lexware/wicked.portal-test/internal/application/repository"
	"github.com/Haufe-Lexware/wicked.portal-test/internal/application/service"
	"go.uber.org/fx"
)

var Module = fx.Module("application.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
