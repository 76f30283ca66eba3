package identity

import (
	"github.com/Haufe-Lexware/wicked.portal-test/internal/identity/repository"
	"github.com/Haufe-Lexware/wicked.portal-test/internal/identity/service"
	"go.uber.org/fx"
)

var Module = fx.Module("identity.service",
	fx.Provide(repository.New),
	fx.Provide(service.New),
)
