package catalog

import (
	"github.com/Haufe-Lexware/wicked.portal-test/internal/catalog/registry"
	"go.uber.org/fx"
)

var Module = fx.Module("catalog.registry",
	fx.Provide(registry.New),
)
