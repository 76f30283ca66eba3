package approval

import (
	"github.com/Haufe-Lexware/wicked.portal-test/internal/approval/service"
	"go.uber.org/fx"
)

var Module = fx.Module("approval.service",
	fx.Provide(service.New),
)
