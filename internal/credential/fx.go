package credential

import "go.uber.org/fx"

var Module = fx.Module("credential.issuer",
	fx.Provide(NewIssuer),
)
