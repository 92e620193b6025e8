package account

import "go.uber.org/fx"

var Module = fx.Module("account",
	fx.Provide(NewStore),
)
