package link

import "go.uber.org/fx"

var Module = fx.Module("link",
	fx.Provide(NewService),
)
