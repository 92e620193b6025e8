package enrichment

import "go.uber.org/fx"

var Module = fx.Module("enrichment",
	fx.Provide(
		NewStore,
		NewNetworkLookup,
		NewService,
	),
)
