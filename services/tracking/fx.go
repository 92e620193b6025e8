package tracking

import (
	"naano-tracking/pkg/httpapi"

	"go.uber.org/fx"
)

// Module serves the public tracking endpoints.
var Module = fx.Module("tracking",
	fx.Provide(
		NewClickLogger,
		httpapi.AsRoute(NewHandler),
	),
)

// WorkerModule persists queued clicks.
var WorkerModule = fx.Module("tracking:worker",
	fx.Provide(NewClickLogger),
	fx.Invoke(Register),
)
