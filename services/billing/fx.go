package billing

import "go.uber.org/fx"

var Module = fx.Module("billing",
	fx.Provide(
		NewGateway,
		NewService,
	),
)

// SchedulerModule runs the daily sweep. Only one process should include it.
var SchedulerModule = fx.Module("billing:scheduler",
	fx.Provide(NewScheduler),
	fx.Invoke(StartScheduler),
)
