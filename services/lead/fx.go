package lead

import (
	"naano-tracking/services/billing"

	"go.uber.org/fx"
)

var Module = fx.Module("lead",
	fx.Provide(
		NewService,
		AsMonitor,
	),
)

// AsMonitor exposes the billing service through the narrow interface the lead
// pipeline needs.
func AsMonitor(s *billing.Service) Monitor {
	return s
}
