package intent

import (
	"naano-tracking/services/enrichment"

	"go.uber.org/fx"
)

var Module = fx.Module("intent",
	fx.Provide(
		NewService,
		AsScorer,
	),
)

// AsScorer lets enrichment trigger scoring without importing this package.
func AsScorer(s *Service) enrichment.Scorer {
	return s
}
