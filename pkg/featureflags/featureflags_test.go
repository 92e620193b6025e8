package featureflags

import (
	"context"
	"testing"

	"naano-tracking/pkg/config"

	"github.com/stretchr/testify/require"
)

func TestUnconfiguredFlagsAreEnabled(t *testing.T) {
	ff := ProvideFeatureFlag(FeatureParams{Config: &config.Config{}})
	require.True(t, ff.IsEnabled(context.Background(), CompanyInference, "42"))
	require.True(t, ff.IsEnabled(context.Background(), AutoBilling, "42"))
}

func TestStatic(t *testing.T) {
	ff := Static{AutoBilling: false}
	require.False(t, ff.IsEnabled(context.Background(), AutoBilling, "42"))
	require.True(t, ff.IsEnabled(context.Background(), CompanyInference, "42"))
}
