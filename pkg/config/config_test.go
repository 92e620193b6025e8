package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
)

func TestSetDefaults(t *testing.T) {
	v := viper.New()
	setDefaults(v)

	var cfg Config
	require.NoError(t, v.Unmarshal(&cfg))

	require.Equal(t, 2*time.Second, cfg.Enrichment.LookupTimeout)
	require.Equal(t, 0.3, cfg.Enrichment.ConfidenceThreshold)
	require.Equal(t, float64(3), cfg.Qualification.MinDwellSeconds)
	require.Greater(t, cfg.Pricing.Starter, cfg.Pricing.Growth)
	require.Greater(t, cfg.Pricing.Growth, cfg.Pricing.Scale)
	require.Less(t, cfg.Pricing.CreatorEarnings, cfg.Pricing.Scale)
	require.Equal(t, "naano_sid", cfg.Tracking.CookieName)
}
