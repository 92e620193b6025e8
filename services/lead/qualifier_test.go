package lead

import (
	"testing"

	"naano-tracking/services/enrichment"
	"naano-tracking/services/event"

	"github.com/stretchr/testify/require"
)

func TestDefaultPolicy(t *testing.T) {
	q, err := NewQualifier("")
	require.NoError(t, err)
	require.Equal(t, DefaultPolicy, q.Policy())

	tests := []struct {
		name  string
		facts Facts
		want  bool
	}{
		{name: "clean", facts: Facts{NetworkType: "corporate", DeviceType: "desktop"}, want: true},
		{name: "bot", facts: Facts{IsBot: true}},
		{name: "hosting", facts: Facts{IsHosting: true}},
		{name: "vpn", facts: Facts{IsVPN: true}},
		{name: "proxy", facts: Facts{IsProxy: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := q.Qualify(tt.facts)
			require.NoError(t, err)
			require.Equal(t, tt.want, ok)
		})
	}
}

func TestCustomPolicy(t *testing.T) {
	q, err := NewQualifier(`!is_bot && device_type != "mobile"`)
	require.NoError(t, err)

	ok, err := q.Qualify(Facts{DeviceType: "mobile"})
	require.NoError(t, err)
	require.False(t, ok)

	_, err = NewQualifier(`network_type`)
	require.Error(t, err)
}

func TestFactsFor(t *testing.T) {
	click := &event.LinkEvent{
		UserAgent:   "curl/8.4.0",
		NetworkType: enrichment.NetworkVPN,
	}
	f := FactsFor(click, &enrichment.CompanyInference{IsProxy: true})
	require.True(t, f.IsBot)
	require.True(t, f.IsVPN)
	require.True(t, f.IsProxy)
	require.False(t, f.IsHosting)

	f = FactsFor(&event.LinkEvent{UserAgent: desktopUA}, nil)
	require.False(t, f.IsBot)
	require.Equal(t, enrichment.NetworkUnknown, f.NetworkType)
	require.Equal(t, "desktop", f.DeviceType)
}
