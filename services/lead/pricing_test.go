package lead

import (
	"testing"

	"naano-tracking/services/account"

	"github.com/stretchr/testify/require"
)

func TestQuote(t *testing.T) {
	p := DefaultPricing()

	starter := p.Quote(account.PlanStarter)
	growth := p.Quote(account.PlanGrowth)
	scale := p.Quote(account.PlanScale)
	require.Greater(t, starter.LeadValue, growth.LeadValue)
	require.Greater(t, growth.LeadValue, scale.LeadValue)

	for _, q := range []Quote{starter, growth, scale} {
		require.Equal(t, p.CreatorEarnings, q.CreatorEarnings)
		require.Equal(t, q.LeadValue-q.CreatorEarnings, q.Margin)
	}

	unknown := p.Quote(account.Plan("enterprise"))
	require.Equal(t, account.PlanStarter, unknown.Plan)
	require.Equal(t, starter.LeadValue, unknown.LeadValue)
}
