package lead

import (
	"naano-tracking/pkg/config"
	"naano-tracking/services/account"
)

// Pricing holds lead prices per plan and the creator payout, in cents.
type Pricing struct {
	Starter         int64
	Growth          int64
	Scale           int64
	CreatorEarnings int64
}

type Quote struct {
	Plan            account.Plan
	LeadValue       int64
	CreatorEarnings int64
	Margin          int64
}

func DefaultPricing() Pricing {
	return Pricing{
		Starter:         300,
		Growth:          250,
		Scale:           200,
		CreatorEarnings: 120,
	}
}

func pricingFromConfig(c *config.Config) Pricing {
	p := DefaultPricing()
	if c == nil {
		return p
	}
	if c.Pricing.Starter > 0 {
		p.Starter = c.Pricing.Starter
	}
	if c.Pricing.Growth > 0 {
		p.Growth = c.Pricing.Growth
	}
	if c.Pricing.Scale > 0 {
		p.Scale = c.Pricing.Scale
	}
	if c.Pricing.CreatorEarnings > 0 {
		p.CreatorEarnings = c.Pricing.CreatorEarnings
	}
	return p
}

// Quote prices a lead for plan. Unknown plans are priced, and recorded, as
// starter.
func (p Pricing) Quote(plan account.Plan) Quote {
	q := Quote{Plan: plan, CreatorEarnings: p.CreatorEarnings}
	switch plan {
	case account.PlanGrowth:
		q.LeadValue = p.Growth
	case account.PlanScale:
		q.LeadValue = p.Scale
	default:
		q.Plan = account.PlanStarter
		q.LeadValue = p.Starter
	}
	q.Margin = q.LeadValue - q.CreatorEarnings
	return q
}
