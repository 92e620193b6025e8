package lead

import (
	"naano-tracking/pkg/celengine"
	"naano-tracking/services/enrichment"
	"naano-tracking/services/event"
)

const DefaultPolicy = `!is_bot && !is_hosting && !is_vpn && !is_proxy`

// Facts are the traffic signals a qualification policy can reference.
type Facts struct {
	IsBot       bool
	IsHosting   bool
	IsVPN       bool
	IsProxy     bool
	NetworkType string
	DeviceType  string
}

func (f Facts) attributes() map[string]any {
	return map[string]any{
		"is_bot":       f.IsBot,
		"is_hosting":   f.IsHosting,
		"is_vpn":       f.IsVPN,
		"is_proxy":     f.IsProxy,
		"network_type": f.NetworkType,
		"device_type":  f.DeviceType,
	}
}

// FactsFor derives facts from the click and, when present, its company
// inference. The user agent is parsed again so the bot check does not wait
// for enrichment.
func FactsFor(click *event.LinkEvent, inf *enrichment.CompanyInference) Facts {
	device := enrichment.ParseUserAgent(click.UserAgent)
	f := Facts{
		IsBot:       device.IsBot,
		NetworkType: click.NetworkType,
		DeviceType:  click.DeviceType,
	}
	if f.NetworkType == "" {
		f.NetworkType = enrichment.NetworkUnknown
	}
	if f.DeviceType == "" {
		f.DeviceType = device.DeviceType
	}

	switch f.NetworkType {
	case enrichment.NetworkHosting:
		f.IsHosting = true
	case enrichment.NetworkVPN:
		f.IsVPN = true
	case enrichment.NetworkProxy:
		f.IsProxy = true
	}
	if inf != nil {
		f.IsHosting = f.IsHosting || inf.IsHosting
		f.IsVPN = f.IsVPN || inf.IsVPN
		f.IsProxy = f.IsProxy || inf.IsProxy
	}
	return f
}

type Qualifier struct {
	program *celengine.Program
}

func NewQualifier(policy string) (*Qualifier, error) {
	if policy == "" {
		policy = DefaultPolicy
	}
	env, err := celengine.BuildCelEnvFromAttributes(Facts{}.attributes())
	if err != nil {
		return nil, err
	}
	prg, err := celengine.Compile(env, policy)
	if err != nil {
		return nil, err
	}
	return &Qualifier{program: prg}, nil
}

func (q *Qualifier) Qualify(f Facts) (bool, error) {
	return q.program.Evaluate(f.attributes())
}

func (q *Qualifier) Policy() string {
	return q.program.String()
}
