package intent

import (
	"fmt"
	"strings"
	"time"
)

const MaxScore = 100

// Signals is everything known about a visit when it is scored.
type Signals struct {
	Referrer       string
	TimeOnSite     *float64
	OccurredAt     time.Time
	Country        string
	PageCategories []string
	VisitCount     int64
	FirstVisitAt   time.Time
	NetworkType    string
}

// Component is the capped result of one rule.
type Component struct {
	Name    string   `json:"name"`
	Points  int      `json:"points"`
	Max     int      `json:"max"`
	Reasons []string `json:"reasons,omitempty"`
}

type Rule struct {
	Name string
	Max  int
	Eval func(Signals) (int, []string)
}

// Apply runs the rule and clamps its points to [0, Max].
func (r Rule) Apply(s Signals) Component {
	points, reasons := r.Eval(s)
	if points > r.Max {
		points = r.Max
	}
	if points < 0 {
		points = 0
	}
	return Component{Name: r.Name, Points: points, Max: r.Max, Reasons: reasons}
}

type Result struct {
	Total      int
	Components []Component
	Reasons    []string
}

func (r Result) Component(name string) Component {
	for _, c := range r.Components {
		if c.Name == name {
			return c
		}
	}
	return Component{Name: name}
}

const (
	RuleReferrer   = "referrer_quality"
	RuleEngagement = "engagement"
	RuleBehavior   = "behavioral_signals"
	RuleRepeat     = "repeat_visit"
	RuleNetwork    = "network_quality"
)

var DefaultRules = []Rule{
	{Name: RuleReferrer, Max: 25, Eval: referrerQuality},
	{Name: RuleEngagement, Max: 25, Eval: engagement},
	{Name: RuleBehavior, Max: 30, Eval: behavioralSignals},
	{Name: RuleRepeat, Max: 15, Eval: repeatVisit},
	{Name: RuleNetwork, Max: 5, Eval: networkQuality},
}

var pageWeights = map[string]int{
	"pricing":      15,
	"security":     10,
	"integrations": 8,
	"docs":         5,
	"download":     10,
}

// Score sums the capped rule components and caps the total at MaxScore.
func Score(s Signals, rules ...Rule) Result {
	if len(rules) == 0 {
		rules = DefaultRules
	}

	var res Result
	for _, rule := range rules {
		c := rule.Apply(s)
		res.Components = append(res.Components, c)
		res.Total += c.Points
		res.Reasons = append(res.Reasons, c.Reasons...)
	}
	if res.Total > MaxScore {
		res.Total = MaxScore
	}
	return res
}

func referrerQuality(s Signals) (int, []string) {
	ref := strings.ToLower(strings.TrimSpace(s.Referrer))
	switch {
	case ref == "":
		return 0, nil
	case strings.Contains(ref, "linkedin.") || strings.Contains(ref, "lnkd.in"):
		return 25, []string{"referrer_linkedin"}
	case ref == "direct":
		return 5, []string{"referrer_direct"}
	default:
		return 10, []string{"referrer_other"}
	}
}

func engagement(s Signals) (int, []string) {
	if s.TimeOnSite == nil {
		return 0, nil
	}

	dwell := *s.TimeOnSite
	var points int
	var reasons []string
	switch {
	case dwell >= 300:
		points = 25
	case dwell >= 180:
		points = 20
	case dwell >= 60:
		points = 15
	case dwell >= 3:
		points = 10
	}
	if points > 0 {
		reasons = append(reasons, fmt.Sprintf("time_on_site_%ds", int(dwell)))
	}

	if !s.OccurredAt.IsZero() && WorkingHours(s.Country, s.OccurredAt) {
		points += 5
		reasons = append(reasons, "working_hours_visit")
	}
	return points, reasons
}

func behavioralSignals(s Signals) (int, []string) {
	seen := make(map[string]bool, len(s.PageCategories))
	var points int
	var reasons []string
	for _, category := range s.PageCategories {
		category = strings.ToLower(category)
		w, ok := pageWeights[category]
		if !ok || seen[category] {
			continue
		}
		seen[category] = true
		points += w
		reasons = append(reasons, "viewed_"+category)
	}
	return points, reasons
}

func repeatVisit(s Signals) (int, []string) {
	if s.VisitCount < 2 {
		return 0, nil
	}

	points := 10
	reasons := []string{fmt.Sprintf("repeat_visit_%d", s.VisitCount)}
	if s.VisitCount >= 3 {
		points = 15
	}
	if !s.FirstVisitAt.IsZero() && s.OccurredAt.Sub(s.FirstVisitAt) <= 7*24*time.Hour {
		points += 5
		reasons = append(reasons, "repeat_within_7_days")
	}
	return points, reasons
}

func networkQuality(s Signals) (int, []string) {
	if s.NetworkType == "corporate" {
		return 5, []string{"corporate_network"}
	}
	return 0, nil
}

// DaysSinceFirstVisit is zero for a first visit.
func (s Signals) DaysSinceFirstVisit() int {
	if s.FirstVisitAt.IsZero() || s.OccurredAt.Before(s.FirstVisitAt) {
		return 0
	}
	return int(s.OccurredAt.Sub(s.FirstVisitAt).Hours() / 24)
}
