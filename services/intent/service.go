package intent

import (
	"context"
	"encoding/json"

	"naano-tracking/pkg/errutil"
	"naano-tracking/pkg/repository"
	"naano-tracking/services/enrichment"
	"naano-tracking/services/event"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Service struct {
	node       *snowflake.Node
	scores     repository.Repository[IntentScore]
	events     *event.Store
	inferences *enrichment.Store
	rules      []Rule
}

type ServiceParams struct {
	fx.In
	DB         *gorm.DB
	Node       *snowflake.Node
	Events     *event.Store
	Inferences *enrichment.Store
}

func NewService(p ServiceParams) *Service {
	return &Service{
		node:       p.Node,
		scores:     repository.ProvideStore[IntentScore](p.DB),
		events:     p.Events,
		inferences: p.Inferences,
		rules:      DefaultRules,
	}
}

func (s *Service) Score(ctx context.Context, linkEventID string) error {
	_, err := s.ScoreEvent(ctx, linkEventID)
	return err
}

func (s *Service) ForEvent(ctx context.Context, linkEventID string) (*IntentScore, error) {
	return s.scores.FindOne(ctx, &IntentScore{LinkEventID: linkEventID})
}

// ScoreEvent snapshots the intent score of a click. A click that already has
// a score keeps it.
func (s *Service) ScoreEvent(ctx context.Context, linkEventID string) (*IntentScore, error) {
	existing, err := s.ForEvent(ctx, linkEventID)
	if err != nil || existing != nil {
		return existing, err
	}

	ev, err := s.events.Get(ctx, linkEventID)
	if err != nil {
		return nil, err
	}
	if ev == nil {
		return nil, errutil.NotFound("link event not found", nil)
	}

	signals, ci, err := s.collect(ctx, ev)
	if err != nil {
		return nil, err
	}

	res := Score(signals, s.rules...)
	row := s.snapshot(ev, signals, res)
	if ci != nil {
		row.CompanyInferenceID = &ci.ID
	}

	if err := s.scores.Create(ctx, row); err != nil {
		if repository.IsUniqueViolation(err) {
			return s.ForEvent(ctx, linkEventID)
		}
		return nil, err
	}

	zap.L().Debug("session scored",
		zap.String("link_event_id", ev.ID),
		zap.Int("score", res.Total),
		zap.Strings("reasons", res.Reasons),
	)
	return row, nil
}

func (s *Service) collect(ctx context.Context, ev *event.LinkEvent) (Signals, *enrichment.CompanyInference, error) {
	signals := Signals{
		Referrer:    ev.Referrer,
		TimeOnSite:  ev.TimeOnSite,
		OccurredAt:  ev.OccurredAt,
		Country:     ev.Country,
		NetworkType: ev.NetworkType,
	}

	count, first, err := s.events.VisitHistory(ctx, ev.TrackedLinkID, ev.SessionID)
	if err != nil {
		return signals, nil, err
	}
	signals.VisitCount = count
	signals.FirstVisitAt = first

	categories, err := s.events.PageCategories(ctx, ev.SessionID)
	if err != nil {
		return signals, nil, err
	}
	signals.PageCategories = categories

	ci, err := s.inferences.ForEvent(ctx, ev.ID)
	if err != nil {
		return signals, nil, err
	}
	if ci != nil {
		if signals.NetworkType == "" || signals.NetworkType == enrichment.NetworkUnknown {
			signals.NetworkType = ci.NetworkType
		}
		if signals.Country == "" {
			signals.Country = ci.Location
		}
	}

	return signals, ci, nil
}

func (s *Service) snapshot(ev *event.LinkEvent, signals Signals, res Result) *IntentScore {
	flags := make(map[string]bool, len(pageWeights))
	for category := range pageWeights {
		flags[category] = false
	}
	for _, category := range signals.PageCategories {
		if _, ok := flags[category]; ok {
			flags[category] = true
		}
	}

	pageFlags, _ := json.Marshal(flags)
	breakdown, _ := json.Marshal(res.Components)
	reasons, _ := json.Marshal(res.Reasons)

	return &IntentScore{
		ID:                  s.node.Generate().String(),
		LinkEventID:         ev.ID,
		TrackedLinkID:       ev.TrackedLinkID,
		SessionIntentScore:  res.Total,
		TimeOnSite:          signals.TimeOnSite,
		IsWorkingHours:      !signals.OccurredAt.IsZero() && WorkingHours(signals.Country, signals.OccurredAt),
		IsRepeatVisit:       signals.VisitCount > 1,
		VisitCount:          signals.VisitCount,
		DaysSinceFirstVisit: signals.DaysSinceFirstVisit(),
		PageFlags:           datatypes.JSON(pageFlags),
		Breakdown:           datatypes.JSON(breakdown),
		Reasons:             datatypes.JSON(reasons),
	}
}
