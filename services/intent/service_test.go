package intent

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"naano-tracking/services/enrichment"
	"naano-tracking/services/event"
	"naano-tracking/services/testutil"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

type fixture struct {
	svc    *Service
	events *event.Store
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	var models []any
	models = append(models, event.Models()...)
	models = append(models, enrichment.Models()...)
	models = append(models, Models()...)
	db := testutil.NewTestDB(t, models, event.Indexes()...)

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	events := event.NewStore(event.StoreParams{DB: db, Node: node})
	inferences := enrichment.NewStore(enrichment.StoreParams{DB: db, Node: node})
	return &fixture{
		svc:    NewService(ServiceParams{DB: db, Node: node, Events: events, Inferences: inferences}),
		events: events,
	}
}

func TestScoreEventPersistsExplainableSnapshot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	firstVisit := &event.LinkEvent{
		TrackedLinkID: "link-1",
		EventType:     event.EventClick,
		SessionID:     "sess-1",
		OccurredAt:    officeHour.Add(-24 * time.Hour),
	}
	require.NoError(t, f.events.LogEvent(ctx, firstVisit))

	click := &event.LinkEvent{
		TrackedLinkID: "link-1",
		EventType:     event.EventClick,
		SessionID:     "sess-1",
		OccurredAt:    officeHour,
		Referrer:      "https://www.linkedin.com/feed/",
		Country:       "FR",
		NetworkType:   "corporate",
		TimeOnSite:    dwell(75),
	}
	require.NoError(t, f.events.LogEvent(ctx, click))
	require.NoError(t, f.events.RecordPageView(ctx, click, "pricing"))

	score, err := f.svc.ScoreEvent(ctx, click.ID)
	require.NoError(t, err)

	// linkedin 25 + dwell 15 + office hours 5 + pricing 15 + repeat 10+5 + corporate 5
	require.Equal(t, 80, score.SessionIntentScore)
	require.True(t, score.IsWorkingHours)
	require.True(t, score.IsRepeatVisit)
	require.Equal(t, int64(2), score.VisitCount)
	require.Equal(t, 1, score.DaysSinceFirstVisit)
	require.Nil(t, score.CompanyInferenceID)

	var flags map[string]bool
	require.NoError(t, json.Unmarshal(score.PageFlags, &flags))
	require.True(t, flags["pricing"])
	require.False(t, flags["docs"])

	var breakdown []Component
	require.NoError(t, json.Unmarshal(score.Breakdown, &breakdown))
	require.Len(t, breakdown, len(DefaultRules))

	var reasons []string
	require.NoError(t, json.Unmarshal(score.Reasons, &reasons))
	require.Contains(t, reasons, "referrer_linkedin")
	require.Contains(t, reasons, "viewed_pricing")
}

func TestScoreEventIsImmutable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	click := &event.LinkEvent{TrackedLinkID: "link-1", EventType: event.EventClick, SessionID: "sess-1", TimeOnSite: dwell(5)}
	require.NoError(t, f.events.LogEvent(ctx, click))

	first, err := f.svc.ScoreEvent(ctx, click.ID)
	require.NoError(t, err)

	require.NoError(t, f.events.RecordPageView(ctx, click, "pricing"))
	second, err := f.svc.ScoreEvent(ctx, click.ID)
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)
	require.Equal(t, first.SessionIntentScore, second.SessionIntentScore)
}

func TestScoreEventUnknownEvent(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.ScoreEvent(context.Background(), "missing")
	require.Error(t, err)
}
