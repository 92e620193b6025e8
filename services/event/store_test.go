package event

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"naano-tracking/services/testutil"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db := testutil.NewTestDB(t, Models(), Indexes()...)
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	return NewStore(StoreParams{DB: db, Node: node})
}

func TestLogEventDefaults(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	click := &LinkEvent{TrackedLinkID: "link-1", EventType: EventClick, SessionID: "s-1"}
	require.NoError(t, store.LogEvent(ctx, click))
	require.NotEmpty(t, click.ID)

	got, err := store.Get(ctx, click.ID)
	require.NoError(t, err)
	require.Equal(t, DefaultReferrer, got.Referrer)
	require.False(t, got.OccurredAt.IsZero())
	require.Nil(t, got.TimeOnSite)
}

func TestGetMissingReturnsNil(t *testing.T) {
	store := newTestStore(t)

	got, err := store.Get(context.Background(), "nope")
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestSetTimeOnSiteOnlyOnce(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	click := &LinkEvent{TrackedLinkID: "link-1", EventType: EventClick, SessionID: "s-1"}
	require.NoError(t, store.LogEvent(ctx, click))

	applied, err := store.SetTimeOnSite(ctx, click.ID, 12.5)
	require.NoError(t, err)
	require.True(t, applied)

	applied, err = store.SetTimeOnSite(ctx, click.ID, 2)
	require.NoError(t, err)
	require.False(t, applied)

	got, err := store.Get(ctx, click.ID)
	require.NoError(t, err)
	require.Equal(t, 12.5, *got.TimeOnSite)
}

func TestMostRecentClickForSession(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	older := &LinkEvent{TrackedLinkID: "link-1", EventType: EventClick, SessionID: "s-1", OccurredAt: now.Add(-time.Hour)}
	newer := &LinkEvent{TrackedLinkID: "link-2", EventType: EventClick, SessionID: "s-1", OccurredAt: now}
	require.NoError(t, store.LogEvent(ctx, older))
	require.NoError(t, store.LogEvent(ctx, newer))

	got, err := store.MostRecentClickForSession(ctx, "s-1")
	require.NoError(t, err)
	require.Equal(t, newer.ID, got.ID)

	got, err = store.MostRecentClickForSession(ctx, "unknown")
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestVisitHistory(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	first := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		require.NoError(t, store.LogEvent(ctx, &LinkEvent{
			TrackedLinkID: "link-1", EventType: EventClick, SessionID: "s-1",
			OccurredAt: first.Add(time.Duration(i) * 24 * time.Hour),
		}))
	}

	count, firstSeen, err := store.VisitHistory(ctx, "link-1", "s-1")
	require.NoError(t, err)
	require.Equal(t, int64(3), count)
	require.True(t, firstSeen.Equal(first))
}

func TestRecordConversionDeduplicates(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	click := &LinkEvent{TrackedLinkID: "link-1", EventType: EventClick, SessionID: "s-1"}
	require.NoError(t, store.LogEvent(ctx, click))

	first, created, err := store.RecordConversion(ctx, click, ConversionInput{RevenueCents: 10000, Currency: "eur"})
	require.NoError(t, err)
	require.True(t, created)

	second, created, err := store.RecordConversion(ctx, click, ConversionInput{RevenueCents: 10000, Currency: "eur"})
	require.NoError(t, err)
	require.False(t, created)
	require.Equal(t, first.ID, second.ID)

	exists, err := store.Exists(ctx, "link-1", "s-1", EventConversion)
	require.NoError(t, err)
	require.True(t, exists)
}

func TestUniqueIndexRejectsSecondConversion(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.LogEvent(ctx, &LinkEvent{TrackedLinkID: "link-1", EventType: EventConversion, SessionID: "s-1"}))
	err := store.LogEvent(ctx, &LinkEvent{TrackedLinkID: "link-1", EventType: EventConversion, SessionID: "s-1"})
	require.Error(t, err)

	// Clicks are not constrained.
	require.NoError(t, store.LogEvent(ctx, &LinkEvent{TrackedLinkID: "link-1", EventType: EventClick, SessionID: "s-1"}))
	require.NoError(t, store.LogEvent(ctx, &LinkEvent{TrackedLinkID: "link-1", EventType: EventClick, SessionID: "s-1"}))
}

func TestPageCategories(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	click := &LinkEvent{TrackedLinkID: "link-1", EventType: EventClick, SessionID: "s-1"}

	require.NoError(t, store.RecordPageView(ctx, click, "pricing"))
	require.NoError(t, store.RecordPageView(ctx, click, "pricing"))
	require.NoError(t, store.RecordPageView(ctx, click, "docs"))

	categories, err := store.PageCategories(ctx, "s-1")
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"pricing", "docs"}, categories)
}
