package event

import (
	"context"
	"time"

	"naano-tracking/pkg/db/option"
	"naano-tracking/pkg/repository"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

type Store struct {
	db    *gorm.DB
	node  *snowflake.Node
	event repository.Repository[LinkEvent]
	view  repository.Repository[PageView]
}

type StoreParams struct {
	fx.In
	DB   *gorm.DB
	Node *snowflake.Node
}

func NewStore(p StoreParams) *Store {
	return &Store{
		db:    p.DB,
		node:  p.Node,
		event: repository.ProvideStore[LinkEvent](p.DB),
		view:  repository.ProvideStore[PageView](p.DB),
	}
}

func (s *Store) WithTrx(tx *gorm.DB) *Store {
	if tx == nil {
		return s
	}
	return NewStore(StoreParams{DB: tx, Node: s.node})
}

func (s *Store) NewID() string {
	return s.node.Generate().String()
}

// LogEvent appends an event, filling id, timestamp and the direct referrer.
func (s *Store) LogEvent(ctx context.Context, e *LinkEvent) error {
	if e.ID == "" {
		e.ID = s.NewID()
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now().UTC()
	}
	if e.EventType == EventClick && e.Referrer == "" {
		e.Referrer = DefaultReferrer
	}
	return s.event.Create(ctx, e)
}

func (s *Store) Get(ctx context.Context, id string) (*LinkEvent, error) {
	return s.event.FindOne(ctx, &LinkEvent{ID: id})
}

func newestFirst() option.QueryOption {
	return option.WithSortBy(option.QuerySortBy{
		SortBy:  "occurred_at",
		OrderBy: "desc",
		Allow:   map[string]bool{"occurred_at": true},
	})
}

// MostRecent returns the newest event of a type for a session on one link.
func (s *Store) MostRecent(ctx context.Context, trackedLinkID string, t EventType, sessionID string) (*LinkEvent, error) {
	return s.event.FindOne(ctx, &LinkEvent{
		TrackedLinkID: trackedLinkID,
		EventType:     t,
		SessionID:     sessionID,
	}, newestFirst())
}

// MostRecentClickForSession finds the newest click of a session across links.
// scope narrows the candidate links (for example to one brand).
func (s *Store) MostRecentClickForSession(ctx context.Context, sessionID string, scope ...option.QueryOption) (*LinkEvent, error) {
	if sessionID == "" {
		return nil, nil
	}
	opts := append([]option.QueryOption{newestFirst()}, scope...)
	return s.event.FindOne(ctx, &LinkEvent{SessionID: sessionID, EventType: EventClick}, opts...)
}

func (s *Store) Exists(ctx context.Context, trackedLinkID, sessionID string, t EventType) (bool, error) {
	n, err := s.event.Count(ctx, &LinkEvent{TrackedLinkID: trackedLinkID, SessionID: sessionID, EventType: t})
	return n > 0, err
}

// SetTimeOnSite records dwell time once. It reports false when a value was
// already present; the stored value is never changed afterwards.
func (s *Store) SetTimeOnSite(ctx context.Context, id string, seconds float64) (bool, error) {
	res := s.db.WithContext(ctx).
		Model(&LinkEvent{}).
		Where("id = ? AND event_type = ? AND time_on_site IS NULL", id, EventClick).
		Update("time_on_site", seconds)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (s *Store) ApplyEnrichment(ctx context.Context, id string, e Enrichment) error {
	now := time.Now().UTC()
	return s.event.Update(ctx, id, map[string]any{
		"device_type":  e.DeviceType,
		"os":           e.OS,
		"browser":      e.Browser,
		"network_type": e.NetworkType,
		"country":      e.Country,
		"enriched_at":  now,
	})
}

// VisitHistory counts clicks of a session on a link and returns the first one.
func (s *Store) VisitHistory(ctx context.Context, trackedLinkID, sessionID string) (int64, time.Time, error) {
	query := &LinkEvent{TrackedLinkID: trackedLinkID, SessionID: sessionID, EventType: EventClick}

	count, err := s.event.Count(ctx, query)
	if err != nil || count == 0 {
		return count, time.Time{}, err
	}

	first, err := s.event.FindOne(ctx, query, option.WithSortBy(option.QuerySortBy{
		SortBy:  "occurred_at",
		OrderBy: "asc",
		Allow:   map[string]bool{"occurred_at": true},
	}))
	if err != nil || first == nil {
		return count, time.Time{}, err
	}
	return count, first.OccurredAt, nil
}

// RecordConversion stores one conversion per (link, session). A repeat or a
// lost race returns the stored conversion with created=false.
func (s *Store) RecordConversion(ctx context.Context, click *LinkEvent, in ConversionInput) (*LinkEvent, bool, error) {
	existing, err := s.MostRecent(ctx, click.TrackedLinkID, EventConversion, click.SessionID)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return existing, false, nil
	}

	revenue := in.RevenueCents
	conv := &LinkEvent{
		TrackedLinkID: click.TrackedLinkID,
		EventType:     EventConversion,
		SessionID:     click.SessionID,
		IPAddress:     click.IPAddress,
		UserAgent:     click.UserAgent,
		Referrer:      click.Referrer,
		RevenueCents:  &revenue,
		Currency:      in.Currency,
		OrderID:       in.OrderID,
	}

	if err := s.LogEvent(ctx, conv); err != nil {
		if !repository.IsUniqueViolation(err) {
			return nil, false, err
		}
		existing, err := s.MostRecent(ctx, click.TrackedLinkID, EventConversion, click.SessionID)
		if err != nil {
			return nil, false, err
		}
		return existing, false, nil
	}

	return conv, true, nil
}

func (s *Store) RecordPageView(ctx context.Context, click *LinkEvent, category string) error {
	return s.view.Create(ctx, &PageView{
		ID:            s.NewID(),
		TrackedLinkID: click.TrackedLinkID,
		SessionID:     click.SessionID,
		Category:      category,
		OccurredAt:    time.Now().UTC(),
	})
}

// PageCategories returns the distinct categories seen in a session.
func (s *Store) PageCategories(ctx context.Context, sessionID string) ([]string, error) {
	var categories []string
	err := s.db.WithContext(ctx).
		Model(&PageView{}).
		Where("session_id = ?", sessionID).
		Distinct("category").
		Pluck("category", &categories).Error
	return categories, err
}
