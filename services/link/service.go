package link

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"naano-tracking/pkg/config"
	"naano-tracking/pkg/errutil"
	"naano-tracking/pkg/repository"
	"naano-tracking/services/account"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"
)

const (
	UTMSource    = "naano"
	UTMMedium    = "creator"
	SessionParam = "naano_session"
)

var ErrInvalidDestination = errors.New("invalid destination url")

type Service struct {
	db      *gorm.DB
	node    *snowflake.Node
	link    repository.Repository[TrackedLink]
	account *account.Store
	cache   Cache
	group   singleflight.Group
}

type ServiceParams struct {
	fx.In
	DB      *gorm.DB
	Node    *snowflake.Node
	Account *account.Store
	Config  *config.Config `optional:"true"`
	Redis   *redis.Client  `optional:"true"`
}

func NewService(p ServiceParams) *Service {
	s := &Service{
		db:      p.DB,
		node:    p.Node,
		link:    repository.ProvideStore[TrackedLink](p.DB),
		account: p.Account,
	}
	if p.Redis != nil {
		ttl := 10 * time.Minute
		if p.Config != nil && p.Config.Tracking.LinkCacheTTL > 0 {
			ttl = p.Config.Tracking.LinkCacheTTL
		}
		s.cache = NewRedisCache(p.Redis, ttl)
	}
	return s
}

// Resolve maps a hash to its attribution. Concurrent misses for the same hash
// share one database query.
func (s *Service) Resolve(ctx context.Context, hash string) (*Attribution, error) {
	hash = strings.TrimSpace(hash)
	if hash == "" {
		return nil, errutil.NotFound("tracked link not found", nil)
	}

	if s.cache != nil {
		if attr, ok := s.cache.Get(ctx, hash); ok {
			return attr, nil
		}
	}

	v, err, _ := s.group.Do(hash, func() (interface{}, error) {
		return findAttribution(ctx, s.db, "tl.hash = ?", hash)
	})
	if err != nil {
		zap.L().With(spanFields(ctx)...).Error("failed to resolve tracked link", zap.String("hash", hash), zap.Error(err))
		return nil, err
	}

	attr, _ := v.(*Attribution)
	if attr == nil {
		return nil, errutil.NotFound("tracked link not found", nil)
	}

	if s.cache != nil {
		s.cache.Set(ctx, attr)
	}
	return attr, nil
}

// ByID returns the attribution of a tracked link id, or nil when unknown.
func (s *Service) ByID(ctx context.Context, trackedLinkID string) (*Attribution, error) {
	return findAttribution(ctx, s.db, "tl.id = ?", trackedLinkID)
}

// EnsureTrackedLink returns the collaboration's link, creating it on first
// access. A concurrent creator wins and its row is returned.
func (s *Service) EnsureTrackedLink(ctx context.Context, collaborationID, destinationURL string) (*TrackedLink, error) {
	existing, err := s.link.FindOne(ctx, &TrackedLink{CollaborationID: collaborationID})
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	collab, err := s.account.Collaboration(ctx, collaborationID)
	if err != nil {
		return nil, err
	}
	if collab == nil {
		return nil, errutil.NotFound("collaboration not found", nil)
	}

	if destinationURL == "" {
		saas, err := s.account.Saas(ctx, collab.SaasID)
		if err != nil {
			return nil, err
		}
		if saas != nil {
			destinationURL = saas.Website
		}
	}
	if _, err := parseDestination(destinationURL); err != nil {
		return nil, errutil.BadRequest("destination url must be an absolute http(s) url", err,
			errutil.WithDetail("destination_url", destinationURL))
	}

	id := s.node.Generate()
	link := &TrackedLink{
		ID:              id.String(),
		CollaborationID: collaborationID,
		Hash:            id.Base58(),
		DestinationURL:  destinationURL,
	}

	if err := s.link.Create(ctx, link); err != nil {
		if !repository.IsUniqueViolation(err) {
			return nil, err
		}
		return s.link.FindOne(ctx, &TrackedLink{CollaborationID: collaborationID})
	}

	zap.L().With(spanFields(ctx)...).Info("tracked link issued",
		zap.String("collaboration_id", collaborationID),
		zap.String("hash", link.Hash),
	)
	return link, nil
}

// BuildDestination appends campaign parameters to the brand URL. Existing
// query parameters, path and fragment are kept as they are; campaign keys the
// brand already set are not overwritten.
func BuildDestination(attr *Attribution, sessionID string) (string, error) {
	u, err := parseDestination(attr.DestinationURL)
	if err != nil {
		return "", err
	}

	existing := u.Query()
	extra := url.Values{}
	addIfAbsent := func(key, value string) {
		if value != "" && !existing.Has(key) {
			extra.Set(key, value)
		}
	}

	addIfAbsent("utm_source", UTMSource)
	addIfAbsent("utm_medium", UTMMedium)
	addIfAbsent("utm_campaign", slug.Make(attr.CreatorName))
	addIfAbsent(SessionParam, sessionID)

	if len(extra) > 0 {
		if u.RawQuery == "" {
			u.RawQuery = extra.Encode()
		} else {
			u.RawQuery = u.RawQuery + "&" + extra.Encode()
		}
	}

	return u.String(), nil
}

func parseDestination(raw string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, err
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, ErrInvalidDestination
	}
	return u, nil
}

func spanFields(ctx context.Context) []zap.Field {
	sc := trace.SpanFromContext(ctx).SpanContext()
	return []zap.Field{
		zap.String("trace_id", sc.TraceID().String()),
		zap.String("span_id", sc.SpanID().String()),
	}
}
