package enrichment

import (
	"context"
	"errors"
	"time"

	"naano-tracking/pkg/config"
	"naano-tracking/pkg/dns"
	"naano-tracking/pkg/errutil"
	"naano-tracking/pkg/featureflags"
	"naano-tracking/pkg/metrics"
	"naano-tracking/services/event"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("naano-tracking/enrichment")

type Config struct {
	LookupTimeout       time.Duration
	ConfidenceThreshold float64
}

func DefaultConfig() Config {
	return Config{
		LookupTimeout:       2 * time.Second,
		ConfidenceThreshold: 0.3,
	}
}

// Scorer computes the intent score of a click once its dwell time is known.
type Scorer interface {
	Score(ctx context.Context, linkEventID string) error
}

type Result struct {
	Device           DeviceInfo
	NetworkType      string
	CompanyInference *CompanyInference
}

type Service struct {
	events     *event.Store
	inferences *Store
	lookup     NetworkLookup
	flags      featureflags.FeatureFlag
	scorer     Scorer
	cfg        Config
}

type ServiceParams struct {
	fx.In
	Events     *event.Store
	Inferences *Store
	Lookup     NetworkLookup
	Flags      featureflags.FeatureFlag `optional:"true"`
	Scorer     Scorer                   `optional:"true"`
	Config     *config.Config           `optional:"true"`
}

func NewService(p ServiceParams) *Service {
	cfg := DefaultConfig()
	if p.Config != nil {
		if p.Config.Enrichment.LookupTimeout > 0 {
			cfg.LookupTimeout = p.Config.Enrichment.LookupTimeout
		}
		if p.Config.Enrichment.ConfidenceThreshold > 0 {
			cfg.ConfidenceThreshold = p.Config.Enrichment.ConfidenceThreshold
		}
	}
	return &Service{
		events:     p.Events,
		inferences: p.Inferences,
		lookup:     p.Lookup,
		flags:      p.Flags,
		scorer:     p.Scorer,
		cfg:        cfg,
	}
}

// Enrich annotates a click with device and network data, stores a company
// inference when it is confident enough and scores the visit when its dwell
// time is known. Only a missing event or a failed annotation write is an
// error; lookup, inference and scoring failures degrade silently.
func (s *Service) Enrich(ctx context.Context, linkEventID string) (*Result, error) {
	ctx, span := tracer.Start(ctx, "enrichment.Enrich")
	defer span.End()
	span.SetAttributes(attribute.String("link_event_id", linkEventID))

	if linkEventID == "" {
		return nil, errutil.BadRequest("eventId is required", nil)
	}

	ev, err := s.events.Get(ctx, linkEventID)
	if err != nil {
		return nil, err
	}
	if ev == nil {
		return nil, errutil.NotFound("link event not found", nil)
	}

	device := ParseUserAgent(ev.UserAgent)

	// A click classified by an earlier pass keeps its network type; a second
	// lookup could only degrade it to unknown.
	classified := ev.NetworkType != "" && ev.NetworkType != NetworkUnknown
	var inf Inference
	if classified {
		inf = Inference{NetworkType: ev.NetworkType}
	} else {
		inf = s.inferNetwork(ctx, ev.IPAddress)
	}

	country := inf.Location
	if country == "" {
		country = ev.Country
	}
	if err := s.events.ApplyEnrichment(ctx, ev.ID, event.Enrichment{
		DeviceType:  device.DeviceType,
		OS:          device.OS,
		Browser:     device.Browser,
		NetworkType: inf.NetworkType,
		Country:     country,
	}); err != nil {
		return nil, err
	}
	metrics.EnrichmentsTotal.WithLabelValues(inf.NetworkType).Inc()

	result := &Result{Device: device, NetworkType: inf.NetworkType}

	switch {
	case classified:
		ci, err := s.inferences.ForEvent(ctx, ev.ID)
		if err != nil {
			zap.L().Warn("failed to load company inference", zap.String("link_event_id", ev.ID), zap.Error(err))
		}
		result.CompanyInference = ci
	case inf.Qualifies(s.cfg.ConfidenceThreshold) && s.companyInferenceEnabled(ctx, ev.TrackedLinkID):
		ci, err := s.inferences.Save(ctx, ev, inf)
		if err != nil {
			zap.L().Warn("failed to save company inference", zap.String("link_event_id", ev.ID), zap.Error(err))
		}
		result.CompanyInference = ci
	}

	if ev.TimeOnSite != nil && s.scorer != nil {
		if err := s.scorer.Score(ctx, ev.ID); err != nil {
			zap.L().Warn("failed to score session", zap.String("link_event_id", ev.ID), zap.Error(err))
		}
	}

	return result, nil
}

func (s *Service) companyInferenceEnabled(ctx context.Context, identifier string) bool {
	if s.flags == nil {
		return true
	}
	return s.flags.IsEnabled(ctx, featureflags.CompanyInference, identifier)
}

type lookupResult struct {
	origin *dns.Origin
	err    error
}

// inferNetwork never blocks longer than the lookup timeout, even when the
// lookup itself ignores its context.
func (s *Service) inferNetwork(ctx context.Context, ip string) Inference {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.LookupTimeout)
	defer cancel()

	start := time.Now()
	done := make(chan lookupResult, 1)
	go func() {
		origin, err := s.lookup.LookupOrigin(ctx, ip)
		done <- lookupResult{origin: origin, err: err}
	}()

	var res lookupResult
	select {
	case res = <-done:
	case <-ctx.Done():
		res = lookupResult{err: ctx.Err()}
	}

	outcome := "ok"
	switch {
	case res.err == nil:
	case errors.Is(res.err, dns.ErrNotPublic):
		outcome = "skipped"
	case errors.Is(res.err, context.DeadlineExceeded):
		outcome = "timeout"
	default:
		outcome = "error"
	}
	metrics.IPLookupDuration.WithLabelValues(outcome).Observe(time.Since(start).Seconds())

	if res.err != nil {
		if outcome != "skipped" {
			zap.L().Debug("ip lookup degraded", zap.String("outcome", outcome), zap.Error(res.err))
		}
		return unknownInference()
	}
	return Classify(res.origin)
}
