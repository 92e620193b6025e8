package enrichment

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"naano-tracking/pkg/dns"
	"naano-tracking/pkg/errutil"
	"naano-tracking/pkg/featureflags"
	"naano-tracking/services/event"
	"naano-tracking/services/testutil"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

const iphoneUA = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_4 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Mobile/15E148 Safari/604.1"

type lookupFunc func(ctx context.Context, ip string) (*dns.Origin, error)

func (f lookupFunc) LookupOrigin(ctx context.Context, ip string) (*dns.Origin, error) {
	return f(ctx, ip)
}

type scorerSpy struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (s *scorerSpy) Score(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, id)
	return s.err
}

type fixture struct {
	svc        *Service
	events     *event.Store
	inferences *Store
	scorer     *scorerSpy
}

func newFixture(t *testing.T, lookup NetworkLookup, flags featureflags.FeatureFlag) *fixture {
	t.Helper()
	models := append(event.Models(), Models()...)
	db := testutil.NewTestDB(t, models, event.Indexes()...)
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	events := event.NewStore(event.StoreParams{DB: db, Node: node})
	inferences := NewStore(StoreParams{DB: db, Node: node})
	scorer := &scorerSpy{}

	svc := NewService(ServiceParams{
		Events:     events,
		Inferences: inferences,
		Lookup:     lookup,
		Flags:      flags,
		Scorer:     scorer,
	})
	svc.cfg.LookupTimeout = 50 * time.Millisecond

	return &fixture{svc: svc, events: events, inferences: inferences, scorer: scorer}
}

func (f *fixture) click(t *testing.T, ip string, dwell *float64) *event.LinkEvent {
	t.Helper()
	ev := &event.LinkEvent{
		TrackedLinkID: "link-1",
		EventType:     event.EventClick,
		SessionID:     "sess-1",
		IPAddress:     ip,
		UserAgent:     iphoneUA,
		TimeOnSite:    dwell,
	}
	require.NoError(t, f.events.LogEvent(context.Background(), ev))
	return ev
}

func corporateLookup(context.Context, string) (*dns.Origin, error) {
	return &dns.Origin{
		ASN:      "64500",
		Country:  "FR",
		Org:      "ACME-AS - Acme Software SAS, FR",
		Hostname: "gw1.acme.fr",
	}, nil
}

func TestEnrichCorporateVisit(t *testing.T) {
	f := newFixture(t, lookupFunc(corporateLookup), nil)
	ctx := context.Background()
	ev := f.click(t, "203.0.113.10", testutil.Ptr(45.0))

	res, err := f.svc.Enrich(ctx, ev.ID)
	require.NoError(t, err)
	require.Equal(t, "iOS", res.Device.OS)
	require.Equal(t, NetworkCorporate, res.NetworkType)
	require.NotNil(t, res.CompanyInference)
	require.Equal(t, "Acme Software SAS", res.CompanyInference.CompanyName)
	require.Equal(t, AttributionInferred, res.CompanyInference.AttributionState)

	stored, err := f.events.Get(ctx, ev.ID)
	require.NoError(t, err)
	require.Equal(t, DeviceMobile, stored.DeviceType)
	require.Equal(t, NetworkCorporate, stored.NetworkType)
	require.Equal(t, "FR", stored.Country)
	require.NotNil(t, stored.EnrichedAt)

	require.Equal(t, []string{ev.ID}, f.scorer.calls)

	again, err := f.svc.Enrich(ctx, ev.ID)
	require.NoError(t, err)
	require.Equal(t, res.CompanyInference.ID, again.CompanyInference.ID)
}

func TestEnrichKeepsEarlierClassification(t *testing.T) {
	var mu sync.Mutex
	calls := 0
	lookup := lookupFunc(func(ctx context.Context, ip string) (*dns.Origin, error) {
		mu.Lock()
		calls++
		n := calls
		mu.Unlock()
		if n == 1 {
			return corporateLookup(ctx, ip)
		}
		return nil, context.DeadlineExceeded
	})
	f := newFixture(t, lookup, nil)
	ctx := context.Background()
	ev := f.click(t, "203.0.113.10", nil)

	first, err := f.svc.Enrich(ctx, ev.ID)
	require.NoError(t, err)
	require.Equal(t, NetworkCorporate, first.NetworkType)

	// the dwell beacon schedules a second pass
	second, err := f.svc.Enrich(ctx, ev.ID)
	require.NoError(t, err)
	require.Equal(t, NetworkCorporate, second.NetworkType)
	require.NotNil(t, second.CompanyInference)
	require.Equal(t, first.CompanyInference.ID, second.CompanyInference.ID)

	stored, err := f.events.Get(ctx, ev.ID)
	require.NoError(t, err)
	require.Equal(t, NetworkCorporate, stored.NetworkType)
	require.Equal(t, "FR", stored.Country)

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, 1, calls)
}

func TestEnrichSkipsScoringWithoutDwell(t *testing.T) {
	f := newFixture(t, lookupFunc(corporateLookup), nil)
	ev := f.click(t, "203.0.113.10", nil)

	_, err := f.svc.Enrich(context.Background(), ev.ID)
	require.NoError(t, err)
	require.Empty(t, f.scorer.calls)
}

func TestEnrichLowConfidenceStoresNetworkOnly(t *testing.T) {
	lookup := lookupFunc(func(context.Context, string) (*dns.Origin, error) {
		return &dns.Origin{ASN: "16509", Org: "AMAZON-02 - Amazon.com, Inc., US", Country: "US"}, nil
	})
	f := newFixture(t, lookup, nil)
	ctx := context.Background()
	ev := f.click(t, "52.1.2.3", nil)

	res, err := f.svc.Enrich(ctx, ev.ID)
	require.NoError(t, err)
	require.Nil(t, res.CompanyInference)

	stored, err := f.events.Get(ctx, ev.ID)
	require.NoError(t, err)
	require.Equal(t, NetworkHosting, stored.NetworkType)

	ci, err := f.inferences.ForEvent(ctx, ev.ID)
	require.NoError(t, err)
	require.Nil(t, ci)
}

func TestEnrichDegradesOnLookupFailure(t *testing.T) {
	cases := map[string]NetworkLookup{
		"error": lookupFunc(func(context.Context, string) (*dns.Origin, error) {
			return nil, errors.New("SERVFAIL")
		}),
		"ignores context": lookupFunc(func(context.Context, string) (*dns.Origin, error) {
			time.Sleep(time.Second)
			return corporateLookup(context.Background(), "")
		}),
		"private address": dns.NewResolver(nil, time.Second),
	}

	for name, lookup := range cases {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t, lookup, nil)
			ctx := context.Background()
			ev := f.click(t, "10.0.0.4", testutil.Ptr(10.0))

			start := time.Now()
			res, err := f.svc.Enrich(ctx, ev.ID)
			require.NoError(t, err)
			require.Less(t, time.Since(start), 500*time.Millisecond)
			require.Equal(t, NetworkUnknown, res.NetworkType)
			require.Nil(t, res.CompanyInference)

			stored, err := f.events.Get(ctx, ev.ID)
			require.NoError(t, err)
			require.Equal(t, NetworkUnknown, stored.NetworkType)
			require.Equal(t, "iOS", stored.OS)
		})
	}
}

func TestEnrichRespectsCompanyInferenceFlag(t *testing.T) {
	f := newFixture(t, lookupFunc(corporateLookup), featureflags.Static{featureflags.CompanyInference: false})
	ev := f.click(t, "203.0.113.10", nil)

	res, err := f.svc.Enrich(context.Background(), ev.ID)
	require.NoError(t, err)
	require.Equal(t, NetworkCorporate, res.NetworkType)
	require.Nil(t, res.CompanyInference)
}

func TestEnrichUnknownEvent(t *testing.T) {
	f := newFixture(t, lookupFunc(corporateLookup), nil)

	_, err := f.svc.Enrich(context.Background(), "missing")
	var be errutil.BaseError
	require.ErrorAs(t, err, &be)
	require.Equal(t, errutil.StatusNotFound, be.Code)

	_, err = f.svc.Enrich(context.Background(), "")
	require.ErrorAs(t, err, &be)
	require.Equal(t, errutil.StatusBadRequest, be.Code)
}

func TestConfirmUpgradesInference(t *testing.T) {
	f := newFixture(t, lookupFunc(corporateLookup), nil)
	ctx := context.Background()
	ev := f.click(t, "203.0.113.10", nil)

	res, err := f.svc.Enrich(ctx, ev.ID)
	require.NoError(t, err)
	require.NotNil(t, res.CompanyInference)

	confirmed, err := f.inferences.Confirm(ctx, ev, Signup{Email: "jane@acme.io", Company: "Acme"})
	require.NoError(t, err)
	require.Equal(t, res.CompanyInference.ID, confirmed.ID)
	require.Equal(t, AttributionConfirmed, confirmed.AttributionState)
	require.Equal(t, "acme.io", confirmed.CompanyDomain)
	require.Equal(t, 1.0, confirmed.ConfidenceScore)
	require.NotNil(t, confirmed.ConfirmedAt)

	// A second signup never rewrites a confirmed attribution.
	again, err := f.inferences.Confirm(ctx, ev, Signup{Email: "bob@other.com", Company: "Other"})
	require.NoError(t, err)
	require.Equal(t, "Acme", again.CompanyName)
}

func TestConfirmCreatesWhenNothingInferred(t *testing.T) {
	f := newFixture(t, lookupFunc(corporateLookup), nil)
	ctx := context.Background()
	ev := f.click(t, "10.0.0.1", nil)

	ci, err := f.inferences.Confirm(ctx, ev, Signup{Email: "jane@gmail.com", Company: "Initech"})
	require.NoError(t, err)
	require.Equal(t, AttributionConfirmed, ci.AttributionState)
	require.Equal(t, "Initech", ci.CompanyName)
	require.Empty(t, ci.CompanyDomain)
}
