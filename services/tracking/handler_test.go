package tracking

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"naano-tracking/pkg/config"
	"naano-tracking/pkg/httpapi"
	"naano-tracking/services/account"
	"naano-tracking/services/apikey"
	"naano-tracking/services/enrichment"
	"naano-tracking/services/event"
	"naano-tracking/services/lead"
	"naano-tracking/services/link"
	"naano-tracking/services/testutil"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
	gin.SetMode(gin.TestMode)
}

const (
	desktopUA     = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Safari/605.1.15"
	internalToken = "internal-secret"
)

// sqlite has no array columns; scopes are stored in pq's text form.
const createAPIKeys = `CREATE TABLE api_keys (
	id TEXT PRIMARY KEY,
	saas_id TEXT NOT NULL,
	key_id TEXT NOT NULL UNIQUE,
	secret_hash TEXT NOT NULL,
	scopes TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'active',
	created_at DATETIME,
	expires_at DATETIME,
	last_used_at DATETIME
)`

type failingEnricher struct{}

func (failingEnricher) Enrich(context.Context, string) (*enrichment.Result, error) {
	return nil, errors.New("lookup timed out")
}

type fixture struct {
	db      *gorm.DB
	events  *event.Store
	keys    *apikey.Service
	handler *Handler
	engine  *gin.Engine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	var models []any
	models = append(models, account.Models()...)
	models = append(models, link.Models()...)
	models = append(models, event.Models()...)
	models = append(models, enrichment.Models()...)
	models = append(models, lead.Models()...)

	stmts := append([]string{createAPIKeys}, event.Indexes()...)
	stmts = append(stmts, lead.Indexes()...)
	db := testutil.NewTestDB(t, models, stmts...)

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	accounts := account.NewStore(db)
	events := event.NewStore(event.StoreParams{DB: db, Node: node})
	links := link.NewService(link.ServiceParams{DB: db, Node: node, Account: accounts})
	leads, err := lead.NewService(lead.ServiceParams{
		DB:         db,
		Node:       node,
		Events:     events,
		Links:      links,
		Accounts:   accounts,
		Inferences: enrichment.NewStore(enrichment.StoreParams{DB: db, Node: node}),
	})
	require.NoError(t, err)
	keys := apikey.NewService(apikey.ServiceParams{DB: db, Node: node})

	cfg := &config.Config{}
	cfg.Tracking.DefaultRedirectURL = "https://naano.example/"
	cfg.Tracking.InternalToken = internalToken

	h := NewHandler(HandlerParams{
		Links:  links,
		Events: events,
		Leads:  leads,
		Keys:   keys,
		Clicks: NewClickLogger(ClickLoggerParams{Events: events}),
		Config: cfg,
	})
	h.enricher = failingEnricher{}

	require.NoError(t, db.Create(&account.CreatorProfile{ID: "creator-1", DisplayName: "Jane Doe"}).Error)
	require.NoError(t, db.Create(&account.SaasCompany{ID: "saas-1", Plan: account.PlanStarter, Website: "https://brand.example"}).Error)
	require.NoError(t, db.Create(&account.Collaboration{ID: "collab-1", CreatorID: "creator-1", SaasID: "saas-1"}).Error)
	require.NoError(t, db.Create(&link.TrackedLink{ID: "link-1", CollaborationID: "collab-1", Hash: "abc123", DestinationURL: "https://brand.example/pricing?ref=x"}).Error)

	return &fixture{
		db:      db,
		events:  events,
		keys:    keys,
		handler: h,
		engine:  httpapi.NewEngine(httpapi.EngineParams{Config: cfg, Routes: []httpapi.Route{h}}),
	}
}

func (f *fixture) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, req)
	return w
}

func (f *fixture) post(t *testing.T, path, body string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	return f.do(t, req)
}

func (f *fixture) countEvents(t *testing.T, eventType event.EventType) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Model(&event.LinkEvent{}).Where("event_type = ?", eventType).Count(&n).Error)
	return n
}

func (f *fixture) click(t *testing.T, session string, dwell *float64) *event.LinkEvent {
	t.Helper()
	ev := &event.LinkEvent{
		TrackedLinkID: "link-1",
		EventType:     event.EventClick,
		SessionID:     session,
		UserAgent:     desktopUA,
		TimeOnSite:    dwell,
	}
	require.NoError(t, f.events.LogEvent(context.Background(), ev))
	return ev
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestRedirectUnknownHash(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, httptest.NewRequest(http.MethodGet, "/t/does-not-exist", nil))
	require.Equal(t, http.StatusFound, w.Code)
	require.Equal(t, "https://naano.example/", w.Header().Get("Location"))

	time.Sleep(50 * time.Millisecond)
	require.Zero(t, f.countEvents(t, event.EventClick))
}

func TestRedirectLogsClick(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/c/abc123?sid=sess-42", nil)
	req.Header.Set("User-Agent", desktopUA)
	req.Header.Set("Referer", "https://www.linkedin.com/")
	w := f.do(t, req)
	require.Equal(t, http.StatusFound, w.Code)

	loc, err := url.Parse(w.Header().Get("Location"))
	require.NoError(t, err)
	require.Equal(t, "brand.example", loc.Host)
	require.Equal(t, "/pricing", loc.Path)
	q := loc.Query()
	require.Equal(t, "x", q.Get("ref"))
	require.Equal(t, "naano", q.Get("utm_source"))
	require.Equal(t, "creator", q.Get("utm_medium"))
	require.Equal(t, "jane-doe", q.Get("utm_campaign"))
	require.Equal(t, "sess-42", q.Get("naano_session"))
	eventID := q.Get("naano_event")
	require.NotEmpty(t, eventID)

	var cookie *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == "naano_sid" {
			cookie = c
		}
	}
	require.NotNil(t, cookie)
	require.Equal(t, "sess-42", cookie.Value)

	require.Eventually(t, func() bool {
		ev, err := f.events.Get(context.Background(), eventID)
		return err == nil && ev != nil
	}, 2*time.Second, 10*time.Millisecond)

	ev, err := f.events.Get(context.Background(), eventID)
	require.NoError(t, err)
	require.Equal(t, "sess-42", ev.SessionID)
	require.Equal(t, "https://www.linkedin.com/", ev.Referrer)
	require.Equal(t, "macOS", ev.OS)
	require.Equal(t, "desktop", ev.DeviceType)
}

func TestTrackPreflight(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodOptions, "/track/lead", nil)
	req.Header.Set("Origin", "https://brand.example")
	req.Header.Set("Access-Control-Request-Method", "POST")
	req.Header.Set("Access-Control-Request-Headers", "Authorization, Content-Type")
	w := f.do(t, req)

	require.Equal(t, http.StatusNoContent, w.Code)
	require.Equal(t, "https://brand.example", w.Header().Get("Access-Control-Allow-Origin"))
	require.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
}

func TestLeadWebhookWithBadKey(t *testing.T) {
	f := newFixture(t)
	f.click(t, "abc", testutil.Ptr(5.0))

	w := f.post(t, "/track/lead", `{"session_id":"abc"}`, "Authorization", "Bearer wrong-key")
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.NotEmpty(t, decode(t, w)["error"])
	require.Zero(t, f.countEvents(t, event.EventLead))
}

func TestLeadWebhook(t *testing.T) {
	f := newFixture(t)
	f.click(t, "abc", testutil.Ptr(5.0))

	issued, err := f.keys.Issue(context.Background(), "saas-1", nil, nil)
	require.NoError(t, err)

	w := f.post(t, "/track/lead", `{"session_id":"abc"}`, "Authorization", "Bearer "+issued.Token)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	require.Equal(t, true, body["success"])
	require.NotNil(t, body["lead"])
	require.Equal(t, false, body["should_bill"])

	w = f.post(t, "/track/lead", `{"session_id":"abc"}`, "Authorization", "Bearer "+issued.Token)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, true, decode(t, w)["duplicate"])
	require.Equal(t, int64(1), f.countEvents(t, event.EventLead))

	other, err := f.keys.Issue(context.Background(), "saas-2", nil, nil)
	require.NoError(t, err)
	w = f.post(t, "/track/lead", `{"session_id":"abc"}`, "Authorization", "Bearer "+other.Token)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestLeadPixelWithoutClick(t *testing.T) {
	f := newFixture(t)

	w := f.post(t, "/track/lead", ``, "Cookie", "naano_sid=unknown-session")
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestLeadPixelSkippedIsSuccess(t *testing.T) {
	f := newFixture(t)
	f.click(t, "sess-short", testutil.Ptr(1.0))

	w := f.post(t, "/track/lead", `{}`, "Cookie", "naano_sid=sess-short")
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	require.Equal(t, true, body["success"])
	require.Nil(t, body["lead"])
	require.Equal(t, lead.SkipDwellBelowMinimum, body["skip_reason"])
}

func TestConversionDoubleFire(t *testing.T) {
	f := newFixture(t)
	f.click(t, "sess-1", nil)

	first := f.post(t, "/track/conversion", `{"revenue":100}`, "Cookie", "naano_sid=sess-1")
	require.Equal(t, http.StatusOK, first.Code)
	second := f.post(t, "/track/conversion", `{"revenue":100}`, "Cookie", "naano_sid=sess-1")
	require.Equal(t, http.StatusOK, second.Code)

	a, b := decode(t, first), decode(t, second)
	require.Equal(t, true, b["success"])
	require.Equal(t, false, a["duplicate"])
	require.Equal(t, true, b["duplicate"])
	require.Equal(t, a["conversion_id"], b["conversion_id"])
	require.Equal(t, int64(1), f.countEvents(t, event.EventConversion))
}

func TestDwellBeacon(t *testing.T) {
	f := newFixture(t)
	click := f.click(t, "sess-1", nil)

	for _, body := range []string{`not json`, `{"eventId":"` + click.ID + `"}`, `{"timeOnSite":4}`, ``, `{"eventId":"x","timeOnSite":"4s"}`} {
		w := f.post(t, "/track/3sec", body)
		require.Equal(t, http.StatusBadRequest, w.Code, body)
	}

	req := httptest.NewRequest(http.MethodPost, "/track/3sec",
		strings.NewReader(`{"eventId":"`+click.ID+`","timeOnSite":4.5}`))
	req.Header.Set("Content-Type", "text/plain;charset=UTF-8")
	w := f.do(t, req)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	require.Equal(t, true, body["recorded"])
	require.Equal(t, 4.5, body["time_on_site"])
	require.NotNil(t, body["lead"])

	w = f.post(t, "/track/3sec", `{"eventId":"`+click.ID+`","timeOnSite":9}`)
	require.Equal(t, http.StatusOK, w.Code)
	body = decode(t, w)
	require.Equal(t, false, body["recorded"])
	require.Equal(t, 4.5, body["time_on_site"])
	require.Equal(t, int64(1), f.countEvents(t, event.EventLead))

	w = f.post(t, "/track/3sec", `{"eventId":"missing","timeOnSite":5}`)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestEnrichAlwaysSucceeds(t *testing.T) {
	f := newFixture(t)
	click := f.click(t, "sess-1", nil)

	w := f.post(t, "/track/enrich", `{"eventId":"`+click.ID+`"}`)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	require.Equal(t, true, body["success"])
	require.Equal(t, false, body["enriched"])

	w = f.post(t, "/track/enrich", `{}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSignup(t *testing.T) {
	f := newFixture(t)
	f.click(t, "sess-1", nil)

	w := f.post(t, "/track/signup", `{"session_id":"sess-1","company":"Acme"}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.NotEmpty(t, decode(t, w)["details"])

	w = f.post(t, "/track/signup", `{"session_id":"nobody","email":"a@acme.io","company":"Acme"}`)
	require.Equal(t, http.StatusNotFound, w.Code)

	w = f.post(t, "/track/signup", `{"session_id":"sess-1","email":"a@acme.io","company":"Acme"}`)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	require.Equal(t, "confirmed", body["attribution_state"])
	require.NotNil(t, body["lead"])
}

func TestPageView(t *testing.T) {
	f := newFixture(t)
	f.click(t, "sess-1", nil)

	w := f.post(t, "/track/pageview", `{"category":"pricing"}`, "Cookie", "naano_sid=sess-1")
	require.Equal(t, http.StatusOK, w.Code)

	w = f.post(t, "/track/pageview", `{"category":"blog"}`, "Cookie", "naano_sid=sess-1")
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestInternalEnsureLink(t *testing.T) {
	f := newFixture(t)

	w := f.post(t, "/internal/collaborations/collab-1/link", `{}`)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	w = f.post(t, "/internal/collaborations/collab-1/link", `{}`, "Authorization", "Bearer "+internalToken)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "abc123", decode(t, w)["hash"])

	w = f.post(t, "/internal/collaborations/missing/link", `{}`, "Authorization", "Bearer "+internalToken)
	require.Equal(t, http.StatusNotFound, w.Code)
}
