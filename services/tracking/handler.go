package tracking

import (
	"crypto/subtle"
	"io"
	"net/http"
	"time"

	"naano-tracking/pkg/config"
	"naano-tracking/pkg/errutil"
	"naano-tracking/pkg/middleware"
	"naano-tracking/services/apikey"
	"naano-tracking/services/billing"
	"naano-tracking/services/enrichment"
	"naano-tracking/services/event"
	"naano-tracking/services/lead"
	"naano-tracking/services/link"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"go.uber.org/fx"
)

const maxBeaconBody = 4 << 10

type Config struct {
	DefaultRedirectURL string
	CookieName         string
	CookieDomain       string
	CookieMaxAge       time.Duration
	InternalToken      string
}

func DefaultConfig() Config {
	return Config{
		DefaultRedirectURL: "https://naano.xyz/",
		CookieName:         "naano_sid",
		CookieMaxAge:       30 * 24 * time.Hour,
	}
}

type Handler struct {
	cfg      Config
	links    *link.Service
	events   *event.Store
	leads    *lead.Service
	keys     *apikey.Service
	billing  *billing.Service
	clicks   *ClickLogger
	enricher Enricher
}

type HandlerParams struct {
	fx.In
	Links    *link.Service
	Events   *event.Store
	Leads    *lead.Service
	Keys     *apikey.Service
	Clicks   *ClickLogger
	Billing  *billing.Service    `optional:"true"`
	Enricher *enrichment.Service `optional:"true"`
	Config   *config.Config      `optional:"true"`
}

func NewHandler(p HandlerParams) *Handler {
	cfg := DefaultConfig()
	if p.Config != nil {
		t := p.Config.Tracking
		if t.DefaultRedirectURL != "" {
			cfg.DefaultRedirectURL = t.DefaultRedirectURL
		}
		if t.CookieName != "" {
			cfg.CookieName = t.CookieName
		}
		if t.CookieMaxAge > 0 {
			cfg.CookieMaxAge = t.CookieMaxAge
		}
		cfg.CookieDomain = t.CookieDomain
		cfg.InternalToken = t.InternalToken
	}

	h := &Handler{
		cfg:     cfg,
		links:   p.Links,
		events:  p.Events,
		leads:   p.Leads,
		keys:    p.Keys,
		billing: p.Billing,
		clicks:  p.Clicks,
	}
	if p.Enricher != nil {
		h.enricher = p.Enricher
	}
	return h
}

func (h *Handler) Register(r gin.IRouter) {
	r.GET("/t/:hash", h.Redirect)
	r.GET("/c/:hash", h.Redirect)

	track := r.Group("/track", middleware.TrackingCORS(), middleware.Bearer())
	track.OPTIONS("/*path", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	track.POST("/3sec", h.ReportDwell)
	track.POST("/lead", h.Lead)
	track.POST("/enrich", h.Enrich)
	track.POST("/signup", h.Signup)
	track.POST("/conversion", h.Conversion)
	track.POST("/pageview", h.PageView)

	if h.cfg.InternalToken == "" {
		return
	}
	internal := r.Group("/internal", middleware.Bearer(), h.requireInternalToken)
	internal.POST("/collaborations/:id/link", h.EnsureLink)
	if h.billing != nil {
		internal.POST("/billing/sweep", h.BillingSweep)
		internal.POST("/billing/brands/:saas_id", h.BillBrand)
		internal.GET("/billing/brands/:saas_id/invoices", h.ListInvoices)
	}
}

func (h *Handler) requireInternalToken(c *gin.Context) {
	token, _ := middleware.BearerFromContext(c)
	if subtle.ConstantTimeCompare([]byte(token), []byte(h.cfg.InternalToken)) != 1 {
		_ = c.Error(errutil.Unauthorized("invalid internal token", nil))
		c.Abort()
		return
	}
	c.Next()
}

// bindBody decodes a JSON body whatever its content type. Beacons sent on
// page unload arrive as text/plain or octet-stream blobs. An empty body is
// accepted when optional is true.
func bindBody(c *gin.Context, obj any, optional bool) error {
	raw, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxBeaconBody))
	if err != nil {
		return errutil.BadRequest("unreadable request body", err)
	}
	if len(raw) == 0 {
		if optional {
			return nil
		}
		return errutil.BadRequest("request body is required", nil)
	}
	if err := binding.JSON.BindBody(raw, obj); err != nil {
		return errutil.BadRequest("malformed request body", err)
	}
	return nil
}

// sessionRef resolves who is asking about which session. A request carrying
// an Authorization header is a brand webhook and must present a valid key;
// otherwise the session comes from the body or the attribution cookie.
func (h *Handler) sessionRef(c *gin.Context, sessionID string) (lead.SessionRef, error) {
	ref := lead.SessionRef{SessionID: sessionID}

	token, sent := middleware.BearerFromContext(c)
	if sent {
		key, err := h.keys.Authenticate(c.Request.Context(), token, apikey.ScopeTrackingWrite)
		if err != nil {
			return ref, err
		}
		ref.SaasID = key.SaasID
		return ref, nil
	}

	if ref.SessionID == "" {
		if cookie, err := c.Cookie(h.cfg.CookieName); err == nil {
			ref.SessionID = cookie
		}
	}
	return ref, nil
}
