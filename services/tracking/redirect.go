package tracking

import (
	"net/http"
	"net/url"
	"strings"

	"naano-tracking/pkg/metrics"
	"naano-tracking/services/enrichment"
	"naano-tracking/services/event"
	"naano-tracking/services/link"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	sessionQueryParam = "sid"
	eventParam        = "naano_event"
	maxSessionLength  = 128
)

// Redirect resolves a tracked link and sends the visitor on. Nothing in this
// path may fail the visitor: unknown hashes and bad destinations land on the
// default page, and the click is logged after the response is decided.
func (h *Handler) Redirect(c *gin.Context) {
	ctx := c.Request.Context()

	attr, err := h.links.Resolve(ctx, c.Param("hash"))
	if err != nil {
		metrics.RedirectsTotal.WithLabelValues("unknown_hash").Inc()
		h.redirect(c, h.cfg.DefaultRedirectURL)
		return
	}

	sessionID := h.sessionID(c)
	ua := c.Request.UserAgent()
	device := enrichment.ParseUserAgent(ua)
	click := &event.LinkEvent{
		ID:            h.events.NewID(),
		TrackedLinkID: attr.TrackedLinkID,
		EventType:     event.EventClick,
		SessionID:     sessionID,
		IPAddress:     c.ClientIP(),
		UserAgent:     ua,
		Referrer:      c.Request.Referer(),
		DeviceType:    device.DeviceType,
		OS:            device.OS,
		Browser:       device.Browser,
	}

	destination, err := link.BuildDestination(attr, sessionID)
	if err != nil {
		zap.L().Warn("invalid destination for tracked link",
			zap.String("hash", attr.Hash),
			zap.String("destination", attr.DestinationURL),
			zap.Error(err),
		)
		metrics.RedirectsTotal.WithLabelValues("invalid_destination").Inc()
		h.redirect(c, h.cfg.DefaultRedirectURL)
		return
	}
	destination = withEventID(destination, click.ID)

	h.setSessionCookie(c, sessionID)
	metrics.RedirectsTotal.WithLabelValues("resolved").Inc()
	h.redirect(c, destination)

	h.clicks.Log(ctx, click)
}

func (h *Handler) redirect(c *gin.Context, location string) {
	c.Header("Cache-Control", "no-store")
	c.Redirect(http.StatusFound, location)
}

// sessionID prefers a client supplied id, then the attribution cookie, and
// mints a new one otherwise.
func (h *Handler) sessionID(c *gin.Context) string {
	if sid := cleanSessionID(c.Query(sessionQueryParam)); sid != "" {
		return sid
	}
	if cookie, err := c.Cookie(h.cfg.CookieName); err == nil {
		if sid := cleanSessionID(cookie); sid != "" {
			return sid
		}
	}
	return h.events.NewID()
}

func cleanSessionID(raw string) string {
	sid := strings.TrimSpace(raw)
	if len(sid) > maxSessionLength {
		return ""
	}
	return sid
}

func (h *Handler) setSessionCookie(c *gin.Context, sessionID string) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     h.cfg.CookieName,
		Value:    sessionID,
		Path:     "/",
		Domain:   h.cfg.CookieDomain,
		MaxAge:   int(h.cfg.CookieMaxAge.Seconds()),
		Secure:   true,
		HttpOnly: true,
		SameSite: http.SameSiteNoneMode,
	})
}

// withEventID hands the click id to the brand page so its dwell beacon can
// reference it.
func withEventID(destination, eventID string) string {
	u, err := url.Parse(destination)
	if err != nil {
		return destination
	}
	q := url.Values{}
	q.Set(eventParam, eventID)
	if u.RawQuery == "" {
		u.RawQuery = q.Encode()
	} else {
		u.RawQuery += "&" + q.Encode()
	}
	return u.String()
}
