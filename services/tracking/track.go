package tracking

import (
	"net/http"
	"strings"

	"naano-tracking/pkg/errutil"
	"naano-tracking/services/lead"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type dwellRequest struct {
	EventID       string   `json:"eventId"`
	EventIDAlt    string   `json:"event_id"`
	TimeOnSite    *float64 `json:"timeOnSite"`
	TimeOnSiteAlt *float64 `json:"time_on_site"`
}

func (r dwellRequest) normalize() (string, *float64) {
	id := strings.TrimSpace(r.EventID)
	if id == "" {
		id = strings.TrimSpace(r.EventIDAlt)
	}
	seconds := r.TimeOnSite
	if seconds == nil {
		seconds = r.TimeOnSiteAlt
	}
	return id, seconds
}

// ReportDwell handles the dwell-time beacon.
func (h *Handler) ReportDwell(c *gin.Context) {
	var req dwellRequest
	if err := bindBody(c, &req, false); err != nil {
		_ = c.Error(err)
		return
	}
	eventID, seconds := req.normalize()
	if eventID == "" || seconds == nil {
		_ = c.Error(errutil.BadRequest("eventId and timeOnSite are required", nil,
			errutil.WithDetail("eventId", "required"),
			errutil.WithDetail("timeOnSite", "required"),
		))
		return
	}

	ctx := c.Request.Context()
	res, err := h.leads.ReportDwell(ctx, eventID, *seconds)
	if err != nil {
		_ = c.Error(err)
		return
	}
	if res.Recorded {
		// Re-run enrichment now that dwell time is known so the visit gets scored.
		h.clicks.ScheduleEnrichment(ctx, eventID)
	}

	body := gin.H{
		"success":      true,
		"recorded":     res.Recorded,
		"time_on_site": res.TimeOnSite,
		"lead":         nil,
		"should_bill":  false,
	}
	if res.Outcome != nil {
		body["lead"] = res.Outcome.Lead
		body["should_bill"] = res.Outcome.ShouldBill
		if res.Outcome.SkipReason != "" {
			body["skip_reason"] = res.Outcome.SkipReason
		}
	}
	c.JSON(http.StatusOK, body)
}

type leadRequest struct {
	SessionID string `json:"session_id"`
}

// Lead reports a lead for a session, either from the brand's backend with an
// API key or from the pixel with the attribution cookie.
func (h *Handler) Lead(c *gin.Context) {
	var req leadRequest
	if err := bindBody(c, &req, true); err != nil {
		_ = c.Error(err)
		return
	}
	ref, err := h.sessionRef(c, req.SessionID)
	if err != nil {
		_ = c.Error(err)
		return
	}

	out, err := h.leads.LeadFromSession(c.Request.Context(), ref)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, outcomeBody(out))
}

func outcomeBody(out *lead.Outcome) gin.H {
	body := gin.H{
		"success":     true,
		"lead":        out.Lead,
		"duplicate":   out.Duplicate,
		"should_bill": out.ShouldBill,
	}
	if out.SkipReason != "" {
		body["skip_reason"] = out.SkipReason
	}
	return body
}

type enrichRequest struct {
	EventID    string `json:"eventId"`
	EventIDAlt string `json:"event_id"`
}

// Enrich runs enrichment for a click. Lookup failures never change the
// response status.
func (h *Handler) Enrich(c *gin.Context) {
	var req enrichRequest
	if err := bindBody(c, &req, false); err != nil {
		_ = c.Error(err)
		return
	}
	id := strings.TrimSpace(req.EventID)
	if id == "" {
		id = strings.TrimSpace(req.EventIDAlt)
	}
	if id == "" {
		_ = c.Error(errutil.BadRequest("eventId is required", nil, errutil.WithDetail("eventId", "required")))
		return
	}

	body := gin.H{"success": true, "enriched": false}
	if h.enricher == nil {
		c.JSON(http.StatusOK, body)
		return
	}

	res, err := h.enricher.Enrich(c.Request.Context(), id)
	if err != nil {
		zap.L().Warn("enrichment failed", zap.String("link_event_id", id), zap.Error(err))
		c.JSON(http.StatusOK, body)
		return
	}
	body["enriched"] = true
	body["network_type"] = res.NetworkType
	body["device_type"] = res.Device.DeviceType
	body["company_inferred"] = res.CompanyInference != nil
	c.JSON(http.StatusOK, body)
}

type signupRequest struct {
	SessionID   string `json:"session_id"`
	Email       string `json:"email"`
	Company     string `json:"company"`
	Name        string `json:"name"`
	JobTitle    string `json:"job_title"`
	LinkedinURL string `json:"linkedin_url"`
}

func (h *Handler) Signup(c *gin.Context) {
	var req signupRequest
	if err := bindBody(c, &req, false); err != nil {
		_ = c.Error(err)
		return
	}
	ref, err := h.sessionRef(c, req.SessionID)
	if err != nil {
		_ = c.Error(err)
		return
	}

	res, err := h.leads.ConfirmSignup(c.Request.Context(), lead.SignupInput{
		SessionRef:  ref,
		Email:       req.Email,
		Company:     req.Company,
		Name:        req.Name,
		JobTitle:    req.JobTitle,
		LinkedinURL: req.LinkedinURL,
	})
	if err != nil {
		_ = c.Error(err)
		return
	}

	body := outcomeBody(res.Outcome)
	body["signup_id"] = res.Attribution.ID
	if res.Inference != nil {
		body["company_inference_id"] = res.Inference.ID
		body["attribution_state"] = res.Inference.AttributionState
	}
	c.JSON(http.StatusOK, body)
}

type conversionRequest struct {
	SessionID string  `json:"session_id"`
	Revenue   float64 `json:"revenue"`
	Currency  string  `json:"currency"`
	OrderID   string  `json:"order_id"`
}

func (h *Handler) Conversion(c *gin.Context) {
	var req conversionRequest
	if err := bindBody(c, &req, false); err != nil {
		_ = c.Error(err)
		return
	}
	ref, err := h.sessionRef(c, req.SessionID)
	if err != nil {
		_ = c.Error(err)
		return
	}

	res, err := h.leads.RecordConversion(c.Request.Context(), lead.ConversionInput{
		SessionRef: ref,
		Revenue:    req.Revenue,
		Currency:   req.Currency,
		OrderID:    req.OrderID,
	})
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":       true,
		"conversion_id": res.Conversion.ID,
		"duplicate":     res.Duplicate,
	})
}

type pageViewRequest struct {
	SessionID string `json:"session_id"`
	Category  string `json:"category"`
}

func (h *Handler) PageView(c *gin.Context) {
	var req pageViewRequest
	if err := bindBody(c, &req, false); err != nil {
		_ = c.Error(err)
		return
	}
	ref, err := h.sessionRef(c, req.SessionID)
	if err != nil {
		_ = c.Error(err)
		return
	}

	if err := h.leads.RecordPageView(c.Request.Context(), lead.PageViewInput{SessionRef: ref, Category: req.Category}); err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
