package lead

import (
	"context"
	"math"
	"strings"

	"naano-tracking/pkg/db/option"
	"naano-tracking/pkg/errutil"
	"naano-tracking/pkg/metrics"
	"naano-tracking/pkg/repository"
	"naano-tracking/services/enrichment"
	"naano-tracking/services/event"
	"naano-tracking/services/link"

	"go.uber.org/zap"
)

type DwellResult struct {
	EventID    string   `json:"event_id"`
	Recorded   bool     `json:"recorded"`
	TimeOnSite float64  `json:"time_on_site"`
	Outcome    *Outcome `json:"outcome,omitempty"`
}

// ReportDwell stores the dwell time of a click once and attempts a lead when
// the stored value clears the minimum. Later reports never change the stored
// value but still retry the lead decision.
func (s *Service) ReportDwell(ctx context.Context, eventID string, seconds float64) (*DwellResult, error) {
	eventID = strings.TrimSpace(eventID)
	if eventID == "" {
		return nil, errutil.BadRequest("eventId is required", nil, errutil.WithDetail("eventId", "required"))
	}
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) || seconds < 0 {
		return nil, errutil.BadRequest("timeOnSite must be a non-negative number", nil, errutil.WithDetail("timeOnSite", "invalid"))
	}

	click, err := s.events.Get(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if click == nil || click.EventType != event.EventClick {
		return nil, errutil.NotFound("click event not found", nil)
	}

	recorded, err := s.events.SetTimeOnSite(ctx, click.ID, seconds)
	if err != nil {
		return nil, err
	}
	if recorded {
		click.TimeOnSite = &seconds
	} else if click.TimeOnSite == nil {
		click, err = s.events.Get(ctx, eventID)
		if err != nil {
			return nil, err
		}
		if click == nil {
			return nil, errutil.NotFound("click event not found", nil)
		}
	}

	res := &DwellResult{EventID: click.ID, Recorded: recorded}
	if click.TimeOnSite != nil {
		res.TimeOnSite = *click.TimeOnSite
	}

	switch {
	case res.TimeOnSite < s.cfg.MinDwellSeconds:
		metrics.DwellReportsTotal.WithLabelValues("below_minimum").Inc()
		return res, nil
	case recorded:
		metrics.DwellReportsTotal.WithLabelValues("recorded").Inc()
	default:
		metrics.DwellReportsTotal.WithLabelValues("duplicate").Inc()
	}

	res.Outcome, err = s.CreateLeadIfQualified(ctx, click)
	if err != nil {
		return nil, err
	}
	return res, nil
}

// SessionRef locates the click a brand-side call refers to. SaasID is set
// for API-key callers and restricts the search to that brand's links.
type SessionRef struct {
	SaasID    string
	SessionID string
}

func (r SessionRef) scope() []option.QueryOption {
	if r.SaasID == "" {
		return nil
	}
	return []option.QueryOption{link.ForSaas(r.SaasID)}
}

func (s *Service) clickFor(ctx context.Context, ref SessionRef) (*event.LinkEvent, error) {
	if strings.TrimSpace(ref.SessionID) == "" {
		return nil, errutil.BadRequest("session_id is required", nil, errutil.WithDetail("session_id", "required"))
	}
	click, err := s.events.MostRecentClickForSession(ctx, ref.SessionID, ref.scope()...)
	if err != nil {
		return nil, err
	}
	if click == nil {
		return nil, errutil.NotFound("no click found for session", nil)
	}
	return click, nil
}

// LeadFromSession attempts a lead for the session's most recent click.
func (s *Service) LeadFromSession(ctx context.Context, ref SessionRef) (*Outcome, error) {
	click, err := s.clickFor(ctx, ref)
	if err != nil {
		return nil, err
	}
	return s.createLead(ctx, click, attempt{source: SourceReport, requireDwell: true})
}

type SignupInput struct {
	SessionRef
	Email       string
	Company     string
	Name        string
	JobTitle    string
	LinkedinURL string
}

type SignupResult struct {
	Attribution *SignupAttribution           `json:"attribution"`
	Inference   *enrichment.CompanyInference `json:"-"`
	Outcome     *Outcome                     `json:"outcome"`
}

// ConfirmSignup records a signup reported by the brand, confirms the
// session's company attribution and creates the lead if none exists. The
// dwell gate does not apply to signups.
func (s *Service) ConfirmSignup(ctx context.Context, in SignupInput) (*SignupResult, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Company = strings.TrimSpace(in.Company)

	var details []errutil.Detail
	if strings.TrimSpace(in.SessionID) == "" {
		details = append(details, errutil.Detail{Field: "session_id", Message: "required"})
	}
	if in.Email == "" || !strings.Contains(in.Email, "@") {
		details = append(details, errutil.Detail{Field: "email", Message: "a valid email is required"})
	}
	if in.Company == "" {
		details = append(details, errutil.Detail{Field: "company", Message: "required"})
	}
	if len(details) > 0 {
		return nil, errutil.BadRequest("invalid signup", nil, errutil.WithDetails(details...))
	}

	click, err := s.clickFor(ctx, in.SessionRef)
	if err != nil {
		return nil, err
	}

	inf, err := s.inferences.Confirm(ctx, click, enrichment.Signup{Email: in.Email, Company: in.Company})
	if err != nil {
		return nil, err
	}

	signup, err := s.recordSignup(ctx, click, in, inf)
	if err != nil {
		return nil, err
	}

	outcome, err := s.createLead(ctx, click, attempt{source: SourceSignup})
	if err != nil {
		return nil, err
	}

	zap.L().Info("[Lead] signup confirmed",
		zap.String("link_event_id", click.ID),
		zap.String("company", in.Company),
		zap.Bool("lead_created", outcome.Created),
	)
	return &SignupResult{Attribution: signup, Inference: inf, Outcome: outcome}, nil
}

func (s *Service) recordSignup(ctx context.Context, click *event.LinkEvent, in SignupInput, inf *enrichment.CompanyInference) (*SignupAttribution, error) {
	row := &SignupAttribution{
		ID:            s.node.Generate().String(),
		LinkEventID:   click.ID,
		TrackedLinkID: click.TrackedLinkID,
		SessionID:     click.SessionID,
		Email:         in.Email,
		Company:       in.Company,
		Name:          in.Name,
		JobTitle:      in.JobTitle,
		LinkedinURL:   in.LinkedinURL,
	}
	if inf != nil {
		row.CompanyInferenceID = inf.ID
	}
	if err := s.signups.Create(ctx, row); err != nil {
		if !repository.IsUniqueViolation(err) {
			return nil, err
		}
		return s.signups.FindOne(ctx, &SignupAttribution{LinkEventID: click.ID, Email: in.Email})
	}
	return row, nil
}

type ConversionInput struct {
	SessionRef
	// Revenue is in major currency units.
	Revenue  float64
	Currency string
	OrderID  string
}

type ConversionResult struct {
	Conversion *event.LinkEvent
	Duplicate  bool
}

// RecordConversion stores one conversion per session. Repeats return the
// stored conversion.
func (s *Service) RecordConversion(ctx context.Context, in ConversionInput) (*ConversionResult, error) {
	if math.IsNaN(in.Revenue) || math.IsInf(in.Revenue, 0) || in.Revenue < 0 {
		return nil, errutil.BadRequest("revenue must be a non-negative number", nil, errutil.WithDetail("revenue", "invalid"))
	}

	click, err := s.clickFor(ctx, in.SessionRef)
	if err != nil {
		return nil, err
	}

	currency := strings.ToUpper(strings.TrimSpace(in.Currency))
	if currency == "" {
		currency = "EUR"
	}

	conv, created, err := s.events.RecordConversion(ctx, click, event.ConversionInput{
		RevenueCents: int64(math.Round(in.Revenue * 100)),
		Currency:     currency,
		OrderID:      in.OrderID,
	})
	if err != nil {
		return nil, err
	}
	return &ConversionResult{Conversion: conv, Duplicate: !created}, nil
}

type PageViewInput struct {
	SessionRef
	Category string
}

func (s *Service) RecordPageView(ctx context.Context, in PageViewInput) error {
	category := strings.ToLower(strings.TrimSpace(in.Category))
	if !event.PageCategories[category] {
		return errutil.BadRequest("unknown page category", nil, errutil.WithDetail("category", in.Category))
	}

	click, err := s.clickFor(ctx, in.SessionRef)
	if err != nil {
		return err
	}
	return s.events.RecordPageView(ctx, click, category)
}
