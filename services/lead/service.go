package lead

import (
	"context"
	"errors"

	"naano-tracking/pkg/config"
	"naano-tracking/pkg/db/option"
	"naano-tracking/pkg/errutil"
	"naano-tracking/pkg/metrics"
	"naano-tracking/pkg/repository"
	"naano-tracking/pkg/task"
	"naano-tracking/services/account"
	"naano-tracking/services/billing"
	"naano-tracking/services/enrichment"
	"naano-tracking/services/event"
	"naano-tracking/services/link"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	SkipDwellNotReported   = "dwell_not_reported"
	SkipDwellBelowMinimum  = "dwell_below_minimum"
	SkipPolicyRejected     = "policy_rejected"
	SkipInsufficientCredit = "insufficient_credits"
)

// errLeadExists aborts a transaction that lost the race for a session's lead.
var errLeadExists = errors.New("lead already exists")

// Monitor decides whether a brand's debt should be billed now.
type Monitor interface {
	CheckShouldBill(ctx context.Context, saasID string) (bool, error)
}

type Config struct {
	MinDwellSeconds float64
	Pricing         Pricing
	Policy          string
}

func DefaultConfig() Config {
	return Config{
		MinDwellSeconds: 3,
		Pricing:         DefaultPricing(),
		Policy:          DefaultPolicy,
	}
}

// Outcome is the result of one lead attempt. A nil Lead with a SkipReason is
// a policy skip, not a failure.
type Outcome struct {
	Lead       *Lead  `json:"lead"`
	Created    bool   `json:"created"`
	Duplicate  bool   `json:"duplicate"`
	SkipReason string `json:"skip_reason,omitempty"`
	ShouldBill bool   `json:"should_bill"`
}

type Service struct {
	db         *gorm.DB
	node       *snowflake.Node
	leads      repository.Repository[Lead]
	signups    repository.Repository[SignupAttribution]
	events     *event.Store
	links      *link.Service
	accounts   *account.Store
	inferences *enrichment.Store
	monitor    Monitor
	enqueuer   task.Enqueuer
	qualifier  *Qualifier
	cfg        Config
}

type ServiceParams struct {
	fx.In
	DB         *gorm.DB
	Node       *snowflake.Node
	Events     *event.Store
	Links      *link.Service
	Accounts   *account.Store
	Inferences *enrichment.Store
	Monitor    Monitor        `optional:"true"`
	Enqueuer   task.Enqueuer  `optional:"true"`
	Config     *config.Config `optional:"true"`
	Overrides  *Config        `optional:"true"`
}

func NewService(p ServiceParams) (*Service, error) {
	cfg := DefaultConfig()
	if p.Config != nil {
		if p.Config.Qualification.MinDwellSeconds > 0 {
			cfg.MinDwellSeconds = p.Config.Qualification.MinDwellSeconds
		}
		if p.Config.Qualification.Policy != "" {
			cfg.Policy = p.Config.Qualification.Policy
		}
		cfg.Pricing = pricingFromConfig(p.Config)
	}
	if p.Overrides != nil {
		cfg = *p.Overrides
	}

	qualifier, err := NewQualifier(cfg.Policy)
	if err != nil {
		return nil, err
	}

	return &Service{
		db:         p.DB,
		node:       p.Node,
		leads:      repository.ProvideStore[Lead](p.DB),
		signups:    repository.ProvideStore[SignupAttribution](p.DB),
		events:     p.Events,
		links:      p.Links,
		accounts:   p.Accounts,
		inferences: p.Inferences,
		monitor:    p.Monitor,
		enqueuer:   p.Enqueuer,
		qualifier:  qualifier,
		cfg:        cfg,
	}, nil
}

type attempt struct {
	source       Source
	requireDwell bool
}

// CreateLeadIfQualified turns a click into a lead when it passes the dwell
// gate, the traffic policy and the brand's credit check.
func (s *Service) CreateLeadIfQualified(ctx context.Context, click *event.LinkEvent) (*Outcome, error) {
	return s.createLead(ctx, click, attempt{source: SourceDwell, requireDwell: true})
}

func (s *Service) createLead(ctx context.Context, click *event.LinkEvent, a attempt) (*Outcome, error) {
	if click == nil || click.EventType != event.EventClick {
		return nil, errutil.BadRequest("lead requires a click event", nil)
	}

	attr, err := s.links.ByID(ctx, click.TrackedLinkID)
	if err != nil {
		return nil, err
	}
	if attr == nil {
		return nil, errutil.NotFound("tracked link not found", nil)
	}

	inf, err := s.inferences.ForEvent(ctx, click.ID)
	if err != nil {
		return nil, err
	}
	qualified, err := s.qualifier.Qualify(FactsFor(click, inf))
	if err != nil {
		return nil, err
	}

	out := &Outcome{}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		leads := s.leads.WithTrx(tx)

		existing, err := leads.FindOne(ctx, &Lead{
			TrackedLinkID: attr.TrackedLinkID,
			CreatorID:     attr.CreatorID,
			SaasID:        attr.SaasID,
			SessionID:     click.SessionID,
			Status:        StatusValidated,
		})
		if err != nil {
			return err
		}
		if existing != nil {
			out.Lead, out.Duplicate = existing, true
			return nil
		}

		// A reported short dwell blocks every source; only signup may proceed
		// without a report.
		switch {
		case click.TimeOnSite != nil && *click.TimeOnSite < s.cfg.MinDwellSeconds:
			out.SkipReason = SkipDwellBelowMinimum
			return nil
		case click.TimeOnSite == nil && a.requireDwell:
			out.SkipReason = SkipDwellNotReported
			return nil
		}
		if !qualified {
			out.SkipReason = SkipPolicyRejected
			return nil
		}

		accounts := s.accounts.WithTrx(tx)
		saas, err := accounts.Saas(ctx, attr.SaasID, option.WithLockingUpdate())
		if err != nil {
			return err
		}
		if saas == nil {
			return errutil.NotFound("saas company not found", nil)
		}

		ok, err := accounts.ConsumeLeadCredit(ctx, saas.ID)
		if err != nil {
			return err
		}
		if !ok {
			out.SkipReason = SkipInsufficientCredit
			return nil
		}

		quote := s.cfg.Pricing.Quote(saas.Plan)
		leadEvent := &event.LinkEvent{
			TrackedLinkID: click.TrackedLinkID,
			EventType:     event.EventLead,
			SessionID:     click.SessionID,
			IPAddress:     click.IPAddress,
			UserAgent:     click.UserAgent,
			Referrer:      click.Referrer,
			DeviceType:    click.DeviceType,
			OS:            click.OS,
			Browser:       click.Browser,
			NetworkType:   click.NetworkType,
			Country:       click.Country,
		}
		if err := s.events.WithTrx(tx).LogEvent(ctx, leadEvent); err != nil {
			if repository.IsUniqueViolation(err) {
				return errLeadExists
			}
			return err
		}

		row := &Lead{
			ID:              s.node.Generate().String(),
			TrackedLinkID:   attr.TrackedLinkID,
			CreatorID:       attr.CreatorID,
			SaasID:          attr.SaasID,
			SessionID:       click.SessionID,
			ClickEventID:    click.ID,
			LeadEventID:     leadEvent.ID,
			SaasPlan:        string(quote.Plan),
			LeadValue:       quote.LeadValue,
			CreatorEarnings: quote.CreatorEarnings,
			NaanoMarginBrut: quote.Margin,
			Status:          StatusValidated,
			Source:          a.source,
		}
		if inf != nil {
			row.CompanyInferenceID = &inf.ID
		}
		if err := leads.Create(ctx, row); err != nil {
			if repository.IsUniqueViolation(err) {
				return errLeadExists
			}
			return err
		}

		if err := accounts.CreditWallet(ctx, attr.CreatorID, quote.CreatorEarnings); err != nil {
			return err
		}
		if err := accounts.IncrementDebt(ctx, attr.SaasID, quote.LeadValue); err != nil {
			return err
		}

		out.Lead, out.Created = row, true
		return nil
	})

	switch {
	case errors.Is(err, errLeadExists):
		existing, ferr := s.validatedLead(ctx, attr, click.SessionID)
		if ferr != nil {
			return nil, ferr
		}
		out = &Outcome{Lead: existing, Duplicate: existing != nil}
	case err != nil:
		zap.L().Error("[Lead] lead creation failed",
			zap.String("link_event_id", click.ID),
			zap.String("saas_id", attr.SaasID),
			zap.Error(err),
		)
		return nil, err
	}

	s.observe(ctx, click, out)
	return out, nil
}

func (s *Service) validatedLead(ctx context.Context, attr *link.Attribution, sessionID string) (*Lead, error) {
	return s.leads.FindOne(ctx, &Lead{
		TrackedLinkID: attr.TrackedLinkID,
		CreatorID:     attr.CreatorID,
		SaasID:        attr.SaasID,
		SessionID:     sessionID,
		Status:        StatusValidated,
	})
}

// observe records the outcome and, for a new lead, asks the billing monitor
// whether the brand crossed its threshold. Monitor errors are logged only.
func (s *Service) observe(ctx context.Context, click *event.LinkEvent, out *Outcome) {
	switch {
	case out.Created:
		metrics.LeadsTotal.WithLabelValues("created", "").Inc()
	case out.Duplicate:
		metrics.LeadsTotal.WithLabelValues("duplicate", "").Inc()
		return
	default:
		metrics.LeadsTotal.WithLabelValues("skipped", out.SkipReason).Inc()
		zap.L().Debug("[Lead] lead skipped",
			zap.String("link_event_id", click.ID),
			zap.String("reason", out.SkipReason),
		)
		return
	}

	zap.L().Info("[Lead] lead created",
		zap.String("lead_id", out.Lead.ID),
		zap.String("saas_id", out.Lead.SaasID),
		zap.String("creator_id", out.Lead.CreatorID),
		zap.Int64("lead_value", out.Lead.LeadValue),
	)

	if s.monitor == nil {
		return
	}
	shouldBill, err := s.monitor.CheckShouldBill(ctx, out.Lead.SaasID)
	if err != nil {
		zap.L().Warn("[Lead] billing check failed", zap.String("saas_id", out.Lead.SaasID), zap.Error(err))
		return
	}
	out.ShouldBill = shouldBill
	if shouldBill {
		billing.ScheduleCheck(context.WithoutCancel(ctx), s.enqueuer, out.Lead.SaasID)
	}
}

// ForSession returns the validated lead of a click's session, if any.
func (s *Service) ForSession(ctx context.Context, click *event.LinkEvent) (*Lead, error) {
	attr, err := s.links.ByID(ctx, click.TrackedLinkID)
	if err != nil || attr == nil {
		return nil, err
	}
	return s.validatedLead(ctx, attr, click.SessionID)
}

func (s *Service) MinDwellSeconds() float64 {
	return s.cfg.MinDwellSeconds
}
