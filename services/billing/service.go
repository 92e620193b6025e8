package billing

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"naano-tracking/pkg/config"
	"naano-tracking/pkg/db/option"
	"naano-tracking/pkg/db/pagination"
	"naano-tracking/pkg/errutil"
	"naano-tracking/pkg/featureflags"
	"naano-tracking/pkg/metrics"
	"naano-tracking/pkg/repository"
	"naano-tracking/pkg/sequence"
	"naano-tracking/services/account"

	"github.com/bwmarrin/snowflake"
	"github.com/minio/minio-go/v7"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

type Outcome string

const (
	OutcomeBilled  Outcome = "billed"
	OutcomeFailed  Outcome = "failed"
	OutcomeSkipped Outcome = "skipped"
)

const (
	SkipBelowThreshold  = "below_threshold"
	SkipInvoicePending  = "invoice_pending"
	SkipBillingDisabled = "auto_billing_disabled"
)

type Config struct {
	Threshold        int64
	Currency         string
	SweepConcurrency int
	// PendingTimeout is how long an invoice may sit in pending before the
	// next run takes it over and charges it again under the same
	// idempotency key.
	PendingTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		Threshold:        10000,
		Currency:         "eur",
		SweepConcurrency: 4,
		PendingTimeout:   15 * time.Minute,
	}
}

type Result struct {
	SaasID        string  `json:"saas_id"`
	Outcome       Outcome `json:"outcome"`
	InvoiceID     string  `json:"invoice_id,omitempty"`
	InvoiceNumber string  `json:"invoice_number,omitempty"`
	Amount        int64   `json:"amount"`
	Reason        string  `json:"reason,omitempty"`
}

type SweepResult struct {
	BilledCount  int       `json:"billed_count"`
	FailedCount  int       `json:"failed_count"`
	SkippedCount int       `json:"skipped_count"`
	Results      []*Result `json:"results"`
}

type Service struct {
	db       *gorm.DB
	node     *snowflake.Node
	invoices repository.Repository[Invoice]
	accounts *account.Store
	gateway  PaymentGateway
	archiver Archiver
	sequence sequence.Generator
	flags    featureflags.FeatureFlag
	cfg      Config
	now      func() time.Time
}

type ServiceParams struct {
	fx.In
	DB       *gorm.DB
	Node     *snowflake.Node
	Accounts *account.Store
	Gateway  PaymentGateway
	Config   *config.Config           `optional:"true"`
	Sequence sequence.Generator       `optional:"true"`
	Flags    featureflags.FeatureFlag `optional:"true"`
	Minio    *minio.Client            `optional:"true"`
}

func NewService(p ServiceParams) *Service {
	cfg := DefaultConfig()
	var archiver Archiver
	if p.Config != nil {
		if p.Config.Billing.Threshold > 0 {
			cfg.Threshold = p.Config.Billing.Threshold
		}
		if p.Config.Billing.Currency != "" {
			cfg.Currency = p.Config.Billing.Currency
		}
		if p.Config.Billing.SweepConcurrency > 0 {
			cfg.SweepConcurrency = p.Config.Billing.SweepConcurrency
		}
		if p.Config.Billing.PendingTimeout > 0 {
			cfg.PendingTimeout = p.Config.Billing.PendingTimeout
		}
		if p.Minio != nil {
			archiver = NewMinioArchiver(p.Minio, p.Config.Minio.BucketName)
		}
	}

	return &Service{
		db:       p.DB,
		node:     p.Node,
		invoices: repository.ProvideStore[Invoice](p.DB),
		accounts: p.Accounts,
		gateway:  p.Gateway,
		archiver: archiver,
		sequence: p.Sequence,
		flags:    p.Flags,
		cfg:      cfg,
		now:      time.Now,
	}
}

func NewGateway(c *config.Config) PaymentGateway {
	if c.Stripe.SecretKey == "" {
		zap.L().Warn("[Billing] stripe not configured, charges will fail")
		return unconfiguredGateway{}
	}
	return NewStripeGateway(c.Stripe.SecretKey)
}

// CheckShouldBill reports whether the brand's debt reached the threshold.
func (s *Service) CheckShouldBill(ctx context.Context, saasID string) (bool, error) {
	saas, err := s.accounts.Saas(ctx, saasID)
	if err != nil {
		return false, err
	}
	if saas == nil {
		return false, errutil.NotFound("saas company not found", nil)
	}
	return saas.CurrentDebt >= s.cfg.Threshold, nil
}

// BillBrand invoices the brand's current debt and charges its stored payment
// method. A failed charge leaves the debt in place for the next attempt.
func (s *Service) BillBrand(ctx context.Context, saasID string) (*Result, error) {
	saas, err := s.accounts.Saas(ctx, saasID)
	if err != nil {
		return nil, err
	}
	if saas == nil {
		return nil, errutil.NotFound("saas company not found", nil)
	}

	res := &Result{SaasID: saasID, Amount: saas.CurrentDebt}
	if saas.CurrentDebt < s.cfg.Threshold {
		return s.skip(res, SkipBelowThreshold), nil
	}
	if s.flags != nil && !s.flags.IsEnabled(ctx, featureflags.AutoBilling, saasID) {
		return s.skip(res, SkipBillingDisabled), nil
	}

	pending, err := s.invoices.FindOne(ctx, &Invoice{SaasID: saasID, Status: InvoicePending})
	if err != nil {
		return nil, err
	}
	if pending != nil {
		return s.resumePending(ctx, saas, pending, res)
	}

	inv := &Invoice{
		ID:       s.node.Generate().String(),
		Number:   s.nextNumber(ctx),
		SaasID:   saasID,
		Amount:   saas.CurrentDebt,
		Currency: s.cfg.Currency,
		Status:   InvoicePending,
	}
	if err := s.invoices.Create(ctx, inv); err != nil {
		if repository.IsUniqueViolation(err) {
			return s.skip(res, SkipInvoicePending), nil
		}
		return nil, err
	}

	return s.settle(ctx, saas, inv, res)
}

// resumePending charges an invoice left in pending by an interrupted run. A
// recent pending invoice is assumed to be in flight and is skipped.
func (s *Service) resumePending(ctx context.Context, saas *account.SaasCompany, inv *Invoice, res *Result) (*Result, error) {
	cutoff := s.now().Add(-s.cfg.PendingTimeout)
	if inv.UpdatedAt.After(cutoff) {
		return s.skip(res, SkipInvoicePending), nil
	}

	// Claim the row so concurrent runs do not both resume it.
	claim := s.db.WithContext(ctx).Model(&Invoice{}).
		Where("id = ? AND status = ? AND updated_at <= ?", inv.ID, InvoicePending, cutoff).
		Update("updated_at", s.now())
	if claim.Error != nil {
		return nil, claim.Error
	}
	if claim.RowsAffected == 0 {
		return s.skip(res, SkipInvoicePending), nil
	}

	zap.L().Warn("[Billing] resuming stale pending invoice",
		zap.String("saas_id", inv.SaasID),
		zap.String("invoice", inv.Number),
		zap.Time("updated_at", inv.UpdatedAt),
	)
	res.Amount = inv.Amount
	return s.settle(ctx, saas, inv, res)
}

// settle charges a pending invoice and records the outcome on it.
func (s *Service) settle(ctx context.Context, saas *account.SaasCompany, inv *Invoice, res *Result) (*Result, error) {
	res.InvoiceID = inv.ID
	res.InvoiceNumber = inv.Number

	charge, chargeErr := s.charge(ctx, saas, inv)
	if chargeErr != nil {
		if err := s.markFailed(ctx, inv, chargeErr); err != nil {
			return nil, err
		}
		res.Outcome = OutcomeFailed
		res.Reason = inv.FailureReason
		zap.L().Warn("[Billing] charge failed",
			zap.String("saas_id", inv.SaasID),
			zap.String("invoice", inv.Number),
			zap.Int64("amount", inv.Amount),
			zap.Error(chargeErr),
		)
	} else {
		if err := s.markPaid(ctx, inv, charge); err != nil {
			if errors.Is(err, errInvoiceSettled) {
				return s.skip(res, SkipInvoicePending), nil
			}
			return nil, err
		}
		res.Outcome = OutcomeBilled
		zap.L().Info("[Billing] invoice paid",
			zap.String("saas_id", inv.SaasID),
			zap.String("invoice", inv.Number),
			zap.Int64("amount", inv.Amount),
		)
	}

	s.archive(ctx, inv)
	metrics.BillingOutcomes.WithLabelValues(string(res.Outcome)).Inc()
	return res, nil
}

func (s *Service) skip(res *Result, reason string) *Result {
	res.Outcome = OutcomeSkipped
	res.Reason = reason
	metrics.BillingOutcomes.WithLabelValues(string(OutcomeSkipped)).Inc()
	return res
}

func (s *Service) charge(ctx context.Context, saas *account.SaasCompany, inv *Invoice) (*ChargeResult, error) {
	if saas.StripeCustomerID == "" || saas.DefaultPaymentMethodID == "" {
		return nil, ErrNoPaymentMethod
	}
	return s.gateway.Charge(ctx, ChargeRequest{
		CustomerID:      saas.StripeCustomerID,
		PaymentMethodID: saas.DefaultPaymentMethodID,
		Amount:          inv.Amount,
		Currency:        inv.Currency,
		InvoiceNumber:   inv.Number,
		IdempotencyKey:  "invoice-" + inv.ID,
	})
}

func (s *Service) markFailed(ctx context.Context, inv *Invoice, cause error) error {
	reason := cause.Error()
	var ce *ChargeError
	switch {
	case errors.Is(cause, ErrNoPaymentMethod):
		reason = "no_payment_method"
	case errors.As(cause, &ce):
		reason = ce.Code
	}

	err := s.db.WithContext(ctx).Model(&Invoice{}).
		Where("id = ? AND status = ?", inv.ID, InvoicePending).
		Updates(map[string]any{
			"status":         InvoiceFailed,
			"failure_reason": reason,
		}).Error
	if err != nil {
		return err
	}
	inv.Status = InvoiceFailed
	inv.FailureReason = reason
	return nil
}

// markPaid settles the invoice and takes its amount off the brand's debt in
// one transaction.
func (s *Service) markPaid(ctx context.Context, inv *Invoice, charge *ChargeResult) error {
	now := s.now().UTC()
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		updates := map[string]any{
			"status":  InvoicePaid,
			"paid_at": now,
		}
		if charge != nil {
			updates["payment_intent_id"] = charge.PaymentIntentID
			inv.PaymentIntentID = charge.PaymentIntentID
		}
		// Only the run that moves the invoice out of pending settles the debt.
		moved := tx.Model(&Invoice{}).
			Where("id = ? AND status = ?", inv.ID, InvoicePending).
			Updates(updates)
		if moved.Error != nil {
			return moved.Error
		}
		if moved.RowsAffected == 0 {
			return errInvoiceSettled
		}
		if err := s.accounts.WithTrx(tx).SettleDebt(ctx, inv.SaasID, inv.Amount, now); err != nil {
			return err
		}
		inv.Status = InvoicePaid
		inv.PaidAt = &now
		return nil
	})
}

var errInvoiceSettled = errors.New("invoice already left pending")

func (s *Service) archive(ctx context.Context, inv *Invoice) {
	if s.archiver == nil {
		return
	}
	key, err := s.archiver.Archive(ctx, inv)
	if err != nil {
		zap.L().Warn("[Billing] failed to archive invoice", zap.String("invoice", inv.Number), zap.Error(err))
		return
	}
	inv.ArchiveKey = key
	if err := s.invoices.Update(ctx, inv.ID, map[string]any{"archive_key": key}); err != nil {
		zap.L().Warn("[Billing] failed to record archive key", zap.String("invoice", inv.Number), zap.Error(err))
	}
}

func (s *Service) nextNumber(ctx context.Context) string {
	if s.sequence != nil {
		number, err := s.sequence.NextInvoiceNumber(ctx)
		if err == nil {
			return number
		}
		zap.L().Warn("[Billing] invoice sequence unavailable", zap.Error(err))
	}
	day := s.now().UTC().Format("060102")
	return fmt.Sprintf("INV-%s-%s", day, strings.ToUpper(strconv.FormatInt(s.node.Generate().Int64(), 36)))
}

// Sweep bills every brand at or above the threshold. Each brand is billed
// independently; one failure never stops the others.
func (s *Service) Sweep(ctx context.Context) (*SweepResult, error) {
	brands, err := s.accounts.SaasWithDebtAtLeast(ctx, s.cfg.Threshold)
	if err != nil {
		return nil, err
	}

	results := make([]*Result, len(brands))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.SweepConcurrency)
	for i, brand := range brands {
		g.Go(func() error {
			res, err := s.BillBrand(gctx, brand.ID)
			if err != nil {
				zap.L().Error("[Billing] brand billing errored", zap.String("saas_id", brand.ID), zap.Error(err))
				res = &Result{SaasID: brand.ID, Outcome: OutcomeFailed, Amount: brand.CurrentDebt, Reason: err.Error()}
			}
			results[i] = res
			return nil
		})
	}
	_ = g.Wait()

	out := &SweepResult{Results: results}
	for _, r := range results {
		switch r.Outcome {
		case OutcomeBilled:
			out.BilledCount++
		case OutcomeFailed:
			out.FailedCount++
		default:
			out.SkippedCount++
		}
	}
	return out, nil
}

// ListInvoices pages through a brand's invoices, newest first.
func (s *Service) ListInvoices(ctx context.Context, saasID string, page pagination.Pagination) ([]*Invoice, *pagination.PageInfo, error) {
	rows, err := s.invoices.Find(ctx, &Invoice{SaasID: saasID}, option.ApplyPagination(page))
	if err != nil {
		return nil, nil, err
	}
	data, info := pagination.Page(rows, page.Limit, func(inv *Invoice) (time.Time, string) {
		return inv.CreatedAt, inv.ID
	})
	return data, info, nil
}
