package account

import (
	"context"
	"time"

	"naano-tracking/pkg/db/option"
	"naano-tracking/pkg/repository"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store holds the wallet and debt counters. Every balance change is a
// server-side increment so concurrent leads never lose updates.
type Store struct {
	db            *gorm.DB
	saas          repository.Repository[SaasCompany]
	collaboration repository.Repository[Collaboration]
	creator       repository.Repository[CreatorProfile]
	wallet        repository.Repository[CreatorWallet]
}

func NewStore(db *gorm.DB) *Store {
	return &Store{
		db:            db,
		saas:          repository.ProvideStore[SaasCompany](db),
		collaboration: repository.ProvideStore[Collaboration](db),
		creator:       repository.ProvideStore[CreatorProfile](db),
		wallet:        repository.ProvideStore[CreatorWallet](db),
	}
}

func (s *Store) WithTrx(tx *gorm.DB) *Store {
	if tx == nil {
		return s
	}
	return NewStore(tx)
}

func (s *Store) DB() *gorm.DB {
	return s.db
}

func (s *Store) Saas(ctx context.Context, saasID string, opts ...option.QueryOption) (*SaasCompany, error) {
	return s.saas.FindOne(ctx, &SaasCompany{ID: saasID}, opts...)
}

func (s *Store) Collaboration(ctx context.Context, collaborationID string) (*Collaboration, error) {
	return s.collaboration.FindOne(ctx, &Collaboration{ID: collaborationID})
}

func (s *Store) Wallet(ctx context.Context, creatorID string) (*CreatorWallet, error) {
	return s.wallet.FindOne(ctx, &CreatorWallet{CreatorID: creatorID})
}

// ConsumeLeadCredit takes one credit from a metered brand. It reports false
// when the brand has no credit left. Unmetered brands always succeed.
func (s *Store) ConsumeLeadCredit(ctx context.Context, saasID string) (bool, error) {
	res := s.db.WithContext(ctx).
		Model(&SaasCompany{}).
		Where("id = ? AND lead_credits_remaining IS NOT NULL AND lead_credits_remaining > 0", saasID).
		Update("lead_credits_remaining", gorm.Expr("lead_credits_remaining - 1"))
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 1 {
		return true, nil
	}

	var unmetered int64
	err := s.db.WithContext(ctx).
		Model(&SaasCompany{}).
		Where("id = ? AND lead_credits_remaining IS NULL", saasID).
		Count(&unmetered).Error
	return unmetered == 1, err
}

func (s *Store) IncrementDebt(ctx context.Context, saasID string, amount int64) error {
	return s.db.WithContext(ctx).
		Model(&SaasCompany{}).
		Where("id = ?", saasID).
		Updates(map[string]any{
			"current_debt": gorm.Expr("current_debt + ?", amount),
			"updated_at":   time.Now(),
		}).Error
}

// SettleDebt removes an invoiced amount. Debt accrued while the charge was in
// flight stays on the brand.
func (s *Store) SettleDebt(ctx context.Context, saasID string, amount int64, billedAt time.Time) error {
	return s.db.WithContext(ctx).
		Model(&SaasCompany{}).
		Where("id = ?", saasID).
		Updates(map[string]any{
			"current_debt":   gorm.Expr("current_debt - ?", amount),
			"last_billed_at": billedAt,
			"updated_at":     time.Now(),
		}).Error
}

func (s *Store) CreditWallet(ctx context.Context, creatorID string, amount int64) error {
	db := s.db.WithContext(ctx)
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).
		Create(&CreatorWallet{CreatorID: creatorID}).Error; err != nil {
		return err
	}

	return db.Model(&CreatorWallet{}).
		Where("creator_id = ?", creatorID).
		Updates(map[string]any{
			"pending_balance": gorm.Expr("pending_balance + ?", amount),
			"updated_at":      time.Now(),
		}).Error
}

func (s *Store) SaasWithDebtAtLeast(ctx context.Context, threshold int64) ([]*SaasCompany, error) {
	return s.saas.Find(ctx, &SaasCompany{},
		option.ApplyOperator(option.Condition{Field: "current_debt", Operator: option.GTE, Value: threshold}),
		option.WithSortBy(option.QuerySortBy{SortBy: "current_debt", OrderBy: "desc", Allow: map[string]bool{"current_debt": true}}),
	)
}

func (s *Store) SetPlan(ctx context.Context, saasID string, plan Plan) error {
	return s.saas.Update(ctx, saasID, map[string]any{"plan": plan})
}
