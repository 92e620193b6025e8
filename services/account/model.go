package account

import "time"

// Plan is the brand's subscription tier. Lead prices decrease as tiers go up.
type Plan string

const (
	PlanStarter Plan = "starter"
	PlanGrowth  Plan = "growth"
	PlanScale   Plan = "scale"
)

// Collaboration links one creator to one brand. Rows are owned by the
// marketplace CRUD; this service only reads them.
type Collaboration struct {
	ID        string    `gorm:"column:id;primaryKey"`
	CreatorID string    `gorm:"column:creator_id;not null;index"`
	SaasID    string    `gorm:"column:saas_id;not null;index"`
	Status    string    `gorm:"column:status;default:'active'"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

type CreatorProfile struct {
	ID          string    `gorm:"column:id;primaryKey"`
	DisplayName string    `gorm:"column:display_name"`
	LinkedinURL string    `gorm:"column:linkedin_url"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
}

type SaasCompany struct {
	ID      string `gorm:"column:id;primaryKey"`
	Name    string `gorm:"column:name"`
	Website string `gorm:"column:website"`
	Plan    Plan   `gorm:"column:plan;not null;default:'starter'"`
	// LeadCredits is nil for unmetered brands.
	LeadCredits            *int64     `gorm:"column:lead_credits_remaining"`
	CurrentDebt            int64      `gorm:"column:current_debt;not null;default:0"`
	StripeCustomerID       string     `gorm:"column:stripe_customer_id"`
	DefaultPaymentMethodID string     `gorm:"column:default_payment_method_id"`
	LastBilledAt           *time.Time `gorm:"column:last_billed_at"`
	CreatedAt              time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt              time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

type CreatorWallet struct {
	CreatorID      string    `gorm:"column:creator_id;primaryKey"`
	PendingBalance int64     `gorm:"column:pending_balance;not null;default:0"`
	UpdatedAt      time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func Models() []any {
	return []any{&Collaboration{}, &CreatorProfile{}, &SaasCompany{}, &CreatorWallet{}}
}
