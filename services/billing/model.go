package billing

import "time"

type InvoiceStatus string

const (
	InvoicePending InvoiceStatus = "pending"
	InvoicePaid    InvoiceStatus = "paid"
	InvoiceFailed  InvoiceStatus = "failed"
)

// Invoice bills a brand for the debt accrued since its last paid invoice.
type Invoice struct {
	ID              string        `gorm:"column:id;primaryKey" json:"id"`
	Number          string        `gorm:"column:number;uniqueIndex;not null" json:"number"`
	SaasID          string        `gorm:"column:saas_id;not null;index" json:"saas_id"`
	Amount          int64         `gorm:"column:amount;not null" json:"amount"`
	Currency        string        `gorm:"column:currency;not null" json:"currency"`
	Status          InvoiceStatus `gorm:"column:status;not null" json:"status"`
	FailureReason   string        `gorm:"column:failure_reason" json:"failure_reason,omitempty"`
	PaymentIntentID string        `gorm:"column:payment_intent_id" json:"payment_intent_id,omitempty"`
	ArchiveKey      string        `gorm:"column:archive_key" json:"archive_key,omitempty"`
	PaidAt          *time.Time    `gorm:"column:paid_at" json:"paid_at,omitempty"`
	CreatedAt       time.Time     `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time     `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func Models() []any {
	return []any{&Invoice{}}
}

// Indexes keeps at most one invoice in flight per brand.
func Indexes() []string {
	return []string{
		`CREATE UNIQUE INDEX IF NOT EXISTS uq_invoices_pending_saas ON invoices (saas_id) WHERE status = 'pending'`,
	}
}
