package lead

import "time"

type Status string

const (
	StatusValidated Status = "validated"
	StatusRejected  Status = "rejected"
)

type Source string

const (
	SourceDwell  Source = "dwell"
	SourceReport Source = "report"
	SourceSignup Source = "signup"
)

// Lead is the billable unit. Prices are frozen at creation.
type Lead struct {
	ID                 string    `gorm:"column:id;primaryKey" json:"id"`
	TrackedLinkID      string    `gorm:"column:tracked_link_id;not null;index" json:"tracked_link_id"`
	CreatorID          string    `gorm:"column:creator_id;not null;index" json:"creator_id"`
	SaasID             string    `gorm:"column:saas_id;not null;index" json:"saas_id"`
	SessionID          string    `gorm:"column:session_id;not null" json:"session_id"`
	ClickEventID       string    `gorm:"column:click_event_id;not null" json:"click_event_id"`
	LeadEventID        string    `gorm:"column:lead_event_id;not null" json:"lead_event_id"`
	SaasPlan           string    `gorm:"column:saas_plan;not null" json:"saas_plan"`
	LeadValue          int64     `gorm:"column:lead_value;not null" json:"lead_value"`
	CreatorEarnings    int64     `gorm:"column:creator_earnings;not null" json:"creator_earnings"`
	NaanoMarginBrut    int64     `gorm:"column:naano_margin_brut;not null" json:"naano_margin_brut"`
	Status             Status    `gorm:"column:status;not null" json:"status"`
	Source             Source    `gorm:"column:source;not null" json:"source"`
	CompanyInferenceID *string   `gorm:"column:company_inference_id" json:"company_inference_id,omitempty"`
	CreatedAt          time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

// SignupAttribution is a signup the brand reported for a tracked session.
type SignupAttribution struct {
	ID                 string    `gorm:"column:id;primaryKey" json:"id"`
	LinkEventID        string    `gorm:"column:link_event_id;not null;uniqueIndex:uq_signup_event_email,priority:1" json:"link_event_id"`
	TrackedLinkID      string    `gorm:"column:tracked_link_id;not null;index" json:"tracked_link_id"`
	SessionID          string    `gorm:"column:session_id;not null" json:"session_id"`
	Email              string    `gorm:"column:email;not null;uniqueIndex:uq_signup_event_email,priority:2" json:"email"`
	Company            string    `gorm:"column:company;not null" json:"company"`
	Name               string    `gorm:"column:name" json:"name,omitempty"`
	JobTitle           string    `gorm:"column:job_title" json:"job_title,omitempty"`
	LinkedinURL        string    `gorm:"column:linkedin_url" json:"linkedin_url,omitempty"`
	CompanyInferenceID string    `gorm:"column:company_inference_id" json:"company_inference_id,omitempty"`
	CreatedAt          time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func Models() []any {
	return []any{&Lead{}, &SignupAttribution{}}
}

// Indexes allows one validated lead per session on a link. The key adds
// session_id to (tracked_link_id, creator_id, saas_id): a visitor returning
// in a new session through the same link may qualify again, while retries
// and racing writers within one session collapse onto a single lead.
func Indexes() []string {
	return []string{
		`CREATE UNIQUE INDEX IF NOT EXISTS uq_leads_validated_session ON leads (tracked_link_id, creator_id, saas_id, session_id) WHERE status = 'validated'`,
	}
}
