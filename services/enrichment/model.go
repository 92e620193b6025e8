package enrichment

import (
	"time"

	"gorm.io/datatypes"
)

type AttributionState string

const (
	AttributionInferred  AttributionState = "inferred"
	AttributionConfirmed AttributionState = "confirmed"
)

// CompanyInference is the employer guess for one click. State only moves
// from inferred to confirmed.
type CompanyInference struct {
	ID                string           `gorm:"column:id;primaryKey"`
	LinkEventID       string           `gorm:"column:link_event_id;uniqueIndex;not null"`
	TrackedLinkID     string           `gorm:"column:tracked_link_id;index;not null"`
	CompanyName       string           `gorm:"column:company_name"`
	CompanyDomain     string           `gorm:"column:company_domain"`
	Industry          string           `gorm:"column:industry"`
	CompanySize       string           `gorm:"column:company_size"`
	Location          string           `gorm:"column:location"`
	ConfidenceScore   float64          `gorm:"column:confidence_score;not null"`
	ConfidenceReasons datatypes.JSON   `gorm:"column:confidence_reasons"`
	NetworkType       string           `gorm:"column:network_type"`
	ASN               string           `gorm:"column:asn"`
	ASOrg             string           `gorm:"column:as_org"`
	IPPrefix          string           `gorm:"column:ip_prefix"`
	ReverseDNS        string           `gorm:"column:reverse_dns"`
	IsHosting         bool             `gorm:"column:is_hosting;not null;default:false"`
	IsVPN             bool             `gorm:"column:is_vpn;not null;default:false"`
	IsProxy           bool             `gorm:"column:is_proxy;not null;default:false"`
	IsMobileISP       bool             `gorm:"column:is_mobile_isp;not null;default:false"`
	IsAmbiguous       bool             `gorm:"column:is_ambiguous;not null;default:false"`
	AttributionState  AttributionState `gorm:"column:attribution_state;not null;default:'inferred'"`
	ConfirmedAt       *time.Time       `gorm:"column:confirmed_at"`
	CreatedAt         time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

func Models() []any {
	return []any{&CompanyInference{}}
}
