package event

import (
	"time"

	"gorm.io/datatypes"
)

type EventType string

const (
	EventClick      EventType = "click"
	EventLead       EventType = "lead"
	EventConversion EventType = "conversion"
)

const (
	DefaultReferrer = "direct"
	UnknownValue    = "unknown"
)

// LinkEvent is an append-only fact about a visit. Only the enrichment fields
// and TimeOnSite are written after insert.
type LinkEvent struct {
	ID            string         `gorm:"column:id;primaryKey"`
	TrackedLinkID string         `gorm:"column:tracked_link_id;not null;index:idx_link_events_lookup,priority:1"`
	EventType     EventType      `gorm:"column:event_type;not null;index:idx_link_events_lookup,priority:2"`
	SessionID     string         `gorm:"column:session_id;not null;index"`
	OccurredAt    time.Time      `gorm:"column:occurred_at;not null;index:idx_link_events_lookup,priority:3,sort:desc"`
	IPAddress     string         `gorm:"column:ip_address"`
	UserAgent     string         `gorm:"column:user_agent"`
	Referrer      string         `gorm:"column:referrer"`
	DeviceType    string         `gorm:"column:device_type"`
	OS            string         `gorm:"column:os"`
	Browser       string         `gorm:"column:browser"`
	NetworkType   string         `gorm:"column:network_type"`
	Country       string         `gorm:"column:country"`
	TimeOnSite    *float64       `gorm:"column:time_on_site"`
	RevenueCents  *int64         `gorm:"column:revenue_amount"`
	Currency      string         `gorm:"column:currency"`
	OrderID       string         `gorm:"column:order_id"`
	Metadata      datatypes.JSON `gorm:"column:metadata"`
	EnrichedAt    *time.Time     `gorm:"column:enriched_at"`
	CreatedAt     time.Time      `gorm:"column:created_at;autoCreateTime"`
}

// PageView is a page-category hit reported by the brand's own tracking.
type PageView struct {
	ID            string    `gorm:"column:id;primaryKey"`
	TrackedLinkID string    `gorm:"column:tracked_link_id;not null"`
	SessionID     string    `gorm:"column:session_id;not null;index"`
	Category      string    `gorm:"column:category;not null"`
	OccurredAt    time.Time `gorm:"column:occurred_at;not null"`
}

// Enrichment is the set of columns the enrichment step may write.
type Enrichment struct {
	DeviceType  string
	OS          string
	Browser     string
	NetworkType string
	Country     string
}

type ConversionInput struct {
	RevenueCents int64
	Currency     string
	OrderID      string
}

var PageCategories = map[string]bool{
	"pricing":      true,
	"security":     true,
	"integrations": true,
	"docs":         true,
	"download":     true,
}

func Models() []any {
	return []any{&LinkEvent{}, &PageView{}}
}

// Indexes returns statements the struct tags cannot express. A session may
// carry at most one lead and one conversion per tracked link.
func Indexes() []string {
	return []string{
		`CREATE UNIQUE INDEX IF NOT EXISTS uq_link_events_session_outcome ON link_events (tracked_link_id, session_id, event_type) WHERE event_type <> 'click'`,
	}
}
