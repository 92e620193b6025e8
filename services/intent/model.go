package intent

import (
	"time"

	"gorm.io/datatypes"
)

// IntentScore is written once per scored click and never updated.
type IntentScore struct {
	ID                  string         `gorm:"column:id;primaryKey"`
	LinkEventID         string         `gorm:"column:link_event_id;uniqueIndex;not null"`
	TrackedLinkID       string         `gorm:"column:tracked_link_id;index;not null"`
	CompanyInferenceID  *string        `gorm:"column:company_inference_id"`
	SessionIntentScore  int            `gorm:"column:session_intent_score;not null"`
	TimeOnSite          *float64       `gorm:"column:time_on_site"`
	IsWorkingHours      bool           `gorm:"column:is_working_hours;not null;default:false"`
	IsRepeatVisit       bool           `gorm:"column:is_repeat_visit;not null;default:false"`
	VisitCount          int64          `gorm:"column:visit_count;not null;default:1"`
	DaysSinceFirstVisit int            `gorm:"column:days_since_first_visit;not null;default:0"`
	PageFlags           datatypes.JSON `gorm:"column:page_flags"`
	Breakdown           datatypes.JSON `gorm:"column:breakdown"`
	Reasons             datatypes.JSON `gorm:"column:reasons"`
	CreatedAt           time.Time      `gorm:"column:created_at;autoCreateTime"`
}

func Models() []any {
	return []any{&IntentScore{}}
}
