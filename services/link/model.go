package link

import "time"

// TrackedLink is the shareable URL of one collaboration. Hash never changes
// once issued.
type TrackedLink struct {
	ID              string    `gorm:"column:id;primaryKey"`
	CollaborationID string    `gorm:"column:collaboration_id;not null;uniqueIndex"`
	Hash            string    `gorm:"column:hash;not null;uniqueIndex"`
	DestinationURL  string    `gorm:"column:destination_url;not null"`
	CreatedAt       time.Time `gorm:"column:created_at;autoCreateTime"`
}

// Attribution is the flat read model behind a tracked link.
type Attribution struct {
	TrackedLinkID   string `json:"tracked_link_id" gorm:"column:tracked_link_id"`
	Hash            string `json:"hash" gorm:"column:hash"`
	DestinationURL  string `json:"destination_url" gorm:"column:destination_url"`
	CollaborationID string `json:"collaboration_id" gorm:"column:collaboration_id"`
	CreatorID       string `json:"creator_id" gorm:"column:creator_id"`
	CreatorName     string `json:"creator_name" gorm:"column:creator_name"`
	SaasID          string `json:"saas_id" gorm:"column:saas_id"`
}

func Models() []any {
	return []any{&TrackedLink{}}
}
