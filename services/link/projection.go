package link

import (
	"context"

	"naano-tracking/pkg/db/option"

	"gorm.io/gorm"
)

const attributionColumns = `tl.id AS tracked_link_id, tl.hash, tl.destination_url, tl.collaboration_id,
	c.creator_id, c.saas_id, COALESCE(cp.display_name, '') AS creator_name`

func attributionQuery(ctx context.Context, db *gorm.DB) *gorm.DB {
	return db.WithContext(ctx).
		Table("tracked_links AS tl").
		Select(attributionColumns).
		Joins("JOIN collaborations c ON c.id = tl.collaboration_id").
		Joins("LEFT JOIN creator_profiles cp ON cp.id = c.creator_id")
}

func findAttribution(ctx context.Context, db *gorm.DB, where string, arg string) (*Attribution, error) {
	var rows []Attribution
	if err := attributionQuery(ctx, db).Where(where, arg).Limit(1).Scan(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

// ForSaas restricts link_events queries to links of one brand.
func ForSaas(saasID string) option.QueryOption {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where(`tracked_link_id IN (
			SELECT tl.id FROM tracked_links tl
			JOIN collaborations c ON c.id = tl.collaboration_id
			WHERE c.saas_id = ?)`, saasID)
	}
}
