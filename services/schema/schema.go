package schema

import (
	"naano-tracking/pkg/db"
	"naano-tracking/services/account"
	"naano-tracking/services/apikey"
	"naano-tracking/services/billing"
	"naano-tracking/services/enrichment"
	"naano-tracking/services/event"
	"naano-tracking/services/intent"
	"naano-tracking/services/lead"
	"naano-tracking/services/link"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

func Models() []any {
	var models []any
	for _, group := range [][]any{
		account.Models(),
		link.Models(),
		event.Models(),
		enrichment.Models(),
		intent.Models(),
		lead.Models(),
		billing.Models(),
		apikey.Models(),
	} {
		models = append(models, group...)
	}
	return models
}

// Indexes are the partial unique indexes backing session dedup and the
// one-pending-invoice rule.
func Indexes() []string {
	var stmts []string
	stmts = append(stmts, event.Indexes()...)
	stmts = append(stmts, lead.Indexes()...)
	stmts = append(stmts, billing.Indexes()...)
	return stmts
}

func Migrate(conn *gorm.DB) error {
	stmts := Indexes()
	if conn.Dialector.Name() == "mysql" {
		// No partial indexes; dedup relies on the transactional checks alone.
		zap.L().Warn("[Schema] skipping partial unique indexes on mysql")
		stmts = nil
	}

	if err := db.Migrate(conn, Models(), stmts...); err != nil {
		zap.L().Error("[Schema] migration failed", zap.Error(err))
		return err
	}

	zap.L().Info("[Schema] migration complete")
	return nil
}
