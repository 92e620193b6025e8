package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"naano-tracking/pkg/config"
	"naano-tracking/pkg/db"
	"naano-tracking/pkg/gen"
	"naano-tracking/pkg/hashistack/secretmanager"
	"naano-tracking/pkg/logger"
	"naano-tracking/services/account"
	"naano-tracking/services/apikey"
	"naano-tracking/services/link"
	"naano-tracking/services/schema"
)

var (
	saasID      = flag.String("saas", "demo-saas", "brand id")
	creatorID   = flag.String("creator", "demo-creator", "creator id")
	website     = flag.String("website", "https://example.com/pricing", "brand landing page")
	plan        = flag.String("plan", string(account.PlanStarter), "brand plan")
	leadCredits = flag.Int64("credits", -1, "lead credits, negative for unmetered")
)

// seed creates a demo brand, creator and collaboration, then prints the
// tracked link and a webhook key for local testing.
func main() {
	flag.Parse()

	opts := []fx.Option{
		secretmanager.Module,
		config.Module,
		logger.Module,
		gen.Module,
		db.Module,
		schema.Module,
		account.Module,
		link.Module,
		apikey.Module,
		fx.Invoke(run),
		fxLogger,
	}

	if err := fx.ValidateApp(opts...); err != nil {
		log.Fatalf("fx validation failed: %v", err)
	}

	app := fx.New(opts...)
	if err := app.Start(context.Background()); err != nil {
		log.Fatalf("seed failed: %v", err)
	}
	_ = app.Stop(context.Background())
}

var fxLogger = fx.WithLogger(func(cfg *config.Config, logger *zap.Logger) fxevent.Logger {
	return fxevent.NopLogger
})

func run(lc fx.Lifecycle, conn *gorm.DB, links *link.Service, keys *apikey.Service) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return seed(ctx, conn, links, keys)
		},
	})
}

func seed(ctx context.Context, conn *gorm.DB, links *link.Service, keys *apikey.Service) error {
	saas := &account.SaasCompany{
		ID:      *saasID,
		Name:    *saasID,
		Website: *website,
		Plan:    account.Plan(*plan),
	}
	if *leadCredits >= 0 {
		saas.LeadCredits = leadCredits
	}
	collab := &account.Collaboration{
		ID:        fmt.Sprintf("%s-%s", *creatorID, *saasID),
		CreatorID: *creatorID,
		SaasID:    *saasID,
		Status:    "active",
	}

	err := conn.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rows := []any{
			saas,
			&account.CreatorProfile{ID: *creatorID, DisplayName: *creatorID},
			&account.CreatorWallet{CreatorID: *creatorID},
			collab,
		}
		for _, row := range rows {
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(row).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		zap.L().Error("failed to seed accounts", zap.Error(err))
		return err
	}

	tracked, err := links.EnsureTrackedLink(ctx, collab.ID, "")
	if err != nil {
		return err
	}

	issued, err := keys.Issue(ctx, saas.ID, []string{apikey.ScopeTrackingWrite}, nil)
	if err != nil {
		return err
	}

	zap.L().Info("seed complete",
		zap.String("saas_id", saas.ID),
		zap.String("collaboration_id", collab.ID),
		zap.String("hash", tracked.Hash),
	)
	fmt.Printf("link: /t/%s\napi key: %s\n", tracked.Hash, issued.Token)
	return nil
}
