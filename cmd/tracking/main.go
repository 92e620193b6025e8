package main

import (
	"log"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"naano-tracking/pkg/config"
	"naano-tracking/pkg/db"
	"naano-tracking/pkg/featureflags"
	"naano-tracking/pkg/gen"
	"naano-tracking/pkg/hashistack/secretmanager"
	"naano-tracking/pkg/health"
	"naano-tracking/pkg/httpapi"
	"naano-tracking/pkg/logger"
	"naano-tracking/pkg/minio"
	"naano-tracking/pkg/otelcol"
	"naano-tracking/pkg/profiling"
	"naano-tracking/pkg/redis"
	"naano-tracking/pkg/sequence"
	"naano-tracking/pkg/server"
	"naano-tracking/pkg/task"
	"naano-tracking/services/account"
	"naano-tracking/services/apikey"
	"naano-tracking/services/billing"
	"naano-tracking/services/enrichment"
	"naano-tracking/services/event"
	"naano-tracking/services/intent"
	"naano-tracking/services/lead"
	"naano-tracking/services/link"
	"naano-tracking/services/schema"
	"naano-tracking/services/tracking"
)

func main() {
	opts := []fx.Option{
		secretmanager.Module,
		config.Module,
		logger.Module,
		otelcol.Module,
		profiling.Module,
		gen.Module,
		db.Module,
		schema.Module,
		redis.Module,
		sequence.Module,
		featureflags.Module,
		minio.Client,
		task.Client,
		health.Module,
		account.Module,
		event.Module,
		link.Module,
		enrichment.Module,
		intent.Module,
		billing.Module,
		lead.Module,
		apikey.Module,
		tracking.Module,
		httpapi.Module,
		server.ProvideHTTPServer,
		fxLogger,
	}

	if err := fx.ValidateApp(opts...); err != nil {
		log.Fatalf("fx validation failed: %v", err)
	}

	app := fx.New(opts...)

	app.Run()
}

var fxLogger = fx.WithLogger(func(cfg *config.Config, logger *zap.Logger) fxevent.Logger {
	return fxevent.NopLogger
})
