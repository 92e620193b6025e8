package httpapi

import (
	"naano-tracking/pkg/config"
	"naano-tracking/pkg/health"
	"naano-tracking/pkg/middleware"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
)

// Route registers handlers on the shared engine. Packages contribute routes
// through the "routes" value group.
type Route interface {
	Register(r gin.IRouter)
}

var Module = fx.Module("httpapi", fx.Provide(NewEngine))

type EngineParams struct {
	fx.In
	Config *config.Config
	Health health.HealthService `optional:"true"`
	Routes []Route              `group:"routes"`
}

func NewEngine(p EngineParams) *gin.Engine {
	if p.Config.AppEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(
		gin.Recovery(),
		middleware.RequestLogger(),
		middleware.Metrics(),
		middleware.Error(),
	)

	if p.Health != nil {
		r.GET("/healthz", p.Health.Liveness)
		r.GET("/readyz", p.Health.Readiness)
	}
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	for _, route := range p.Routes {
		route.Register(r)
	}

	return r
}

// AsRoute annotates a constructor so its result joins the "routes" group.
func AsRoute(f any) any {
	return fx.Annotate(
		f,
		fx.As(new(Route)),
		fx.ResultTags(`group:"routes"`),
	)
}
