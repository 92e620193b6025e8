package health

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/hashicorp/vault-client-go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("health", fx.Provide(ProvideHealth))

const (
	statusHealthy   = "healthy"
	statusUnhealthy = "unhealthy"
)

type Dependency struct {
	Name    string `json:"name"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

type Health struct {
	Status  string       `json:"status"`
	Message string       `json:"message"`
	Deps    []Dependency `json:"deps,omitempty"`
}

type HealthService interface {
	Liveness(c *gin.Context)
	Readiness(c *gin.Context)
}

type health struct {
	db    *gorm.DB
	redis *redis.Client
	vault *vault.Client
}

type HealthParams struct {
	fx.In
	DB    *gorm.DB      `optional:"true"`
	Redis *redis.Client `optional:"true"`
	Vault *vault.Client `optional:"true"`
}

func ProvideHealth(p HealthParams) HealthService {
	return &health{
		db:    p.DB,
		redis: p.Redis,
		vault: p.Vault,
	}
}

func (h *health) Liveness(c *gin.Context) {
	c.JSON(http.StatusOK, &Health{
		Status:  statusHealthy,
		Message: "OK",
	})
}

// Readiness pings every wired dependency. The database is required; redis and
// vault degrade features but the service keeps serving redirects without them.
func (h *health) Readiness(c *gin.Context) {
	ctx := c.Request.Context()
	this := &Health{
		Status:  statusHealthy,
		Message: "OK",
	}
	code := http.StatusOK

	deps := make([]Dependency, 0, 3)
	if h.db != nil {
		dep := Dependency{Name: h.db.Name(), Status: statusHealthy, Message: "OK"}

		sql, err := h.db.DB()
		if err == nil {
			err = sql.PingContext(ctx)
		}
		if err != nil {
			dep.Status = statusUnhealthy
			dep.Message = err.Error()
			this.Status = statusUnhealthy
			this.Message = "database unavailable"
			code = http.StatusServiceUnavailable
		}

		deps = append(deps, dep)
	}

	if h.redis != nil {
		dep := Dependency{Name: "redis", Status: statusHealthy, Message: "OK"}
		if err := h.redis.Ping(ctx).Err(); err != nil {
			dep.Status = statusUnhealthy
			dep.Message = err.Error()
		}
		deps = append(deps, dep)
	}

	if h.vault != nil {
		dep := Dependency{Name: "vault", Status: statusHealthy, Message: "OK"}
		if _, err := h.vault.System.ReadHealthStatus(ctx); err != nil {
			dep.Status = statusUnhealthy
			dep.Message = err.Error()
		}
		deps = append(deps, dep)
	}

	this.Deps = deps
	c.JSON(code, this)
}
