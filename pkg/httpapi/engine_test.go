package httpapi

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"naano-tracking/pkg/config"
	"naano-tracking/pkg/health"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
	gin.SetMode(gin.TestMode)
}

type pingRoute struct{}

func (pingRoute) Register(r gin.IRouter) {
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
}

func TestNewEngine(t *testing.T) {
	r := NewEngine(EngineParams{
		Config: &config.Config{},
		Health: health.ProvideHealth(health.HealthParams{}),
		Routes: []Route{pingRoute{}},
	})

	for path, code := range map[string]int{
		"/ping":    http.StatusOK,
		"/healthz": http.StatusOK,
		"/metrics": http.StatusOK,
		"/missing": http.StatusNotFound,
	} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		require.Equal(t, code, w.Code, path)
	}
}
