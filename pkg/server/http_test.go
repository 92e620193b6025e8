package server

import (
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"naano-tracking/pkg/config"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx/fxtest"
	"go.uber.org/zap"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
	gin.SetMode(gin.TestMode)
}

func TestRunServesEngine(t *testing.T) {
	cfg := &config.Config{}
	cfg.Server.Addr = "0"
	cfg.Server.ReadTimeout = time.Second
	cfg.Server.WriteTimeout = time.Second

	engine := gin.New()
	engine.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	srv := NewHttpServer(Params{Config: cfg, Engine: engine})
	lc := fxtest.NewLifecycle(t)
	Run(lc, srv)

	require.NoError(t, lc.Start(context.Background()))
	defer lc.RequireStop()

	// the listener is bound before Start returns
	resp, err := http.Get("http://" + srv.Addr() + "/ping")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "pong", string(body))
}
