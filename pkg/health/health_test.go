package health

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"naano-tracking/services/testutil"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestLiveness(t *testing.T) {
	r := gin.New()
	r.GET("/healthz", ProvideHealth(HealthParams{}).Liveness)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, w.Code)
}

func TestReadinessWithDatabase(t *testing.T) {
	db := testutil.NewTestDB(t, nil)
	r := gin.New()
	r.GET("/readyz", ProvideHealth(HealthParams{DB: db}).Readiness)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var body Health
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Equal(t, statusHealthy, body.Status)
	require.Len(t, body.Deps, 1)
}

func TestReadinessFailsWhenDatabaseIsClosed(t *testing.T) {
	db := testutil.NewTestDB(t, nil)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	r := gin.New()
	r.GET("/readyz", ProvideHealth(HealthParams{DB: db}).Readiness)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
}
