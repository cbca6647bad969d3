package health

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"robotrading/internal/modules/health/service"
)

func TestReadyzFollowsState(t *testing.T) {
	state := service.NewState()
	mux := NewMux(state)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	state.SetReady(true)
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHealthzReportsMonitorState(t *testing.T) {
	state := service.NewState()
	state.SetReady(true)
	state.SetMonitorRunning(true)
	state.SetOpenPositions(3)
	state.TouchScan(time.Unix(1700000000, 0))
	state.SetPendingLiquidations([]string{"AAPL", "MSFT"})

	mux := NewMux(state)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Ready               bool     `json:"ready"`
		MonitorRunning      bool     `json:"monitorRunning"`
		OpenPositions       int      `json:"openPositions"`
		PendingLiquidations []string `json:"pendingLiquidations"`
		LastScanUnix        int64    `json:"lastScanUnix"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	assert.True(t, resp.Ready)
	assert.True(t, resp.MonitorRunning)
	assert.Equal(t, 3, resp.OpenPositions)
	assert.Equal(t, []string{"AAPL", "MSFT"}, resp.PendingLiquidations)
	assert.Equal(t, int64(1700000000), resp.LastScanUnix)
}

func TestLivezAlwaysOK(t *testing.T) {
	mux := NewMux(service.NewState())
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/livez", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
