package ops

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/m3rciful/taxibot/internal/metrics"
)

func TestHealthzReportsLoopsAndOrders(t *testing.T) {
	h := NewHandler(func() Health {
		return Health{FrontEnds: []string{"City", "Main"}, PendingOrders: 3}
	})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var got Health
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, Health{Status: "ok", FrontEnds: []string{"City", "Main"}, PendingOrders: 3}, got)
}

func TestHealthzDegradedWithoutLoops(t *testing.T) {
	h := NewHandler(func() Health { return Health{} })
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"degraded"`)
	assert.Contains(t, rec.Body.String(), `"frontends":[]`)
}

func TestMetricsEndpoint(t *testing.T) {
	metrics.IncLoopRestart()
	h := NewHandler(func() Health { return Health{} })
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "taxibot_loop_restarts_total")
}

func TestStartAndShutdown(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	srv, err := Start(context.Background(), "127.0.0.1:0", func() Health {
		return Health{FrontEnds: []string{"Main"}}
	})
	require.NoError(t, err)

	resp, err := http.Get("http://" + srv.Addr() + "/healthz")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"Main"`)

	http.DefaultClient.CloseIdleConnections()
	require.NoError(t, srv.Shutdown(context.Background()))
	require.NoError(t, srv.Shutdown(context.Background()))
}
