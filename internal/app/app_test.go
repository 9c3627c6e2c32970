package app

import (
	"context"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coreconfig "github.com/m3rciful/taxibot/core/config"
	coretelegram "github.com/m3rciful/taxibot/core/telegram"
	"github.com/m3rciful/taxibot/internal/dispatch"
	"github.com/m3rciful/taxibot/internal/orders"
	"github.com/m3rciful/taxibot/internal/registry"
)

func testConfig(t *testing.T) *coreconfig.Config {
	t.Helper()
	cfg := &coreconfig.Config{}
	cfg.Telegram.Token = "111:main"
	cfg.Telegram.GroupID = -100500
	cfg.Telegram.AdminIDs = []int64{1}
	require.NoError(t, coreconfig.Normalize(cfg))
	return cfg
}

func newApp(t *testing.T, cfg *coreconfig.Config) *App {
	t.Helper()
	a, err := New(cfg, registry.New(cfg.Telegram.Token, cfg.Telegram.Name), orders.NewStore())
	require.NoError(t, err)
	return a
}

func TestNewRequiresStores(t *testing.T) {
	_, err := New(testConfig(t), nil, nil)
	assert.Error(t, err)
}

func TestTelegramRunOptions(t *testing.T) {
	a := newApp(t, testConfig(t))
	opts, err := a.TelegramRunOptions()
	require.NoError(t, err)

	assert.Same(t, a.mux, opts.Mux)
	assert.Same(t, a.router, opts.Sink)
	assert.NotNil(t, opts.OnStart)
	assert.NotNil(t, opts.OnStop)

	var menu []string
	for _, c := range opts.Menu {
		menu = append(menu, c.Text)
	}
	assert.Contains(t, menu, "add_frontend")
	assert.Contains(t, menu, "list_pending")
}

func TestLifecycleServesOps(t *testing.T) {
	cfg := testConfig(t)
	cfg.Ops.Listen = "127.0.0.1:0"
	a := newApp(t, cfg)
	rt := coretelegram.Runtime{Supervisor: dispatch.NewSupervisor(nil, dispatch.SupervisorOptions{}), Mux: a.mux}

	ctx := context.Background()
	require.NoError(t, a.start(ctx, rt))
	require.NotNil(t, a.ops)

	resp, err := http.Get("http://" + a.ops.Addr() + "/healthz")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode, "no loops running yet")
	assert.Contains(t, string(body), `"pending_orders":0`)

	http.DefaultClient.CloseIdleConnections()
	require.NoError(t, a.stop(ctx, rt))
}

func TestLifecycleWithoutOps(t *testing.T) {
	a := newApp(t, testConfig(t))
	rt := coretelegram.Runtime{Supervisor: dispatch.NewSupervisor(nil, dispatch.SupervisorOptions{}), Mux: a.mux}

	require.NoError(t, a.start(context.Background(), rt))
	assert.Nil(t, a.ops)
	require.NoError(t, a.stop(context.Background(), rt))
}
