package cmd

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coreconfig "github.com/m3rciful/taxibot/core/config"
	coretelegram "github.com/m3rciful/taxibot/core/telegram"
)

type stubApp struct {
	opts coretelegram.RunOptions
	err  error
}

func (a stubApp) TelegramRunOptions() (coretelegram.RunOptions, error) { return a.opts, a.err }

func TestConfigPathPrecedence(t *testing.T) {
	t.Setenv("TAXI_CFG", "/from/env.yaml")

	p, err := Options{ConfigPath: "/flag.yaml", ConfigEnvVar: "TAXI_CFG"}.configPath()
	require.NoError(t, err)
	assert.Equal(t, "/flag.yaml", p)

	p, err = Options{ConfigEnvVar: "TAXI_CFG", DefaultConfigPath: "config.yaml"}.configPath()
	require.NoError(t, err)
	assert.Equal(t, "/from/env.yaml", p)

	t.Setenv("TAXI_CFG", "")
	_, err = Options{ConfigEnvVar: "TAXI_CFG"}.configPath()
	assert.ErrorIs(t, err, errNoConfig)
}

func TestRunCallsHooksInOrder(t *testing.T) {
	var trail []string
	app := stubApp{opts: coretelegram.RunOptions{
		OnStart: func(context.Context, coretelegram.Runtime) error { trail = append(trail, "start"); return nil },
		OnStop:  func(context.Context, coretelegram.Runtime) error { trail = append(trail, "stop"); return nil },
	}}

	err := Run(Options{
		ConfigPath: "config.yaml",
		LoadConfig: func(string) (ConfigCarrier, error) { return &coreconfig.Config{}, nil },
		Bootstrap:  func(ConfigCarrier) (TelegramApp, error) { return app, nil },
		ShutdownLogger: func() error {
			trail = append(trail, "flush")
			return nil
		},
		RunTelegram: func(ctx context.Context, ro coretelegram.RunOptions) error {
			if err := ro.OnStart(ctx, coretelegram.Runtime{}); err != nil {
				return err
			}
			trail = append(trail, "run")
			return ro.OnStop(ctx, coretelegram.Runtime{})
		},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"start", "run", "stop", "flush"}, trail)
}

func TestRunPropagatesBootstrapError(t *testing.T) {
	boom := errors.New("boom")
	err := Run(Options{
		ConfigPath: "config.yaml",
		LoadConfig: func(string) (ConfigCarrier, error) { return &coreconfig.Config{}, nil },
		Bootstrap:  func(ConfigCarrier) (TelegramApp, error) { return nil, boom },
	})
	assert.ErrorIs(t, err, boom)
}
