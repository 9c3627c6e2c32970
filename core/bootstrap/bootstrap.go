package bootstrap

import (
	"context"
	"fmt"

	coreconfig "github.com/m3rciful/taxibot/core/config"
	"github.com/m3rciful/taxibot/core/logger"
	"github.com/m3rciful/taxibot/internal/orders"
	"github.com/m3rciful/taxibot/internal/registry"
)

// Options control the bootstrap pipeline.
type Options struct {
	Config *coreconfig.Config

	LoggerInit func(*coreconfig.Config) error
	// Modules run after the stores exist; nil uses ConfigModules(Config).
	Modules *Modules
}

// Result exposes infrastructure initialized by the bootstrap pipeline.
type Result struct {
	Registry *registry.Store
	Orders   *orders.Store
}

// Run initializes the logger, creates the in-memory stores and seeds them.
func Run(ctx context.Context, opts Options) (*Result, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("bootstrap: nil config provided")
	}

	loggerInit := opts.LoggerInit
	if loggerInit == nil {
		loggerInit = logger.InitLogger
	}
	if err := loggerInit(opts.Config); err != nil {
		return nil, fmt.Errorf("bootstrap: logger init failed: %w", err)
	}

	res := &Result{
		Registry: registry.New(opts.Config.Telegram.Token, opts.Config.Telegram.Name),
		Orders:   orders.NewStore(),
	}

	modules := opts.Modules
	if modules == nil {
		modules = ConfigModules(opts.Config)
	}
	storage := Storage{Registry: res.Registry, Orders: res.Orders}
	for i, s := range modules.Seeders {
		if err := s.Seed(ctx, storage); err != nil {
			return nil, fmt.Errorf("bootstrap: seeder %d failed: %w", i, err)
		}
	}
	return res, nil
}
