package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	coreconfig "github.com/m3rciful/taxibot/core/config"
	"github.com/m3rciful/taxibot/core/logger"
	"github.com/m3rciful/taxibot/internal/orders"
	"github.com/m3rciful/taxibot/internal/registry"
)

// Storage groups the stores handed to seeders.
type Storage struct {
	Registry *registry.Store
	Orders   *orders.Store
}

// Seeder loads reference data into storage.
type Seeder interface {
	Seed(ctx context.Context, storage Storage) error
}

// SeederFunc adapts a bare function to the Seeder interface.
type SeederFunc func(ctx context.Context, storage Storage) error

// Seed executes the underlying function.
func (f SeederFunc) Seed(ctx context.Context, storage Storage) error {
	return f(ctx, storage)
}

// Modules groups optional bootstrapping hooks.
type Modules struct {
	Seeders []Seeder
}

// ConfigModules seeds the front-ends and routes listed in cfg.
func ConfigModules(cfg *coreconfig.Config) *Modules {
	return &Modules{Seeders: []Seeder{
		FrontEndSeeder(cfg.FrontEnds),
		RouteSeeder(cfg.Routes),
	}}
}

// FrontEndSeeder registers customer front-ends.
func FrontEndSeeder(list []coreconfig.FrontEndConfig) Seeder {
	return SeederFunc(func(ctx context.Context, st Storage) error {
		for _, fe := range list {
			if _, err := st.Registry.AddFrontEnd(fe.Token, fe.Name); err != nil {
				return fmt.Errorf("frontend %q: %w", fe.Name, err)
			}
		}
		if len(list) > 0 {
			logger.Info(ctx, logger.CompRegistry, "seed.frontends", slog.Int("count", len(list)))
		}
		return nil
	})
}

// RouteSeeder registers routes and links those with a channel.
func RouteSeeder(list []coreconfig.RouteConfig) Seeder {
	return SeederFunc(func(ctx context.Context, st Storage) error {
		for _, r := range list {
			if r.Channel == "" {
				if _, err := st.Registry.AddRoute(r.Name); err != nil {
					return fmt.Errorf("route %q: %w", r.Name, err)
				}
				continue
			}
			if _, _, err := st.Registry.LinkRoute(r.Name, r.Channel); err != nil {
				return fmt.Errorf("route %q: %w", r.Name, err)
			}
		}
		if len(list) > 0 {
			logger.Info(ctx, logger.CompRegistry, "seed.routes", slog.Int("count", len(list)))
		}
		return nil
	})
}
