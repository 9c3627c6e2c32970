// Command taxibot runs the main bot and every registered customer bot in one process.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/m3rciful/taxibot/core/bootstrap"
	"github.com/m3rciful/taxibot/core/buildinfo"
	corecmd "github.com/m3rciful/taxibot/core/cmd"
	coreconfig "github.com/m3rciful/taxibot/core/config"
	"github.com/m3rciful/taxibot/internal/app"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string
	root := &cobra.Command{
		Use:           "taxibot",
		Short:         "Taxi booking bots with a shared driver group",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// A missing .env is fine; the environment may already be set.
			_ = godotenv.Load()
			return corecmd.Run(corecmd.Options{
				ConfigPath:        configPath,
				ConfigEnvVar:      "CONFIG_PATH",
				DefaultConfigPath: "config.yaml",
				LoadConfig: func(path string) (corecmd.ConfigCarrier, error) {
					return coreconfig.Load(path)
				},
				Bootstrap: bootstrapApp,
			})
		},
	}
	root.Flags().StringVarP(&configPath, "config", "c", "", "path to the YAML config (default $CONFIG_PATH or config.yaml)")
	root.AddCommand(newVersionCmd())
	return root
}

func bootstrapApp(carrier corecmd.ConfigCarrier) (corecmd.TelegramApp, error) {
	cfg := carrier.CoreConfig()
	res, err := bootstrap.Run(context.Background(), bootstrap.Options{Config: cfg})
	if err != nil {
		return nil, err
	}
	return app.New(cfg, res.Registry, res.Orders)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show build information",
		Run: func(cmd *cobra.Command, _ []string) {
			info := buildinfo.Read()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "taxibot %s\n", info.Version)
			fmt.Fprintf(out, "Commit: %s\n", info.Commit)
			if info.Date != "" {
				fmt.Fprintf(out, "Built:  %s\n", info.Date)
			}
		},
	}
}
