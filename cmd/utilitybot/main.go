// Command utilitybot runs the QR code and URL shortening Telegram bot.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/m3rciful/utilitybot/bots/utility/app"
	"github.com/m3rciful/utilitybot/bots/utility/config"
	"github.com/m3rciful/utilitybot/bots/utility/migrations"
	"github.com/m3rciful/utilitybot/core/bootstrap"
	"github.com/m3rciful/utilitybot/core/buildinfo"
	corecmd "github.com/m3rciful/utilitybot/core/cmd"
	"github.com/m3rciful/utilitybot/core/logger"
)

const defaultConfigPath = "config.yaml"

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	resolve := func() string {
		opts := corecmd.Options{ConfigPath: configPath}
		if p := opts.ResolveConfigPath(); p != "" {
			return p
		}
		if _, err := os.Stat(defaultConfigPath); err == nil {
			return defaultConfigPath
		}
		return ""
	}

	root := &cobra.Command{
		Use:           "utilitybot",
		Short:         "Telegram bot that renders QR codes and shortens links",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBot(cmd.Context(), resolve())
		},
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to YAML config (env: CONFIG_PATH)")

	root.AddCommand(
		&cobra.Command{
			Use:   "run",
			Short: "Run the bot (default)",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runBot(cmd.Context(), resolve())
			},
		},
		&cobra.Command{
			Use:   "migrate",
			Short: "Apply database migrations and exit",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return migrate(resolve())
			},
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print build information",
			Run: func(cmd *cobra.Command, _ []string) {
				fmt.Fprintln(cmd.OutOrStdout(), buildinfo.String())
			},
		},
	)
	return root
}

func runBot(ctx context.Context, path string) error {
	return corecmd.Run(corecmd.Options{
		ConfigPath: path,
		LoadConfig: func(p string) (corecmd.ConfigCarrier, error) {
			return config.Load(p)
		},
		Bootstrap: app.Bootstrap,
		Context:   ctx,
	})
}

func migrate(path string) error {
	cfg, err := config.LoadDatabase(path)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	defer func() { _ = logger.Shutdown() }()

	res, err := bootstrap.Run(bootstrap.Options{
		Config:     &cfg.Config,
		Database:   cfg.Database,
		Migrations: migrations.FS,
	})
	if err != nil {
		return err
	}
	return res.DB.Close()
}
