package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/burakmert236/volei-list/common/config"
	"github.com/burakmert236/volei-list/common/utils"
	"github.com/burakmert236/volei-list/services/roster-service/app"
)

func newRootCmd() *cobra.Command {
	var configDir string

	root := &cobra.Command{
		Use:           "roster",
		Short:         "Daily volleyball signup roster",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configDir, "config", "c", "",
		"directory containing config.yaml (default: ./config, then the working directory)")

	load := func() (*config.Config, error) {
		return config.Load(configDir)
	}

	root.AddCommand(newServeCmd(load), newResetCmd(load), newMigrateCmd(load))
	return root
}

type configLoader func() (*config.Config, error)

func newServeCmd(load configLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the roster page and API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			application, appErr := app.New(ctx, cfg)
			if appErr != nil {
				return appErr
			}

			application.Logger().Info("Starting roster service",
				"environment", cfg.Server.Environment,
				"store", cfg.Store.Driver,
			)

			if appErr := application.Start(); appErr != nil {
				application.Stop()
				return appErr
			}

			utils.WaitForGracefulShutdown(ctx)
			application.Logger().Info("Shutting down server...")
			application.Stop()
			return nil
		},
	}
}

// newResetCmd clears the roster once. External schedulers (cron, k8s
// CronJob) call it at the start of each day.
func newResetCmd(load configLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Delete every entry from the roster",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}

			application, appErr := app.NewCore(cmd.Context(), cfg)
			if appErr != nil {
				return appErr
			}
			defer application.Stop()

			removed, appErr := application.Service().Reset(cmd.Context())
			if appErr != nil {
				return appErr
			}

			fmt.Fprintf(cmd.OutOrStdout(), "roster reset, %d entries removed\n", removed)
			return nil
		},
	}
}

func newMigrateCmd(load configLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the store schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}

			if err := app.Migrate(cmd.Context(), cfg); err != nil {
				return fmt.Errorf("migrate %s store: %w", cfg.Store.Driver, err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s store is up to date\n", cfg.Store.Driver)
			return nil
		},
	}
}
