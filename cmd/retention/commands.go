package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/magabrotheeeer/memorysphere/internal/app/scheduler"
	"github.com/magabrotheeeer/memorysphere/internal/config"
)

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:          "retention",
		Short:        "Data retention scheduler for inactive MemorySphere accounts",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", os.Getenv("CONFIG_PATH"), "path to config file")

	root.AddCommand(
		newRunCmd(&configPath),
		newDaemonCmd(&configPath),
		newCancelCmd(&configPath),
	)
	return root
}

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// withApp загружает конфиг, собирает планировщик и вызывает fn.
func withApp(cmd *cobra.Command, configPath string, fn func(ctx context.Context, app *scheduler.App) error) error {
	if configPath == "" {
		return fmt.Errorf("config path is not set, use --config or CONFIG_PATH")
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger := newLogger()
	logger.Info("starting retention", slog.String("env", cfg.Env), slog.String("command", cmd.Name()))

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := scheduler.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer app.Close()
	return fn(ctx, app)
}

func newRunCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run scheduling, warnings and deletions once and print the summary",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, *configPath, func(ctx context.Context, app *scheduler.App) error {
				summary, err := app.RunOnce(ctx)
				if err != nil {
					return err
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(summary)
			})
		},
	}
}

func newDaemonCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "daemon",
		Short: "Run the data deletion process on the configured cron schedule",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, *configPath, func(ctx context.Context, app *scheduler.App) error {
				return app.Run(ctx)
			})
		},
	}
}

func newCancelCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <account-id>",
		Short: "Remove an account from the deletion schedule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, *configPath, func(ctx context.Context, app *scheduler.App) error {
				canceled, err := app.Cancel(ctx, args[0])
				if err != nil {
					return err
				}
				if canceled {
					fmt.Fprintf(cmd.OutOrStdout(), "deletion canceled for %s\n", args[0])
				} else {
					fmt.Fprintf(cmd.OutOrStdout(), "no deletion scheduled for %s\n", args[0])
				}
				return nil
			})
		},
	}
}
