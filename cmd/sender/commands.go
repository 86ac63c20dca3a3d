package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/magabrotheeeer/memorysphere/internal/app/sender"
	"github.com/magabrotheeeer/memorysphere/internal/config"
	"github.com/magabrotheeeer/memorysphere/internal/models"
)

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:          "sender",
		Short:        "Mail sender for MemorySphere queues",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", os.Getenv("CONFIG_PATH"), "path to config file")

	root.AddCommand(
		newServeCmd(&configPath),
		newTestWarningCmd(&configPath),
	)
	return root
}

func loadConfig(configPath string) (*config.Config, *slog.Logger, error) {
	if configPath == "" {
		return nil, nil, fmt.Errorf("config path is not set, use --config or CONFIG_PATH")
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return cfg, logger, nil
}

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Consume admin summary and password reset queues",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			logger.Info("starting sender service", slog.String("env", cfg.Env))

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			app, err := sender.New(ctx, cfg, logger)
			if err != nil {
				return fmt.Errorf("failed to initialize sender app: %w", err)
			}
			if err := app.Run(ctx); err != nil {
				return fmt.Errorf("sender app stopped with error: %w", err)
			}
			logger.Info("sender app stopped gracefully")
			return nil
		},
	}
}

func newTestWarningCmd(configPath *string) *cobra.Command {
	var (
		stage    string
		daysLeft int
	)
	cmd := &cobra.Command{
		Use:   "test-warning <email>",
		Short: "Send a deletion warning to check SMTP settings",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			warningStage, err := models.ParseWarningStage(stage)
			if err != nil {
				return err
			}
			if daysLeft < 1 {
				return fmt.Errorf("days must be positive, got %d", daysLeft)
			}
			cfg, logger, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if err := sender.SendTestWarning(ctx, cfg, logger, args[0], warningStage, daysLeft); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s warning sent to %s\n", warningStage, args[0])
			return nil
		},
	}
	cmd.Flags().StringVar(&stage, "stage", string(models.WarningFirst), "warning stage: first, second or final")
	cmd.Flags().IntVar(&daysLeft, "days", 30, "days until the deletion date shown in the letter")
	return cmd
}
