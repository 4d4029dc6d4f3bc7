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

	"github.com/eiichimorimoto/ai-consulting.zero-sub004/internal/app"
	"github.com/eiichimorimoto/ai-consulting.zero-sub004/pkg/config"
	"github.com/eiichimorimoto/ai-consulting.zero-sub004/pkg/logger"
)

// Set at build time with -ldflags.
var Version = "dev"

var rootCmd = &cobra.Command{
	Use:           "billing",
	Short:         "Subscription billing and dunning service",
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the scheduled dunning sweep",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
			return a.Serve(ctx)
		})
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, log, err := load()
		if err != nil {
			return err
		}
		return app.Migrate(cmd.Context(), cfg, log)
	},
}

var dunningCmd = &cobra.Command{
	Use:   "dunning",
	Short: "Run one dunning sweep and print its report",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
			rep, err := a.Sweep(ctx)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(rep)
		})
	},
}

func init() {
	rootCmd.AddCommand(serveCmd, migrateCmd, dunningCmd)
}

func load() (app.Config, *slog.Logger, error) {
	var cfg app.Config
	if err := config.Load(&cfg); err != nil {
		return cfg, nil, err
	}
	log, err := app.NewLogger(cfg.Log)
	if err != nil {
		return cfg, nil, err
	}
	logger.SetAsDefault(log)
	return cfg, log, nil
}

func withApp(ctx context.Context, fn func(context.Context, *app.App) error) error {
	cfg, log, err := load()
	if err != nil {
		return err
	}
	a, err := app.New(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(context.WithoutCancel(ctx)); err != nil {
			log.ErrorContext(ctx, "shutdown incomplete", logger.Error(err))
		}
	}()
	return fn(ctx, a)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}
