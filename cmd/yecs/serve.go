package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonathan/yecs/internal/config"
	"github.com/jonathan/yecs/internal/observability"
	"github.com/jonathan/yecs/internal/server"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newServeCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the REST API server",
		Long:  "Start an HTTP server that exposes the scoring, workflow and chat endpoints.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("port") {
				cfg.Port = port
			}
			return runServe(cmd.Context(), cfg)
		},
	}
	cmd.Flags().IntVar(&port, "port", config.DefaultPort, "Port to listen on (overrides PORT)")
	return cmd
}

func runServe(ctx context.Context, cfg *config.Config) error {
	logger, err := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	if cfg.GeneratedSecret {
		logger.Warn("SECRET_KEY is not set; using a random key. Sessions will not survive a restart and this is not safe for production.")
	}
	if !cfg.HasModel() {
		logger.Warn("GEMINI_API_KEY is not set; model endpoints will fail and scoring uses the heuristic")
	}

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.closeModel(); err != nil {
			logger.Warn("failed to close model client", zap.Error(err))
		}
	}()

	srv := server.New(cfg.Addr(), a.serverDeps())
	if err := srv.Run(ctx); err != nil {
		// A failed listen never reaches Shutdown
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return err
	}
	return nil
}
