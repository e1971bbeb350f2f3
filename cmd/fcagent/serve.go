package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pario-ai/fcagent/pkg/api"
	"github.com/pario-ai/fcagent/pkg/auth"
	"github.com/pario-ai/fcagent/pkg/cache/memory"
	"github.com/pario-ai/fcagent/pkg/config"
	"github.com/pario-ai/fcagent/pkg/llm"
	"github.com/pario-ai/fcagent/pkg/logging"
	"github.com/pario-ai/fcagent/pkg/metrics"
	"github.com/pario-ai/fcagent/pkg/tasks"
)

func newServeCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			logger, err := logging.New(cfg.Log)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			defer func() { _ = logger.Sync() }()

			store, err := tasks.Open(cfg.DBPath)
			if err != nil {
				return fmt.Errorf("init task store: %w", err)
			}
			defer func() { _ = store.Close() }()

			cache, err := memory.New(cfg.Cache, logger.Named("cache"))
			if err != nil {
				return fmt.Errorf("init cache: %w", err)
			}
			defer func() { _ = cache.Close() }()

			collector := metrics.New()
			if err := collector.RegisterCache(cache); err != nil {
				return fmt.Errorf("register cache metrics: %w", err)
			}

			client := llm.New(cfg.LLM, logger.Named("llm"))
			if !client.Configured() {
				logger.Warn("llm api key is not configured; task execution will fail")
			}
			if cfg.Auth.Password == "" && len(cfg.Auth.APIKeys) == 0 {
				logger.Warn("no password or api keys configured; protected routes are unreachable")
			}

			srv := api.New(api.Deps{
				Config:  cfg,
				Cache:   cache,
				Tasks:   tasks.NewService(store, client, cache, logger.Named("tasks")),
				DB:      store,
				LLM:     client,
				Auth:    auth.New(cfg.Auth),
				Metrics: collector,
				Logger:  logger.Named("api"),
			})

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			logger.Info("starting fcagent", zap.String("config", configPath), zap.String("version", version))
			if err := srv.ListenAndServe(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			logger.Info("fcagent stopped")
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "fcagent.yaml", "path to config file")
	return cmd
}
