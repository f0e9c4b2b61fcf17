package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"classwork/internal/ai"
	"classwork/internal/config"
	"classwork/internal/lifecycle"
	"classwork/internal/realtime"
	"classwork/internal/server"
	"classwork/internal/storage/sqlite"
	"classwork/internal/viewer"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cmd.Flags())
		if err != nil {
			return err
		}
		return serve(cfg)
	},
}

func init() {
	config.RegisterFlags(serveCmd.Flags())
	rootCmd.AddCommand(serveCmd)
}

func serve(cfg config.Config) error {
	logger := cfg.NewLogger(os.Stdout)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	hub := realtime.NewHub(logger)
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password})
		defer client.Close()
		bridge := realtime.NewRedisBridge(client, cfg.Redis.Channel, hub, logger)
		go func() {
			if err := bridge.Run(ctx); err != nil {
				logger.Error("realtime bridge stopped", slog.String("error", err.Error()))
			}
		}()
	}

	store, err := sqlite.Open(cfg.DBPath, hub, logger)
	if err != nil {
		logger.Error("unable to open database", slog.String("error", err.Error()))
		return err
	}
	defer store.Close()

	var opts []lifecycle.Option
	if cfg.StrictTransitions {
		opts = append(opts, lifecycle.WithStrictTransitions())
	}
	manager := lifecycle.New(store, logger, opts...)

	srv := server.New(viewer.Deps{
		Manager:       manager,
		Suggester:     newSuggester(cfg.AI, logger),
		DueSoonWindow: cfg.DueSoonWindow,
	}, logger, cfg.StaticDir)

	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           srv.Engine(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", slog.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("server stopped unexpectedly", slog.String("error", err.Error()))
			return err
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown server", slog.String("error", err.Error()))
	}

	logger.Info("server stopped")
	return nil
}

func newSuggester(cfg config.AI, logger *slog.Logger) ai.Suggester {
	completer, err := ai.NewAnthropicCompleter(cfg.APIKey, cfg.Model, cfg.MaxTokens, logger)
	if err != nil {
		logger.Warn("AI suggestions disabled", slog.String("reason", err.Error()))
		return ai.Disabled{}
	}
	return ai.NewClient(completer, ai.Config{
		MaxConcurrent:     cfg.MaxConcurrent,
		RequestsPerMinute: cfg.RequestsPerMinute,
	}, logger)
}
