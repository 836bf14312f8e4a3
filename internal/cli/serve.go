package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dunamismax/pixelpost/internal/api"
	"github.com/dunamismax/pixelpost/internal/pipeline"
	"github.com/dunamismax/pixelpost/internal/ratelimit"
	"github.com/dunamismax/pixelpost/internal/store"
	"github.com/dunamismax/pixelpost/internal/webhook"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

func newServeCommand(globals *globalOptions) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:          "serve",
		Short:        "Serve the image pipeline over HTTP",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(globals, addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides api.addr)")
	return cmd
}

func runServe(globals *globalOptions, addr string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := setup(ctx, globals)
	if err != nil {
		return err
	}
	defer rt.close(context.Background())
	logger := rt.logger.Named("serve")

	if strings.TrimSpace(addr) == "" {
		addr = rt.cfg.API.Addr
	}

	backend, err := pipeline.NewBackend()
	if err != nil {
		return fmt.Errorf("build backend: %w", err)
	}
	defer pipeline.Shutdown()

	engine, err := pipeline.NewEngine(backend, rt.logger)
	if err != nil {
		return err
	}

	runs, err := openRunStore(ctx, rt.cfg.Database.DSN)
	if err != nil {
		return err
	}
	defer func() {
		if err := runs.Close(); err != nil {
			logger.Warn("run store close failed", zap.Error(err))
		}
	}()

	opts := api.Options{
		Logger:   rt.logger,
		Engine:   engine,
		RunStore: runs,
		Notifier: webhook.NewClient(webhook.Config{
			SigningSecret:  rt.cfg.Webhook.Secret,
			Timeout:        rt.cfg.Webhook.Timeout,
			MaxAttempts:    rt.cfg.Webhook.MaxAttempts,
			InitialBackoff: 500 * time.Millisecond,
			MaxBackoff:     5 * time.Second,
		}),
		RateLimitUserIDHeader: rt.cfg.RateLimit.UserIDHeader,
		RateLimitCostUnit:     rt.cfg.RateLimit.CostUnitBytes,
		Tracer:                otel.Tracer("github.com/dunamismax/pixelpost/internal/api"),
		MaxBodyBytes:          rt.cfg.API.MaxBodyBytes,
	}

	if rt.cfg.RateLimit.Enabled {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     rt.cfg.RateLimit.RedisAddr,
			Password: rt.cfg.RateLimit.RedisPassword,
			DB:       rt.cfg.RateLimit.RedisDB,
		})
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis client close failed", zap.Error(err))
			}
		}()

		limiter, err := ratelimit.NewBucket(redisClient, ratelimit.BucketOptions{
			Capacity: rt.cfg.RateLimit.Capacity,
			Window:   rt.cfg.RateLimit.Window,
		})
		if err != nil {
			return fmt.Errorf("build rate limiter: %w", err)
		}
		opts.RateLimiter = limiter
		logger.Info("rate limiting enabled",
			zap.String("redis_addr", rt.cfg.RateLimit.RedisAddr),
			zap.Int("capacity", rt.cfg.RateLimit.Capacity),
			zap.Duration("window", rt.cfg.RateLimit.Window),
		)
	}

	app, err := api.NewServer(opts)
	if err != nil {
		return err
	}
	defer app.Close()

	httpServer := &http.Server{
		Addr:         addr,
		Handler:      app.Handler(),
		ReadTimeout:  rt.cfg.API.ReadTimeout,
		WriteTimeout: rt.cfg.API.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", addr), zap.String("backend", engine.BackendName()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Info("shutting down")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("graceful shutdown failed", zap.Error(err))
	}
	return nil
}

func openRunStore(ctx context.Context, dsn string) (store.RunStore, error) {
	if strings.TrimSpace(dsn) == "" {
		return store.NewMemoryRunStore(0), nil
	}
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	runs, err := store.NewPostgresRunStore(connectCtx, dsn)
	if err != nil {
		return nil, fmt.Errorf("open run store: %w", err)
	}
	return runs, nil
}
