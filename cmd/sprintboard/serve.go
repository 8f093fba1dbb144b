package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"

	"sprintboard/internal/middleware"
	"sprintboard/internal/server"
	"sprintboard/internal/telemetry"
)

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and serve the frontend",
		RunE:  runServe,
	}
	cmd.Flags().String("addr", ":8080", "HTTP listen address")
	cmd.Flags().String("static", "web/dist", "directory with the built frontend")
	addDBFlags(cmd)
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if f := cmd.Flags().Lookup("addr"); f.Changed {
		cfg.Addr = f.Value.String()
	}
	if f := cmd.Flags().Lookup("static"); f.Changed {
		cfg.StaticDir = f.Value.String()
	}

	rt, err := setup(cfg)
	if err != nil {
		return err
	}
	defer rt.Close()
	logger := rt.logger
	logger.Info("sprintboard", slog.String("version", Version), slog.String("driver", rt.store.Driver()))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, cfg.OTelEndpoint, cfg.ServiceName)
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Warn("trace flush failed", slog.String("error", err.Error()))
		}
	}()

	limiter, closeLimiter := loginLimiter(ctx, cfg.RedisAddr, cfg.LoginRate, cfg.LoginBurst, logger)
	defer closeLimiter()

	srv := server.New(server.Options{
		Services:     rt.svc,
		Store:        rt.store,
		Logger:       logger,
		StaticDir:    cfg.StaticDir,
		BlobDir:      rt.blobs.Root(),
		BlobURL:      rt.blobs.BaseURL(),
		CORSOrigins:  cfg.CORSOrigins,
		LoginLimiter: limiter,
	})

	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           otelhttp.NewHandler(srv.Engine(), "sprintboard"),
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

// loginLimiter prefers a Redis-backed limiter shared across instances and
// falls back to a per-process one when Redis is not configured or unreachable.
func loginLimiter(ctx context.Context, redisAddr string, perSecond float64, burst int, logger *slog.Logger) (gin.HandlerFunc, func()) {
	local := middleware.RateLimiter(rate.Limit(perSecond), burst, 10*time.Minute)
	if redisAddr == "" {
		return local, func() {}
	}

	client := redis.NewClient(&redis.Options{Addr: redisAddr})
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warn("redis unavailable, using in-process login limiter", slog.String("error", err.Error()))
		_ = client.Close()
		return local, func() {}
	}

	window := time.Minute
	limit := middleware.RateLimit{Rate: int(perSecond*window.Seconds()) + burst, Window: window}
	return middleware.NewDistributedRateLimiter(client, logger).Middleware("login", limit), func() { _ = client.Close() }
}
