package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"basegraph.app/advflag/common/id"
	"basegraph.app/advflag/common/logger"
	"basegraph.app/advflag/common/otel"
	"basegraph.app/advflag/core/config"
	"basegraph.app/advflag/internal/http/middleware"
	httprouter "basegraph.app/advflag/internal/http/router"
	"basegraph.app/advflag/internal/queue"
	"basegraph.app/advflag/internal/service"
	"basegraph.app/advflag/internal/worker"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

func main() {
	fmt.Printf("%s\n", banner)
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		slog.ErrorContext(ctx, "failed to load config", "error", err)
		os.Exit(1)
	}

	// OTel must init before logger (logger uses OTel provider in production)
	telemetry, err := otel.Setup(ctx, cfg.OTel)
	if err != nil {
		os.Stderr.WriteString("failed to initialize otel: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger.Setup(cfg)

	if telemetry != nil {
		slog.InfoContext(ctx, "otel initialized", "endpoint", cfg.OTel.Endpoint)
	} else {
		slog.InfoContext(ctx, "otel disabled (no endpoint configured)")
	}

	slog.InfoContext(ctx, "advflag starting",
		"env", cfg.Env,
		"site", cfg.Platform.SiteURL,
		"main_site", cfg.Platform.IsMainSite)

	if err := id.Init(1); err != nil {
		slog.ErrorContext(ctx, "failed to initialize snowflake id generator", "error", err)
		os.Exit(1)
	}

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		slog.ErrorContext(ctx, "failed to parse redis url", "error", err)
		os.Exit(1)
	}

	redisClient := redis.NewClient(redisOpts)
	if err := redisClient.Ping(ctx).Err(); err != nil {
		slog.ErrorContext(ctx, "failed to connect to redis", "error", err)
		os.Exit(1)
	}
	slog.InfoContext(ctx, "redis connected", "stream", cfg.Stream.Name)

	// The producer owns the client and closes it on shutdown.
	eventProducer := queue.NewRedisProducer(redisClient, cfg.Stream.Name, slog.Default())
	defer eventProducer.Close()

	consumer, err := queue.NewRedisConsumer(redisClient, queue.ConsumerConfig{
		Stream:    cfg.Stream.Name,
		Group:     cfg.Stream.Group,
		Consumer:  cfg.Stream.Consumer,
		DLQStream: cfg.Stream.DLQStream,
		BatchSize: cfg.Stream.BatchSize,
		Block:     cfg.Stream.Block,
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to create consumer", "error", err)
		os.Exit(1)
	}

	// The coordinator state (post directory, correlator, watches) is in-process,
	// so the stream consumer runs here rather than in a separate worker binary.
	services := service.NewServices(cfg, redisClient, eventProducer)

	w := worker.New(consumer, services.Bus())
	janitor := worker.NewJanitor(redisClient, worker.JanitorConfig{
		Stream:    cfg.Stream.Name,
		Group:     cfg.Stream.Group,
		Consumer:  cfg.Stream.Consumer + "-janitor",
		MinIdle:   cfg.Stream.StaleIdle,
		Interval:  time.Minute,
		BatchSize: 50,
	}, consumer)

	errCh := make(chan error, 2)
	go func() {
		errCh <- w.Run(ctx)
	}()
	go func() {
		janitor.Run(ctx)
		errCh <- nil
	}()

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           setupRouter(cfg, services),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		slog.InfoContext(ctx, "http server starting", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.ErrorContext(ctx, "http server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.InfoContext(ctx, "shutting down...")

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.ErrorContext(shutdownCtx, "http server shutdown error", "error", err)
	}

	// Janitor first (quick), then the worker which may be mid-batch.
	janitor.Stop()
	w.Stop()

	for range 2 {
		if err := <-errCh; err != nil && !errors.Is(err, context.Canceled) {
			slog.ErrorContext(ctx, "worker error during shutdown", "error", err)
		}
	}

	if telemetry != nil {
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "otel shutdown error", "error", err)
		}
	}

	slog.InfoContext(shutdownCtx, "shutdown complete")
}

func setupRouter(cfg config.Config, services *service.Services) *gin.Engine {
	router := gin.New()

	// Order matters: OTel creates span → Recovery catches panics → Logger logs with trace context
	if cfg.OTel.Enabled() {
		router.Use(otelgin.Middleware(cfg.OTel.ServiceName))
	}
	router.Use(middleware.Recovery())
	router.Use(middleware.Logger())

	httprouter.SetupRoutes(router, services, httprouter.RouterConfig{
		TraceHeader: cfg.Stream.TraceHeader,
	})

	return router
}

const banner = `
 █████╗ ██████╗ ██╗   ██╗███████╗██╗      █████╗  ██████╗
██╔══██╗██╔══██╗██║   ██║██╔════╝██║     ██╔══██╗██╔════╝
███████║██║  ██║██║   ██║█████╗  ██║     ███████║██║  ███╗
██╔══██║██║  ██║╚██╗ ██╔╝██╔══╝  ██║     ██╔══██║██║   ██║
██║  ██║██████╔╝ ╚████╔╝ ██║     ███████╗██║  ██║╚██████╔╝
╚═╝  ╚═╝╚═════╝   ╚═══╝  ╚═╝     ╚══════╝╚═╝  ╚═╝ ╚═════╝
`
