// The mrqsim command implements the Marquee scheduling authority simulator
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/marqueehq/marquee/internal/mrqsim/config"
	"github.com/marqueehq/marquee/internal/mrqsim/database"
	"github.com/marqueehq/marquee/internal/mrqsim/httpapi"
	"github.com/marqueehq/marquee/internal/mrqsim/ratelimit"
	redisstore "github.com/marqueehq/marquee/internal/mrqsim/ratelimit/redis"
	"github.com/marqueehq/marquee/internal/mrqsim/resolve"
	signalhub "github.com/marqueehq/marquee/internal/mrqsim/signal"
	"github.com/marqueehq/marquee/internal/mrqsim/store"
	"github.com/marqueehq/marquee/internal/mrqsim/store/memory"
	"github.com/marqueehq/marquee/internal/mrqsim/store/postgres"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	// Structured logging with JSON format for easier parsing
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	repo, cleanup, err := setupStore(cfg, logger)
	if err != nil {
		logger.Error("failed to setup store", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	resolver := resolve.NewService(repo, logger)

	hub := signalhub.NewHub(resolver, logger)
	hubCtx, hubCancel := context.WithCancel(context.Background())
	defer hubCancel()
	go hub.Run(hubCtx)

	var pollLimiter func(http.Handler) http.Handler
	serveWs := http.HandlerFunc(hub.ServeWs)
	if limits := setupRateLimit(cfg, logger); limits != nil {
		pollLimiter = ratelimit.Middleware(limits, "poll", logger)
		serveWs = ratelimit.Middleware(limits, "ws_connect", logger)(serveWs).ServeHTTP
	}

	zl := zerolog.New(os.Stdout).With().Timestamp().Logger()
	handler := httpapi.NewHandler(repo, resolver, hub, pollLimiter, serveWs, zl)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      handler.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info("starting server",
			"host", cfg.Server.Host,
			"port", cfg.Server.Port,
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	<-shutdown
	logger.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	hubCancel()
	logger.Info("server stopped")
}

// setupStore selects the postgres repository when a database host is
// configured, falling back to the in-memory store otherwise.
func setupStore(cfg *config.Config, logger *slog.Logger) (store.Repository, func(), error) {
	if cfg.Database.Host == "" {
		logger.Info("using in-memory store")
		return memory.NewRepository(), func() {}, nil
	}

	db, err := database.Setup(cfg.Database.ConnString(), 5, time.Second)
	if err != nil {
		return nil, nil, err
	}
	if err := postgres.Migrate(db); err != nil {
		db.Close()
		return nil, nil, err
	}

	logger.Info("using postgres store", "host", cfg.Database.Host, "database", cfg.Database.Name)
	return postgres.NewRepository(db), func() { db.Close() }, nil
}

// setupRateLimit wires the redis-backed rate limit service. Returns nil
// when redis is not configured.
func setupRateLimit(cfg *config.Config, logger *slog.Logger) *ratelimit.Service {
	if cfg.Redis.Addr == "" {
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	svc := ratelimit.NewService(redisstore.NewStore(client), logger)
	svc.RegisterDefaultLimits()

	logger.Info("rate limiting enabled", "redis", cfg.Redis.Addr)
	return svc
}
