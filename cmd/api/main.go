package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rikouu/serdo-v2-sub001/internal/app/migrate"
	httpx "github.com/rikouu/serdo-v2-sub001/internal/http"
	"github.com/rikouu/serdo-v2-sub001/internal/repository"
	"github.com/rikouu/serdo-v2-sub001/internal/repository/memory"
	"github.com/rikouu/serdo-v2-sub001/internal/repository/postgres"
	"github.com/rikouu/serdo-v2-sub001/internal/repository/sqlite"
	"github.com/rikouu/serdo-v2-sub001/internal/service/auth"
	"github.com/rikouu/serdo-v2-sub001/internal/service/checklog"
	"github.com/rikouu/serdo-v2-sub001/internal/service/checks"
	"github.com/rikouu/serdo-v2-sub001/internal/service/inventory"
	"github.com/rikouu/serdo-v2-sub001/internal/service/notify"
	"github.com/rikouu/serdo-v2-sub001/internal/service/probe"
	"github.com/rikouu/serdo-v2-sub001/internal/service/secrets"
	"github.com/rikouu/serdo-v2-sub001/internal/service/whois"
	"github.com/rikouu/serdo-v2-sub001/internal/ws"
	"github.com/rikouu/serdo-v2-sub001/pkg/config"
	"github.com/rikouu/serdo-v2-sub001/pkg/logger"
)

const revealGrantTTL = 5 * time.Minute

type store interface {
	repository.UserRepository
	repository.TenantRepository
}

func main() {
	cfg := config.LoadAPIConfig()
	log := logger.New("api", logger.ParseLevel(cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	raw, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		log.Error("failed to open store", "driver", cfg.StoreDriver, "error", err)
		os.Exit(1)
	}
	defer closeStore()

	if cfg.SecretKey == "" || cfg.SecretKey == "supersecuresecret" {
		log.Warn("SERDO_SECRET_KEY is unset or default; stored secrets are not protected")
	}
	codec := secrets.NewCodec(cfg.SecretKey, log)
	tenants := secrets.NewSealedRepository(raw, codec)

	hub := ws.NewHub()
	logSvc := checklog.New(tenants, hub, log)
	gateway := whois.New(cfg.WhoisTimeout, log)
	dispatcher := notify.New(cfg.NotifyTimeout, log,
		notify.Bark{Client: &http.Client{}},
		notify.SMTP{Timeout: cfg.NotifyTimeout},
	)
	checkSvc := checks.New(tenants, probe.New(cfg.ProbeTimeout), gateway, dispatcher, logSvc, log, checks.Options{
		Concurrency: cfg.CheckConcurrency,
	})

	scheduler := checks.NewScheduler(tenants, checkSvc, cfg.SchedulerTick, log)
	go scheduler.Run(ctx)

	var limiter httpx.RateLimiter
	if addr := strings.TrimSpace(cfg.RateLimitRedisAddr); addr != "" {
		redisLimiter, err := httpx.NewRedisRateLimiter(addr, cfg.RateLimitRedisPass, cfg.RateLimitRedisDB, log)
		if err != nil {
			log.Warn("redis rate limiter unavailable", "error", err)
		} else {
			limiter = redisLimiter
		}
	}

	router := httpx.NewRouter(httpx.Deps{
		Logger:    log,
		Auth:      auth.New(raw, tenants, log, cfg.JWTSecret, cfg.AccessTokenTTL),
		Inventory: inventory.New(tenants, log),
		Checks:    checkSvc,
		CheckLogs: logSvc,
		Revealer:  secrets.NewRevealer(raw, raw, codec, cfg.JWTSecret, revealGrantTTL, log),
		Whois:     gateway.WithTimeout(cfg.WhoisTestTimeout),
		Notifier:  dispatcher,
		Limiter:   limiter,
		DBHealth:  raw.Ping,
		Metrics:   cfg.MetricsEnabled,
	})
	defer router.Close()

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errorCh := make(chan error, 1)
	go func() {
		log.Info("api server starting", "addr", cfg.Addr, "store", cfg.StoreDriver)
		errorCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("graceful shutdown failed", "error", err)
		}
		log.Info("api server stopped")
	case err := <-errorCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}
}

// openStore connects the configured backend. Postgres runs pending
// migrations before serving.
func openStore(ctx context.Context, cfg config.APIConfig, log *slog.Logger) (store, func(), error) {
	switch cfg.StoreDriver {
	case config.StorePostgres:
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		runner, err := migrate.New(pool, cfg.MigrationsDir, log)
		if err != nil {
			pool.Close()
			return nil, nil, err
		}
		defer runner.Close()
		if err := runner.Ensure(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		return postgres.New(pool), pool.Close, nil
	case config.StoreSQLite:
		repo, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return repo, func() { _ = repo.Close() }, nil
	case config.StoreMemory:
		log.Warn("using in-memory store; data is lost on restart")
		return memory.New(), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}
