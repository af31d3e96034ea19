package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gastos/internal/cache"
	"gastos/internal/cli"
	apphttp "gastos/internal/http"
	"gastos/internal/log"
	"gastos/internal/services"
)

func main() {
	boot := log.New(log.DefaultConfig())
	cli.LoadEnvFile(boot)
	cfg := cli.LoadAndValidateConfig(boot)

	logger := cfg.Logger()
	log.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// The schema is migrated before the listener opens.
	store := cli.OpenStore(ctx, logger, cfg.SQLiteDBPath)

	svc := services.NewExpenseService(store, services.Options{
		Logger:      logger,
		Location:    cfg.Location(),
		RecentLimit: cfg.RecentLimit,
		CacheSize:   cfg.CacheSize,
		CacheTTL:    cfg.CacheTTL,
	})
	defer func() {
		if err := svc.Close(); err != nil {
			logger.Error("Failed to close database", log.FieldError, err)
		}
	}()

	caches := cache.NewManager()
	for _, c := range svc.Caches() {
		caches.Register(c)
	}
	if cfg.CacheTTL > 0 {
		caches.StartCleanup(cfg.CacheTTL)
	}
	defer caches.Stop()

	srv := apphttp.NewServer(":"+cfg.Port, svc, apphttp.Options{
		Logger:             logger,
		Ready:              store,
		RateLimitPerMinute: cfg.RateLimitPerMin,
		CORSOrigin:         cfg.CORSAllowedOrigin,
	})

	logger.Info("Starting gastos server",
		"port", cfg.Port, "db_path", cfg.SQLiteDBPath, "timezone", cfg.Location().String())
	start := time.Now()
	if err := cli.Serve(ctx, logger, srv, cfg.ShutdownTimeout); err != nil {
		logger.Error("Server stopped with error", log.FieldError, err)
		stop()
		svc.Close()
		caches.Stop()
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully", "uptime", time.Since(start).Round(time.Second).String())
}
