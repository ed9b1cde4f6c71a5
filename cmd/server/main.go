package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/skillpath/scheduling/internal/app"
	"github.com/skillpath/scheduling/internal/config"
	"github.com/skillpath/scheduling/internal/repository"
	"github.com/skillpath/scheduling/internal/service"
	transport "github.com/skillpath/scheduling/internal/transport/http"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := app.NewLogger(cfg.Environment)
	defer logger.Sync()

	logger.Info("starting scheduling engine",
		zap.String("environment", cfg.Environment),
		zap.String("http_addr", cfg.HTTPAddr),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.DBDSN)
	if err != nil {
		logger.Fatal("failed to create connection pool", zap.Error(err))
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		logger.Fatal("failed to reach database", zap.Error(err))
	}

	migrator, err := app.NewMigrator(pool, cfg.MigrationsDir, logger)
	if err != nil {
		logger.Fatal("failed to create migrator", zap.Error(err))
	}
	if err := migrator.Run(ctx); err != nil {
		logger.Fatal("failed to apply migrations", zap.Error(err))
	}
	migrator.Close()

	slotRepo := repository.NewSlotRepository(pool)
	bookingRepo := repository.NewBookingRepository(pool)
	analyticsRepo := repository.NewAnalyticsRepository(pool)

	publisher := service.NewLogPublisher(logger)
	resolver := service.NewSlotResolver(slotRepo, bookingRepo, logger)
	availability := service.NewAvailabilityService(slotRepo, bookingRepo, logger)
	engine := service.NewBookingEngine(slotRepo, bookingRepo, resolver, publisher, logger)
	analytics := service.NewAnalyticsService(bookingRepo, analyticsRepo, logger)

	scheduler := app.NewScheduler(analytics, bookingRepo, cfg.AnalyticsInterval, logger)
	scheduler.Start(ctx)
	defer scheduler.Stop()

	server := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      transport.NewRouter(availability, resolver, engine, analytics, pool, logger),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		logger.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("http server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown failed", zap.Error(err))
	}
}
