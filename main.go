// Package main provides the entry point of the next-best-action decision core
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/amirphl/nba-decision-core/app/cache"
	"github.com/amirphl/nba-decision-core/app/events"
	"github.com/amirphl/nba-decision-core/app/handlers"
	"github.com/amirphl/nba-decision-core/app/router"
	"github.com/amirphl/nba-decision-core/app/scheduler"
	"github.com/amirphl/nba-decision-core/app/storage"
	businessflow "github.com/amirphl/nba-decision-core/business_flow"
	"github.com/amirphl/nba-decision-core/config"
	"github.com/amirphl/nba-decision-core/migrations"
	"github.com/amirphl/nba-decision-core/repository"
	"github.com/amirphl/nba-decision-core/scoring"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Application holds the wired flows and whatever needs closing on exit
type Application struct {
	config    *config.Config
	db        *gorm.DB
	repos     repository.Set
	flows     *businessflow.Flows
	stopFuncs []func()
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// serve runs the HTTP surface until SIGINT or SIGTERM
func serve(app *Application) error {
	cfg := app.config
	fiberRouter := router.NewFiberRouter(router.Config{
		BodyLimit:    cfg.Server.BodyLimit,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}, router.Handlers{
		Decision: handlers.NewDecisionHandler(app.flows.Arbitration, cfg.Decision.ScoreAll),
		Campaign: handlers.NewCampaignHandler(app.flows.Campaigns, app.flows.Lifecycle),
		Audit:    handlers.NewAuditHandler(app.flows.Audit),
	})
	fiberRouter.SetupRoutes()
	server := fiberRouter.GetApp()

	if cfg.Decision.ExpirySweepInterval > 0 {
		stopSweeper := scheduler.NewExpirySweeper(app.flows.Lifecycle, log.Default(), cfg.Decision.ExpirySweepInterval).
			Start(context.Background())
		defer stopSweeper()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		errChan <- fiberRouter.Start(cfg.Server.Addr())
	}()

	select {
	case err := <-errChan:
		return fmt.Errorf("failed to start server: %w", err)
	case <-sigChan:
	}
	log.Println("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("Error during shutdown: %v", err)
	}

	log.Println("Server stopped")
	return nil
}

// initializeDatabase opens the pool and verifies connectivity
func initializeDatabase(cfg config.DatabaseConfig) (*gorm.DB, error) {
	level := gormlogger.Warn
	if cfg.LogQueries {
		level = gormlogger.Info
	}
	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger: gormlogger.New(log.Default(), gormlogger.Config{
			SlowThreshold:             cfg.SlowQueryLog,
			LogLevel:                  level,
			IgnoreRecordNotFoundError: true,
		}),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Printf("Database connection established with %d max open connections, %d max idle connections",
		cfg.MaxOpenConns, cfg.MaxIdleConns)
	return db, nil
}

// startCacheHealthMonitor pings redis periodically so connectivity loss shows up in the logs
func startCacheHealthMonitor(parent context.Context, client *redis.Client, interval time.Duration) func() {
	monitorCtx, cancel := context.WithCancel(parent)
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-monitorCtx.Done():
				return
			case <-ticker.C:
				ctx, c := context.WithTimeout(context.Background(), 3*time.Second)
				if err := client.Ping(ctx).Err(); err != nil {
					log.Printf("Redis healthcheck failed: %v", err)
				}
				c()
			}
		}
	}()
	return cancel
}

// initializeApplication connects to every configured backend and wires the flows
func initializeApplication(ctx context.Context, cfg *config.Config, migrate bool) (*Application, error) {
	db, err := initializeDatabase(cfg.Database)
	if err != nil {
		return nil, err
	}
	app := &Application{config: cfg, db: db}
	app.stopFuncs = append(app.stopFuncs, func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	if migrate {
		if err := app.migrate(); err != nil {
			app.Close()
			return nil, err
		}
	}

	profile, err := scoring.LoadProfile(cfg.Scoring.ProfileFile)
	if err != nil {
		app.Close()
		return nil, err
	}
	opts := businessflow.Options{
		Profile:    profile,
		SampleSize: cfg.Decision.SampleSize,
		Logger:     log.Default(),
	}

	if cfg.Cache.Enabled {
		rc, err := cache.Connect(ctx, cfg.Cache.RedisURL)
		if err != nil {
			app.Close()
			return nil, err
		}
		opts.Cache = cache.NewAudienceCache(rc, cfg.Cache.Prefix, cfg.Cache.TTL)
		stopMonitor := startCacheHealthMonitor(ctx, rc, 30*time.Second)
		app.stopFuncs = append(app.stopFuncs, stopMonitor, func() { _ = rc.Close() })
	}

	if cfg.Events.Enabled {
		publisher, err := events.NewNATSAuditPublisher(cfg.Events.URL, cfg.Events.Subject, cfg.Events.Name)
		if err != nil {
			app.Close()
			return nil, err
		}
		opts.Publisher = publisher
		app.stopFuncs = append(app.stopFuncs, func() {
			if err := publisher.Close(); err != nil {
				log.Printf("Error draining NATS connection: %v", err)
			}
		})
	}

	if cfg.Export.Enabled {
		uploader, err := storage.NewS3Uploader(ctx, cfg.Export.Bucket, cfg.Export.Prefix, cfg.Export.Region, cfg.Export.Endpoint)
		if err != nil {
			app.Close()
			return nil, err
		}
		opts.Uploader = uploader
	}

	app.repos = repository.NewSet(db)
	app.flows = businessflow.NewFlows(app.repos, opts)
	return app, nil
}

func (a *Application) migrate() error {
	sqlDB, err := a.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	return migrations.Up(sqlDB)
}

// Close stops background workers and releases connections, newest first
func (a *Application) Close() {
	for i := len(a.stopFuncs) - 1; i >= 0; i-- {
		a.stopFuncs[i]()
	}
	a.stopFuncs = nil
}
