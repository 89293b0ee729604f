// Command backend serves the artists and songs collections from MongoDB and
// exposes request metrics at /metrics.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/soundstats/music-api/config"
	"github.com/soundstats/music-api/data"
	"github.com/soundstats/music-api/health"
	"github.com/soundstats/music-api/interfaces"
	"github.com/soundstats/music-api/logging"
	"github.com/soundstats/music-api/metrics"
	"github.com/soundstats/music-api/scheduler"
	"github.com/soundstats/music-api/server"
	"github.com/soundstats/music-api/visitors"
)

const shutdownTimeout = 30 * time.Second

func main() {
	if err := run(); err != nil {
		logging.Error("Backend stopped with error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	if err := config.LoadDotEnv(); err != nil {
		return err
	}

	cfg, err := config.LoadBackend()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logging.InitLogger(cfg.Env, cfg.LogLevel)
	logging.Info("Configuration loaded",
		"env", cfg.Env.String(),
		"port", cfg.Port,
		"database", cfg.MongoDatabase,
		"visitor_ttl", cfg.VisitorTTL.String(),
		"visitor_max_entries", cfg.VisitorMaxEntries,
		"session_sampling", cfg.SessionSampling,
	)

	reg := metrics.NewRegistry()
	serviceMetrics, err := metrics.NewServiceMetrics(reg)
	if err != nil {
		return fmt.Errorf("failed to register metrics: %w", err)
	}

	store, err := data.NewMongoStore(cfg.MongoURI, cfg.MongoDatabase, cfg.QueryTimeout)
	if err != nil {
		return err
	}

	tracker := visitors.New(cfg.VisitorTTL, cfg.VisitorMaxEntries,
		visitors.WithEvictHook(serviceMetrics.ForgetVisitor))

	var sampler interfaces.SessionSampler
	if cfg.SessionSampling {
		sampler = metrics.NewUniformSampler(cfg.SessionMinSeconds, cfg.SessionMaxSeconds)
	}

	sweeper := scheduler.NewScheduler(tracker, serviceMetrics.VisitorsTracked, cfg.VisitorSweepInterval)
	if err := sweeper.Start(); err != nil {
		return err
	}
	defer sweeper.Stop()

	srv := server.NewServer(&cfg.Config, server.Dependencies{
		Store:    store,
		Health:   health.NewHealthChecker(store, tracker),
		Registry: reg,
		Metrics:  serviceMetrics,
		Visitors: tracker,
		Sampler:  sampler,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		serverErr := srv.Shutdown(shutdownCtx)
		if err := store.Close(shutdownCtx); err != nil {
			logging.Error("Failed to close database connection", "error", err)
		}
		return serverErr
	})

	return g.Wait()
}
