// ingestion-service
//
// Aggregates job and tender postings from public web sources into one
// deduplicated store, refreshed on a schedule.
//   - cron-driven runs over every enabled source, one source at a time
//   - HTTP JSON API (postings, sources, run logs, on-demand runs)
//   - gRPC admin API + standard health service
//
// Publishes EVENT_SOURCE_SCRAPED to Redis after each source run when
// REDIS_URL is set.
//
// One-shot mode: `ingestion-service -once [-source <id>]` runs immediately
// and exits without starting any server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"jobtracker/ingestion-service/internal/api"
	"jobtracker/ingestion-service/internal/catalog"
	"jobtracker/ingestion-service/internal/config"
	"jobtracker/ingestion-service/internal/db"
	"jobtracker/ingestion-service/internal/events"
	"jobtracker/ingestion-service/internal/grpcserver"
	"jobtracker/ingestion-service/internal/ingest"
	"jobtracker/ingestion-service/internal/model"
	"jobtracker/ingestion-service/internal/scheduler"
	"jobtracker/ingestion-service/internal/scraper"
	"jobtracker/ingestion-service/internal/store"
	"jobtracker/ingestion-service/internal/store/postgres"
	"jobtracker/ingestion-service/internal/store/sqlite"
)

const version = "1.0.0"

func main() {
	once := flag.Bool("once", false, "run ingestion once and exit")
	sourceID := flag.String("source", "", "with -once, run only this source")
	flag.Parse()

	if err := run(*once, *sourceID); err != nil {
		slog.Error("ingestion-service failed", "err", err)
		os.Exit(1)
	}
}

func run(once bool, sourceID string) error {
	// ── Config ──────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	logger := newLogger(cfg)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Store ───────────────────────────────────────────────────────────────
	st, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	registry := scraper.NewDefaultRegistry()
	for _, src := range cfg.SourceModels() {
		if !registry.IsSupported(src.ID) {
			logger.Warn("no extractor registered for configured source", "source", src.ID)
		}
		if err := st.SeedSource(ctx, src); err != nil {
			return fmt.Errorf("seed sources: %w", err)
		}
	}

	// ── Redis (optional) ────────────────────────────────────────────────────
	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	if rdb != nil {
		defer rdb.Close()
		logger.Info("redis connected")
	}

	orch := ingest.New(st, registry,
		ingest.WithSettings(cfg.SettingsFor),
		ingest.WithPublisher(events.New(rdb)),
		ingest.WithLogger(logger),
	)

	svc := catalog.NewService(st, catalog.WithLogger(logger))

	if once {
		return runOnce(ctx, logger, orch, svc, sourceID)
	}

	// ── Scheduler ───────────────────────────────────────────────────────────
	sched := scheduler.New(orch, time.Duration(cfg.ScrapeIntervalHours)*time.Hour,
		scheduler.WithRunOnStart(cfg.ScrapeOnStart),
		scheduler.WithLogger(logger),
	)
	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("scheduler: %w", err)
	}

	// ── HTTP server ─────────────────────────────────────────────────────────
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      api.NewRouter(api.NewHandler(svc, sched, logger)),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 5 * time.Minute, // POST /api/scraper/source waits for the run
	}
	errCh := make(chan error, 2)
	go func() {
		logger.Info("http listening", "version", version, "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	// ── gRPC server ─────────────────────────────────────────────────────────
	gs, hs := grpcserver.New(grpcserver.NewServer(sched, svc), logger)
	lis, err := net.Listen("tcp", ":"+cfg.GRPCPort)
	if err != nil {
		return fmt.Errorf("grpc listen: %w", err)
	}
	go func() {
		logger.Info("grpc listening", "port", cfg.GRPCPort)
		if err := gs.Serve(lis); err != nil {
			errCh <- fmt.Errorf("grpc server: %w", err)
		}
	}()

	// ── Graceful shutdown ───────────────────────────────────────────────────
	select {
	case <-ctx.Done():
	case err := <-errCh:
		logger.Error("server failed", "err", err)
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	hs.Shutdown()
	gs.GracefulStop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown error", "err", err)
	}
	select {
	case <-sched.Stop().Done():
	case <-shutdownCtx.Done():
		logger.Warn("in-flight run did not finish before shutdown timeout")
	}
	logger.Info("stopped")
	return nil
}

func runOnce(ctx context.Context, logger *slog.Logger, orch *ingest.Orchestrator, svc *catalog.Service, sourceID string) error {
	started := time.Now()
	var outs []model.RunOutcome
	if sourceID != "" {
		outs = []model.RunOutcome{orch.RunOne(ctx, sourceID)}
	} else {
		var err error
		if outs, err = orch.RunAll(ctx); err != nil {
			return err
		}
	}

	for _, o := range outs {
		if o.Success {
			logger.Info("source done", "source", o.SourceID,
				"found", o.JobsFound, "added", o.JobsAdded, "updated", o.JobsUpdated)
		} else {
			logger.Warn("source failed", "source", o.SourceID, "err", o.Error)
		}
	}
	n, err := svc.SweepExpired(ctx)
	if err != nil {
		return err
	}
	logger.Info("ingestion complete", "sources", len(outs), "expired", n, "took", time.Since(started))
	return nil
}

func openStore(ctx context.Context, cfg *config.Config) (store.RecordStore, error) {
	if cfg.UsesPostgres() {
		pool, err := db.NewPostgresPool(ctx, cfg.DatabaseURL, 0)
		if err != nil {
			return nil, fmt.Errorf("postgres: %w", err)
		}
		st, err := postgres.New(ctx, pool)
		if err != nil {
			pool.Close()
			return nil, err
		}
		slog.Info("postgres connected")
		return st, nil
	}

	conn, err := db.OpenSQLite(db.SQLitePath(cfg.DatabaseURL))
	if err != nil {
		return nil, err
	}
	st, err := sqlite.New(ctx, conn)
	if err != nil {
		conn.Close()
		return nil, err
	}
	slog.Info("sqlite opened", "path", db.SQLitePath(cfg.DatabaseURL))
	return st, nil
}

func newLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.LogLevel}
	if cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
