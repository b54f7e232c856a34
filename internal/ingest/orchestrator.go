// Package ingest runs extraction for configured sources and records the
// results. One Orchestrator processes sources strictly one after another;
// run exclusivity is the scheduler's job.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"jobtracker/ingestion-service/internal/events"
	"jobtracker/ingestion-service/internal/fetcher"
	"jobtracker/ingestion-service/internal/model"
	"jobtracker/ingestion-service/internal/scraper"
	"jobtracker/ingestion-service/internal/store"
)

// ErrSourceNotFound is recorded when a run names a source the store does not know.
var ErrSourceNotFound = errors.New("source not found")

// Store is the persistence the orchestrator needs.
type Store interface {
	store.PostingStore
	store.SourceStore
	store.RunLogStore
}

// Orchestrator runs one source or every enabled source.
type Orchestrator struct {
	store     Store
	registry  *scraper.Registry
	settings  func(sourceID string) scraper.Settings
	getter    func(s scraper.Settings, logger *slog.Logger) scraper.Getter
	publisher events.Publisher
	now       func() time.Time
	sleep     func(ctx context.Context, d time.Duration) error
	newID     func() string
	logger    *slog.Logger
}

// Option customises an Orchestrator.
type Option func(*Orchestrator)

// WithSettings sets the per-source scraper settings lookup.
func WithSettings(fn func(sourceID string) scraper.Settings) Option {
	return func(o *Orchestrator) { o.settings = fn }
}

// WithPublisher sets where run outcomes are announced.
func WithPublisher(p events.Publisher) Option { return func(o *Orchestrator) { o.publisher = p } }

// WithClock sets the time source.
func WithClock(now func() time.Time) Option { return func(o *Orchestrator) { o.now = now } }

// WithSleep replaces the inter-source wait.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(o *Orchestrator) { o.sleep = fn }
}

// WithLogger sets the base logger.
func WithLogger(l *slog.Logger) Option { return func(o *Orchestrator) { o.logger = l } }

// WithGetterFactory replaces the network access handed to extractors.
func WithGetterFactory(fn func(s scraper.Settings, logger *slog.Logger) scraper.Getter) Option {
	return func(o *Orchestrator) { o.getter = fn }
}

// WithIDGenerator sets how run log ids are minted.
func WithIDGenerator(fn func() string) Option { return func(o *Orchestrator) { o.newID = fn } }

// New constructs an Orchestrator.
func New(st Store, registry *scraper.Registry, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store:     st,
		registry:  registry,
		settings:  func(string) scraper.Settings { return scraper.Settings{} },
		getter:    defaultGetter,
		publisher: events.Nop{},
		now:       time.Now,
		sleep:     fetcher.Sleep,
		newID:     uuid.NewString,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func defaultGetter(s scraper.Settings, logger *slog.Logger) scraper.Getter {
	return fetcher.New(s.Fetch, fetcher.WithLogger(logger))
}

// RunAll runs every enabled source sequentially and returns one outcome per
// source attempted. Each run is followed by that source's inter-source delay.
// Only a failure to list sources, or cancellation of ctx, is returned as an
// error.
func (o *Orchestrator) RunAll(ctx context.Context) ([]model.RunOutcome, error) {
	sources, err := o.store.ListSources(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("list enabled sources: %w", err)
	}
	o.logger.Info("run started", "sources", len(sources))

	outcomes := make([]model.RunOutcome, 0, len(sources))
	for _, src := range sources {
		outcomes = append(outcomes, o.RunOne(ctx, src.ID))

		if err := o.sleep(ctx, o.settings(src.ID).InterSourceDelay); err != nil {
			return outcomes, err
		}
	}

	var failed int
	for _, out := range outcomes {
		if !out.Success {
			failed++
		}
	}
	o.logger.Info("run complete", "sources", len(outcomes), "failed", failed)
	return outcomes, nil
}

// RunOne extracts and stores one source. Every failure is captured in the
// returned outcome and in the source's run log; nothing escapes.
func (o *Orchestrator) RunOne(ctx context.Context, sourceID string) model.RunOutcome {
	logger := o.logger.With("source", sourceID)
	r := &run{o: o, logger: logger, log: model.NewRunLog(o.newID(), sourceID, o.now())}

	if err := o.store.CreateRunLog(ctx, r.log); err != nil {
		logger.Error("create run log failed", "err", err)
		return model.RunOutcome{SourceID: sourceID, Error: err.Error()}
	}

	src, err := o.store.GetSource(ctx, sourceID)
	if errors.Is(err, store.ErrNotFound) {
		return r.fail(ctx, fmt.Errorf("%w: %s", ErrSourceNotFound, sourceID))
	}
	if err != nil {
		return r.fail(ctx, fmt.Errorf("load source: %w", err))
	}
	r.name = src.Name

	settings := o.settings(sourceID)
	extractor, err := o.registry.Resolve(*src, scraper.Deps{
		Getter:   o.getter(settings, logger),
		Settings: settings,
		Logger:   logger,
		Now:      o.now,
	})
	if err != nil {
		return r.fail(ctx, err)
	}

	candidates, err := extract(ctx, extractor)
	if err != nil {
		return r.fail(ctx, err)
	}
	r.counts.Found = len(candidates)

	for _, c := range candidates {
		created, err := o.store.UpsertPosting(ctx, c.Posting(sourceID))
		if err != nil {
			return r.fail(ctx, fmt.Errorf("upsert %s: %w", c.ExternalID, err))
		}
		if created {
			r.counts.Added++
		} else {
			r.counts.Updated++
		}
	}

	if err := o.store.RecordScrape(ctx, sourceID, len(candidates), o.now()); err != nil {
		return r.fail(ctx, fmt.Errorf("record scrape: %w", err))
	}
	return r.succeed(ctx)
}

// extract calls Extract and turns a panic into an error.
func extract(ctx context.Context, ex scraper.Extractor) (out []model.Candidate, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, err = nil, fmt.Errorf("extractor panic: %v", r)
		}
	}()
	return ex.Extract(ctx)
}

// run carries the state of a single RunOne call.
type run struct {
	o      *Orchestrator
	logger *slog.Logger
	log    model.RunLog
	name   string
	counts model.RunCounts
}

func (r *run) fail(ctx context.Context, runErr error) model.RunOutcome {
	r.logger.Warn("source run failed", "run", r.log.ID, "err", runErr)
	r.finish(ctx, model.RunError, runErr)
	return r.publish(ctx, model.RunOutcome{
		RunID:      r.log.ID,
		SourceID:   r.log.SourceID,
		SourceName: r.name,
		Success:    false,
		JobsFound:  r.counts.Found,
		Error:      runErr.Error(),
	})
}

func (r *run) succeed(ctx context.Context) model.RunOutcome {
	r.logger.Info("source run complete", "run", r.log.ID,
		"found", r.counts.Found, "added", r.counts.Added, "updated", r.counts.Updated)
	r.finish(ctx, model.RunSuccess, nil)
	return r.publish(ctx, model.RunOutcome{
		RunID:       r.log.ID,
		SourceID:    r.log.SourceID,
		SourceName:  r.name,
		Success:     true,
		JobsFound:   r.counts.Found,
		JobsAdded:   r.counts.Added,
		JobsUpdated: r.counts.Updated,
	})
}

// finish closes the run log. It survives cancellation of ctx so a run is
// never left in the running state.
func (r *run) finish(ctx context.Context, status model.RunStatus, runErr error) {
	ctx = context.WithoutCancel(ctx)
	if err := r.log.Finish(status, r.counts, runErr, r.o.now()); err != nil {
		r.logger.Error("finish run log failed", "run", r.log.ID, "err", err)
		return
	}
	if err := r.o.store.FinishRunLog(ctx, r.log); err != nil {
		r.logger.Error("store run log failed", "run", r.log.ID, "err", err)
	}
}

func (r *run) publish(ctx context.Context, out model.RunOutcome) model.RunOutcome {
	if err := r.o.publisher.SourceScraped(context.WithoutCancel(ctx), out); err != nil {
		r.logger.Warn("publish run outcome failed", "run", out.RunID, "err", err)
	}
	return out
}
