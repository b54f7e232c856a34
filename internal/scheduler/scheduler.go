// Package scheduler fires ingestion runs on a fixed interval and on demand,
// with at most one run in flight process-wide.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"jobtracker/ingestion-service/internal/model"
)

// ErrRunInProgress is returned by synchronous triggers when a run is already
// executing. The trigger is dropped, not queued.
var ErrRunInProgress = errors.New("run already in progress")

// Runner executes runs. *ingest.Orchestrator satisfies it.
type Runner interface {
	RunAll(ctx context.Context) ([]model.RunOutcome, error)
	RunOne(ctx context.Context, sourceID string) model.RunOutcome
}

// Scheduler wraps robfig/cron and guards every run with one flag shared by
// the periodic and on-demand triggers.
type Scheduler struct {
	cron       *cron.Cron
	runner     Runner
	spec       string
	runOnStart bool
	logger     *slog.Logger

	running atomic.Bool
	runs    atomic.Int64
	baseCtx context.Context
	wg      sync.WaitGroup
}

// Option customises a Scheduler.
type Option func(*Scheduler)

// WithRunOnStart makes Start trigger one run immediately.
func WithRunOnStart(v bool) Option { return func(s *Scheduler) { s.runOnStart = v } }

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(s *Scheduler) { s.logger = l } }

// New creates a Scheduler that fires every interval.
func New(runner Runner, interval time.Duration, opts ...Option) *Scheduler {
	s := &Scheduler{
		runner:  runner,
		spec:    fmt.Sprintf("@every %s", interval),
		logger:  slog.Default(),
		baseCtx: context.Background(),
	}
	for _, o := range opts {
		o(s)
	}
	cl := cronLogger{s.logger}
	s.cron = cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl)))
	return s
}

// Start registers the periodic job and starts the cron loop. Background runs
// use ctx, so cancelling it aborts them.
func (s *Scheduler) Start(ctx context.Context) error {
	s.baseCtx = ctx
	if _, err := s.cron.AddFunc(s.spec, s.tick); err != nil {
		return fmt.Errorf("cron.AddFunc: %w", err)
	}
	s.cron.Start()
	s.logger.Info("scheduler started", "spec", s.spec)

	if s.runOnStart {
		s.TriggerAll()
	}
	return nil
}

// Stop halts the cron loop. The returned context is done once any in-flight
// run has finished.
func (s *Scheduler) Stop() context.Context {
	cronDone := s.cron.Stop()
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-cronDone.Done()
		s.wg.Wait()
		cancel()
		s.logger.Info("scheduler stopped")
	}()
	return ctx
}

func (s *Scheduler) tick() {
	if _, err := s.RunAll(s.baseCtx); err != nil && !errors.Is(err, ErrRunInProgress) {
		s.logger.Error("scheduled run failed", "err", err)
	}
}

// TriggerAll starts a run of every enabled source in the background and
// reports whether it was started. The run is detached from any request
// context.
func (s *Scheduler) TriggerAll() bool {
	if !s.acquire() {
		return false
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.running.Store(false)
		if err := s.guarded(func() error {
			_, err := s.runner.RunAll(s.baseCtx)
			return err
		}); err != nil {
			s.logger.Error("background run failed", "err", err)
		}
	}()
	return true
}

// RunAll runs every enabled source and waits for the outcomes.
func (s *Scheduler) RunAll(ctx context.Context) ([]model.RunOutcome, error) {
	var outs []model.RunOutcome
	err := s.tryRun(func() error {
		var err error
		outs, err = s.runner.RunAll(ctx)
		return err
	})
	return outs, err
}

// RunSource runs one source and waits for its outcome.
func (s *Scheduler) RunSource(ctx context.Context, sourceID string) (model.RunOutcome, error) {
	var out model.RunOutcome
	err := s.tryRun(func() error {
		out = s.runner.RunOne(ctx, sourceID)
		return nil
	})
	return out, err
}

// Running reports whether a run is in flight.
func (s *Scheduler) Running() bool { return s.running.Load() }

// Runs is the number of runs that have started.
func (s *Scheduler) Runs() int64 { return s.runs.Load() }

func (s *Scheduler) tryRun(fn func() error) error {
	if !s.acquire() {
		return ErrRunInProgress
	}
	defer s.running.Store(false)
	return s.guarded(fn)
}

func (s *Scheduler) acquire() bool {
	if !s.running.CompareAndSwap(false, true) {
		s.logger.Info("run already in progress, skipping")
		return false
	}
	return true
}

// guarded counts the run and converts a panic into an error.
func (s *Scheduler) guarded(fn func() error) (err error) {
	s.runs.Add(1)
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("run panicked: %v", r)
		}
	}()
	return fn()
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct{ l *slog.Logger }

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.l.Debug("cron: "+msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.l.Error("cron: "+msg, append(keysAndValues, "err", err)...)
}
