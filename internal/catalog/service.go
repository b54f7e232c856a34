// Package catalog is the read and maintenance surface over stored postings,
// sources and run logs. Transports (HTTP, gRPC) call it; runs themselves go
// through the scheduler.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"jobtracker/ingestion-service/internal/model"
	"jobtracker/ingestion-service/internal/normalize"
	"jobtracker/ingestion-service/internal/store"
)

const (
	DefaultRecentLogs    = 50
	DefaultLogsPerSource = 10
	MaxLimit             = 500
)

// ErrNotFound is returned when the requested record does not exist.
var ErrNotFound = errors.New("not found")

// ValidationError wraps a user-facing validation message.
type ValidationError struct{ Msg string }

func (e *ValidationError) Error() string { return e.Msg }

// Service answers queries against a RecordStore.
type Service struct {
	store  store.RecordStore
	now    func() time.Time
	logger *slog.Logger
}

// Option customises a Service.
type Option func(*Service)

// WithClock sets the clock that decides which postings are expired.
func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(s *Service) { s.logger = l } }

// NewService returns a Service over st.
func NewService(st store.RecordStore, opts ...Option) *Service {
	s := &Service{store: st, now: time.Now, logger: slog.Default()}
	for _, o := range opts {
		o(s)
	}
	return s
}

// ListPostings sweeps expired postings, then lists those matching f.
// A sweep failure is logged and does not block the listing.
func (s *Service) ListPostings(ctx context.Context, f model.PostingFilter) ([]model.Posting, error) {
	if err := checkLimit(f.Limit); err != nil {
		return nil, err
	}
	if _, err := s.SweepExpired(ctx); err != nil {
		s.logger.Warn("sweep before listing failed", "err", err)
	}
	return s.store.ListPostings(ctx, f)
}

func (s *Service) GetPosting(ctx context.Context, id int64) (*model.Posting, error) {
	p, err := s.store.GetPosting(ctx, id)
	return p, notFound(err, "posting %d", id)
}

func (s *Service) PostingStats(ctx context.Context) (*model.PostingStats, error) {
	return s.store.PostingStats(ctx)
}

func (s *Service) DeactivatePosting(ctx context.Context, id int64) error {
	return notFound(s.store.DeactivatePosting(ctx, id), "posting %d", id)
}

// SweepExpired deactivates postings whose closing date is before today and
// returns how many changed.
func (s *Service) SweepExpired(ctx context.Context) (int, error) {
	n, err := s.store.DeactivateExpired(ctx, normalize.Today(s.now()))
	if err != nil {
		return 0, fmt.Errorf("sweep expired: %w", err)
	}
	return n, nil
}

func (s *Service) ListSources(ctx context.Context) ([]model.Source, error) {
	return s.store.ListSources(ctx, false)
}

func (s *Service) GetSource(ctx context.Context, id string) (*model.Source, error) {
	src, err := s.store.GetSource(ctx, id)
	return src, notFound(err, "source %s", id)
}

func (s *Service) ToggleSource(ctx context.Context, id string, enabled bool) (*model.Source, error) {
	src, err := s.store.SetSourceEnabled(ctx, id, enabled)
	if err != nil {
		return nil, notFound(err, "source %s", id)
	}
	s.logger.Info("source toggled", "source", id, "enabled", enabled)
	return src, nil
}

func (s *Service) SourceStats(ctx context.Context, id string) (*model.SourceStats, error) {
	st, err := s.store.SourceStats(ctx, id)
	return st, notFound(err, "source %s", id)
}

// ListRecentRunLogs lists the newest run logs across sources. limit <= 0
// means DefaultRecentLogs.
func (s *Service) ListRecentRunLogs(ctx context.Context, limit int) ([]model.RunLog, error) {
	if err := checkLimit(limit); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultRecentLogs
	}
	return s.store.ListRunLogs(ctx, "", limit)
}

// ListRunLogsForSource lists the newest run logs of one source. limit <= 0
// means DefaultLogsPerSource.
func (s *Service) ListRunLogsForSource(ctx context.Context, sourceID string, limit int) ([]model.RunLog, error) {
	if sourceID == "" {
		return nil, &ValidationError{Msg: "sourceId is required"}
	}
	if err := checkLimit(limit); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultLogsPerSource
	}
	return s.store.ListRunLogs(ctx, sourceID, limit)
}

func checkLimit(limit int) error {
	if limit < 0 || limit > MaxLimit {
		return &ValidationError{Msg: fmt.Sprintf("limit must be between 1 and %d", MaxLimit)}
	}
	return nil
}

// notFound maps store.ErrNotFound onto ErrNotFound with context.
func notFound(err error, format string, args ...any) error {
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrNotFound)
	}
	return err
}
