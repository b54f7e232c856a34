// Package scraper turns one configured source into a list of posting
// candidates. Each source kind has its own Extractor; the Registry maps
// source ids to the factory that builds it.
package scraper

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"jobtracker/ingestion-service/internal/fetcher"
	"jobtracker/ingestion-service/internal/model"
)

var (
	// ErrUnparseableDocument is returned by strict extractors when a fetched
	// document has none of the structure they look for.
	ErrUnparseableDocument = errors.New("document has no recognizable listings")

	// ErrUnconfiguredSource is returned when no extractor is registered for
	// a source id.
	ErrUnconfiguredSource = errors.New("no extractor configured for source")
)

// Extractor produces validated candidates for a single source.
// Fetch exhaustion never escapes Extract: it yields an empty list and a
// logged warning.
type Extractor interface {
	Extract(ctx context.Context) ([]model.Candidate, error)
}

// Getter is the only network access extractors have.
type Getter interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Settings is the per-source scraper configuration.
type Settings struct {
	Fetch            fetcher.Options
	InterSourceDelay time.Duration
	RedFlags         []string
	Params           map[string]string
}

// Param returns Params[key] or def when unset.
func (s Settings) Param(key, def string) string {
	if v, ok := s.Params[key]; ok && v != "" {
		return v
	}
	return def
}

// Deps is what a Factory receives to build an Extractor.
type Deps struct {
	Getter   Getter
	Settings Settings
	Logger   *slog.Logger
	Now      func() time.Time
}

func (d Deps) withDefaults() Deps {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	return d
}

// Factory builds an Extractor bound to src.
type Factory func(src model.Source, deps Deps) Extractor
