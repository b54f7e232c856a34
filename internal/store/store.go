// Package store defines the persistence contract of the ingestion service.
// Adapters live in the sqlite and postgres subpackages.
package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"jobtracker/ingestion-service/internal/model"
)

// ErrNotFound is returned when a posting, source or open run log is missing.
var ErrNotFound = errors.New("record not found")

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// ContainsPattern returns a LIKE pattern matching s anywhere in a column.
// Wildcards in s match literally when the query declares ESCAPE '\'.
func ContainsPattern(s string) string {
	return "%" + likeEscaper.Replace(s) + "%"
}

// PostingStore persists postings keyed by (source id, external id).
type PostingStore interface {
	// UpsertPosting inserts p or updates the existing posting with the same
	// key in place. created reports which happened. The active flag of an
	// existing posting is left untouched.
	UpsertPosting(ctx context.Context, p model.Posting) (created bool, err error)
	GetPosting(ctx context.Context, id int64) (*model.Posting, error)
	GetPostingByKey(ctx context.Context, sourceID, externalID string) (*model.Posting, error)
	ListPostings(ctx context.Context, f model.PostingFilter) ([]model.Posting, error)
	DeactivatePosting(ctx context.Context, id int64) error
	// DeactivateExpired marks inactive every active posting whose closing
	// date is strictly before today (ISO date). It returns the count.
	DeactivateExpired(ctx context.Context, today string) (int, error)
	PostingStats(ctx context.Context) (*model.PostingStats, error)
}

// SourceStore persists configured sources and their scrape statistics.
type SourceStore interface {
	// SeedSource inserts s, or refreshes name and url of an existing source
	// without touching its enabled flag or statistics.
	SeedSource(ctx context.Context, s model.Source) error
	GetSource(ctx context.Context, id string) (*model.Source, error)
	ListSources(ctx context.Context, enabledOnly bool) ([]model.Source, error)
	SetSourceEnabled(ctx context.Context, id string, enabled bool) (*model.Source, error)
	RecordScrape(ctx context.Context, id string, jobsFound int, at time.Time) error
	SourceStats(ctx context.Context, id string) (*model.SourceStats, error)
}

// RunLogStore persists run logs.
type RunLogStore interface {
	CreateRunLog(ctx context.Context, l model.RunLog) error
	// FinishRunLog writes the terminal state of l. Only a log still running
	// in the store can be finished; otherwise ErrNotFound is returned.
	FinishRunLog(ctx context.Context, l model.RunLog) error
	GetRunLog(ctx context.Context, id string) (*model.RunLog, error)
	// ListRunLogs returns the newest logs first. An empty sourceID lists
	// every source.
	ListRunLogs(ctx context.Context, sourceID string, limit int) ([]model.RunLog, error)
}

// RecordStore is the full persistence surface.
type RecordStore interface {
	PostingStore
	SourceStore
	RunLogStore
	Close() error
}
