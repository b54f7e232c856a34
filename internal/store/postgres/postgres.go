// Package postgres is the RecordStore backed by PostgreSQL through pgx.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"jobtracker/ingestion-service/internal/model"
	"jobtracker/ingestion-service/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS sources (
	id           TEXT PRIMARY KEY,
	name         TEXT NOT NULL,
	url          TEXT NOT NULL,
	enabled      BOOLEAN NOT NULL DEFAULT TRUE,
	last_scraped TIMESTAMPTZ,
	total_jobs   INTEGER NOT NULL DEFAULT 0,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS postings (
	id           BIGSERIAL PRIMARY KEY,
	source_id    TEXT NOT NULL REFERENCES sources(id),
	external_id  TEXT NOT NULL,
	title        TEXT NOT NULL,
	company      TEXT NOT NULL DEFAULT '',
	location     TEXT NOT NULL DEFAULT '',
	description  TEXT NOT NULL DEFAULT '',
	url          TEXT NOT NULL,
	posted_date  TEXT NOT NULL DEFAULT '',
	closing_date TEXT,
	salary       TEXT,
	job_type     TEXT NOT NULL DEFAULT '',
	category     TEXT NOT NULL DEFAULT '',
	active       BOOLEAN NOT NULL DEFAULT TRUE,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	UNIQUE (source_id, external_id)
);
CREATE INDEX IF NOT EXISTS idx_postings_active_closing ON postings(active, closing_date);

CREATE TABLE IF NOT EXISTS run_logs (
	id            TEXT PRIMARY KEY,
	source_id     TEXT NOT NULL,
	status        TEXT NOT NULL CHECK (status IN ('running', 'success', 'error')),
	jobs_found    INTEGER NOT NULL DEFAULT 0,
	jobs_added    INTEGER NOT NULL DEFAULT 0,
	jobs_updated  INTEGER NOT NULL DEFAULT 0,
	error_message TEXT,
	started_at    TIMESTAMPTZ NOT NULL,
	completed_at  TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_run_logs_source_started ON run_logs(source_id, started_at DESC);
`

// Store implements store.RecordStore on a pgx pool.
type Store struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

var _ store.RecordStore = (*Store)(nil)

// Option customises a Store.
type Option func(*Store)

// WithClock sets the clock used for created/updated timestamps.
func WithClock(now func() time.Time) Option { return func(s *Store) { s.now = now } }

// New bootstraps the schema and returns a Store. The Store owns pool.
func New(ctx context.Context, pool *pgxpool.Pool, opts ...Option) (*Store, error) {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return nil, fmt.Errorf("postgres schema: %w", err)
	}
	s := &Store{pool: pool, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

// Close closes the pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// ─── Postings ────────────────────────────────────────────────────────────────

const postingColumns = `id, source_id, external_id, title, company, location, description, url,
	posted_date, closing_date, salary, job_type, category, active, created_at, updated_at`

// UpsertPosting relies on xmax = 0 to tell a fresh insert from a conflict
// update in a single statement.
func (s *Store) UpsertPosting(ctx context.Context, p model.Posting) (bool, error) {
	now := s.now().UTC()
	var created bool
	err := s.pool.QueryRow(ctx,
		`INSERT INTO postings (source_id, external_id, title, company, location, description, url,
		                       posted_date, closing_date, salary, job_type, category, active, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, TRUE, $13, $13)
		 ON CONFLICT (source_id, external_id) DO UPDATE
		 SET title = EXCLUDED.title, company = EXCLUDED.company, location = EXCLUDED.location,
		     description = EXCLUDED.description, url = EXCLUDED.url, posted_date = EXCLUDED.posted_date,
		     closing_date = EXCLUDED.closing_date, salary = EXCLUDED.salary, job_type = EXCLUDED.job_type,
		     category = EXCLUDED.category, updated_at = EXCLUDED.updated_at
		 RETURNING (xmax = 0)`,
		p.SourceID, p.ExternalID, p.Title, p.Company, p.Location, p.Description, p.URL,
		p.PostedDate, p.ClosingDate, p.Salary, p.JobType, p.Category, now,
	).Scan(&created)
	if err != nil {
		return false, fmt.Errorf("upsertPosting: %w", err)
	}
	return created, nil
}

func (s *Store) GetPosting(ctx context.Context, id int64) (*model.Posting, error) {
	return scanPosting(s.pool.QueryRow(ctx, `SELECT `+postingColumns+` FROM postings WHERE id = $1`, id))
}

func (s *Store) GetPostingByKey(ctx context.Context, sourceID, externalID string) (*model.Posting, error) {
	return scanPosting(s.pool.QueryRow(ctx,
		`SELECT `+postingColumns+` FROM postings WHERE source_id = $1 AND external_id = $2`,
		sourceID, externalID))
}

func (s *Store) ListPostings(ctx context.Context, f model.PostingFilter) ([]model.Posting, error) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if f.Active != nil {
		where = append(where, "active = "+arg(*f.Active))
	}
	if f.SourceID != "" {
		where = append(where, "source_id = "+arg(f.SourceID))
	}
	if f.Search != "" {
		n := arg(store.ContainsPattern(f.Search))
		where = append(where, fmt.Sprintf(`(title ILIKE %[1]s ESCAPE '\' OR company ILIKE %[1]s ESCAPE '\' OR description ILIKE %[1]s ESCAPE '\')`, n))
	}
	if f.Location != "" {
		where = append(where, "location ILIKE "+arg(store.ContainsPattern(f.Location))+` ESCAPE '\'`)
	}

	q := `SELECT ` + postingColumns + ` FROM postings`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	q += ` ORDER BY created_at DESC, id DESC`
	if f.Limit > 0 {
		q += ` LIMIT ` + arg(f.Limit)
	}

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("listPostings query: %w", err)
	}
	defer rows.Close()

	out := make([]model.Posting, 0)
	for rows.Next() {
		p, err := scanPosting(rows)
		if err != nil {
			return nil, fmt.Errorf("listPostings scan: %w", err)
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func (s *Store) DeactivatePosting(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, `UPDATE postings SET active = FALSE, updated_at = $1 WHERE id = $2`, s.now().UTC(), id)
	if err != nil {
		return fmt.Errorf("deactivatePosting: %w", err)
	}
	return requireOne(tag)
}

func (s *Store) DeactivateExpired(ctx context.Context, today string) (int, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE postings SET active = FALSE, updated_at = $1
		 WHERE active AND closing_date IS NOT NULL AND closing_date <> '' AND closing_date < $2`,
		s.now().UTC(), today)
	if err != nil {
		return 0, fmt.Errorf("deactivateExpired: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (s *Store) PostingStats(ctx context.Context) (*model.PostingStats, error) {
	stats := &model.PostingStats{BySource: make([]model.SourceCount, 0)}
	if err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*), COUNT(*) FILTER (WHERE active) FROM postings`,
	).Scan(&stats.Total, &stats.Active); err != nil {
		return nil, fmt.Errorf("postingStats totals: %w", err)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT source_id, COUNT(*) FROM postings WHERE active
		 GROUP BY source_id ORDER BY COUNT(*) DESC, source_id`)
	if err != nil {
		return nil, fmt.Errorf("postingStats bySource: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var c model.SourceCount
		if err := rows.Scan(&c.SourceID, &c.Count); err != nil {
			return nil, fmt.Errorf("postingStats scan: %w", err)
		}
		stats.BySource = append(stats.BySource, c)
	}
	return stats, rows.Err()
}

// ─── Sources ─────────────────────────────────────────────────────────────────

const sourceColumns = `id, name, url, enabled, last_scraped, total_jobs, created_at, updated_at`

func (s *Store) SeedSource(ctx context.Context, src model.Source) error {
	now := s.now().UTC()
	_, err := s.pool.Exec(ctx,
		`INSERT INTO sources (id, name, url, enabled, total_jobs, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, 0, $5, $5)
		 ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, url = EXCLUDED.url, updated_at = EXCLUDED.updated_at`,
		src.ID, src.Name, src.URL, src.Enabled, now)
	if err != nil {
		return fmt.Errorf("seedSource %s: %w", src.ID, err)
	}
	return nil
}

func (s *Store) GetSource(ctx context.Context, id string) (*model.Source, error) {
	return scanSource(s.pool.QueryRow(ctx, `SELECT `+sourceColumns+` FROM sources WHERE id = $1`, id))
}

func (s *Store) ListSources(ctx context.Context, enabledOnly bool) ([]model.Source, error) {
	q := `SELECT ` + sourceColumns + ` FROM sources`
	if enabledOnly {
		q += ` WHERE enabled`
	}
	q += ` ORDER BY name, id`

	rows, err := s.pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("listSources query: %w", err)
	}
	defer rows.Close()

	out := make([]model.Source, 0)
	for rows.Next() {
		src, err := scanSource(rows)
		if err != nil {
			return nil, fmt.Errorf("listSources scan: %w", err)
		}
		out = append(out, *src)
	}
	return out, rows.Err()
}

func (s *Store) SetSourceEnabled(ctx context.Context, id string, enabled bool) (*model.Source, error) {
	return scanSource(s.pool.QueryRow(ctx,
		`UPDATE sources SET enabled = $1, updated_at = $2 WHERE id = $3 RETURNING `+sourceColumns,
		enabled, s.now().UTC(), id))
}

func (s *Store) RecordScrape(ctx context.Context, id string, jobsFound int, at time.Time) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE sources SET last_scraped = $1, total_jobs = $2, updated_at = $3 WHERE id = $4`,
		at.UTC(), jobsFound, s.now().UTC(), id)
	if err != nil {
		return fmt.Errorf("recordScrape: %w", err)
	}
	return requireOne(tag)
}

func (s *Store) SourceStats(ctx context.Context, id string) (*model.SourceStats, error) {
	if _, err := s.GetSource(ctx, id); err != nil {
		return nil, err
	}
	stats := &model.SourceStats{SourceID: id}
	if err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*), COUNT(*) FILTER (WHERE active) FROM postings WHERE source_id = $1`, id,
	).Scan(&stats.TotalJobs, &stats.ActiveJobs); err != nil {
		return nil, fmt.Errorf("sourceStats counts: %w", err)
	}

	logs, err := s.ListRunLogs(ctx, id, 1)
	if err != nil {
		return nil, err
	}
	if len(logs) > 0 {
		stats.LastRun = &logs[0]
	}
	return stats, nil
}

// ─── Run logs ────────────────────────────────────────────────────────────────

func (s *Store) CreateRunLog(ctx context.Context, l model.RunLog) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO run_logs (id, source_id, status, jobs_found, jobs_added, jobs_updated, error_message, started_at, completed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		l.ID, l.SourceID, string(l.Status), l.JobsFound, l.JobsAdded, l.JobsUpdated,
		l.ErrorMessage, l.StartedAt.UTC(), l.CompletedAt)
	if err != nil {
		return fmt.Errorf("createRunLog: %w", err)
	}
	return nil
}

func (s *Store) FinishRunLog(ctx context.Context, l model.RunLog) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE run_logs
		 SET status = $1, jobs_found = $2, jobs_added = $3, jobs_updated = $4, error_message = $5, completed_at = $6
		 WHERE id = $7 AND status = 'running'`,
		string(l.Status), l.JobsFound, l.JobsAdded, l.JobsUpdated, l.ErrorMessage, l.CompletedAt, l.ID)
	if err != nil {
		return fmt.Errorf("finishRunLog: %w", err)
	}
	return requireOne(tag)
}

const runLogSelect = `SELECT r.id, r.source_id, COALESCE(s.name, ''), r.status, r.jobs_found, r.jobs_added,
	r.jobs_updated, r.error_message, r.started_at, r.completed_at
	FROM run_logs r LEFT JOIN sources s ON s.id = r.source_id`

func (s *Store) GetRunLog(ctx context.Context, id string) (*model.RunLog, error) {
	return scanRunLog(s.pool.QueryRow(ctx, runLogSelect+` WHERE r.id = $1`, id))
}

func (s *Store) ListRunLogs(ctx context.Context, sourceID string, limit int) ([]model.RunLog, error) {
	q := runLogSelect
	var args []any
	if sourceID != "" {
		args = append(args, sourceID)
		q += ` WHERE r.source_id = $1`
	}
	q += ` ORDER BY r.started_at DESC, r.id DESC`
	if limit > 0 {
		args = append(args, limit)
		q += fmt.Sprintf(` LIMIT $%d`, len(args))
	}

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("listRunLogs query: %w", err)
	}
	defer rows.Close()

	out := make([]model.RunLog, 0)
	for rows.Next() {
		l, err := scanRunLog(rows)
		if err != nil {
			return nil, fmt.Errorf("listRunLogs scan: %w", err)
		}
		out = append(out, *l)
	}
	return out, rows.Err()
}

// ─── Scanning helpers ────────────────────────────────────────────────────────

func scanPosting(row pgx.Row) (*model.Posting, error) {
	var p model.Posting
	err := row.Scan(&p.ID, &p.SourceID, &p.ExternalID, &p.Title, &p.Company, &p.Location, &p.Description,
		&p.URL, &p.PostedDate, &p.ClosingDate, &p.Salary, &p.JobType, &p.Category, &p.Active,
		&p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func scanSource(row pgx.Row) (*model.Source, error) {
	var src model.Source
	err := row.Scan(&src.ID, &src.Name, &src.URL, &src.Enabled, &src.LastScraped, &src.TotalJobs,
		&src.CreatedAt, &src.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &src, nil
}

func scanRunLog(row pgx.Row) (*model.RunLog, error) {
	var (
		l      model.RunLog
		status string
	)
	err := row.Scan(&l.ID, &l.SourceID, &l.SourceName, &status, &l.JobsFound, &l.JobsAdded, &l.JobsUpdated,
		&l.ErrorMessage, &l.StartedAt, &l.CompletedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if l.Status, err = model.ParseRunStatus(status); err != nil {
		return nil, err
	}
	return &l, nil
}

func requireOne(tag pgconn.CommandTag) error {
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}
