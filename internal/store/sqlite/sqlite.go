// Package sqlite is the embedded RecordStore backed by modernc.org/sqlite.
// Timestamps are stored as unix milliseconds and dates as ISO text, so
// expiry checks compare strings.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"jobtracker/ingestion-service/internal/model"
	"jobtracker/ingestion-service/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS sources (
	id           TEXT PRIMARY KEY,
	name         TEXT NOT NULL,
	url          TEXT NOT NULL,
	enabled      INTEGER NOT NULL DEFAULT 1,
	last_scraped INTEGER,
	total_jobs   INTEGER NOT NULL DEFAULT 0,
	created_at   INTEGER NOT NULL,
	updated_at   INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS postings (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
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
	active       INTEGER NOT NULL DEFAULT 1,
	created_at   INTEGER NOT NULL,
	updated_at   INTEGER NOT NULL,
	UNIQUE (source_id, external_id)
);
CREATE INDEX IF NOT EXISTS idx_postings_active_closing ON postings(active, closing_date);
CREATE INDEX IF NOT EXISTS idx_postings_created ON postings(created_at);

CREATE TABLE IF NOT EXISTS run_logs (
	id            TEXT PRIMARY KEY,
	source_id     TEXT NOT NULL,
	status        TEXT NOT NULL CHECK (status IN ('running', 'success', 'error')),
	jobs_found    INTEGER NOT NULL DEFAULT 0,
	jobs_added    INTEGER NOT NULL DEFAULT 0,
	jobs_updated  INTEGER NOT NULL DEFAULT 0,
	error_message TEXT,
	started_at    INTEGER NOT NULL,
	completed_at  INTEGER
);
CREATE INDEX IF NOT EXISTS idx_run_logs_source_started ON run_logs(source_id, started_at);
`

// Store implements store.RecordStore on a *sql.DB.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

var _ store.RecordStore = (*Store)(nil)

// Option customises a Store.
type Option func(*Store)

// WithClock sets the clock used for created/updated timestamps.
func WithClock(now func() time.Time) Option { return func(s *Store) { s.now = now } }

// New bootstraps the schema on conn and returns a Store. The Store owns conn.
func New(ctx context.Context, conn *sql.DB, opts ...Option) (*Store, error) {
	if _, err := conn.ExecContext(ctx, schema); err != nil {
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}
	s := &Store{db: conn, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

// ─── Postings ────────────────────────────────────────────────────────────────

const postingColumns = `id, source_id, external_id, title, company, location, description, url,
	posted_date, closing_date, salary, job_type, category, active, created_at, updated_at`

func (s *Store) UpsertPosting(ctx context.Context, p model.Posting) (bool, error) {
	now := s.now().UnixMilli()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("upsertPosting begin: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO postings (source_id, external_id, title, company, location, description, url,
		                       posted_date, closing_date, salary, job_type, category, active, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?)
		 ON CONFLICT (source_id, external_id) DO NOTHING`,
		p.SourceID, p.ExternalID, p.Title, p.Company, p.Location, p.Description, p.URL,
		p.PostedDate, p.ClosingDate, p.Salary, p.JobType, p.Category, now, now,
	)
	if err != nil {
		return false, fmt.Errorf("upsertPosting insert: %w", err)
	}
	inserted, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("upsertPosting rows: %w", err)
	}

	if inserted == 0 {
		if _, err := tx.ExecContext(ctx,
			`UPDATE postings
			 SET title = ?, company = ?, location = ?, description = ?, url = ?,
			     posted_date = ?, closing_date = ?, salary = ?, job_type = ?, category = ?,
			     updated_at = ?
			 WHERE source_id = ? AND external_id = ?`,
			p.Title, p.Company, p.Location, p.Description, p.URL,
			p.PostedDate, p.ClosingDate, p.Salary, p.JobType, p.Category,
			now, p.SourceID, p.ExternalID,
		); err != nil {
			return false, fmt.Errorf("upsertPosting update: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("upsertPosting commit: %w", err)
	}
	return inserted == 1, nil
}

func (s *Store) GetPosting(ctx context.Context, id int64) (*model.Posting, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+postingColumns+` FROM postings WHERE id = ?`, id)
	return scanPosting(row)
}

func (s *Store) GetPostingByKey(ctx context.Context, sourceID, externalID string) (*model.Posting, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+postingColumns+` FROM postings WHERE source_id = ? AND external_id = ?`,
		sourceID, externalID)
	return scanPosting(row)
}

func (s *Store) ListPostings(ctx context.Context, f model.PostingFilter) ([]model.Posting, error) {
	var (
		where []string
		args  []any
	)
	if f.Active != nil {
		where = append(where, "active = ?")
		args = append(args, boolInt(*f.Active))
	}
	if f.SourceID != "" {
		where = append(where, "source_id = ?")
		args = append(args, f.SourceID)
	}
	if f.Search != "" {
		like := store.ContainsPattern(f.Search)
		where = append(where, `(title LIKE ? ESCAPE '\' OR company LIKE ? ESCAPE '\' OR description LIKE ? ESCAPE '\')`)
		args = append(args, like, like, like)
	}
	if f.Location != "" {
		where = append(where, `location LIKE ? ESCAPE '\'`)
		args = append(args, store.ContainsPattern(f.Location))
	}

	q := `SELECT ` + postingColumns + ` FROM postings`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	q += ` ORDER BY created_at DESC, id DESC`
	if f.Limit > 0 {
		q += ` LIMIT ?`
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
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
	res, err := s.db.ExecContext(ctx,
		`UPDATE postings SET active = 0, updated_at = ? WHERE id = ?`, s.now().UnixMilli(), id)
	if err != nil {
		return fmt.Errorf("deactivatePosting: %w", err)
	}
	return requireOne(res)
}

func (s *Store) DeactivateExpired(ctx context.Context, today string) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE postings SET active = 0, updated_at = ?
		 WHERE active = 1 AND closing_date IS NOT NULL AND closing_date <> '' AND closing_date < ?`,
		s.now().UnixMilli(), today)
	if err != nil {
		return 0, fmt.Errorf("deactivateExpired: %w", err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (s *Store) PostingStats(ctx context.Context) (*model.PostingStats, error) {
	stats := &model.PostingStats{BySource: make([]model.SourceCount, 0)}
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(active), 0) FROM postings`,
	).Scan(&stats.Total, &stats.Active); err != nil {
		return nil, fmt.Errorf("postingStats totals: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT source_id, COUNT(*) FROM postings WHERE active = 1
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
	now := s.now().UnixMilli()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sources (id, name, url, enabled, total_jobs, created_at, updated_at)
		 VALUES (?, ?, ?, ?, 0, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET name = excluded.name, url = excluded.url, updated_at = excluded.updated_at`,
		src.ID, src.Name, src.URL, boolInt(src.Enabled), now, now)
	if err != nil {
		return fmt.Errorf("seedSource %s: %w", src.ID, err)
	}
	return nil
}

func (s *Store) GetSource(ctx context.Context, id string) (*model.Source, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sourceColumns+` FROM sources WHERE id = ?`, id)
	return scanSource(row)
}

func (s *Store) ListSources(ctx context.Context, enabledOnly bool) ([]model.Source, error) {
	q := `SELECT ` + sourceColumns + ` FROM sources`
	if enabledOnly {
		q += ` WHERE enabled = 1`
	}
	q += ` ORDER BY name, id`

	rows, err := s.db.QueryContext(ctx, q)
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
	res, err := s.db.ExecContext(ctx,
		`UPDATE sources SET enabled = ?, updated_at = ? WHERE id = ?`,
		boolInt(enabled), s.now().UnixMilli(), id)
	if err != nil {
		return nil, fmt.Errorf("setSourceEnabled: %w", err)
	}
	if err := requireOne(res); err != nil {
		return nil, err
	}
	return s.GetSource(ctx, id)
}

func (s *Store) RecordScrape(ctx context.Context, id string, jobsFound int, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE sources SET last_scraped = ?, total_jobs = ?, updated_at = ? WHERE id = ?`,
		at.UnixMilli(), jobsFound, s.now().UnixMilli(), id)
	if err != nil {
		return fmt.Errorf("recordScrape: %w", err)
	}
	return requireOne(res)
}

func (s *Store) SourceStats(ctx context.Context, id string) (*model.SourceStats, error) {
	if _, err := s.GetSource(ctx, id); err != nil {
		return nil, err
	}
	stats := &model.SourceStats{SourceID: id}
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(active), 0) FROM postings WHERE source_id = ?`, id,
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
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO run_logs (id, source_id, status, jobs_found, jobs_added, jobs_updated, error_message, started_at, completed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		l.ID, l.SourceID, string(l.Status), l.JobsFound, l.JobsAdded, l.JobsUpdated,
		l.ErrorMessage, l.StartedAt.UnixMilli(), millisPtr(l.CompletedAt))
	if err != nil {
		return fmt.Errorf("createRunLog: %w", err)
	}
	return nil
}

func (s *Store) FinishRunLog(ctx context.Context, l model.RunLog) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE run_logs
		 SET status = ?, jobs_found = ?, jobs_added = ?, jobs_updated = ?, error_message = ?, completed_at = ?
		 WHERE id = ? AND status = 'running'`,
		string(l.Status), l.JobsFound, l.JobsAdded, l.JobsUpdated, l.ErrorMessage, millisPtr(l.CompletedAt), l.ID)
	if err != nil {
		return fmt.Errorf("finishRunLog: %w", err)
	}
	return requireOne(res)
}

const runLogSelect = `SELECT r.id, r.source_id, COALESCE(s.name, ''), r.status, r.jobs_found, r.jobs_added,
	r.jobs_updated, r.error_message, r.started_at, r.completed_at
	FROM run_logs r LEFT JOIN sources s ON s.id = r.source_id`

func (s *Store) GetRunLog(ctx context.Context, id string) (*model.RunLog, error) {
	return scanRunLog(s.db.QueryRowContext(ctx, runLogSelect+` WHERE r.id = ?`, id))
}

func (s *Store) ListRunLogs(ctx context.Context, sourceID string, limit int) ([]model.RunLog, error) {
	q := runLogSelect
	var args []any
	if sourceID != "" {
		q += ` WHERE r.source_id = ?`
		args = append(args, sourceID)
	}
	q += ` ORDER BY r.started_at DESC, r.rowid DESC`
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
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

type scanner interface {
	Scan(dest ...any) error
}

func scanPosting(sc scanner) (*model.Posting, error) {
	var (
		p                    model.Posting
		closing, salary      sql.NullString
		active               int
		createdAt, updatedAt int64
	)
	err := sc.Scan(&p.ID, &p.SourceID, &p.ExternalID, &p.Title, &p.Company, &p.Location, &p.Description,
		&p.URL, &p.PostedDate, &closing, &salary, &p.JobType, &p.Category, &active, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	p.ClosingDate = stringPtr(closing)
	p.Salary = stringPtr(salary)
	p.Active = active == 1
	p.CreatedAt = time.UnixMilli(createdAt).UTC()
	p.UpdatedAt = time.UnixMilli(updatedAt).UTC()
	return &p, nil
}

func scanSource(sc scanner) (*model.Source, error) {
	var (
		src                  model.Source
		enabled              int
		lastScraped          sql.NullInt64
		createdAt, updatedAt int64
	)
	err := sc.Scan(&src.ID, &src.Name, &src.URL, &enabled, &lastScraped, &src.TotalJobs, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	src.Enabled = enabled == 1
	src.LastScraped = timePtr(lastScraped)
	src.CreatedAt = time.UnixMilli(createdAt).UTC()
	src.UpdatedAt = time.UnixMilli(updatedAt).UTC()
	return &src, nil
}

func scanRunLog(sc scanner) (*model.RunLog, error) {
	var (
		l           model.RunLog
		status      string
		errMsg      sql.NullString
		startedAt   int64
		completedAt sql.NullInt64
	)
	err := sc.Scan(&l.ID, &l.SourceID, &l.SourceName, &status, &l.JobsFound, &l.JobsAdded, &l.JobsUpdated,
		&errMsg, &startedAt, &completedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if l.Status, err = model.ParseRunStatus(status); err != nil {
		return nil, err
	}
	l.ErrorMessage = stringPtr(errMsg)
	l.StartedAt = time.UnixMilli(startedAt).UTC()
	l.CompletedAt = timePtr(completedAt)
	return &l, nil
}

func requireOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func millisPtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UnixMilli()
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}

func timePtr(ni sql.NullInt64) *time.Time {
	if !ni.Valid {
		return nil
	}
	t := time.UnixMilli(ni.Int64).UTC()
	return &t
}
