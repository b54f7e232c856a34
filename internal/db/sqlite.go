package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	_ "modernc.org/sqlite"
)

const sqliteBusyTimeoutMs = 10_000

// OpenSQLite opens the SQLite database at path with the service pragmas:
//
//	foreign_keys = ON
//	journal_mode = WAL
//	busy_timeout = 10000
//	synchronous  = NORMAL
//
// Parent directories are created. The pool is limited to one connection so
// the pragmas hold for every statement and writes never contend.
func OpenSQLite(path string) (*sql.DB, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("sqlite mkdir: %w", err)
		}
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}
	conn.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		fmt.Sprintf("PRAGMA busy_timeout = %d", sqliteBusyTimeoutMs),
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := conn.Exec(p); err != nil {
			conn.Close()
			return nil, fmt.Errorf("sqlite %s: %w", p, err)
		}
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite ping: %w", err)
	}
	return conn, nil
}

// OpenSQLiteMemory opens an in-memory database for tests and closes it when
// the test ends.
func OpenSQLiteMemory(t testing.TB) *sql.DB {
	t.Helper()
	conn, err := OpenSQLite(":memory:")
	if err != nil {
		t.Fatalf("OpenSQLiteMemory: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// SQLitePath extracts the file path from a sqlite:// DATABASE_URL.
// Plain paths are returned unchanged.
func SQLitePath(databaseURL string) string {
	for _, prefix := range []string{"sqlite://", "sqlite:", "file:"} {
		if strings.HasPrefix(databaseURL, prefix) {
			return strings.TrimPrefix(databaseURL, prefix)
		}
	}
	return databaseURL
}
