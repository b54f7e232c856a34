package db

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLitePath(t *testing.T) {
	cases := map[string]string{
		"sqlite://data/jobs.db": "data/jobs.db",
		"sqlite:/tmp/x.db":      "/tmp/x.db",
		"file:jobs.db":          "jobs.db",
		"jobs.db":               "jobs.db",
	}
	for in, want := range cases {
		assert.Equal(t, want, SQLitePath(in), in)
	}
}

func TestOpenSQLite_CreatesParentDirAndAppliesPragmas(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "jobs.db")
	conn, err := OpenSQLite(path)
	require.NoError(t, err)
	defer conn.Close()

	var fk int
	require.NoError(t, conn.QueryRow("PRAGMA foreign_keys").Scan(&fk))
	assert.Equal(t, 1, fk)

	var mode string
	require.NoError(t, conn.QueryRow("PRAGMA journal_mode").Scan(&mode))
	assert.Equal(t, "wal", mode)
}

func TestNewRedisClient_EmptyURL(t *testing.T) {
	rdb, err := NewRedisClient(context.Background(), "")
	assert.NoError(t, err)
	assert.Nil(t, rdb)
}
