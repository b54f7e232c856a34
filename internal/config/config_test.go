package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobtracker/ingestion-service/internal/scraper"
)

// clearEnv isolates a test from the caller's environment.
func clearEnv(t *testing.T) {
	for _, k := range []string{
		"PORT", "GRPC_PORT", "DATABASE_URL", "REDIS_URL", "SCRAPE_INTERVAL_HOURS", "SCRAPE_ON_START",
		"ADZUNA_APP_ID", "ADZUNA_APP_KEY", "ADZUNA_COUNTRY", "LOG_LEVEL", "LOG_FORMAT",
	} {
		t.Setenv(k, "")
	}
	t.Setenv("SOURCES_FILE", filepath.Join(t.TempDir(), "missing.yaml"))
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "3000", cfg.Port)
	assert.Equal(t, "9090", cfg.GRPCPort)
	assert.Equal(t, "sqlite://data/jobs.db", cfg.DatabaseURL)
	assert.False(t, cfg.UsesPostgres())
	assert.Equal(t, 6, cfg.ScrapeIntervalHours)
	assert.True(t, cfg.ScrapeOnStart)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Len(t, cfg.Sources.Sources, 6)
}

func TestLoad_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("DATABASE_URL", "postgres://u:p@localhost/jobs")
	t.Setenv("SCRAPE_INTERVAL_HOURS", "12")
	t.Setenv("SCRAPE_ON_START", "false")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "JSON")

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.UsesPostgres())
	assert.Equal(t, 12, cfg.ScrapeIntervalHours)
	assert.False(t, cfg.ScrapeOnStart)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, "DEBUG", cfg.LogLevel.String())
}

func TestLoad_Invalid(t *testing.T) {
	cases := map[string][2]string{
		"zero interval":  {"SCRAPE_INTERVAL_HOURS", "0"},
		"text interval":  {"SCRAPE_INTERVAL_HOURS", "often"},
		"bad bool":       {"SCRAPE_ON_START", "perhaps"},
		"bad level":      {"LOG_LEVEL", "loud"},
		"bad format":     {"LOG_FORMAT", "xml"},
		"bad port":       {"PORT", "http"},
		"port too large": {"GRPC_PORT", "70000"},
	}
	for name, kv := range cases {
		t.Run(name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(kv[0], kv[1])
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

const sampleSources = `
defaults:
  scraperConfig:
    userAgent: test-agent
    timeoutMs: 5000
    maxAttempts: 4
    baseDelayMs: 250
  redFlags: [stage]
sources:
  - id: buscojobs
    url: https://www.buscojobs.com.uy/empleos
    scraperConfig:
      maxAttempts: 2
      interSourceDelayMs: 500
    redFlags: [pasantía]
  - id: adzuna
    name: Adzuna
    url: https://api.adzuna.com/v1/api/jobs
    params:
      what: golang
  - id: linkedin
    name: LinkedIn
    url: https://www.linkedin.com/jobs
    enabled: false
`

func TestSettingsFor_MergesDefaults(t *testing.T) {
	sf, err := ParseSources([]byte(sampleSources))
	require.NoError(t, err)
	cfg := &Config{Sources: sf, AdzunaAppID: "id", AdzunaAppKey: "key", AdzunaCountry: "fr"}

	s := cfg.SettingsFor(scraper.SourceBuscoJobs)
	assert.Equal(t, "test-agent", s.Fetch.UserAgent)
	assert.Equal(t, 5*time.Second, s.Fetch.Timeout)
	assert.Equal(t, 2, s.Fetch.MaxAttempts)
	assert.Equal(t, 250*time.Millisecond, s.Fetch.BaseDelay)
	assert.Equal(t, 500*time.Millisecond, s.InterSourceDelay)
	assert.Equal(t, []string{"stage", "pasantía"}, s.RedFlags)

	a := cfg.SettingsFor(scraper.SourceAdzuna)
	assert.Equal(t, defaultInterSourceDelay, a.InterSourceDelay)
	assert.Equal(t, map[string]string{"what": "golang", "app_id": "id", "app_key": "key", "country": "fr"}, a.Params)

	unknown := cfg.SettingsFor("nope")
	assert.Equal(t, 4, unknown.Fetch.MaxAttempts)
}

func TestSourceModels(t *testing.T) {
	sf, err := ParseSources([]byte(sampleSources))
	require.NoError(t, err)

	withoutCreds := (&Config{Sources: sf}).SourceModels()
	require.Len(t, withoutCreds, 3)
	assert.Equal(t, "buscojobs", withoutCreds[0].Name, "name defaults to id")
	assert.True(t, withoutCreds[0].Enabled)
	assert.False(t, withoutCreds[1].Enabled, "adzuna needs credentials")
	assert.False(t, withoutCreds[2].Enabled)

	withCreds := (&Config{Sources: sf, AdzunaAppID: "id", AdzunaAppKey: "key"}).SourceModels()
	assert.True(t, withCreds[1].Enabled)
}

func TestParseSources_Invalid(t *testing.T) {
	cases := map[string]string{
		"missing id":   "sources:\n  - url: https://x\n",
		"missing url":  "sources:\n  - id: a\n",
		"duplicate id": "sources:\n  - {id: a, url: https://x}\n  - {id: a, url: https://y}\n",
		"not yaml":     "sources: [",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseSources([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestLoadSources_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sources.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleSources), 0o644))

	sf, err := LoadSources(path)
	require.NoError(t, err)
	assert.Len(t, sf.Sources, 3)
}

func TestDefaultSources_AllRegistered(t *testing.T) {
	reg := scraper.NewDefaultRegistry()
	for _, s := range DefaultSources().Sources {
		assert.True(t, reg.IsSupported(s.ID), s.ID)
	}
}
