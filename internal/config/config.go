// Package config loads and validates environment variables at startup.
// Fail-fast: an invalid value stops the process before anything is opened.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds all runtime configuration for the ingestion service.
type Config struct {
	Port                string
	GRPCPort            string
	DatabaseURL         string
	RedisURL            string // optional; events are dropped when empty
	ScrapeIntervalHours int
	ScrapeOnStart       bool
	SourcesFile         string
	AdzunaAppID         string
	AdzunaAppKey        string
	AdzunaCountry       string // e.g. "gb", "fr", "us"
	LogLevel            slog.Level
	LogFormat           string // json | text

	Sources *SourcesFile
}

// Load reads .env (if present) and the environment, then the sources file.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:          getenv("PORT", "3000"),
		GRPCPort:      getenv("GRPC_PORT", "9090"),
		DatabaseURL:   getenv("DATABASE_URL", "sqlite://data/jobs.db"),
		RedisURL:      os.Getenv("REDIS_URL"),
		SourcesFile:   getenv("SOURCES_FILE", "config/sources.yaml"),
		AdzunaAppID:   os.Getenv("ADZUNA_APP_ID"),
		AdzunaAppKey:  os.Getenv("ADZUNA_APP_KEY"),
		AdzunaCountry: getenv("ADZUNA_COUNTRY", "gb"),
		LogFormat:     strings.ToLower(getenv("LOG_FORMAT", "text")),
	}

	cfg.ScrapeIntervalHours = 6
	if s := os.Getenv("SCRAPE_INTERVAL_HOURS"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil || v < 1 {
			return nil, fmt.Errorf("SCRAPE_INTERVAL_HOURS must be a positive integer, got %q", s)
		}
		cfg.ScrapeIntervalHours = v
	}

	cfg.ScrapeOnStart = true
	if s := os.Getenv("SCRAPE_ON_START"); s != "" {
		v, err := strconv.ParseBool(s)
		if err != nil {
			return nil, fmt.Errorf("SCRAPE_ON_START must be a boolean, got %q", s)
		}
		cfg.ScrapeOnStart = v
	}

	if err := cfg.LogLevel.UnmarshalText([]byte(getenv("LOG_LEVEL", "info"))); err != nil {
		return nil, fmt.Errorf("LOG_LEVEL: %w", err)
	}
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("LOG_FORMAT must be json or text, got %q", cfg.LogFormat)
	}

	for _, p := range []struct{ name, v string }{{"PORT", cfg.Port}, {"GRPC_PORT", cfg.GRPCPort}} {
		if n, err := strconv.Atoi(p.v); err != nil || n < 1 || n > 65535 {
			return nil, fmt.Errorf("%s must be a port number, got %q", p.name, p.v)
		}
	}

	sources, err := LoadSources(cfg.SourcesFile)
	if err != nil {
		return nil, err
	}
	cfg.Sources = sources
	return cfg, nil
}

// UsesPostgres reports whether DATABASE_URL selects PostgreSQL.
func (c *Config) UsesPostgres() bool {
	return strings.HasPrefix(c.DatabaseURL, "postgres://") || strings.HasPrefix(c.DatabaseURL, "postgresql://")
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
