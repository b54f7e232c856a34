package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"jobtracker/ingestion-service/internal/fetcher"
	"jobtracker/ingestion-service/internal/model"
	"jobtracker/ingestion-service/internal/scraper"
)

const defaultInterSourceDelay = 2 * time.Second

// ScraperConfig tunes fetching for one source. Zero fields inherit.
type ScraperConfig struct {
	UserAgent          string `yaml:"userAgent"`
	TimeoutMs          int    `yaml:"timeoutMs"`
	MaxAttempts        int    `yaml:"maxAttempts"`
	BaseDelayMs        int    `yaml:"baseDelayMs"`
	InterSourceDelayMs int    `yaml:"interSourceDelayMs"`
}

// SourceConfig is one entry of the sources file.
type SourceConfig struct {
	ID            string            `yaml:"id"`
	Name          string            `yaml:"name"`
	URL           string            `yaml:"url"`
	Enabled       *bool             `yaml:"enabled"`
	ScraperConfig ScraperConfig     `yaml:"scraperConfig"`
	RedFlags      []string          `yaml:"redFlags"`
	Params        map[string]string `yaml:"params"`
}

// SourcesFile is the parsed SOURCES_FILE.
type SourcesFile struct {
	Defaults struct {
		ScraperConfig ScraperConfig `yaml:"scraperConfig"`
		RedFlags      []string      `yaml:"redFlags"`
	} `yaml:"defaults"`
	Sources []SourceConfig `yaml:"sources"`
}

// LoadSources reads path. A missing file yields DefaultSources.
func LoadSources(path string) (*SourcesFile, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return DefaultSources(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read sources file: %w", err)
	}
	return ParseSources(data)
}

// ParseSources parses and validates a sources document.
func ParseSources(data []byte) (*SourcesFile, error) {
	var sf SourcesFile
	if err := yaml.Unmarshal(data, &sf); err != nil {
		return nil, fmt.Errorf("parse sources file: %w", err)
	}

	seen := make(map[string]bool, len(sf.Sources))
	for i, s := range sf.Sources {
		switch {
		case strings.TrimSpace(s.ID) == "":
			return nil, fmt.Errorf("sources[%d]: id is required", i)
		case seen[s.ID]:
			return nil, fmt.Errorf("sources[%d]: duplicate id %q", i, s.ID)
		case strings.TrimSpace(s.URL) == "":
			return nil, fmt.Errorf("sources[%d] %s: url is required", i, s.ID)
		}
		seen[s.ID] = true
		if s.Name == "" {
			sf.Sources[i].Name = s.ID
		}
	}
	return &sf, nil
}

// DefaultSources is the built-in source list used without a sources file.
func DefaultSources() *SourcesFile {
	return &SourcesFile{Sources: []SourceConfig{
		{ID: scraper.SourceUruguayXXI, Name: "Uruguay XXI", URL: "https://www.uruguayxxi.gub.uy/es/quienes-somos/llamados-licitaciones/"},
		{ID: scraper.SourceUruguayConcursa, Name: "Uruguay Concursa", URL: "https://www.uruguayconcursa.gub.uy/Portal/servlet/com.si.recsel.dspllamados62"},
		{ID: scraper.SourceBuscoJobs, Name: "BuscoJobs Uruguay", URL: "https://www.buscojobs.com.uy/empleos"},
		{ID: scraper.SourceCompuTrabajo, Name: "CompuTrabajo Uruguay", URL: "https://uy.computrabajo.com/"},
		{ID: scraper.SourceLinkedIn, Name: "LinkedIn Jobs Uruguay", URL: "https://www.linkedin.com/jobs/search/?location=Uruguay"},
		{ID: scraper.SourceAdzuna, Name: "Adzuna", URL: "https://api.adzuna.com/v1/api/jobs"},
	}}
}

// SourceModels returns the sources to seed into the store. Adzuna stays
// disabled until both API credentials are configured.
func (c *Config) SourceModels() []model.Source {
	out := make([]model.Source, 0, len(c.Sources.Sources))
	for _, s := range c.Sources.Sources {
		enabled := s.Enabled == nil || *s.Enabled
		if s.ID == scraper.SourceAdzuna {
			p := c.SettingsFor(s.ID).Params
			enabled = enabled && p["app_id"] != "" && p["app_key"] != ""
		}
		out = append(out, model.Source{ID: s.ID, Name: s.Name, URL: s.URL, Enabled: enabled})
	}
	return out
}

// SettingsFor merges file defaults with the overrides of source id.
func (c *Config) SettingsFor(id string) scraper.Settings {
	def := c.Sources.Defaults
	var src SourceConfig
	for _, s := range c.Sources.Sources {
		if s.ID == id {
			src = s
			break
		}
	}

	sc := merge(def.ScraperConfig, src.ScraperConfig)
	settings := scraper.Settings{
		Fetch: fetcher.Options{
			UserAgent:   sc.UserAgent,
			Timeout:     ms(sc.TimeoutMs),
			MaxAttempts: sc.MaxAttempts,
			BaseDelay:   ms(sc.BaseDelayMs),
		},
		InterSourceDelay: defaultInterSourceDelay,
		RedFlags:         append(append([]string(nil), def.RedFlags...), src.RedFlags...),
		Params:           make(map[string]string, len(src.Params)+3),
	}
	if sc.InterSourceDelayMs > 0 {
		settings.InterSourceDelay = ms(sc.InterSourceDelayMs)
	}
	for k, v := range src.Params {
		settings.Params[k] = v
	}
	if id == scraper.SourceAdzuna {
		setIfEmpty(settings.Params, "app_id", c.AdzunaAppID)
		setIfEmpty(settings.Params, "app_key", c.AdzunaAppKey)
		setIfEmpty(settings.Params, "country", c.AdzunaCountry)
	}
	return settings
}

func merge(base, over ScraperConfig) ScraperConfig {
	if over.UserAgent != "" {
		base.UserAgent = over.UserAgent
	}
	if over.TimeoutMs > 0 {
		base.TimeoutMs = over.TimeoutMs
	}
	if over.MaxAttempts > 0 {
		base.MaxAttempts = over.MaxAttempts
	}
	if over.BaseDelayMs > 0 {
		base.BaseDelayMs = over.BaseDelayMs
	}
	if over.InterSourceDelayMs > 0 {
		base.InterSourceDelayMs = over.InterSourceDelayMs
	}
	return base
}

func ms(n int) time.Duration { return time.Duration(n) * time.Millisecond }

func setIfEmpty(m map[string]string, k, v string) {
	if m[k] == "" && v != "" {
		m[k] = v
	}
}
