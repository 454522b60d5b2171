package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Gazetteer source names.
const (
	SourceEmbedded    = "embedded"
	SourcePostgres    = "postgres"
	SourceMeilisearch = "meilisearch"
	SourceGeolonia    = "geolonia"
	SourceLibpostal   = "libpostal"
)

type GazetteerCfg struct {
	Source      string `yaml:"source" json:"source"`
	File        string `yaml:"file" json:"file"`
	PostgresDSN string `yaml:"postgres_dsn" json:"-"`
	MeiliHost   string `yaml:"meili_host" json:"meili_host"`
	MeiliKey    string `yaml:"meili_key" json:"-"`
	MeiliIndex  string `yaml:"meili_index" json:"meili_index"`
	GeoloniaURL string `yaml:"geolonia_url" json:"geolonia_url"`
	CacheSize   int    `yaml:"cache_size" json:"cache_size"`
	TimeoutMS   int    `yaml:"timeout_ms" json:"timeout_ms"`
}

type SuggestionCfg struct {
	JWWeight  float64 `yaml:"jw_weight" json:"jw_weight"`
	LevWeight float64 `yaml:"lev_weight" json:"lev_weight"`
	MinScore  float64 `yaml:"min_score" json:"min_score"`
	Max       int     `yaml:"max" json:"max"`
}

type ParserCfg struct {
	Workers     int           `yaml:"workers" json:"workers"`
	RulesFile   string        `yaml:"rules_file" json:"rules_file"`
	Gazetteer   GazetteerCfg  `yaml:"gazetteer" json:"gazetteer"`
	Suggestions SuggestionCfg `yaml:"suggestions" json:"suggestions"`
}

// Default returns the configuration used when no file is given.
func Default() *ParserCfg {
	return &ParserCfg{
		Workers: 0,
		Gazetteer: GazetteerCfg{
			Source:     SourceEmbedded,
			MeiliIndex: "jp_towns",
			CacheSize:  4096,
			TimeoutMS:  1500,
		},
		Suggestions: SuggestionCfg{
			JWWeight:  0.6,
			LevWeight: 0.4,
			MinScore:  0.5,
			Max:       3,
		},
	}
}

// Load reads path over the defaults, then applies ENV overrides. An empty path
// yields the defaults plus ENV.
func Load(path string) (*ParserCfg, error) {
	c := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(b, c); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	if err := c.applyEnv(); err != nil {
		return nil, err
	}
	return c, c.Validate()
}

// ENV overrides
func (c *ParserCfg) applyEnv() error {
	if v := os.Getenv("GAZETTEER_SOURCE"); v != "" {
		c.Gazetteer.Source = v
	}
	if v := os.Getenv("PARSER_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: PARSER_WORKERS: %w", err)
		}
		c.Workers = n
	}
	if v := os.Getenv("POSTGRES_DSN"); v != "" {
		c.Gazetteer.PostgresDSN = v
	}
	return nil
}

// Validate rejects unknown sources and missing connection settings.
func (c *ParserCfg) Validate() error {
	switch c.Gazetteer.Source {
	case SourceEmbedded, SourceGeolonia, SourceLibpostal:
	case SourcePostgres:
		if c.Gazetteer.PostgresDSN == "" {
			return fmt.Errorf("config: gazetteer source postgres needs postgres_dsn")
		}
	case SourceMeilisearch:
		if c.Gazetteer.MeiliHost == "" {
			return fmt.Errorf("config: gazetteer source meilisearch needs meili_host")
		}
	default:
		return fmt.Errorf("config: unknown gazetteer source %q", c.Gazetteer.Source)
	}
	if c.Workers < 0 {
		return fmt.Errorf("config: workers must not be negative")
	}
	if c.Gazetteer.CacheSize <= 0 {
		return fmt.Errorf("config: gazetteer cache_size must be positive")
	}
	return nil
}

// RequestTimeout bounds each call into a remote gazetteer source.
func (c *ParserCfg) RequestTimeout() time.Duration {
	if c.Gazetteer.TimeoutMS <= 0 {
		return 1500 * time.Millisecond
	}
	return time.Duration(c.Gazetteer.TimeoutMS) * time.Millisecond
}
