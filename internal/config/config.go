// Package config loads and validates publisher configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EpochLayout is the date format accepted for source.epoch.
const EpochLayout = "2006-01-02"

// Config captures all publisher configuration knobs loaded via Viper.
type Config struct {
	Source    SourceConfig    `mapstructure:"source"`
	Ledger    LedgerConfig    `mapstructure:"ledger"`
	Publisher PublisherConfig `mapstructure:"publisher"`
	Pipeline  PipelineConfig  `mapstructure:"pipeline"`
	Fetcher   FetcherConfig   `mapstructure:"fetcher"`
	Runs      RunsConfig      `mapstructure:"runs"`
	Server    ServerConfig    `mapstructure:"server"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// SourceConfig selects the Postgres database holding the extracts.
type SourceConfig struct {
	DSN      string   `mapstructure:"dsn"`
	Extracts []string `mapstructure:"extracts"`
	Epoch    string   `mapstructure:"epoch"`
	MaxConns int      `mapstructure:"max_conns"`
}

// LedgerConfig chooses where the dedup ledger is persisted.
type LedgerConfig struct {
	Backend   string `mapstructure:"backend"`
	Path      string `mapstructure:"path"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	Object    string `mapstructure:"object"`
	// WriteAhead keeps a "<object>.pending" marker during submission.
	// Entries left by a crash are cleared with "ntsb-publisher ledger resolve".
	WriteAhead bool `mapstructure:"write_ahead"`
}

// PublisherConfig selects the publishing service adapter.
type PublisherConfig struct {
	Kind              string  `mapstructure:"kind"`
	ProjectID         string  `mapstructure:"project_id"`
	Topic             string  `mapstructure:"topic"`
	DescriptionObject string  `mapstructure:"description_object"`
	MaxPerMinute      float64 `mapstructure:"max_per_minute"`
	Burst             int     `mapstructure:"burst"`
}

// PipelineConfig toggles publish loop behavior.
type PipelineConfig struct {
	DryRun        bool `mapstructure:"dry_run"`
	MaxBodyLen    int  `mapstructure:"max_body_len"`
	SidebarUpdate bool `mapstructure:"sidebar_update"`
}

// FetcherConfig configures the archive fetcher.
type FetcherConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	ListingURL     string `mapstructure:"listing_url"`
	DataDir        string `mapstructure:"data_dir"`
	UserAgent      string `mapstructure:"user_agent"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// RunsConfig controls run history persistence. An empty DSN keeps history in
// memory.
type RunsConfig struct {
	DSN   string `mapstructure:"dsn"`
	Table string `mapstructure:"table"`
}

// ServerConfig controls the optional status server. An empty Addr disables it.
type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

// LoggingConfig toggles zap development features and the minimum level.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// Ledger and publisher backends.
const (
	BackendLocal    = "local"
	BackendGCS      = "gcs"
	BackendMemory   = "memory"
	PublisherPubSub = "pubsub"
	PublisherMemory = "memory"
)

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("NTSB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("source.dsn", "")
	v.SetDefault("source.extracts", []string{"avall"})
	v.SetDefault("source.epoch", "2008-01-01")
	v.SetDefault("source.max_conns", 4)
	v.SetDefault("ledger.backend", BackendLocal)
	v.SetDefault("ledger.path", "data")
	v.SetDefault("ledger.gcs_bucket", "")
	v.SetDefault("ledger.object", "submitted.csv")
	v.SetDefault("ledger.write_ahead", true)
	v.SetDefault("publisher.kind", PublisherMemory)
	v.SetDefault("publisher.project_id", "")
	v.SetDefault("publisher.topic", "")
	v.SetDefault("publisher.description_object", "description.txt")
	v.SetDefault("publisher.max_per_minute", 0)
	v.SetDefault("publisher.burst", 1)
	v.SetDefault("pipeline.dry_run", false)
	v.SetDefault("pipeline.max_body_len", 40000)
	v.SetDefault("pipeline.sidebar_update", true)
	v.SetDefault("fetcher.enabled", false)
	v.SetDefault("fetcher.listing_url", "https://data.ntsb.gov/avdata")
	v.SetDefault("fetcher.data_dir", "data/avdata")
	v.SetDefault("fetcher.user_agent", "ntsb-publisher/0.1")
	v.SetDefault("fetcher.timeout_seconds", 300)
	v.SetDefault("runs.dsn", "")
	v.SetDefault("runs.table", "publish_runs")
	v.SetDefault("server.addr", "")
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Source.DSN == "" {
		return fmt.Errorf("source.dsn is required")
	}
	if len(c.Source.Extracts) == 0 {
		return fmt.Errorf("source.extracts must list at least one extract")
	}
	if _, err := c.EpochTime(); err != nil {
		return err
	}
	if c.Source.MaxConns < 0 {
		return fmt.Errorf("source.max_conns must be >= 0")
	}
	switch c.Ledger.Backend {
	case BackendLocal:
		if c.Ledger.Path == "" {
			return fmt.Errorf("ledger.path is required for the local backend")
		}
	case BackendGCS:
		if c.Ledger.GCSBucket == "" {
			return fmt.Errorf("ledger.gcs_bucket is required for the gcs backend")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("ledger.backend %q is not supported", c.Ledger.Backend)
	}
	switch c.Publisher.Kind {
	case PublisherPubSub:
		if c.Publisher.ProjectID == "" || c.Publisher.Topic == "" {
			return fmt.Errorf("publisher.project_id and publisher.topic are required for pubsub")
		}
	case PublisherMemory:
	default:
		return fmt.Errorf("publisher.kind %q is not supported", c.Publisher.Kind)
	}
	if c.Publisher.MaxPerMinute < 0 {
		return fmt.Errorf("publisher.max_per_minute must be >= 0")
	}
	if c.Pipeline.MaxBodyLen <= 0 {
		return fmt.Errorf("pipeline.max_body_len must be > 0")
	}
	if c.Fetcher.Enabled {
		if c.Fetcher.DataDir == "" {
			return fmt.Errorf("fetcher.data_dir is required when the fetcher is enabled")
		}
		if c.Fetcher.TimeoutSeconds <= 0 {
			return fmt.Errorf("fetcher.timeout_seconds must be > 0")
		}
	}
	return nil
}

// EpochTime parses source.epoch as a UTC date.
func (c Config) EpochTime() (time.Time, error) {
	epoch, err := time.Parse(EpochLayout, c.Source.Epoch)
	if err != nil {
		return time.Time{}, fmt.Errorf("source.epoch must be YYYY-MM-DD: %w", err)
	}
	return epoch, nil
}

// FetchTimeout converts the fetcher timeout to a duration.
func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.Fetcher.TimeoutSeconds) * time.Second
}
