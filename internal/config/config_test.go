package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadWithFileOverrides(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
source:
  dsn: postgres://localhost/ntsb
  extracts: ["avall", "up15OCT"]
  epoch: "2015-06-01"
  max_conns: 8
ledger:
  backend: gcs
  gcs_bucket: ledger-bucket
  object: ledger.csv
  write_ahead: false
publisher:
  kind: pubsub
  project_id: proj
  topic: accidents
pipeline:
  dry_run: true
  max_body_len: 20000
fetcher:
  enabled: true
  data_dir: /tmp/avdata
  timeout_seconds: 60
runs:
  dsn: postgres://localhost/runs
server:
  addr: ":9090"
logging:
  development: false
`
	if err := os.WriteFile(path, []byte(configYAML), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if len(cfg.Source.Extracts) != 2 || cfg.Source.Extracts[1] != "up15OCT" {
		t.Fatalf("expected extracts override, got %v", cfg.Source.Extracts)
	}
	if cfg.Ledger.Backend != BackendGCS || cfg.Ledger.GCSBucket != "ledger-bucket" || cfg.Ledger.WriteAhead {
		t.Fatalf("expected ledger overrides to apply: %+v", cfg.Ledger)
	}
	if cfg.Publisher.Kind != PublisherPubSub || cfg.Publisher.DescriptionObject != "description.txt" {
		t.Fatalf("expected publisher overrides with default description object: %+v", cfg.Publisher)
	}
	if !cfg.Pipeline.DryRun || cfg.Pipeline.MaxBodyLen != 20000 || !cfg.Pipeline.SidebarUpdate {
		t.Fatalf("expected pipeline overrides: %+v", cfg.Pipeline)
	}
	epoch, err := cfg.EpochTime()
	if err != nil || !epoch.Equal(time.Date(2015, time.June, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected epoch %v (%v)", epoch, err)
	}
	if got := cfg.FetchTimeout(); got != time.Minute {
		t.Fatalf("expected fetch timeout 1m, got %v", got)
	}
	if cfg.Server.Addr != ":9090" || cfg.Logging.Development {
		t.Fatalf("expected server/logging overrides: %+v %+v", cfg.Server, cfg.Logging)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("NTSB_SOURCE_DSN", "postgres://env/ntsb")
	t.Setenv("NTSB_PIPELINE_DRY_RUN", "true")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Source.DSN != "postgres://env/ntsb" || !cfg.Pipeline.DryRun {
		t.Fatalf("expected env overrides: %+v", cfg)
	}
	if cfg.Ledger.Backend != BackendLocal || cfg.Ledger.Object != "submitted.csv" {
		t.Fatalf("expected ledger defaults: %+v", cfg.Ledger)
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestConfigValidateErrors(t *testing.T) {
	t.Parallel()

	base := Config{
		Source:    SourceConfig{DSN: "postgres://x", Extracts: []string{"avall"}, Epoch: "2008-01-01"},
		Ledger:    LedgerConfig{Backend: BackendLocal, Path: "data"},
		Publisher: PublisherConfig{Kind: PublisherMemory},
		Pipeline:  PipelineConfig{MaxBodyLen: 40000},
	}
	if err := base.Validate(); err != nil {
		t.Fatalf("base config should validate: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{name: "missing dsn", mutate: func(c *Config) { c.Source.DSN = "" }, want: "source.dsn"},
		{name: "no extracts", mutate: func(c *Config) { c.Source.Extracts = nil }, want: "source.extracts"},
		{name: "bad epoch", mutate: func(c *Config) { c.Source.Epoch = "01/01/2008" }, want: "source.epoch"},
		{name: "local without path", mutate: func(c *Config) { c.Ledger.Path = "" }, want: "ledger.path"},
		{name: "gcs without bucket", mutate: func(c *Config) { c.Ledger.Backend = BackendGCS }, want: "ledger.gcs_bucket"},
		{name: "unknown backend", mutate: func(c *Config) { c.Ledger.Backend = "s3" }, want: "ledger.backend"},
		{name: "pubsub without topic", mutate: func(c *Config) { c.Publisher.Kind = PublisherPubSub }, want: "publisher.project_id"},
		{name: "unknown publisher", mutate: func(c *Config) { c.Publisher.Kind = "reddit" }, want: "publisher.kind"},
		{name: "negative rate", mutate: func(c *Config) { c.Publisher.MaxPerMinute = -1 }, want: "publisher.max_per_minute"},
		{name: "zero body cap", mutate: func(c *Config) { c.Pipeline.MaxBodyLen = 0 }, want: "pipeline.max_body_len"},
		{
			name: "fetcher without timeout",
			mutate: func(c *Config) {
				c.Fetcher = FetcherConfig{Enabled: true, DataDir: "d"}
			},
			want: "fetcher.timeout_seconds",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := base
			cfg.Source.Extracts = append([]string(nil), base.Source.Extracts...)
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}
