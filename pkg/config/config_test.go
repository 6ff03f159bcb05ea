package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Search.TitleWeight != 5 || cfg.Search.TextWeight != 1 {
		t.Errorf("weights = %v:%v, want 5:1", cfg.Search.TitleWeight, cfg.Search.TextWeight)
	}
	if cfg.Search.MatchMode != MatchPrefix {
		t.Errorf("match mode = %q, want prefix", cfg.Search.MatchMode)
	}
	if cfg.Tokenizer.MinLength != 2 {
		t.Errorf("min token length = %d, want 2", cfg.Tokenizer.MinLength)
	}
}

func TestLoadYAMLWithEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "docsearch.yaml")
	yamlDoc := `
source:
  kind: http
  url: https://docs.example.org/dev/search_index.js
search:
  titleWeight: 8
  categoryBoosts:
    function: 1.5
redis:
  cacheTTL: 5m
`
	if err := os.WriteFile(path, []byte(yamlDoc), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("DS_LOGGING_LEVEL", "debug")
	t.Setenv("DS_KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("DS_SERVER_CORS_ORIGINS", "https://docs.example.org")
	t.Setenv("DS_SERVER_RATE_LIMIT", "0")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Source.Kind != SourceHTTP || !strings.HasSuffix(cfg.Source.URL, "search_index.js") {
		t.Errorf("source = %+v", cfg.Source)
	}
	if cfg.Search.TitleWeight != 8 {
		t.Errorf("title weight = %v, want 8", cfg.Search.TitleWeight)
	}
	if cfg.Search.TextWeight != 1 {
		t.Errorf("text weight default lost: %v", cfg.Search.TextWeight)
	}
	if cfg.Search.CategoryBoosts["function"] != 1.5 {
		t.Errorf("category boosts = %v", cfg.Search.CategoryBoosts)
	}
	if cfg.Redis.CacheTTL != 5*time.Minute {
		t.Errorf("cache ttl = %v", cfg.Redis.CacheTTL)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("logging level = %q, want debug", cfg.Logging.Level)
	}
	if len(cfg.Kafka.Brokers) != 2 {
		t.Errorf("brokers = %v", cfg.Kafka.Brokers)
	}
	if len(cfg.Server.CORSOrigins) != 1 || cfg.Server.RateLimit != 0 {
		t.Errorf("server = %+v", cfg.Server)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown source", func(c *Config) { c.Source.Kind = "ftp" }},
		{"http without url", func(c *Config) { c.Source.Kind = SourceHTTP }},
		{"unknown match mode", func(c *Config) { c.Search.MatchMode = "fuzzy" }},
		{"title below text", func(c *Config) { c.Search.TitleWeight = 0.5 }},
		{"zero text weight", func(c *Config) { c.Search.TextWeight = 0 }},
		{"prefix decay above one", func(c *Config) { c.Search.PrefixDecay = 1.5 }},
		{"zero snippet radius", func(c *Config) { c.Search.SnippetRadius = 0 }},
		{"zero min length", func(c *Config) { c.Tokenizer.MinLength = 0 }},
		{"negative rate limit", func(c *Config) { c.Server.RateLimit = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate() = nil, want error")
			}
		})
	}
	if err := Default().Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
}
