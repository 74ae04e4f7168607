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
		t.Fatalf("Load: %v", err)
	}
	if cfg.Rerank.DefaultWeights["text_match"] != 0.6 {
		t.Errorf("default text_match weight = %v, want 0.6", cfg.Rerank.DefaultWeights["text_match"])
	}
	if cfg.Rerank.DefaultTopK != 10 || cfg.Rerank.MaxTopK != 20 {
		t.Errorf("top_k defaults = %d/%d, want 10/20", cfg.Rerank.DefaultTopK, cfg.Rerank.MaxTopK)
	}
	if cfg.Catalog.Driver != "sqlite" {
		t.Errorf("catalog driver = %q, want sqlite", cfg.Catalog.Driver)
	}
}

func TestLoadYAMLAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yamlData := `
server:
  port: 9000
cache:
  backend: redis
  ttl: 2m
rerank:
  defaultWeights:
    text_match: 1.0
    rating: 0.5
  defaultTopK: 5
  maxTopK: 50
`
	if err := os.WriteFile(path, []byte(yamlData), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("RR_SERVER_PORT", "9100")
	t.Setenv("RR_KAFKA_BROKERS", "k1:9092,k2:9092")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 9100 {
		t.Errorf("port = %d, want env override 9100", cfg.Server.Port)
	}
	if cfg.Cache.Backend != "redis" || cfg.Cache.TTL != 2*time.Minute {
		t.Errorf("cache = %+v", cfg.Cache)
	}
	if cfg.Rerank.DefaultTopK != 5 || cfg.Rerank.MaxTopK != 50 {
		t.Errorf("rerank top_k = %d/%d", cfg.Rerank.DefaultTopK, cfg.Rerank.MaxTopK)
	}
	if _, ok := cfg.Rerank.DefaultWeights["rating"]; !ok {
		t.Errorf("weights = %v, want rating key", cfg.Rerank.DefaultWeights)
	}
	if _, ok := cfg.Rerank.DefaultWeights["popularity"]; ok {
		t.Errorf("weights = %v, file weights should replace defaults", cfg.Rerank.DefaultWeights)
	}
	if len(cfg.Kafka.Brokers) != 2 {
		t.Errorf("brokers = %v", cfg.Kafka.Brokers)
	}
}

func TestLoadWeightsFromEnv(t *testing.T) {
	t.Setenv("RR_RERANK_DEFAULT_WEIGHTS", "text_match=0.7, price=0.3")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Rerank.DefaultWeights["text_match"] != 0.7 || cfg.Rerank.DefaultWeights["price"] != 0.3 {
		t.Errorf("weights = %v", cfg.Rerank.DefaultWeights)
	}
	if _, ok := cfg.Rerank.DefaultWeights["rating"]; ok {
		t.Error("env weights should replace the defaults entirely")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"ok", func(*Config) {}, ""},
		{"bad driver", func(c *Config) { c.Catalog.Driver = "mysql" }, "catalog.driver"},
		{"bad cache", func(c *Config) { c.Cache.Backend = "memcached" }, "cache.backend"},
		{"negative weight", func(c *Config) { c.Rerank.DefaultWeights["price"] = -1 }, "defaultWeights.price"},
		{"top_k above max", func(c *Config) { c.Rerank.DefaultTopK = 100 }, "defaultTopK"},
		{"zero max", func(c *Config) { c.Rerank.MaxTopK = 0 }, "maxTopK"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestCatalogDSN(t *testing.T) {
	c := CatalogConfig{Driver: "sqlite", Path: "/tmp/x.db"}
	if c.DSN() != "/tmp/x.db" {
		t.Errorf("sqlite DSN = %q", c.DSN())
	}
	c = CatalogConfig{Driver: "postgres", Host: "db", Port: 5432, User: "u", Password: "p", Database: "d", SSLMode: "disable"}
	if !strings.Contains(c.DSN(), "host=db") || !strings.Contains(c.DSN(), "dbname=d") {
		t.Errorf("postgres DSN = %q", c.DSN())
	}
}
