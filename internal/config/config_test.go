package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_EnvOnlyDefaults(t *testing.T) {
	cfg, err := Load("does-not-exist.yaml", true)
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if cfg.Scoring.WindowDays != 31 {
		t.Fatalf("window_days=%d want=31", cfg.Scoring.WindowDays)
	}
	if cfg.Resolver.MatchThreshold != 80 {
		t.Fatalf("match_threshold=%v want=80", cfg.Resolver.MatchThreshold)
	}
	if cfg.Recommend.CacheTTL != 4*time.Hour {
		t.Fatalf("cache_ttl=%v want=4h", cfg.Recommend.CacheTTL)
	}
	if cfg.DB.Driver != "postgres" {
		t.Fatalf("driver=%q want=postgres", cfg.DB.Driver)
	}
}

func TestLoad_FileAndEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := []byte(`
db:
  driver: sqlite
  dsn: file::memory:
collectors:
  feeds:
    - name: amazon
      url: http://feeds.local/amazon
      timeout: 10s
`)
	if err := os.WriteFile(path, body, 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("PR_SCORING_WINDOW_DAYS", "14")

	cfg, err := Load(path, false)
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if cfg.DB.Driver != "sqlite" {
		t.Fatalf("driver=%q want=sqlite", cfg.DB.Driver)
	}
	if cfg.Scoring.WindowDays != 14 {
		t.Fatalf("window_days=%d want=14", cfg.Scoring.WindowDays)
	}
	if len(cfg.Collectors.Feeds) != 1 || cfg.Collectors.Feeds[0].Name != "amazon" {
		t.Fatalf("feeds=%+v", cfg.Collectors.Feeds)
	}
	if cfg.Collectors.Feeds[0].Timeout != 10*time.Second {
		t.Fatalf("feed timeout=%v want=10s", cfg.Collectors.Feeds[0].Timeout)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), false); err == nil {
		t.Fatalf("expected error for missing config file")
	}
}
