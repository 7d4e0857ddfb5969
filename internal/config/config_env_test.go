package config

import (
	"os"
	"path/filepath"
	"testing"
)

// Test_hydrateSections_withEnvAndSectionFiles verifies env expansion and
// per-section hydration without going through go-zero conf.Load.
func Test_hydrateSections_withEnvAndSectionFiles(t *testing.T) {
	dir := t.TempDir()

	marketYAML := []byte(`
default: feed
providers:
  feed:
    type: dexscreener
    base_url: ${DEX_BASE}
    timeout: ${DEX_TIMEOUT}
    max_retries: 2
`)
	mktPath := filepath.Join(dir, "market.yaml")
	if err := os.WriteFile(mktPath, marketYAML, 0o600); err != nil {
		t.Fatalf("write market.yaml: %v", err)
	}

	watchYAML := []byte(`
provider: feed
refresh_interval: ${WATCH_REFRESH}
rate_limit: 60
rate_window: 30s
batch_size: 3
max_tracked_tokens: 6
`)
	watchPath := filepath.Join(dir, "watch.yaml")
	if err := os.WriteFile(watchPath, watchYAML, 0o600); err != nil {
		t.Fatalf("write watch.yaml: %v", err)
	}

	paperYAML := []byte(`
starting_balance: 2500
`)
	paperPath := filepath.Join(dir, "paper.yaml")
	if err := os.WriteFile(paperPath, paperYAML, 0o600); err != nil {
		t.Fatalf("write paper.yaml: %v", err)
	}

	t.Setenv("DEX_BASE", "https://api.dexscreener.local")
	t.Setenv("DEX_TIMEOUT", "7s")
	t.Setenv("WATCH_REFRESH", "12s")

	// Construct top-level config and hydrate sections against the temp dir.
	cfg := &Config{
		Env: "test",
		TTL: CacheTTL{Short: 10, Medium: 60, Long: 300},
	}
	cfg.Market.File = "market.yaml"
	cfg.Watch.File = "watch.yaml"
	cfg.Paper.File = "paper.yaml"
	cfg.baseDir = dir
	if err := cfg.hydrateSections(); err != nil {
		t.Fatalf("hydrateSections: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	if cfg.Market.Value == nil {
		t.Fatalf("Market section not hydrated")
	}
	p := cfg.Market.Value.Providers["feed"]
	if p == nil {
		t.Fatalf("market provider 'feed' missing")
	}
	if got := p.BaseURL; got != "https://api.dexscreener.local" {
		t.Fatalf("market BaseURL not expanded, got %q", got)
	}
	if p.Timeout.String() != "7s" {
		t.Fatalf("market timeout not parsed, got %s", p.Timeout)
	}

	if cfg.Watch.Value == nil {
		t.Fatalf("Watch section not hydrated")
	}
	if cfg.Watch.Value.RefreshInterval.String() != "12s" {
		t.Fatalf("watch refresh_interval not expanded, got %s", cfg.Watch.Value.RefreshInterval)
	}
	if cfg.Watch.Value.BatchSize != 3 {
		t.Fatalf("watch batch_size got %d", cfg.Watch.Value.BatchSize)
	}

	if cfg.Paper.Value == nil {
		t.Fatalf("Paper section not hydrated")
	}
	if cfg.Paper.Value.StartingBalance != 2500 {
		t.Fatalf("paper starting_balance got %v", cfg.Paper.Value.StartingBalance)
	}
}

// Test_hydrateSections_skipsEmptyFiles verifies that sections without a file
// reference stay nil instead of failing the load.
func Test_hydrateSections_skipsEmptyFiles(t *testing.T) {
	cfg := &Config{
		Env: "test",
		TTL: CacheTTL{Short: 10, Medium: 60, Long: 300},
	}
	cfg.baseDir = t.TempDir()
	if err := cfg.hydrateSections(); err != nil {
		t.Fatalf("hydrateSections: %v", err)
	}
	if cfg.Market.Value != nil || cfg.Watch.Value != nil || cfg.Paper.Value != nil {
		t.Fatalf("sections without files should stay nil")
	}
}
