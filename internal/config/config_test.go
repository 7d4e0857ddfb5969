package config

import (
	"os"
	"path/filepath"
	"testing"

	"tokenwatch/pkg/market"
	"tokenwatch/pkg/watch"
)

// Test_moduleConfig_envExpansion verifies that module configs expand environment
// variables correctly when loaded directly via their LoadConfig functions.
func Test_moduleConfig_envExpansion(t *testing.T) {
	dir := t.TempDir()

	// Prepare market.yaml using env placeholders for base_url and durations
	marketYAML := []byte(`
default: dex
providers:
  dex:
    type: dexscreener
    base_url: ${DEX_BASE}
    timeout: ${DEX_TIMEOUT}
    max_retries: 2
`)
	mktPath := filepath.Join(dir, "market.yaml")
	if err := os.WriteFile(mktPath, marketYAML, 0o600); err != nil {
		t.Fatalf("write market.yaml: %v", err)
	}

	// Prepare watch.yaml using env placeholders for durations
	watchYAML := []byte(`
provider: dex
refresh_interval: ${WATCH_REFRESH}
rate_limit: 120
rate_window: 1m
batch_size: 5
max_tracked_tokens: 4
`)
	watchPath := filepath.Join(dir, "watch.yaml")
	if err := os.WriteFile(watchPath, watchYAML, 0o600); err != nil {
		t.Fatalf("write watch.yaml: %v", err)
	}

	// Set envs consumed by the files above
	t.Setenv("DEX_BASE", "https://api.dexscreener.local")
	t.Setenv("DEX_TIMEOUT", "7s")
	t.Setenv("WATCH_REFRESH", "9s")

	// Load market config and verify env expansion
	mktCfg, err := market.LoadConfig(mktPath)
	if err != nil {
		t.Fatalf("market.LoadConfig: %v", err)
	}
	p := mktCfg.Providers["dex"]
	if p == nil {
		t.Fatalf("market provider 'dex' missing")
	}
	if got := p.BaseURL; got != "https://api.dexscreener.local" {
		t.Fatalf("market BaseURL not expanded, got %q", got)
	}
	if p.Timeout.String() != "7s" {
		t.Fatalf("market timeout not parsed, got %s", p.Timeout)
	}

	// Load watch config and verify env expansion
	watchCfg, err := watch.LoadConfig(watchPath)
	if err != nil {
		t.Fatalf("watch.LoadConfig: %v", err)
	}
	if watchCfg.RefreshInterval.String() != "9s" {
		t.Fatalf("watch refresh_interval not expanded, got %s", watchCfg.RefreshInterval)
	}
	if watchCfg.MaxTrackedTokens != 4 {
		t.Fatalf("watch max_tracked_tokens got %d", watchCfg.MaxTrackedTokens)
	}
}

func TestValidate_TTLBounds(t *testing.T) {
	cfg := &Config{}
	cfg.TTL.Short = 0
	cfg.TTL.Medium = 60
	cfg.TTL.Long = 300
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected ttl.short validation error")
	}
}

func TestValidate_Env(t *testing.T) {
	cfg := &Config{}
	cfg.TTL = CacheTTL{Short: 10, Medium: 60, Long: 300}
	cfg.Env = "staging"
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected env validation error")
	}

	cfg.Env = ""
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if cfg.Env != "test" {
		t.Fatalf("empty env should default to test, got %q", cfg.Env)
	}
	if !cfg.IsTestEnv() {
		t.Fatalf("defaulted env should report test")
	}
}
