package svc_test

import (
	"testing"

	"tokenwatch/internal/config"
	"tokenwatch/internal/svc"
	marketpkg "tokenwatch/pkg/market"
	_ "tokenwatch/pkg/market/dexscreener"
	_ "tokenwatch/pkg/market/sim"
)

// TestEnvironmentAwareMarketProvider verifies that the service context routes
// quotes through the sim feed when Env is "test", regardless of the
// configured default.
func TestEnvironmentAwareMarketProvider(t *testing.T) {
	tests := []struct {
		name         string
		env          string
		expectedName string
	}{
		{
			name:         "test env forces sim even when config prefers dexscreener",
			env:          "test",
			expectedName: "local",
		},
		{
			name:         "dev env respects configured default",
			env:          "dev",
			expectedName: "dex",
		},
		{
			name:         "prod env respects configured default",
			env:          "prod",
			expectedName: "dex",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &config.Config{
				Env: tt.env,
				TTL: config.CacheTTL{Short: 10, Medium: 60, Long: 300},
			}
			cfg.Market.Value = &marketpkg.Config{
				Default: "dex",
				Providers: map[string]*marketpkg.ProviderConfig{
					"dex":   {Type: "dexscreener"},
					"local": {Type: "sim", Seed: 7},
				},
			}
			if err := cfg.Validate(); err != nil {
				t.Fatalf("Validate: %v", err)
			}

			ctx := svc.NewServiceContext(cfg)
			if ctx.MarketName != tt.expectedName {
				t.Errorf("expected provider %q, got %q", tt.expectedName, ctx.MarketName)
			}
			if ctx.DefaultMarket == nil {
				t.Fatalf("default market provider missing")
			}
			if ctx.Engine == nil || ctx.Account == nil {
				t.Fatalf("engine/account not wired")
			}
		})
	}
}

// TestMissingMarketSectionFallsBackToSim verifies that a bare test config
// still produces a working quote feed.
func TestMissingMarketSectionFallsBackToSim(t *testing.T) {
	cfg := &config.Config{
		Env: "test",
		TTL: config.CacheTTL{Short: 10, Medium: 60, Long: 300},
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	ctx := svc.NewServiceContext(cfg)
	if ctx.MarketName != "sim" {
		t.Fatalf("expected injected sim provider, got %q", ctx.MarketName)
	}
	if _, ok := ctx.MarketProviders["sim"]; !ok {
		t.Fatalf("sim provider not registered in provider map")
	}
}

// TestIsTestEnv verifies the environment detection logic.
func TestIsTestEnv(t *testing.T) {
	tests := []struct {
		env      string
		expected bool
	}{
		{"test", true},
		{"", true}, // Empty defaults to test
		{"dev", false},
		{"prod", false},
	}

	for _, tt := range tests {
		t.Run("env="+tt.env, func(t *testing.T) {
			cfg := config.Config{
				Env: tt.env,
				TTL: config.CacheTTL{Short: 10, Medium: 60, Long: 300},
			}
			// Normalize via Validate (which sets env to "test" if empty)
			if err := cfg.Validate(); err != nil {
				t.Fatalf("Validate failed: %v", err)
			}
			result := cfg.IsTestEnv()
			if result != tt.expected {
				t.Errorf("IsTestEnv() for env=%q: expected %v, got %v (normalized to %q)",
					tt.env, tt.expected, result, cfg.Env)
			}
		})
	}
}
