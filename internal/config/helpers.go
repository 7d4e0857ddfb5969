package config

import (
	"tokenwatch/pkg/market"
	"tokenwatch/pkg/paper"
	"tokenwatch/pkg/watch"
)

// MustLoadMarket loads etc/market.yaml from the project root and panics on error.
// It isolates market config so tests that only need a quote feed do not have
// to assemble the full application config.
func MustLoadMarket() *market.Config {
	return market.MustLoad()
}

// MustBuildMarketProviders loads market config from the default path and
// builds provider instances; returns the map and default provider name.
func MustBuildMarketProviders() (map[string]market.Provider, string) {
	cfg := MustLoadMarket()
	providers, err := cfg.BuildProviders()
	if err != nil {
		panic(err)
	}
	return providers, cfg.Default
}

// MustLoadWatch loads the default watch engine configuration and panics on error.
func MustLoadWatch() *watch.Config {
	return watch.MustLoad()
}

// MustLoadPaper loads the default paper trading configuration and panics on error.
func MustLoadPaper() *paper.Config {
	return paper.MustLoad()
}
