package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"tokenwatch/internal/config"
	"tokenwatch/pkg/market"

	// Import for side-effects: registers the market provider types
	_ "tokenwatch/pkg/market/dexscreener"
	_ "tokenwatch/pkg/market/sim"
)

const fallbackBaseURL = "https://api.dexscreener.com/latest/dex"

type rawPair struct {
	BaseToken struct {
		Symbol  string `json:"symbol"`
		Address string `json:"address"`
	} `json:"baseToken"`
	PriceUsd  string `json:"priceUsd"`
	Liquidity struct {
		Usd float64 `json:"usd"`
	} `json:"liquidity"`
}

func queryPairs(base string, tokens []string) ([]rawPair, string, error) {
	url := strings.TrimRight(base, "/") + "/tokens/" + strings.Join(tokens, ",")
	c := &http.Client{Timeout: 10 * time.Second}
	resp, err := c.Get(url)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	var out struct {
		Pairs []rawPair `json:"pairs"`
	}
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, resp.Status, fmt.Errorf("undecodable body (%d bytes)", len(b))
	}
	return out.Pairs, resp.Status, nil
}

func main() {
	// Ensure default market config (and .env) is loaded before probing.
	cfg := config.MustLoadMarket()

	tokens := market.CanonicalAll(os.Args[1:])
	if len(tokens) == 0 {
		tokens = []string{"wif", "pepe", "bonk"}
	}

	base := fallbackBaseURL
	if p, ok := cfg.Providers[cfg.Default]; ok && p.BaseURL != "" {
		base = p.BaseURL
	}

	fmt.Println("═══════════════════════════════════════════════════════════════")
	fmt.Printf("Feed base URL: %s\n", base)
	fmt.Printf("Tokens: %v\n", tokens)
	fmt.Println("═══════════════════════════════════════════════════════════════")
	fmt.Println()

	fmt.Println("--- RAW ENDPOINT ---")
	pairs, status, err := queryPairs(base, tokens)
	if err != nil {
		fmt.Printf("Error: %v (status %s)\n", err, status)
	} else {
		fmt.Printf("Status: %s, pairs: %d\n", status, len(pairs))
		for _, pair := range pairs {
			fmt.Printf("  - %s (%s): price=%s liquidity=%.0f\n",
				pair.BaseToken.Symbol, pair.BaseToken.Address, pair.PriceUsd, pair.Liquidity.Usd)
		}
	}

	fmt.Println("\n--- PROVIDER ---")
	providers, err := cfg.BuildProviders()
	if err != nil {
		fmt.Printf("build providers error: %v\n", err)
		os.Exit(1)
	}
	name, provider, err := cfg.DefaultProvider(providers)
	if err != nil {
		fmt.Printf("default provider error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Provider: %s\n", name)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	start := time.Now()
	snaps, err := provider.Quotes(ctx, tokens)
	elapsed := time.Since(start)
	if err != nil {
		fmt.Printf("Error: %v, took %dms\n", err, elapsed.Milliseconds())
		os.Exit(1)
	}
	fmt.Printf("Resolved %d/%d tokens, took %dms\n", len(snaps), len(tokens), elapsed.Milliseconds())
	for _, token := range tokens {
		snap, ok := snaps[token]
		if !ok {
			fmt.Printf("  - %s: no data\n", token)
			continue
		}
		fmt.Printf("  - %s: price=%.6f change_24h=%.2f%% liquidity=%.0f volume=%.0f\n",
			snap.Token, snap.PriceUSD, snap.PriceChange24h, snap.LiquidityUSD, snap.Volume24h)
	}
}
