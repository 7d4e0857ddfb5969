package market

import (
	"context"
	"errors"
	"strings"
	"time"
)

// ErrNoData marks a well-formed upstream response that contains nothing for
// the requested token. It is not a transport failure: explicit lookups
// surface it, scheduled batch refreshes ignore it.
var ErrNoData = errors.New("market: no data for token")

// Provider exposes source-agnostic token market data.
type Provider interface {
	// Quotes resolves snapshots for a batch of token identifiers in a single
	// upstream call. Tokens unknown to the source are absent from the result
	// map; only transport-level failures return an error. Keys are canonical
	// identifiers.
	Quotes(ctx context.Context, tokens []string) (map[string]*TokenSnapshot, error)
}

// TokenSnapshot captures the last known market view of one token. A snapshot
// is immutable once produced; a newer fetch replaces the whole value rather
// than patching fields.
type TokenSnapshot struct {
	Token          string    `json:"token"`
	PriceUSD       float64   `json:"price_usd"`
	PriceChange24h float64   `json:"price_change_24h"`
	Volume24h      float64   `json:"volume_24h"`
	LiquidityUSD   float64   `json:"liquidity_usd"`
	MarketCap      float64   `json:"market_cap"`
	LastUpdated    time.Time `json:"last_updated"`
}

// Canonical trims and lower-cases a token identifier. Identifiers differing
// only in case refer to the same token everywhere in the system.
func Canonical(token string) string {
	return strings.ToLower(strings.TrimSpace(token))
}

// CanonicalAll maps Canonical over a list, dropping empties and duplicates
// while preserving first-seen order.
func CanonicalAll(tokens []string) []string {
	seen := make(map[string]struct{}, len(tokens))
	out := make([]string, 0, len(tokens))
	for _, token := range tokens {
		c := Canonical(token)
		if c == "" {
			continue
		}
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}
