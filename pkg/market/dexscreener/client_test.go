package dexscreener

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tokenwatch/pkg/market"
)

func TestProviderQuotes(t *testing.T) {
	server, provider := newMockProvider(t)
	defer server.Close()

	ctx := context.Background()
	quotes, err := provider.Quotes(ctx, []string{"WIF", "pepe"})
	require.NoError(t, err)
	require.Len(t, quotes, 2)

	wif := quotes["wif"]
	require.NotNil(t, wif, "wif should resolve")
	require.Equal(t, "wif", wif.Token)
	require.InDelta(t, 2.41, wif.PriceUSD, 1e-9, "priceUsd string should be parsed")
	require.InDelta(t, -3.2, wif.PriceChange24h, 1e-9)
	require.InDelta(t, 1_250_000, wif.Volume24h, 1e-6)
	require.InDelta(t, 50_000, wif.LiquidityUSD, 1e-6)
	require.InDelta(t, 2_400_000_000, wif.MarketCap, 1e-3)
	require.False(t, wif.LastUpdated.IsZero())

	pepe := quotes["pepe"]
	require.NotNil(t, pepe, "pepe should resolve")
	require.InDelta(t, 0.00001234, pepe.PriceUSD, 1e-12)
}

// The same token is usually listed on several pools; the deepest one must
// win so downstream accounting sees a stable price.
func TestProviderQuotesPicksHighestLiquidity(t *testing.T) {
	server, provider := newMockProvider(t)
	defer server.Close()

	ctx := context.Background()
	quotes, err := provider.Quotes(ctx, []string{"wif"})
	require.NoError(t, err)
	wif := quotes["wif"]
	require.NotNil(t, wif)
	require.InDelta(t, 50_000, wif.LiquidityUSD, 1e-6, "the $50,000 pool should beat the $500 pool")
	require.InDelta(t, 2.41, wif.PriceUSD, 1e-9, "price must come from the deepest pool")
}

func TestProviderQuotesPartialResponse(t *testing.T) {
	server, provider := newMockProvider(t)
	defer server.Close()

	ctx := context.Background()
	quotes, err := provider.Quotes(ctx, []string{"wif", "pepe", "ghost"})
	require.NoError(t, err)
	require.Len(t, quotes, 2, "unknown tokens are absent, not errors")
	require.NotContains(t, quotes, "ghost")
}

func TestProviderLookupNoData(t *testing.T) {
	server, provider := newMockProvider(t)
	defer server.Close()

	ctx := context.Background()
	snap, err := provider.Lookup(ctx, "ghost")
	require.Nil(t, snap)
	require.ErrorIs(t, err, market.ErrNoData)

	snap, err = provider.Lookup(ctx, "WIF")
	require.NoError(t, err)
	require.Equal(t, "wif", snap.Token)
}

func TestClientTokenPairsEmptyPairs(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]interface{}{"schemaVersion": "1.0.0", "pairs": nil})
	}))
	defer server.Close()

	client := NewClient(WithBaseURL(server.URL), WithHTTPClient(server.Client()), WithMaxRetries(0))
	pairs, err := client.TokenPairs(context.Background(), []string{"anything"})
	require.NoError(t, err, "an empty pair list is a valid answer")
	require.Empty(t, pairs)
}

func TestClientTokenPairsBatchCap(t *testing.T) {
	client := NewClient()
	tokens := make([]string, maxTokensPerRequest+1)
	for i := range tokens {
		tokens[i] = fmt.Sprintf("t%d", i)
	}
	_, err := client.TokenPairs(context.Background(), tokens)
	require.True(t, errors.Is(err, ErrTooManyTokens))
}

// TestClientDoRequestRetry tests the retry logic in doRequest.
func TestClientDoRequestRetry(t *testing.T) {
	tests := []struct {
		name        string
		setupServer func() *httptest.Server
		maxRetries  int
		wantErr     bool
		errContains string
	}{
		{
			name: "successful after retry",
			setupServer: func() *httptest.Server {
				callCount := 0
				return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					callCount++
					if callCount < 2 {
						w.WriteHeader(http.StatusInternalServerError)
						return
					}
					writeJSON(w, map[string]interface{}{"schemaVersion": "1.0.0", "pairs": []Pair{}})
				}))
			},
			maxRetries: 2,
			wantErr:    false,
		},
		{
			name: "fail after max retries",
			setupServer: func() *httptest.Server {
				return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					w.WriteHeader(http.StatusBadGateway)
				}))
			},
			maxRetries:  1,
			wantErr:     true,
			errContains: "http status 502",
		},
		{
			name: "context timeout during retry",
			setupServer: func() *httptest.Server {
				return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					time.Sleep(200 * time.Millisecond)
					writeJSON(w, map[string]interface{}{"schemaVersion": "1.0.0"})
				}))
			},
			maxRetries:  2,
			wantErr:     true,
			errContains: "context deadline exceeded",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := tt.setupServer()
			defer server.Close()

			client := NewClient(
				WithBaseURL(server.URL),
				WithHTTPClient(server.Client()),
				WithMaxRetries(tt.maxRetries),
			)

			ctx := context.Background()
			if tt.name == "context timeout during retry" {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, 100*time.Millisecond)
				defer cancel()
			}

			var result tokensResponse
			err := client.doRequest(ctx, "/tokens/wif", &result)

			if tt.wantErr {
				assert.Error(t, err)
				if tt.errContains != "" {
					assert.Contains(t, err.Error(), tt.errContains)
				}
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestResolveMatchesByAddress(t *testing.T) {
	addr := "0x6982508145454ce325ddbe47a25d4ec3d2311933"
	pairs := []Pair{
		{
			BaseToken: TokenInfo{Address: addr, Symbol: "PEPE"},
			PriceUSD:  "0.00001",
			Liquidity: Liquidity{USD: 900},
		},
	}
	quotes := Resolve([]string{addr}, pairs, time.Unix(1_700_000_000, 0))
	require.Len(t, quotes, 1)
	require.InDelta(t, 0.00001, quotes[addr].PriceUSD, 1e-12)
}

// --- helpers ---

func newMockProvider(t *testing.T) (*httptest.Server, *Provider) {
	t.Helper()
	server, client := newMockDexServer(t)
	provider := NewProvider("dexscreener", WithClient(client))
	return server, provider
}

func newMockDexServer(t *testing.T) (*httptest.Server, *Client) {
	t.Helper()

	pairsByToken := map[string][]map[string]interface{}{
		"wif": {
			{
				"chainId":     "solana",
				"dexId":       "raydium",
				"pairAddress": "poolshallow",
				"baseToken":   map[string]string{"address": "wifaddr", "symbol": "WIF", "name": "dogwifhat"},
				"quoteToken":  map[string]string{"address": "usdcaddr", "symbol": "USDC"},
				"priceUsd":    "2.39",
				"priceChange": map[string]interface{}{"h24": -3.4},
				"volume":      map[string]interface{}{"h24": 40_000.0},
				"liquidity":   map[string]interface{}{"usd": 500.0},
				"marketCap":   2_380_000_000.0,
			},
			{
				"chainId":     "solana",
				"dexId":       "orca",
				"pairAddress": "pooldeep",
				"baseToken":   map[string]string{"address": "wifaddr", "symbol": "WIF", "name": "dogwifhat"},
				"quoteToken":  map[string]string{"address": "solano", "symbol": "SOL"},
				"priceUsd":    "2.41",
				"priceChange": map[string]interface{}{"h24": "-3.2"},
				"volume":      map[string]interface{}{"h24": 1_250_000.0},
				"liquidity":   map[string]interface{}{"usd": 50_000.0},
				"marketCap":   2_400_000_000.0,
			},
		},
		"pepe": {
			{
				"chainId":     "ethereum",
				"dexId":       "uniswap",
				"pairAddress": "pepepool",
				"baseToken":   map[string]string{"address": "pepeaddr", "symbol": "PEPE", "name": "Pepe"},
				"quoteToken":  map[string]string{"address": "wethaddr", "symbol": "WETH"},
				"priceUsd":    "0.00001234",
				"priceChange": map[string]interface{}{"h24": 5.1},
				"volume":      map[string]interface{}{"h24": 830_000.0},
				"liquidity":   map[string]interface{}{"usd": 12_000.0},
				"marketCap":   5_200_000_000.0,
			},
		},
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		const prefix = "/tokens/"
		idx := strings.Index(r.URL.Path, prefix)
		if idx < 0 {
			http.Error(w, "unsupported path", http.StatusNotFound)
			return
		}
		requested := strings.Split(r.URL.Path[idx+len(prefix):], ",")
		var pairs []map[string]interface{}
		for _, token := range requested {
			pairs = append(pairs, pairsByToken[strings.ToLower(token)]...)
		}
		writeJSON(w, map[string]interface{}{"schemaVersion": "1.0.0", "pairs": pairs})
	}))

	client := NewClient(
		WithBaseURL(server.URL),
		WithHTTPClient(server.Client()),
		WithMaxRetries(0),
	)

	return server, client
}

func writeJSON(w http.ResponseWriter, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(payload)
}
