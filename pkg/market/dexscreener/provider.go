package dexscreener

import (
	"context"
	"fmt"
	"strings"
	"time"

	"tokenwatch/pkg/market"
)

const defaultRequestTimeout = 8 * time.Second

// Provider adapts the DEX Screener client to the market.Provider interface.
type Provider struct {
	name    string
	client  *Client
	timeout time.Duration
	nowFn   func() time.Time
}

// ProviderOption customises the provider.
type ProviderOption func(*Provider)

// WithClient injects a pre-built client.
func WithClient(client *Client) ProviderOption {
	return func(p *Provider) {
		if client != nil {
			p.client = client
		}
	}
}

// WithRequestTimeout overrides the per-call timeout.
func WithRequestTimeout(timeout time.Duration) ProviderOption {
	return func(p *Provider) {
		if timeout > 0 {
			p.timeout = timeout
		}
	}
}

// NewProvider constructs a named provider backed by the public API.
func NewProvider(name string, opts ...ProviderOption) *Provider {
	provider := &Provider{
		name:    providerName(name),
		client:  NewClient(),
		timeout: defaultRequestTimeout,
		nowFn:   time.Now,
	}
	for _, opt := range opts {
		opt(provider)
	}
	return provider
}

// Name returns the configured provider name.
func (p *Provider) Name() string { return p.name }

// Quotes implements market.Provider: one upstream call for the whole batch,
// then per-token resolution to the deepest-liquidity pair. Tokens without a
// matching pair are simply absent from the result.
func (p *Provider) Quotes(ctx context.Context, tokens []string) (map[string]*market.TokenSnapshot, error) {
	canon := market.CanonicalAll(tokens)
	if len(canon) == 0 {
		return map[string]*market.TokenSnapshot{}, nil
	}
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	pairs, err := p.client.TokenPairs(ctx, canon)
	if err != nil {
		return nil, fmt.Errorf("%s: fetch pairs: %w", p.name, err)
	}
	return Resolve(canon, pairs, p.nowFn()), nil
}

// Lookup resolves a single token, translating "no matching pair" into
// market.ErrNoData for callers that need a definite answer.
func (p *Provider) Lookup(ctx context.Context, token string) (*market.TokenSnapshot, error) {
	quotes, err := p.Quotes(ctx, []string{token})
	if err != nil {
		return nil, err
	}
	snap, ok := quotes[market.Canonical(token)]
	if !ok {
		return nil, market.ErrNoData
	}
	return snap, nil
}

// Resolve picks the highest-liquidity pair per requested token and shapes
// snapshots from it. The tie-break is load-bearing: the same token is often
// listed on several pools and downstream accounting needs a stable price, so
// the deepest pool always wins.
func Resolve(tokens []string, pairs []Pair, now time.Time) map[string]*market.TokenSnapshot {
	out := make(map[string]*market.TokenSnapshot, len(tokens))
	for _, token := range tokens {
		var best *Pair
		for i := range pairs {
			pair := &pairs[i]
			if !pair.matches(token) {
				continue
			}
			if best == nil || pair.Liquidity.USD > best.Liquidity.USD {
				best = pair
			}
		}
		if best == nil {
			continue
		}
		out[token] = &market.TokenSnapshot{
			Token:          token,
			PriceUSD:       best.price(),
			PriceChange24h: best.PriceChange.H24,
			Volume24h:      best.Volume.H24,
			LiquidityUSD:   best.Liquidity.USD,
			MarketCap:      best.MarketCap,
			LastUpdated:    now,
		}
	}
	return out
}

func providerName(name string) string {
	if strings.TrimSpace(name) == "" {
		return "dexscreener"
	}
	return name
}

func init() {
	market.RegisterProvider("dexscreener", func(name string, cfg *market.ProviderConfig) (market.Provider, error) {
		var clientOpts []Option
		if cfg.BaseURL != "" {
			clientOpts = append(clientOpts, WithBaseURL(cfg.BaseURL))
		}
		if cfg.MaxRetries > 0 {
			clientOpts = append(clientOpts, WithMaxRetries(cfg.MaxRetries))
		}
		providerOpts := []ProviderOption{WithClient(NewClient(clientOpts...))}
		if cfg.Timeout > 0 {
			providerOpts = append(providerOpts, WithRequestTimeout(cfg.Timeout))
		}
		return NewProvider(name, providerOpts...), nil
	})
}
