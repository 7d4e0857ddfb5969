package marketpersist

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/zeromicro/go-zero/core/logx"
	gocache "github.com/zeromicro/go-zero/core/stores/cache"
	"github.com/zeromicro/go-zero/core/stores/sqlx"

	cachekeys "tokenwatch/internal/cache"
	"tokenwatch/pkg/market"
)

// Service mirrors resolved token snapshots to Postgres and Redis. It is the
// write side only; reads go through internal/repo.
type Service struct {
	sqlConn sqlx.SqlConn
	cache   gocache.Cache
	ttl     cachekeys.TTLSet
}

// Config enumerates dependencies required to persist market data.
type Config struct {
	SQLConn sqlx.SqlConn
	Cache   gocache.Cache
	TTL     cachekeys.TTLSet
}

// NewService wires a snapshot persistence service. Returns nil when dependencies missing.
func NewService(cfg Config) market.Persistence {
	if cfg.SQLConn == nil {
		return nil
	}
	return &Service{
		sqlConn: cfg.SQLConn,
		cache:   cfg.Cache,
		ttl:     cfg.TTL,
	}
}

// RecordSnapshot persists the latest view of one token and appends a price
// tick for history queries. Implements market.Persistence.
func (s *Service) RecordSnapshot(ctx context.Context, provider string, snapshot *market.TokenSnapshot) error {
	if s == nil || s.sqlConn == nil || snapshot == nil || strings.TrimSpace(snapshot.Token) == "" {
		return nil
	}
	now := time.Now().UTC()
	raw, _ := json.Marshal(snapshot)
	latestStmt := `
INSERT INTO public.price_latest (provider, token, price, change_24h, volume_24h, liquidity_usd, market_cap, ts_ms, raw, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW())
ON CONFLICT (provider, token) DO UPDATE SET
    price = EXCLUDED.price,
    change_24h = EXCLUDED.change_24h,
    volume_24h = EXCLUDED.volume_24h,
    liquidity_usd = EXCLUDED.liquidity_usd,
    market_cap = EXCLUDED.market_cap,
    ts_ms = EXCLUDED.ts_ms,
    raw = EXCLUDED.raw,
    updated_at = NOW();`
	if _, err := s.sqlConn.ExecCtx(ctx, latestStmt,
		provider,
		snapshot.Token,
		snapshot.PriceUSD,
		snapshot.PriceChange24h,
		snapshot.Volume24h,
		snapshot.LiquidityUSD,
		snapshot.MarketCap,
		now.UnixMilli(),
		string(raw),
	); err != nil {
		return err
	}

	tickStmt := `
INSERT INTO public.price_ticks (provider, token, price, liquidity_usd, volume_24h, ts_ms, created_at)
VALUES ($1, $2, $3, $4, $5, $6, NOW());`
	if _, err := s.sqlConn.ExecCtx(ctx, tickStmt,
		provider,
		snapshot.Token,
		snapshot.PriceUSD,
		snapshot.LiquidityUSD,
		snapshot.Volume24h,
		now.UnixMilli(),
	); err != nil {
		return err
	}

	s.cacheSnapshot(ctx, provider, snapshot, now)
	s.updateTokenPrices(ctx, provider, snapshot.Token, snapshot.PriceUSD)
	return nil
}

func (s *Service) cacheSnapshot(ctx context.Context, provider string, snapshot *market.TokenSnapshot, ts time.Time) {
	if s.cache == nil {
		return
	}
	ttl := cachekeys.SnapshotTTL(s.ttl)
	if ttl <= 0 {
		return
	}
	payload := map[string]any{
		"token":         snapshot.Token,
		"price":         snapshot.PriceUSD,
		"change_24h":    snapshot.PriceChange24h,
		"volume_24h":    snapshot.Volume24h,
		"liquidity_usd": snapshot.LiquidityUSD,
		"market_cap":    snapshot.MarketCap,
		"ts":            ts.UnixMilli(),
	}
	// Provider scoped key
	key := cachekeys.SnapshotLatestByProviderKey(provider, snapshot.Token)
	if err := s.cache.SetWithExpireCtx(ctx, key, payload, ttl); err != nil {
		logx.WithContext(ctx).Errorf("marketpersist: cache snapshot key=%s err=%v", key, err)
	}
	// Global key
	global := cachekeys.SnapshotLatestKey(snapshot.Token)
	if err := s.cache.SetWithExpireCtx(ctx, global, payload, ttl); err != nil {
		logx.WithContext(ctx).Errorf("marketpersist: cache snapshot key=%s err=%v", global, err)
	}
}

func (s *Service) updateTokenPrices(ctx context.Context, provider, token string, price float64) {
	if s.cache == nil {
		return
	}
	key := cachekeys.TokenPricesKey()
	var payload map[string]float64
	if err := s.cache.GetCtx(ctx, key, &payload); err != nil && !s.cache.IsNotFound(err) {
		logx.WithContext(ctx).Errorf("marketpersist: load token prices key=%s err=%v", key, err)
		return
	}
	if payload == nil {
		payload = make(map[string]float64)
	}
	field := fmt.Sprintf("%s:%s", provider, token)
	payload[field] = price
	ttl := cachekeys.TokenPricesTTL(s.ttl)
	if ttl <= 0 {
		return
	}
	if err := s.cache.SetWithExpireCtx(ctx, key, payload, ttl); err != nil {
		logx.WithContext(ctx).Errorf("marketpersist: cache token prices key=%s err=%v", key, err)
	}
}
