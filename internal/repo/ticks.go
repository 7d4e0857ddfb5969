package repo

import (
	"context"
	"fmt"

	"github.com/lib/pq"
	"github.com/zeromicro/go-zero/core/logx"
	gocache "github.com/zeromicro/go-zero/core/stores/cache"
	"github.com/zeromicro/go-zero/core/stores/sqlx"

	cachekeys "tokenwatch/internal/cache"
	"tokenwatch/pkg/market"
)

// TickRecord is one stored price observation.
type TickRecord struct {
	Token        string  `json:"token"`
	Provider     string  `json:"provider"`
	PriceUSD     float64 `json:"price_usd"`
	LiquidityUSD float64 `json:"liquidity_usd"`
	Volume24h    float64 `json:"volume_24h"`
	TimestampMs  int64   `json:"ts_ms"`
}

// TicksRepo exposes read helpers for price history queries.
type TicksRepo interface {
	// RecentByToken returns ticks for one token ordered by timestamp descending.
	RecentByToken(ctx context.Context, token string, limit int) ([]TickRecord, error)
	// LatestByTokens returns the freshest stored tick per token. When tokens is
	// empty it returns all known tokens.
	LatestByTokens(ctx context.Context, tokens []string) (map[string]TickRecord, error)
}

type ticksRepo struct {
	conn  sqlx.SqlConn
	cache gocache.Cache
	ttl   cachekeys.TTLSet
}

func newTicksRepo(deps Dependencies) TicksRepo {
	return &ticksRepo{
		conn:  deps.DBConn,
		cache: deps.Cache,
		ttl:   deps.TTL,
	}
}

const defaultTickLimit = 200

func (r *ticksRepo) RecentByToken(ctx context.Context, token string, limit int) ([]TickRecord, error) {
	token = market.Canonical(token)
	if limit <= 0 {
		limit = defaultTickLimit
	}

	// Serve from cache when the full requested range fits.
	if cached, ok := r.cachedTicks(ctx, token); ok && len(cached) >= limit {
		return cached[:limit], nil
	}

	query := `
SELECT
    token,
    provider,
    price,
    liquidity_usd,
    volume_24h,
    ts_ms
FROM public.price_ticks
WHERE token = $1
ORDER BY ts_ms DESC
LIMIT $2`

	var rows []tickRow
	if err := r.conn.QueryRowsCtx(ctx, &rows, query, token, limit); err != nil {
		return nil, fmt.Errorf("ticksRepo.RecentByToken query: %w", err)
	}

	result := make([]TickRecord, 0, len(rows))
	for _, row := range rows {
		result = append(result, row.record())
	}
	r.fillTickCache(ctx, token, result)
	return result, nil
}

func (r *ticksRepo) LatestByTokens(ctx context.Context, tokens []string) (map[string]TickRecord, error) {
	query := `
SELECT DISTINCT ON (token)
    token,
    provider,
    price,
    liquidity_usd,
    volume_24h,
    ts_ms
FROM public.price_ticks
%s
ORDER BY token, ts_ms DESC`

	var (
		args   []any
		clause string
	)

	if canon := market.CanonicalAll(tokens); len(canon) > 0 {
		clause = "WHERE token = ANY($1)"
		args = append(args, pq.Array(canon))
	}

	finalQuery := fmt.Sprintf(query, clause)
	var rows []tickRow
	if err := r.conn.QueryRowsCtx(ctx, &rows, finalQuery, args...); err != nil {
		return nil, fmt.Errorf("ticksRepo.LatestByTokens query: %w", err)
	}

	result := make(map[string]TickRecord, len(rows))
	for _, row := range rows {
		result[row.Token] = row.record()
	}
	return result, nil
}

func (r *ticksRepo) cachedTicks(ctx context.Context, token string) ([]TickRecord, bool) {
	if r.cache == nil {
		return nil, false
	}
	key := cachekeys.TicksRecentKey(token)
	var cached []TickRecord
	if err := r.cache.GetCtx(ctx, key, &cached); err != nil {
		if !r.cache.IsNotFound(err) {
			logx.WithContext(ctx).Errorf("ticksRepo: load ticks cache key=%s err=%v", key, err)
		}
		return nil, false
	}
	return cached, len(cached) > 0
}

func (r *ticksRepo) fillTickCache(ctx context.Context, token string, ticks []TickRecord) {
	if r.cache == nil || len(ticks) == 0 {
		return
	}
	ttl := cachekeys.TicksRecentTTL(r.ttl)
	if ttl <= 0 {
		return
	}
	key := cachekeys.TicksRecentKey(token)
	if err := r.cache.SetWithExpireCtx(ctx, key, ticks, ttl); err != nil {
		logx.WithContext(ctx).Errorf("ticksRepo: set ticks cache key=%s err=%v", key, err)
	}
}

type tickRow struct {
	Token        string  `db:"token"`
	Provider     string  `db:"provider"`
	Price        float64 `db:"price"`
	LiquidityUSD float64 `db:"liquidity_usd"`
	Volume24h    float64 `db:"volume_24h"`
	TsMs         int64   `db:"ts_ms"`
}

func (row tickRow) record() TickRecord {
	return TickRecord{
		Token:        row.Token,
		Provider:     row.Provider,
		PriceUSD:     row.Price,
		LiquidityUSD: row.LiquidityUSD,
		Volume24h:    row.Volume24h,
		TimestampMs:  row.TsMs,
	}
}
