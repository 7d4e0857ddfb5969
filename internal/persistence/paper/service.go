package paperpersist

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/zeromicro/go-zero/core/logx"
	gocache "github.com/zeromicro/go-zero/core/stores/cache"
	"github.com/zeromicro/go-zero/core/stores/sqlx"

	cachekeys "tokenwatch/internal/cache"
	"tokenwatch/pkg/paper"
)

var _ paper.Persistence = (*Service)(nil)

const (
	recentTradesLimit = 100
	recentEquityLimit = 288
	defaultCacheTTL   = time.Minute
)

// Service mirrors paper account activity to Postgres and Redis. The account
// itself stays authoritative; rows and cache entries exist for the API and
// for post-run analysis.
type Service struct {
	sqlConn sqlx.SqlConn
	cache   gocache.Cache
	ttl     cachekeys.TTLSet
}

// Config enumerates dependencies needed to persist account activity.
type Config struct {
	SQLConn sqlx.SqlConn
	Cache   gocache.Cache
	TTL     cachekeys.TTLSet
}

// NewService returns a concrete persistence service when mandatory dependencies are present.
func NewService(cfg Config) *Service {
	if cfg.SQLConn == nil {
		return nil
	}
	return &Service{
		sqlConn: cfg.SQLConn,
		cache:   cfg.Cache,
		ttl:     cfg.TTL,
	}
}

// RecordTrade persists one executed paper trade. Replays of an already
// recorded trade ID are tolerated. Implements paper.Persistence.
func (s *Service) RecordTrade(ctx context.Context, trade *paper.Trade) error {
	if s == nil || s.sqlConn == nil || trade == nil || trade.ID == "" {
		return nil
	}
	stmt := `
INSERT INTO public.paper_trades (
    id, token, side, token_amount, execution_price, notional_value, realized_pnl, realized_pnl_percent, ts_ms, created_at
) VALUES (
    $1, $2, $3, $4, $5, $6, $7, $8, $9, NOW()
);`
	_, err := s.sqlConn.ExecCtx(ctx, stmt,
		trade.ID,
		trade.Token,
		string(trade.Side),
		trade.TokenAmount,
		trade.ExecutionPrice,
		trade.NotionalValue,
		nullFloat(trade.RealizedPnL),
		nullFloat(trade.RealizedPnLPercent),
		trade.Timestamp.UTC().UnixMilli(),
	)
	if err != nil && isUniqueViolation(err) {
		return nil
	}
	if err != nil {
		return err
	}
	entry := tradeEntryFrom(trade)
	s.appendRecentTrade(ctx, cachekeys.TradesRecentKey(), entry)
	s.appendRecentTrade(ctx, cachekeys.TradesByTokenKey(trade.Token), entry)
	s.markIngested(ctx, trade.ID)
	return nil
}

// EquitySnapshot captures periodic account valuation for the history series.
type EquitySnapshot struct {
	Balance       float64   `json:"balance"`
	Equity        float64   `json:"equity"`
	RealizedPnL   float64   `json:"realized_pnl"`
	UnrealizedPnL float64   `json:"unrealized_pnl"`
	TotalPnL      float64   `json:"total_pnl"`
	Positions     int       `json:"positions"`
	At            time.Time `json:"-"`
}

// RecordEquitySnapshot stores one valuation point, replacing any snapshot
// already recorded for the same millisecond.
func (s *Service) RecordEquitySnapshot(ctx context.Context, snapshot EquitySnapshot) error {
	if s == nil || s.sqlConn == nil {
		return nil
	}
	ts := snapshot.At
	if ts.IsZero() {
		ts = time.Now()
	}
	metaBytes, _ := json.Marshal(snapshot)
	stmt := `
INSERT INTO public.equity_snapshots (ts_ms, balance, equity, realized_pnl, unrealized_pnl, total_pnl, positions, metadata, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
ON CONFLICT (ts_ms) DO UPDATE SET
    balance = EXCLUDED.balance,
    equity = EXCLUDED.equity,
    realized_pnl = EXCLUDED.realized_pnl,
    unrealized_pnl = EXCLUDED.unrealized_pnl,
    total_pnl = EXCLUDED.total_pnl,
    positions = EXCLUDED.positions,
    metadata = EXCLUDED.metadata;`
	if _, err := s.sqlConn.ExecCtx(ctx, stmt,
		ts.UTC().UnixMilli(),
		snapshot.Balance,
		snapshot.Equity,
		snapshot.RealizedPnL,
		snapshot.UnrealizedPnL,
		snapshot.TotalPnL,
		snapshot.Positions,
		string(metaBytes),
	); err != nil {
		return err
	}
	s.appendEquity(ctx, equityCacheEntry{
		Balance:    snapshot.Balance,
		Equity:     snapshot.Equity,
		TotalPnL:   snapshot.TotalPnL,
		Positions:  snapshot.Positions,
		RecordedMs: ts.UTC().UnixMilli(),
	})
	s.cachePortfolio(ctx, snapshot)
	return nil
}

// HydrateCaches reloads recent trade and equity lists from Postgres, used at
// startup so the API serves history from Redis immediately.
func (s *Service) HydrateCaches(ctx context.Context) error {
	if s == nil || s.sqlConn == nil || s.cache == nil {
		return nil
	}
	if err := s.hydrateTrades(ctx); err != nil {
		return err
	}
	return s.hydrateEquity(ctx)
}

func (s *Service) hydrateTrades(ctx context.Context) error {
	var rows []struct {
		Id                 string          `db:"id"`
		Token              string          `db:"token"`
		Side               string          `db:"side"`
		TokenAmount        float64         `db:"token_amount"`
		ExecutionPrice     float64         `db:"execution_price"`
		NotionalValue      float64         `db:"notional_value"`
		RealizedPnl        sql.NullFloat64 `db:"realized_pnl"`
		RealizedPnlPercent sql.NullFloat64 `db:"realized_pnl_percent"`
		TsMs               int64           `db:"ts_ms"`
	}
	query := `
SELECT id, token, side, token_amount, execution_price, notional_value, realized_pnl, realized_pnl_percent, ts_ms
FROM public.paper_trades
ORDER BY ts_ms DESC
LIMIT $1;`
	if err := s.sqlConn.QueryRowsCtx(ctx, &rows, query, recentTradesLimit); err != nil {
		return err
	}
	entries := make([]tradeCacheEntry, 0, len(rows))
	byToken := make(map[string][]tradeCacheEntry)
	for _, row := range rows {
		entry := tradeCacheEntry{
			TradeID:        row.Id,
			Token:          row.Token,
			Side:           row.Side,
			TokenAmount:    row.TokenAmount,
			ExecutionPrice: row.ExecutionPrice,
			NotionalValue:  row.NotionalValue,
			ExecutedAtMs:   row.TsMs,
		}
		if row.RealizedPnl.Valid {
			v := row.RealizedPnl.Float64
			entry.RealizedPnL = &v
		}
		if row.RealizedPnlPercent.Valid {
			v := row.RealizedPnlPercent.Float64
			entry.RealizedPnLPercent = &v
		}
		entries = append(entries, entry)
		byToken[row.Token] = append(byToken[row.Token], entry)
	}
	s.persistTradeCache(ctx, cachekeys.TradesRecentKey(), entries)
	for token, list := range byToken {
		s.persistTradeCache(ctx, cachekeys.TradesByTokenKey(token), list)
	}
	return nil
}

func (s *Service) hydrateEquity(ctx context.Context) error {
	var rows []struct {
		TsMs      int64   `db:"ts_ms"`
		Balance   float64 `db:"balance"`
		Equity    float64 `db:"equity"`
		TotalPnl  float64 `db:"total_pnl"`
		Positions int64   `db:"positions"`
	}
	query := `
SELECT ts_ms, balance, equity, total_pnl, positions
FROM public.equity_snapshots
ORDER BY ts_ms DESC
LIMIT $1;`
	if err := s.sqlConn.QueryRowsCtx(ctx, &rows, query, recentEquityLimit); err != nil {
		return err
	}
	entries := make([]equityCacheEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, equityCacheEntry{
			Balance:    row.Balance,
			Equity:     row.Equity,
			TotalPnL:   row.TotalPnl,
			Positions:  int(row.Positions),
			RecordedMs: row.TsMs,
		})
	}
	ttl := s.ttlDuration(cachekeys.EquityRecentTTL(s.ttl))
	if ttl <= 0 || len(entries) == 0 {
		return nil
	}
	if err := s.cache.SetWithExpireCtx(ctx, cachekeys.EquityRecentKey(), entries, ttl); err != nil {
		logx.WithContext(ctx).Errorf("paperpersist: set equity cache err=%v", err)
	}
	return nil
}

type tradeCacheEntry struct {
	TradeID            string   `json:"trade_id"`
	Token              string   `json:"token"`
	Side               string   `json:"side"`
	TokenAmount        float64  `json:"token_amount"`
	ExecutionPrice     float64  `json:"execution_price"`
	NotionalValue      float64  `json:"notional_value"`
	RealizedPnL        *float64 `json:"realized_pnl,omitempty"`
	RealizedPnLPercent *float64 `json:"realized_pnl_percent,omitempty"`
	ExecutedAtMs       int64    `json:"executed_at_ms"`
}

type equityCacheEntry struct {
	Balance    float64 `json:"balance"`
	Equity     float64 `json:"equity"`
	TotalPnL   float64 `json:"total_pnl"`
	Positions  int     `json:"positions"`
	RecordedMs int64   `json:"recorded_at_ms"`
}

func tradeEntryFrom(trade *paper.Trade) tradeCacheEntry {
	return tradeCacheEntry{
		TradeID:            trade.ID,
		Token:              trade.Token,
		Side:               string(trade.Side),
		TokenAmount:        trade.TokenAmount,
		ExecutionPrice:     trade.ExecutionPrice,
		NotionalValue:      trade.NotionalValue,
		RealizedPnL:        trade.RealizedPnL,
		RealizedPnLPercent: trade.RealizedPnLPercent,
		ExecutedAtMs:       trade.Timestamp.UTC().UnixMilli(),
	}
}

func (s *Service) appendRecentTrade(ctx context.Context, key string, entry tradeCacheEntry) {
	if s == nil || s.cache == nil {
		return
	}
	var payload []tradeCacheEntry
	if err := s.cache.GetCtx(ctx, key, &payload); err != nil && !s.cache.IsNotFound(err) {
		logx.WithContext(ctx).Errorf("paperpersist: load trades cache key=%s err=%v", key, err)
		return
	}
	payload = append([]tradeCacheEntry{entry}, payload...)
	if len(payload) > recentTradesLimit {
		payload = payload[:recentTradesLimit]
	}
	s.persistTradeCache(ctx, key, payload)
}

func (s *Service) persistTradeCache(ctx context.Context, key string, entries []tradeCacheEntry) {
	if s == nil || s.cache == nil || len(entries) == 0 {
		return
	}
	ttl := s.ttlDuration(cachekeys.TradesRecentTTL(s.ttl))
	if ttl <= 0 {
		return
	}
	if err := s.cache.SetWithExpireCtx(ctx, key, entries, ttl); err != nil {
		logx.WithContext(ctx).Errorf("paperpersist: set trades cache key=%s err=%v", key, err)
	}
}

func (s *Service) appendEquity(ctx context.Context, entry equityCacheEntry) {
	if s == nil || s.cache == nil {
		return
	}
	key := cachekeys.EquityRecentKey()
	var payload []equityCacheEntry
	if err := s.cache.GetCtx(ctx, key, &payload); err != nil && !s.cache.IsNotFound(err) {
		logx.WithContext(ctx).Errorf("paperpersist: load equity cache key=%s err=%v", key, err)
		return
	}
	payload = append([]equityCacheEntry{entry}, payload...)
	if len(payload) > recentEquityLimit {
		payload = payload[:recentEquityLimit]
	}
	ttl := s.ttlDuration(cachekeys.EquityRecentTTL(s.ttl))
	if ttl <= 0 {
		return
	}
	if err := s.cache.SetWithExpireCtx(ctx, key, payload, ttl); err != nil {
		logx.WithContext(ctx).Errorf("paperpersist: set equity cache key=%s err=%v", key, err)
	}
}

type portfolioCacheEntry struct {
	EquitySnapshot
	RecordedMs int64 `json:"recorded_at_ms"`
}

// cachePortfolio keeps the latest valuation under a dedicated key so dashboard
// reads skip the equity list entirely.
func (s *Service) cachePortfolio(ctx context.Context, snapshot EquitySnapshot) {
	if s == nil || s.cache == nil {
		return
	}
	ttl := s.ttlDuration(cachekeys.PortfolioTTL(s.ttl))
	if ttl <= 0 {
		return
	}
	at := snapshot.At
	if at.IsZero() {
		at = time.Now()
	}
	key := cachekeys.PortfolioKey()
	entry := portfolioCacheEntry{EquitySnapshot: snapshot, RecordedMs: at.UTC().UnixMilli()}
	if err := s.cache.SetWithExpireCtx(ctx, key, entry, ttl); err != nil {
		logx.WithContext(ctx).Errorf("paperpersist: set portfolio cache key=%s err=%v", key, err)
	}
}

func (s *Service) markIngested(ctx context.Context, tradeID string) {
	if s == nil || s.cache == nil {
		return
	}
	key := cachekeys.TradeIngestGuardKey(tradeID)
	if err := s.cache.SetWithExpireCtx(ctx, key, 1, cachekeys.TradeIngestGuardTTL()); err != nil {
		logx.WithContext(ctx).Errorf("paperpersist: set ingest guard key=%s err=%v", key, err)
	}
}

func (s *Service) ttlDuration(value time.Duration) time.Duration {
	if value > 0 {
		return value
	}
	return defaultCacheTTL
}

// isUniqueViolation matches duplicate-key failures from both the pgx and
// lib/pq drivers.
func isUniqueViolation(err error) bool {
	var pgxErr *pgconn.PgError
	if errors.As(err, &pgxErr) {
		return pgxErr.Code == "23505"
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}

func nullFloat(ptr *float64) sql.NullFloat64 {
	if ptr == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *ptr, Valid: true}
}
