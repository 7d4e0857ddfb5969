package repo

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/zeromicro/go-zero/core/stores/sqlx"

	"tokenwatch/pkg/market"
)

// StoredTrade provides a normalised view of the paper_trades table.
type StoredTrade struct {
	ID                 string   `json:"id"`
	Token              string   `json:"token"`
	Side               string   `json:"side"`
	TokenAmount        float64  `json:"token_amount"`
	ExecutionPrice     float64  `json:"execution_price"`
	NotionalValue      float64  `json:"notional_value"`
	RealizedPnl        *float64 `json:"realized_pnl,omitempty"`
	RealizedPnlPercent *float64 `json:"realized_pnl_percent,omitempty"`
	TimestampMs        int64    `json:"ts_ms"`
}

// TradesRepo exposes read helpers for trade history queries.
type TradesRepo interface {
	// Recent returns trades ordered by execution timestamp descending.
	Recent(ctx context.Context, limit int) ([]StoredTrade, error)
	// RecentByToken restricts the history to one token.
	RecentByToken(ctx context.Context, token string, limit int) ([]StoredTrade, error)
}

type tradesRepo struct {
	conn sqlx.SqlConn
}

func newTradesRepo(deps Dependencies) TradesRepo {
	return &tradesRepo{
		conn: deps.DBConn,
	}
}

const defaultTradeLimit = 200

func (r *tradesRepo) Recent(ctx context.Context, limit int) ([]StoredTrade, error) {
	if limit <= 0 {
		limit = defaultTradeLimit
	}

	query := `
SELECT
    id,
    token,
    side,
    token_amount,
    execution_price,
    notional_value,
    realized_pnl,
    realized_pnl_percent,
    ts_ms
FROM public.paper_trades
ORDER BY ts_ms DESC
LIMIT $1`

	var rows []storedTradeRow
	if err := r.conn.QueryRowsCtx(ctx, &rows, query, limit); err != nil {
		return nil, fmt.Errorf("tradesRepo.Recent query: %w", err)
	}
	return tradeRecords(rows), nil
}

func (r *tradesRepo) RecentByToken(ctx context.Context, token string, limit int) ([]StoredTrade, error) {
	if limit <= 0 {
		limit = defaultTradeLimit
	}

	query := `
SELECT
    id,
    token,
    side,
    token_amount,
    execution_price,
    notional_value,
    realized_pnl,
    realized_pnl_percent,
    ts_ms
FROM public.paper_trades
WHERE token = $1
ORDER BY ts_ms DESC
LIMIT $2`

	var rows []storedTradeRow
	if err := r.conn.QueryRowsCtx(ctx, &rows, query, market.Canonical(token), limit); err != nil {
		return nil, fmt.Errorf("tradesRepo.RecentByToken query: %w", err)
	}
	return tradeRecords(rows), nil
}

func tradeRecords(rows []storedTradeRow) []StoredTrade {
	result := make([]StoredTrade, 0, len(rows))
	for _, row := range rows {
		rec := StoredTrade{
			ID:             row.ID,
			Token:          row.Token,
			Side:           row.Side,
			TokenAmount:    row.TokenAmount,
			ExecutionPrice: row.ExecutionPrice,
			NotionalValue:  row.NotionalValue,
			TimestampMs:    row.TsMs,
		}
		if row.RealizedPnl.Valid {
			value := row.RealizedPnl.Float64
			rec.RealizedPnl = &value
		}
		if row.RealizedPnlPercent.Valid {
			value := row.RealizedPnlPercent.Float64
			rec.RealizedPnlPercent = &value
		}
		result = append(result, rec)
	}
	return result
}

type storedTradeRow struct {
	ID                 string          `db:"id"`
	Token              string          `db:"token"`
	Side               string          `db:"side"`
	TokenAmount        float64         `db:"token_amount"`
	ExecutionPrice     float64         `db:"execution_price"`
	NotionalValue      float64         `db:"notional_value"`
	RealizedPnl        sql.NullFloat64 `db:"realized_pnl"`
	RealizedPnlPercent sql.NullFloat64 `db:"realized_pnl_percent"`
	TsMs               int64           `db:"ts_ms"`
}
