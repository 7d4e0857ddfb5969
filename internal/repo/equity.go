package repo

import (
	"context"
	"fmt"

	"github.com/zeromicro/go-zero/core/stores/sqlx"
)

// EquityPoint captures one stored account valuation.
type EquityPoint struct {
	TimestampMs   int64   `json:"ts_ms"`
	Balance       float64 `json:"balance"`
	Equity        float64 `json:"equity"`
	RealizedPnl   float64 `json:"realized_pnl"`
	UnrealizedPnl float64 `json:"unrealized_pnl"`
	TotalPnl      float64 `json:"total_pnl"`
	Positions     int     `json:"positions"`
}

// EquityRepo exposes read helpers for the equity snapshot series.
type EquityRepo interface {
	// Series returns equity points ordered by timestamp descending.
	Series(ctx context.Context, limit int) ([]EquityPoint, error)
}

type equityRepo struct {
	conn sqlx.SqlConn
}

func newEquityRepo(deps Dependencies) EquityRepo {
	return &equityRepo{
		conn: deps.DBConn,
	}
}

const defaultEquityLimit = 288

func (r *equityRepo) Series(ctx context.Context, limit int) ([]EquityPoint, error) {
	if limit <= 0 {
		limit = defaultEquityLimit
	}

	query := `
SELECT
    ts_ms,
    balance,
    equity,
    realized_pnl,
    unrealized_pnl,
    total_pnl,
    positions
FROM public.equity_snapshots
ORDER BY ts_ms DESC
LIMIT $1`

	var rows []equityRow
	if err := r.conn.QueryRowsCtx(ctx, &rows, query, limit); err != nil {
		return nil, fmt.Errorf("equityRepo.Series query: %w", err)
	}

	result := make([]EquityPoint, 0, len(rows))
	for _, row := range rows {
		result = append(result, EquityPoint{
			TimestampMs:   row.TsMs,
			Balance:       row.Balance,
			Equity:        row.Equity,
			RealizedPnl:   row.RealizedPnl,
			UnrealizedPnl: row.UnrealizedPnl,
			TotalPnl:      row.TotalPnl,
			Positions:     int(row.Positions),
		})
	}
	return result, nil
}

type equityRow struct {
	TsMs          int64   `db:"ts_ms"`
	Balance       float64 `db:"balance"`
	Equity        float64 `db:"equity"`
	RealizedPnl   float64 `db:"realized_pnl"`
	UnrealizedPnl float64 `db:"unrealized_pnl"`
	TotalPnl      float64 `db:"total_pnl"`
	Positions     int64   `db:"positions"`
}
