// Package paper implements simulated trading against live market prices: an
// append-only trade log per token, a cash balance, and average-cost PnL
// accounting replayed from the full log on every query.
package paper

import (
	"errors"
	"fmt"
	"time"
)

// Side is the direction of a trade.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Valid reports whether s is a known trade side.
func (s Side) Valid() bool { return s == SideBuy || s == SideSell }

// ErrNoHoldings reports a sell replayed against zero holdings. Callers are
// expected to reject over-sells before recording a trade, so seeing this
// error means the trade log itself is inconsistent.
var ErrNoHoldings = errors.New("paper: sell with zero holdings")

// Trade is one executed order. Trades are append-only and never mutated;
// RealizedPnL and RealizedPnLPercent are set on sells only.
type Trade struct {
	ID                 string    `json:"id"`
	Token              string    `json:"token"`
	Side               Side      `json:"side"`
	TokenAmount        float64   `json:"token_amount"`
	ExecutionPrice     float64   `json:"execution_price"`
	NotionalValue      float64   `json:"notional_value"`
	Timestamp          time.Time `json:"timestamp"`
	RealizedPnL        *float64  `json:"realized_pnl,omitempty"`
	RealizedPnLPercent *float64  `json:"realized_pnl_percent,omitempty"`
}

// Position is the derived state of one token's trade history. It is never
// stored; every value comes out of a fresh replay.
type Position struct {
	Token          string  `json:"token"`
	TokenHoldings  float64 `json:"token_holdings"`
	TotalCostBasis float64 `json:"total_cost_basis"`
	AverageCost    float64 `json:"average_cost"`
	RealizedPnL    float64 `json:"realized_pnl"`
	UnrealizedPnL  float64 `json:"unrealized_pnl"`
	TotalPnL       float64 `json:"total_pnl"`
}

// ComputePosition replays an ordered trade log from zero state and values the
// remaining holdings at currentPrice. Cost basis follows the average-cost
// model: each sell realizes pnl against the average cost at that moment and
// shrinks the cost basis proportionally, so average cost is unchanged by
// sells and shifts only on buys. The replay is deliberately not incremental;
// it must always see the complete history.
func ComputePosition(trades []Trade, currentPrice float64) (Position, error) {
	var pos Position
	for i, trade := range trades {
		switch trade.Side {
		case SideBuy:
			pos.TotalCostBasis += trade.NotionalValue
			pos.TokenHoldings += trade.TokenAmount
		case SideSell:
			if pos.TokenHoldings <= 0 {
				return Position{}, fmt.Errorf("%w: trade %d (%s)", ErrNoHoldings, i, trade.ID)
			}
			avgCost := pos.TotalCostBasis / pos.TokenHoldings
			costBasis := trade.TokenAmount * avgCost
			pos.RealizedPnL += trade.NotionalValue - costBasis
			pos.TotalCostBasis *= (pos.TokenHoldings - trade.TokenAmount) / pos.TokenHoldings
			pos.TokenHoldings -= trade.TokenAmount
		default:
			return Position{}, fmt.Errorf("paper: trade %d has unknown side %q", i, trade.Side)
		}
	}
	if pos.TokenHoldings > 0 {
		pos.AverageCost = pos.TotalCostBasis / pos.TokenHoldings
		pos.UnrealizedPnL = pos.TokenHoldings*currentPrice - pos.TotalCostBasis
	}
	pos.TotalPnL = pos.RealizedPnL + pos.UnrealizedPnL
	return pos, nil
}
