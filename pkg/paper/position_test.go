package paper

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestComputePositionBuyThenPartialSell(t *testing.T) {
	// Buy 10 units for $100 total, then sell 5 units at $12 each.
	trades := []Trade{
		buyTrade("wif", 10, 10, 100),
		sellTrade("wif", 5, 12, 60),
	}

	pos, err := ComputePosition(trades, 12)
	require.NoError(t, err)
	require.InDelta(t, 5, pos.TokenHoldings, 1e-9, "half the holdings remain")
	require.InDelta(t, 10, pos.AverageCost, 1e-9, "average cost is unchanged by a sell")
	require.InDelta(t, 50, pos.TotalCostBasis, 1e-9, "cost basis shrinks proportionally")
	require.InDelta(t, 10, pos.RealizedPnL, 1e-9, "realized pnl is 5*12 - 5*10")
	require.InDelta(t, 10, pos.UnrealizedPnL, 1e-9, "unrealized pnl is 5*12 - 50")
	require.InDelta(t, 20, pos.TotalPnL, 1e-9)
}

func TestComputePositionAverageCostShiftsOnBuys(t *testing.T) {
	trades := []Trade{
		buyTrade("wif", 10, 10, 100),
		buyTrade("wif", 10, 20, 200),
	}
	pos, err := ComputePosition(trades, 15)
	require.NoError(t, err)
	require.InDelta(t, 20, pos.TokenHoldings, 1e-9)
	require.InDelta(t, 15, pos.AverageCost, 1e-9, "two equal-size buys average their prices")

	// A sell at $18 realizes against the $15 average and leaves it intact.
	trades = append(trades, sellTrade("wif", 10, 18, 180))
	pos, err = ComputePosition(trades, 18)
	require.NoError(t, err)
	require.InDelta(t, 30, pos.RealizedPnL, 1e-9, "realized pnl is 10*18 - 10*15")
	require.InDelta(t, 10, pos.TokenHoldings, 1e-9)
	require.InDelta(t, 15, pos.AverageCost, 1e-9)
	require.InDelta(t, 150, pos.TotalCostBasis, 1e-9)
}

func TestComputePositionSellEverything(t *testing.T) {
	trades := []Trade{
		buyTrade("pepe", 1000, 0.02, 20),
		sellTrade("pepe", 1000, 0.03, 30),
	}
	pos, err := ComputePosition(trades, 0.05)
	require.NoError(t, err)
	require.Zero(t, pos.TokenHoldings)
	require.Zero(t, pos.TotalCostBasis)
	require.Zero(t, pos.AverageCost)
	require.Zero(t, pos.UnrealizedPnL, "a flat position has no unrealized pnl whatever the price")
	require.InDelta(t, 10, pos.RealizedPnL, 1e-9)
}

func TestComputePositionIsIdempotent(t *testing.T) {
	trades := []Trade{
		buyTrade("wif", 10, 10, 100),
		sellTrade("wif", 4, 11, 44),
		buyTrade("wif", 2, 9, 18),
	}

	first, err := ComputePosition(trades, 12)
	require.NoError(t, err)
	second, err := ComputePosition(trades, 12)
	require.NoError(t, err)
	require.Equal(t, first, second, "replaying the same log twice must give identical results")
	require.Equal(t, SideBuy, trades[0].Side, "the input log must not be mutated")
	require.InDelta(t, 100.0, trades[0].NotionalValue, 1e-9)
}

func TestComputePositionRejectsSellFromZero(t *testing.T) {
	trades := []Trade{sellTrade("wif", 5, 12, 60)}
	_, err := ComputePosition(trades, 12)
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrNoHoldings), "unexpected error: %v", err)

	trades = []Trade{
		buyTrade("wif", 5, 10, 50),
		sellTrade("wif", 5, 12, 60),
		sellTrade("wif", 1, 12, 12),
	}
	_, err = ComputePosition(trades, 12)
	require.True(t, errors.Is(err, ErrNoHoldings), "a sell after the position went flat must fail: %v", err)
}

func TestComputePositionRejectsUnknownSide(t *testing.T) {
	trades := []Trade{{ID: "x", Token: "wif", Side: Side("short"), TokenAmount: 1, NotionalValue: 10}}
	_, err := ComputePosition(trades, 10)
	require.Error(t, err)
}

// --- helpers ---

func buyTrade(token string, amount, price, notional float64) Trade {
	return Trade{
		ID:             "buy-" + token,
		Token:          token,
		Side:           SideBuy,
		TokenAmount:    amount,
		ExecutionPrice: price,
		NotionalValue:  notional,
	}
}

func sellTrade(token string, amount, price, notional float64) Trade {
	return Trade{
		ID:             "sell-" + token,
		Token:          token,
		Side:           SideSell,
		TokenAmount:    amount,
		ExecutionPrice: price,
		NotionalValue:  notional,
	}
}
