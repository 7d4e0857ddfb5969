package handler

import (
	"context"
	"net/http"

	"github.com/zeromicro/go-zero/rest/httpx"

	"tokenwatch/internal/types"
	"tokenwatch/pkg/market"
	"tokenwatch/pkg/paper"
	"tokenwatch/pkg/watch"
)

func writeError(ctx context.Context, w http.ResponseWriter, status int, msg string) {
	httpx.WriteJsonCtx(ctx, w, status, types.ErrorResp{Error: msg})
}

func snapshotResp(snap *market.TokenSnapshot) *types.SnapshotResp {
	if snap == nil {
		return nil
	}
	return &types.SnapshotResp{
		Token:          snap.Token,
		PriceUSD:       snap.PriceUSD,
		PriceChange24h: snap.PriceChange24h,
		Volume24h:      snap.Volume24h,
		LiquidityUSD:   snap.LiquidityUSD,
		MarketCap:      snap.MarketCap,
		LastUpdated:    snap.LastUpdated.UTC().UnixMilli(),
	}
}

func tokenStateResp(state watch.TokenState) types.TokenStateResp {
	resp := types.TokenStateResp{Token: state.Token}
	if state.Snapshot != nil {
		resp.Snapshot = snapshotResp(state.Snapshot)
		resp.UpdatedMs = state.UpdatedAt.UTC().UnixMilli()
	}
	return resp
}

func tradeResp(trade paper.Trade) types.TradeResp {
	return types.TradeResp{
		ID:                 trade.ID,
		Token:              trade.Token,
		Side:               string(trade.Side),
		TokenAmount:        trade.TokenAmount,
		ExecutionPrice:     trade.ExecutionPrice,
		NotionalValue:      trade.NotionalValue,
		RealizedPnL:        trade.RealizedPnL,
		RealizedPnLPercent: trade.RealizedPnLPercent,
		TimestampMs:        trade.Timestamp.UTC().UnixMilli(),
	}
}

func positionResp(pos paper.Position) types.PositionResp {
	return types.PositionResp{
		Token:          pos.Token,
		TokenHoldings:  pos.TokenHoldings,
		TotalCostBasis: pos.TotalCostBasis,
		AverageCost:    pos.AverageCost,
		RealizedPnL:    pos.RealizedPnL,
		UnrealizedPnL:  pos.UnrealizedPnL,
		TotalPnL:       pos.TotalPnL,
	}
}
