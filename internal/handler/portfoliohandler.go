package handler

import (
	"net/http"

	"github.com/zeromicro/go-zero/core/logx"
	"github.com/zeromicro/go-zero/rest/httpx"

	"tokenwatch/internal/svc"
	"tokenwatch/internal/types"
)

// PortfolioHandler aggregates balance, equity and PnL across all positions.
func PortfolioHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		portfolio, err := svcCtx.Account.Portfolio(svcCtx.PriceOf)
		if err != nil {
			logx.WithContext(r.Context()).Errorf("portfolio: %v", err)
			writeError(r.Context(), w, http.StatusInternalServerError, "portfolio computation failed")
			return
		}
		resp := types.PortfolioResp{
			Balance:       portfolio.Balance,
			Equity:        portfolio.Equity,
			RealizedPnL:   portfolio.RealizedPnL,
			UnrealizedPnL: portfolio.UnrealizedPnL,
			TotalPnL:      portfolio.TotalPnL,
			Positions:     make([]types.PositionResp, 0, len(portfolio.Positions)),
		}
		for _, pos := range portfolio.Positions {
			resp.Positions = append(resp.Positions, positionResp(pos))
		}
		httpx.OkJsonCtx(r.Context(), w, resp)
	}
}
