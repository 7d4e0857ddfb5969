package handler

import (
	"net/http"
	"strings"

	"github.com/zeromicro/go-zero/core/logx"
	"github.com/zeromicro/go-zero/rest/httpx"

	"tokenwatch/internal/repo"
	"tokenwatch/internal/svc"
	"tokenwatch/internal/types"
)

// TradeHistoryHandler serves the mirrored trade log from Postgres. Unlike the
// in-memory trade list this survives restarts. Without a configured DSN there
// is no stored history to serve.
func TradeHistoryHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.TradeHistoryReq
		if err := httpx.Parse(r, &req); err != nil {
			httpx.ErrorCtx(r.Context(), w, err)
			return
		}
		if svcCtx.Repo == nil {
			writeError(r.Context(), w, http.StatusServiceUnavailable, "trade history requires postgres")
			return
		}
		var (
			trades []repo.StoredTrade
			err    error
		)
		if strings.TrimSpace(req.Symbol) != "" {
			trades, err = svcCtx.Repo.Trades.RecentByToken(r.Context(), req.Symbol, req.Limit)
		} else {
			trades, err = svcCtx.Repo.Trades.Recent(r.Context(), req.Limit)
		}
		if err != nil {
			logx.WithContext(r.Context()).Errorf("trade history: %v", err)
			writeError(r.Context(), w, http.StatusInternalServerError, "trade history query failed")
			return
		}
		resp := types.TradeListResp{Trades: make([]types.TradeResp, 0, len(trades))}
		for _, trade := range trades {
			resp.Trades = append(resp.Trades, types.TradeResp{
				ID:                 trade.ID,
				Token:              trade.Token,
				Side:               trade.Side,
				TokenAmount:        trade.TokenAmount,
				ExecutionPrice:     trade.ExecutionPrice,
				NotionalValue:      trade.NotionalValue,
				RealizedPnL:        trade.RealizedPnl,
				RealizedPnLPercent: trade.RealizedPnlPercent,
				TimestampMs:        trade.TimestampMs,
			})
		}
		httpx.OkJsonCtx(r.Context(), w, resp)
	}
}
