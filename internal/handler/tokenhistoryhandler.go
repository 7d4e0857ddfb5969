package handler

import (
	"net/http"

	"github.com/zeromicro/go-zero/core/logx"
	"github.com/zeromicro/go-zero/rest/httpx"

	"tokenwatch/internal/svc"
	"tokenwatch/internal/types"
	"tokenwatch/pkg/market"
)

// TokenHistoryHandler serves recent mirrored price ticks from Postgres.
// Without a configured DSN there is no history to serve.
func TokenHistoryHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.HistoryReq
		if err := httpx.Parse(r, &req); err != nil {
			httpx.ErrorCtx(r.Context(), w, err)
			return
		}
		if svcCtx.Repo == nil {
			writeError(r.Context(), w, http.StatusServiceUnavailable, "price history requires postgres")
			return
		}
		token := market.Canonical(req.Symbol)
		ticks, err := svcCtx.Repo.Ticks.RecentByToken(r.Context(), token, req.Limit)
		if err != nil {
			logx.WithContext(r.Context()).Errorf("history %s: %v", token, err)
			writeError(r.Context(), w, http.StatusInternalServerError, "price history query failed")
			return
		}
		resp := types.HistoryResp{Token: token, Ticks: make([]types.TickResp, 0, len(ticks))}
		for _, tick := range ticks {
			resp.Ticks = append(resp.Ticks, types.TickResp{
				Provider:     tick.Provider,
				PriceUSD:     tick.PriceUSD,
				LiquidityUSD: tick.LiquidityUSD,
				Volume24h:    tick.Volume24h,
				TimestampMs:  tick.TimestampMs,
			})
		}
		httpx.OkJsonCtx(r.Context(), w, resp)
	}
}
