package handler

import (
	"net/http"

	"github.com/zeromicro/go-zero/core/logx"
	"github.com/zeromicro/go-zero/rest/httpx"

	"tokenwatch/internal/svc"
	"tokenwatch/internal/types"
)

// EquityHistoryHandler serves the equity snapshot series recorded by the
// watch daemon. Without a configured DSN there is no series to serve.
func EquityHistoryHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.EquityHistoryReq
		if err := httpx.Parse(r, &req); err != nil {
			httpx.ErrorCtx(r.Context(), w, err)
			return
		}
		if svcCtx.Repo == nil {
			writeError(r.Context(), w, http.StatusServiceUnavailable, "equity history requires postgres")
			return
		}
		points, err := svcCtx.Repo.Equity.Series(r.Context(), req.Limit)
		if err != nil {
			logx.WithContext(r.Context()).Errorf("equity history: %v", err)
			writeError(r.Context(), w, http.StatusInternalServerError, "equity history query failed")
			return
		}
		resp := types.EquityHistoryResp{Points: make([]types.EquityPointResp, 0, len(points))}
		for _, point := range points {
			resp.Points = append(resp.Points, types.EquityPointResp{
				TimestampMs:   point.TimestampMs,
				Balance:       point.Balance,
				Equity:        point.Equity,
				RealizedPnL:   point.RealizedPnl,
				UnrealizedPnL: point.UnrealizedPnl,
				TotalPnL:      point.TotalPnl,
				Positions:     point.Positions,
			})
		}
		httpx.OkJsonCtx(r.Context(), w, resp)
	}
}
