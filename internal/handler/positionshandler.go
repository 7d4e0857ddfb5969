package handler

import (
	"net/http"

	"github.com/zeromicro/go-zero/core/logx"
	"github.com/zeromicro/go-zero/rest/httpx"

	"tokenwatch/internal/svc"
	"tokenwatch/internal/types"
)

// PositionsHandler derives positions from the trade log, valued at the
// engine's cached prices.
func PositionsHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		portfolio, err := svcCtx.Account.Portfolio(svcCtx.PriceOf)
		if err != nil {
			logx.WithContext(r.Context()).Errorf("positions: %v", err)
			writeError(r.Context(), w, http.StatusInternalServerError, "position computation failed")
			return
		}
		resp := types.PositionListResp{Positions: make([]types.PositionResp, 0, len(portfolio.Positions))}
		for _, pos := range portfolio.Positions {
			resp.Positions = append(resp.Positions, positionResp(pos))
		}
		httpx.OkJsonCtx(r.Context(), w, resp)
	}
}
