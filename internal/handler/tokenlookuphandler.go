package handler

import (
	"errors"
	"net/http"

	"github.com/zeromicro/go-zero/core/logx"
	"github.com/zeromicro/go-zero/rest/httpx"

	"tokenwatch/internal/svc"
	"tokenwatch/internal/types"
	"tokenwatch/pkg/market"
	"tokenwatch/pkg/watch"
)

// TokenLookupHandler resolves one token through the rate limited queue,
// bypassing the refresh schedule. The upstream knowing nothing is a 404; a
// transport failure is a 502.
func TokenLookupHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.TokenPathReq
		if err := httpx.Parse(r, &req); err != nil {
			httpx.ErrorCtx(r.Context(), w, err)
			return
		}
		token := market.Canonical(req.Symbol)
		snap, err := svcCtx.Engine.Fetch(r.Context(), token)
		switch {
		case err == nil:
			httpx.OkJsonCtx(r.Context(), w, snapshotResp(snap))
		case errors.Is(err, market.ErrNoData):
			writeError(r.Context(), w, http.StatusNotFound, "no market data for token "+token)
		case errors.Is(err, watch.ErrClosed):
			writeError(r.Context(), w, http.StatusServiceUnavailable, "watch engine is closed")
		default:
			logx.WithContext(r.Context()).Errorf("lookup %s: %v", token, err)
			writeError(r.Context(), w, http.StatusBadGateway, "upstream lookup failed")
		}
	}
}
