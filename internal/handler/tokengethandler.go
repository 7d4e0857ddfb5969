package handler

import (
	"net/http"

	"github.com/zeromicro/go-zero/rest/httpx"

	"tokenwatch/internal/svc"
	"tokenwatch/internal/types"
	"tokenwatch/pkg/market"
)

// TokenGetHandler serves the cached snapshot for one token. It never triggers
// a fetch; absence is a 404.
func TokenGetHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.TokenPathReq
		if err := httpx.Parse(r, &req); err != nil {
			httpx.ErrorCtx(r.Context(), w, err)
			return
		}
		token := market.Canonical(req.Symbol)
		snap, ok := svcCtx.Engine.Snapshot(token)
		if !ok || snap == nil {
			writeError(r.Context(), w, http.StatusNotFound, "no snapshot for token "+token)
			return
		}
		httpx.OkJsonCtx(r.Context(), w, snapshotResp(snap))
	}
}
