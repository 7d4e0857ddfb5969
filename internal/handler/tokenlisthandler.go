package handler

import (
	"net/http"

	"github.com/zeromicro/go-zero/rest/httpx"

	"tokenwatch/internal/svc"
	"tokenwatch/internal/types"
)

// TokenListHandler returns every tracked token in registration order.
func TokenListHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		states := svcCtx.Engine.States()
		resp := types.TokenListResp{Tokens: make([]types.TokenStateResp, 0, len(states))}
		for _, state := range states {
			resp.Tokens = append(resp.Tokens, tokenStateResp(state))
		}
		httpx.OkJsonCtx(r.Context(), w, resp)
	}
}
