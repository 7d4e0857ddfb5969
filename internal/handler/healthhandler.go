package handler

import (
	"net/http"
	"time"

	"github.com/zeromicro/go-zero/rest/httpx"

	"tokenwatch/internal/svc"
	"tokenwatch/internal/types"
)

var started = time.Now()

// HealthHandler reports process liveness and how many tokens are tracked.
func HealthHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := types.HealthResp{
			Status:        "ok",
			Provider:      svcCtx.MarketName,
			TokensWatched: len(svcCtx.Engine.Tokens()),
			UptimeSeconds: time.Since(started).Seconds(),
		}
		httpx.OkJsonCtx(r.Context(), w, resp)
	}
}
