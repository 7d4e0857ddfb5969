package handler

import (
	"net/http"
	"strings"

	"github.com/zeromicro/go-zero/rest/httpx"

	"tokenwatch/internal/svc"
	"tokenwatch/internal/types"
	"tokenwatch/pkg/paper"
)

// TradeListHandler returns the in-memory trade log in execution order,
// optionally filtered to one token.
func TradeListHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.TradeListReq
		if err := httpx.Parse(r, &req); err != nil {
			httpx.ErrorCtx(r.Context(), w, err)
			return
		}
		var trades []paper.Trade
		if strings.TrimSpace(req.Symbol) != "" {
			trades = svcCtx.Account.Trades(req.Symbol)
		} else {
			trades = svcCtx.Account.AllTrades()
		}
		resp := types.TradeListResp{Trades: make([]types.TradeResp, 0, len(trades))}
		for _, trade := range trades {
			resp.Trades = append(resp.Trades, tradeResp(trade))
		}
		httpx.OkJsonCtx(r.Context(), w, resp)
	}
}
