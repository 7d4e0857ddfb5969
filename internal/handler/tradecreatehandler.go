package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/zeromicro/go-zero/core/logx"
	"github.com/zeromicro/go-zero/rest/httpx"

	"tokenwatch/internal/svc"
	"tokenwatch/internal/types"
	"tokenwatch/pkg/market"
	"tokenwatch/pkg/paper"
)

// TradeCreateHandler executes a paper order at the engine's cached price.
// Orders are rejected before any state changes: 409 when no priced snapshot
// exists yet, 422 when the account preconditions fail.
func TradeCreateHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.TradeReq
		if err := httpx.Parse(r, &req); err != nil {
			httpx.ErrorCtx(r.Context(), w, err)
			return
		}
		token := market.Canonical(req.Symbol)
		side := paper.Side(strings.ToLower(strings.TrimSpace(req.Side)))
		if !side.Valid() {
			writeError(r.Context(), w, http.StatusUnprocessableEntity, fmt.Sprintf("side must be %q or %q", paper.SideBuy, paper.SideSell))
			return
		}

		snap, ok := svcCtx.Engine.Snapshot(token)
		if !ok || snap == nil || snap.PriceUSD <= 0 {
			writeError(r.Context(), w, http.StatusConflict, "no priced snapshot for token "+token)
			return
		}

		var (
			trade *paper.Trade
			err   error
		)
		if side == paper.SideBuy {
			trade, err = svcCtx.Account.Buy(r.Context(), token, req.UsdAmount, snap.PriceUSD)
		} else {
			trade, err = svcCtx.Account.Sell(r.Context(), token, req.UsdAmount, snap.PriceUSD)
		}
		if err != nil {
			status := tradeErrorStatus(err)
			if status == http.StatusInternalServerError {
				logx.WithContext(r.Context()).Errorf("trade %s %s: %v", side, token, err)
			}
			writeError(r.Context(), w, status, err.Error())
			return
		}
		httpx.OkJsonCtx(r.Context(), w, tradeResp(*trade))
	}
}

func tradeErrorStatus(err error) int {
	switch {
	case errors.Is(err, paper.ErrInvalidAmount),
		errors.Is(err, paper.ErrInsufficientBalance),
		errors.Is(err, paper.ErrInsufficientHoldings):
		return http.StatusUnprocessableEntity
	case errors.Is(err, paper.ErrNoPrice):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
