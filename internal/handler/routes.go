package handler

import (
	"net/http"

	"github.com/zeromicro/go-zero/rest"

	"tokenwatch/internal/svc"
)

// RegisterHandlers mounts the REST and websocket routes.
func RegisterHandlers(server *rest.Server, serverCtx *svc.ServiceContext) {
	server.AddRoutes(
		[]rest.Route{
			{
				Method:  http.MethodGet,
				Path:    "/api/v1/health",
				Handler: HealthHandler(serverCtx),
			},
			{
				Method:  http.MethodGet,
				Path:    "/api/v1/tokens",
				Handler: TokenListHandler(serverCtx),
			},
			{
				Method:  http.MethodGet,
				Path:    "/api/v1/tokens/:symbol",
				Handler: TokenGetHandler(serverCtx),
			},
			{
				Method:  http.MethodPost,
				Path:    "/api/v1/tokens/:symbol/lookup",
				Handler: TokenLookupHandler(serverCtx),
			},
			{
				Method:  http.MethodGet,
				Path:    "/api/v1/tokens/:symbol/history",
				Handler: TokenHistoryHandler(serverCtx),
			},
			{
				Method:  http.MethodPost,
				Path:    "/api/v1/trades",
				Handler: TradeCreateHandler(serverCtx),
			},
			{
				Method:  http.MethodGet,
				Path:    "/api/v1/trades",
				Handler: TradeListHandler(serverCtx),
			},
			{
				Method:  http.MethodGet,
				Path:    "/api/v1/trades/history",
				Handler: TradeHistoryHandler(serverCtx),
			},
			{
				Method:  http.MethodGet,
				Path:    "/api/v1/positions",
				Handler: PositionsHandler(serverCtx),
			},
			{
				Method:  http.MethodGet,
				Path:    "/api/v1/portfolio",
				Handler: PortfolioHandler(serverCtx),
			},
			{
				Method:  http.MethodGet,
				Path:    "/api/v1/portfolio/equity",
				Handler: EquityHistoryHandler(serverCtx),
			},
		},
	)

	server.AddRoutes(
		[]rest.Route{
			{
				Method:  http.MethodGet,
				Path:    "/ws/stream",
				Handler: StreamHandler(serverCtx),
			},
		},
		rest.WithTimeout(0),
	)
}
