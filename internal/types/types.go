package types

// TokenPathReq addresses one token by its path parameter.
type TokenPathReq struct {
	Symbol string `path:"symbol"`
}

// HistoryReq requests recent price ticks for one token.
type HistoryReq struct {
	Symbol string `path:"symbol"`
	Limit  int    `form:"limit,default=50"`
}

// TradeReq places a paper order denominated in USD.
type TradeReq struct {
	Symbol    string  `json:"symbol"`
	Side      string  `json:"side"`
	UsdAmount float64 `json:"usd_amount"`
}

// TradeListReq filters the trade log.
type TradeListReq struct {
	Symbol string `form:"symbol,optional"`
}

// TradeHistoryReq filters the stored trade history.
type TradeHistoryReq struct {
	Symbol string `form:"symbol,optional"`
	Limit  int    `form:"limit,default=50"`
}

// EquityHistoryReq bounds the stored equity series.
type EquityHistoryReq struct {
	Limit int `form:"limit,default=288"`
}

// HealthResp reports process liveness.
type HealthResp struct {
	Status        string  `json:"status"`
	Provider      string  `json:"provider"`
	TokensWatched int     `json:"tokens_watched"`
	UptimeSeconds float64 `json:"uptime_seconds"`
}

// SnapshotResp is the wire form of one token snapshot.
type SnapshotResp struct {
	Token          string  `json:"token"`
	PriceUSD       float64 `json:"price_usd"`
	PriceChange24h float64 `json:"price_change_24h"`
	Volume24h      float64 `json:"volume_24h"`
	LiquidityUSD   float64 `json:"liquidity_usd"`
	MarketCap      float64 `json:"market_cap"`
	LastUpdated    int64   `json:"last_updated_ms"`
}

// TokenStateResp pairs a tracked token with its snapshot, if any.
type TokenStateResp struct {
	Token     string        `json:"token"`
	Snapshot  *SnapshotResp `json:"snapshot,omitempty"`
	UpdatedMs int64         `json:"updated_at_ms,omitempty"`
}

// TokenListResp lists tracked tokens in registration order.
type TokenListResp struct {
	Tokens []TokenStateResp `json:"tokens"`
}

// TickResp is one stored price observation.
type TickResp struct {
	Provider     string  `json:"provider"`
	PriceUSD     float64 `json:"price_usd"`
	LiquidityUSD float64 `json:"liquidity_usd"`
	Volume24h    float64 `json:"volume_24h"`
	TimestampMs  int64   `json:"ts_ms"`
}

// HistoryResp returns recent ticks, newest first.
type HistoryResp struct {
	Token string     `json:"token"`
	Ticks []TickResp `json:"ticks"`
}

// TradeResp is the wire form of one executed paper trade.
type TradeResp struct {
	ID                 string   `json:"id"`
	Token              string   `json:"token"`
	Side               string   `json:"side"`
	TokenAmount        float64  `json:"token_amount"`
	ExecutionPrice     float64  `json:"execution_price"`
	NotionalValue      float64  `json:"notional_value"`
	RealizedPnL        *float64 `json:"realized_pnl,omitempty"`
	RealizedPnLPercent *float64 `json:"realized_pnl_percent,omitempty"`
	TimestampMs        int64    `json:"ts_ms"`
}

// TradeListResp returns the ordered trade log.
type TradeListResp struct {
	Trades []TradeResp `json:"trades"`
}

// PositionResp is one derived token position.
type PositionResp struct {
	Token          string  `json:"token"`
	TokenHoldings  float64 `json:"token_holdings"`
	TotalCostBasis float64 `json:"total_cost_basis"`
	AverageCost    float64 `json:"average_cost"`
	RealizedPnL    float64 `json:"realized_pnl"`
	UnrealizedPnL  float64 `json:"unrealized_pnl"`
	TotalPnL       float64 `json:"total_pnl"`
}

// PositionListResp lists positions for every traded token.
type PositionListResp struct {
	Positions []PositionResp `json:"positions"`
}

// EquityPointResp is one stored account valuation.
type EquityPointResp struct {
	TimestampMs   int64   `json:"ts_ms"`
	Balance       float64 `json:"balance"`
	Equity        float64 `json:"equity"`
	RealizedPnL   float64 `json:"realized_pnl"`
	UnrealizedPnL float64 `json:"unrealized_pnl"`
	TotalPnL      float64 `json:"total_pnl"`
	Positions     int     `json:"positions"`
}

// EquityHistoryResp returns the stored equity series, newest first.
type EquityHistoryResp struct {
	Points []EquityPointResp `json:"points"`
}

// PortfolioResp aggregates account valuation.
type PortfolioResp struct {
	Balance       float64        `json:"balance"`
	Equity        float64        `json:"equity"`
	RealizedPnL   float64        `json:"realized_pnl"`
	UnrealizedPnL float64        `json:"unrealized_pnl"`
	TotalPnL      float64        `json:"total_pnl"`
	Positions     []PositionResp `json:"positions"`
}

// ErrorResp is the JSON error envelope for non-2xx responses.
type ErrorResp struct {
	Error string `json:"error"`
}
