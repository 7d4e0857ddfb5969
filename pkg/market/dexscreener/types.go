package dexscreener

import (
	"encoding/json"
	"strconv"
	"strings"
)

// tokensResponse mirrors the /tokens endpoint payload. Only the fields the
// engine consumes are declared; everything else is ignored on decode.
type tokensResponse struct {
	SchemaVersion string `json:"schemaVersion"`
	Pairs         []Pair `json:"pairs"`
}

// Pair is one trading pair row as returned by the upstream API.
type Pair struct {
	ChainID     string        `json:"chainId"`
	DexID       string        `json:"dexId"`
	PairAddress string        `json:"pairAddress"`
	BaseToken   TokenInfo     `json:"baseToken"`
	QuoteToken  TokenInfo     `json:"quoteToken"`
	PriceUSD    string        `json:"priceUsd"`
	PriceChange PriceChange   `json:"priceChange"`
	Volume      VolumeWindows `json:"volume"`
	Liquidity   Liquidity     `json:"liquidity"`
	MarketCap   float64       `json:"marketCap"`
}

// TokenInfo identifies one side of a pair.
type TokenInfo struct {
	Address string `json:"address"`
	Symbol  string `json:"symbol"`
	Name    string `json:"name"`
}

// PriceChange carries percentage moves per window. The upstream sometimes
// encodes these as strings, so decoding is tolerant.
type PriceChange struct {
	H1  float64 `json:"h1"`
	H6  float64 `json:"h6"`
	H24 float64 `json:"h24"`
}

// VolumeWindows carries USD volume per window.
type VolumeWindows struct {
	H6  float64 `json:"h6"`
	H24 float64 `json:"h24"`
}

// Liquidity carries pooled liquidity figures.
type Liquidity struct {
	USD   float64 `json:"usd"`
	Base  float64 `json:"base"`
	Quote float64 `json:"quote"`
}

// UnmarshalJSON accepts both numeric and quoted percentage values.
func (p *PriceChange) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	p.H1 = flexibleFloat(raw["h1"])
	p.H6 = flexibleFloat(raw["h6"])
	p.H24 = flexibleFloat(raw["h24"])
	return nil
}

func flexibleFloat(raw json.RawMessage) float64 {
	if len(raw) == 0 {
		return 0
	}
	s := strings.Trim(string(raw), `"`)
	if s == "" || s == "null" {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}

// price parses the quoted priceUsd field; zero when absent or malformed.
func (p Pair) price() float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(p.PriceUSD), 64)
	if err != nil {
		return 0
	}
	return f
}

// matches reports whether this pair's base token answers for the requested
// canonical identifier, by address or by symbol.
func (p Pair) matches(canonical string) bool {
	if canonical == "" {
		return false
	}
	return strings.EqualFold(p.BaseToken.Address, canonical) ||
		strings.EqualFold(p.BaseToken.Symbol, canonical)
}
