package paper

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/zeromicro/go-zero/core/logx"

	"tokenwatch/pkg/journal"
	"tokenwatch/pkg/market"
)

// Tolerance for float comparisons on amounts and balances.
const amountEpsilon = 1e-9

var (
	// ErrInvalidAmount rejects orders for a non-positive usd amount.
	ErrInvalidAmount = errors.New("paper: usd amount must be positive")

	// ErrNoPrice rejects orders without a positive execution price, which in
	// practice means no cached snapshot exists for the token yet.
	ErrNoPrice = errors.New("paper: no price available")

	// ErrInsufficientBalance rejects buys larger than the cash balance.
	ErrInsufficientBalance = errors.New("paper: insufficient balance")

	// ErrInsufficientHoldings rejects sells larger than current holdings.
	ErrInsufficientHoldings = errors.New("paper: insufficient holdings")
)

// Persistence is an optional write-only sink for executed trades. Failures
// are logged and never fail the trade.
type Persistence interface {
	RecordTrade(ctx context.Context, trade *Trade) error
}

// Account is a simulated trading account: a cash balance plus an append-only
// trade log. All validation happens before any state mutates, so a rejected
// order leaves the account untouched.
type Account struct {
	mu      sync.RWMutex
	balance float64
	log     []Trade

	journal *journal.Writer
	persist Persistence
	nowFn   func() time.Time
	idFn    func() string
}

// Option customises an Account.
type Option func(*Account)

// WithPersistence attaches a write-only trade sink.
func WithPersistence(p Persistence) Option {
	return func(a *Account) { a.persist = p }
}

// NewAccount constructs an account funded with the configured starting
// balance. A journal directory in the config enables trade journaling.
func NewAccount(cfg *Config, opts ...Option) *Account {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	a := &Account{
		balance: cfg.StartingBalance,
		nowFn:   time.Now,
		idFn:    uuid.NewString,
	}
	if cfg.JournalDir != "" {
		a.journal = journal.NewWriter(cfg.JournalDir)
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Buy spends usdAmount of cash on a token at the given price. The token
// amount is derived as usdAmount / price.
func (a *Account) Buy(ctx context.Context, token string, usdAmount, price float64) (*Trade, error) {
	canonical, err := validateOrder(token, usdAmount, price)
	if err != nil {
		return nil, err
	}

	a.mu.Lock()
	if usdAmount > a.balance+amountEpsilon {
		have := a.balance
		a.mu.Unlock()
		return nil, fmt.Errorf("%w: have %.2f, need %.2f", ErrInsufficientBalance, have, usdAmount)
	}
	trade := Trade{
		ID:             a.idFn(),
		Token:          canonical,
		Side:           SideBuy,
		TokenAmount:    usdAmount / price,
		ExecutionPrice: price,
		NotionalValue:  usdAmount,
		Timestamp:      a.nowFn(),
	}
	a.balance -= usdAmount
	a.log = append(a.log, trade)
	balanceAfter := a.balance
	a.mu.Unlock()

	a.afterTrade(ctx, &trade, balanceAfter)
	return &trade, nil
}

// Sell converts usdAmount worth of holdings back to cash at the given price.
// The realized pnl of the sell is computed against the average cost at that
// moment and its percentage is expressed relative to the sale proceeds.
func (a *Account) Sell(ctx context.Context, token string, usdAmount, price float64) (*Trade, error) {
	canonical, err := validateOrder(token, usdAmount, price)
	if err != nil {
		return nil, err
	}

	a.mu.Lock()
	pos, err := ComputePosition(tradesFor(a.log, canonical), price)
	if err != nil {
		a.mu.Unlock()
		return nil, err
	}
	amount := usdAmount / price
	if pos.TokenHoldings <= 0 || amount > pos.TokenHoldings+amountEpsilon {
		held := pos.TokenHoldings
		a.mu.Unlock()
		return nil, fmt.Errorf("%w: have %.8f, need %.8f", ErrInsufficientHoldings, held, amount)
	}
	if amount > pos.TokenHoldings {
		// Float noise on a sell-everything order; settle the whole position.
		amount = pos.TokenHoldings
		usdAmount = amount * price
	}

	avgCost := pos.TotalCostBasis / pos.TokenHoldings
	realized := usdAmount - amount*avgCost
	realizedPct := realized / usdAmount * 100

	trade := Trade{
		ID:                 a.idFn(),
		Token:              canonical,
		Side:               SideSell,
		TokenAmount:        amount,
		ExecutionPrice:     price,
		NotionalValue:      usdAmount,
		Timestamp:          a.nowFn(),
		RealizedPnL:        &realized,
		RealizedPnLPercent: &realizedPct,
	}
	a.balance += usdAmount
	a.log = append(a.log, trade)
	balanceAfter := a.balance
	a.mu.Unlock()

	a.afterTrade(ctx, &trade, balanceAfter)
	return &trade, nil
}

// Balance reports the current cash balance.
func (a *Account) Balance() float64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.balance
}

// Trades returns the trade log for one token in execution order.
func (a *Account) Trades(token string) []Trade {
	canonical := market.Canonical(token)
	a.mu.RLock()
	defer a.mu.RUnlock()
	return tradesFor(a.log, canonical)
}

// AllTrades returns the full trade log in execution order.
func (a *Account) AllTrades() []Trade {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]Trade, len(a.log))
	copy(out, a.log)
	return out
}

// Tokens returns every traded token, ordered by first trade.
func (a *Account) Tokens() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return tokensOf(a.log)
}

// Position replays the token's trade log against the given price.
func (a *Account) Position(token string, currentPrice float64) (Position, error) {
	canonical := market.Canonical(token)
	a.mu.RLock()
	trades := tradesFor(a.log, canonical)
	a.mu.RUnlock()

	pos, err := ComputePosition(trades, currentPrice)
	if err != nil {
		return Position{}, err
	}
	pos.Token = canonical
	return pos, nil
}

// Portfolio aggregates every position plus the cash balance. priceOf supplies
// the current price per token; tokens without a price are valued at zero.
type Portfolio struct {
	Balance       float64    `json:"balance"`
	Equity        float64    `json:"equity"`
	RealizedPnL   float64    `json:"realized_pnl"`
	UnrealizedPnL float64    `json:"unrealized_pnl"`
	TotalPnL      float64    `json:"total_pnl"`
	Positions     []Position `json:"positions"`
}

// Portfolio values the whole account at current prices.
func (a *Account) Portfolio(priceOf func(token string) (float64, bool)) (Portfolio, error) {
	a.mu.RLock()
	log := make([]Trade, len(a.log))
	copy(log, a.log)
	balance := a.balance
	a.mu.RUnlock()

	pf := Portfolio{Balance: balance, Equity: balance}
	for _, token := range tokensOf(log) {
		price := 0.0
		if priceOf != nil {
			if p, ok := priceOf(token); ok {
				price = p
			}
		}
		pos, err := ComputePosition(tradesFor(log, token), price)
		if err != nil {
			return Portfolio{}, err
		}
		pos.Token = token
		pf.RealizedPnL += pos.RealizedPnL
		pf.UnrealizedPnL += pos.UnrealizedPnL
		pf.Equity += pos.TokenHoldings * price
		pf.Positions = append(pf.Positions, pos)
	}
	pf.TotalPnL = pf.RealizedPnL + pf.UnrealizedPnL
	return pf, nil
}

func (a *Account) afterTrade(ctx context.Context, trade *Trade, balanceAfter float64) {
	if a.journal != nil {
		rec := &journal.TradeRecord{
			Timestamp:          trade.Timestamp,
			TradeID:            trade.ID,
			Token:              trade.Token,
			Side:               string(trade.Side),
			TokenAmount:        trade.TokenAmount,
			ExecutionPrice:     trade.ExecutionPrice,
			NotionalValue:      trade.NotionalValue,
			RealizedPnL:        trade.RealizedPnL,
			RealizedPnLPercent: trade.RealizedPnLPercent,
			BalanceAfter:       balanceAfter,
		}
		if _, err := a.journal.WriteTrade(rec); err != nil {
			logx.WithContext(ctx).Errorf("paper: journal trade %s: %v", trade.ID, err)
		}
	}
	if a.persist != nil {
		if err := a.persist.RecordTrade(ctx, trade); err != nil {
			logx.WithContext(ctx).Errorf("paper: persist trade %s: %v", trade.ID, err)
		}
	}
}

func validateOrder(token string, usdAmount, price float64) (string, error) {
	canonical := market.Canonical(token)
	if canonical == "" {
		return "", errors.New("paper: empty token")
	}
	if usdAmount <= 0 {
		return "", fmt.Errorf("%w: got %.2f", ErrInvalidAmount, usdAmount)
	}
	if price <= 0 {
		return "", fmt.Errorf("%w for %s", ErrNoPrice, canonical)
	}
	return canonical, nil
}

func tradesFor(log []Trade, token string) []Trade {
	out := make([]Trade, 0, len(log))
	for _, trade := range log {
		if trade.Token == token {
			out = append(out, trade)
		}
	}
	return out
}

func tokensOf(log []Trade) []string {
	seen := make(map[string]struct{}, len(log))
	out := make([]string, 0, len(log))
	for _, trade := range log {
		if _, ok := seen[trade.Token]; ok {
			continue
		}
		seen[trade.Token] = struct{}{}
		out = append(out, trade.Token)
	}
	return out
}
