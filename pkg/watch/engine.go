// Package watch tracks a bounded set of tokens against a market data
// provider: subscribers register interest, a scheduler refreshes stale
// snapshots in batches, and every network call rides a shared rate limit.
package watch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/zeromicro/go-zero/core/logx"

	"tokenwatch/pkg/market"
	"tokenwatch/pkg/ratelimit"
)

var (
	// ErrTooManyTokens rejects a subscription that would grow the tracked
	// set beyond the configured capacity.
	ErrTooManyTokens = errors.New("watch: tracked token limit reached")

	// ErrClosed rejects operations on an engine that has been closed.
	ErrClosed = errors.New("watch: engine closed")
)

// Listener receives snapshot updates for a subscribed token. Listeners are
// invoked synchronously from the fetch path, one at a time; a slow listener
// delays delivery to the others.
type Listener interface {
	SnapshotUpdated(snap *market.TokenSnapshot)
}

// ListenerFunc adapts a plain function to the Listener interface.
type ListenerFunc func(snap *market.TokenSnapshot)

// SnapshotUpdated implements Listener.
func (f ListenerFunc) SnapshotUpdated(snap *market.TokenSnapshot) { f(snap) }

// Subscription is the handle returned by Subscribe. Each call to Subscribe
// yields a distinct handle, even for the same listener and token.
type Subscription struct {
	engine   *Engine
	token    string
	listener Listener
	once     sync.Once
}

// Token reports the canonical token this subscription tracks.
func (s *Subscription) Token() string { return s.token }

// Cancel removes the subscription. When the last subscription for a token is
// cancelled the token leaves the tracked set entirely, snapshot included.
// Cancel is idempotent.
func (s *Subscription) Cancel() {
	s.once.Do(func() { s.engine.remove(s) })
}

// TokenState is one tracked token with whatever data has arrived for it so
// far. Snapshot is nil until the first successful fetch.
type TokenState struct {
	Token     string                `json:"token"`
	Snapshot  *market.TokenSnapshot `json:"snapshot,omitempty"`
	UpdatedAt time.Time             `json:"updated_at,omitempty"`
}

type tokenEntry struct {
	subs      []*Subscription
	snapshot  *market.TokenSnapshot
	updatedAt time.Time
}

// Engine tracks tokens for its subscribers. All fetches, scheduled and
// on-demand alike, go through one FIFO queue behind one rate limiter, so the
// engine as a whole never exceeds its request budget.
type Engine struct {
	cfg          *Config
	provider     market.Provider
	providerName string
	persist      market.Persistence

	limiter *ratelimit.Limiter
	queue   *ratelimit.Queue

	mu      sync.RWMutex
	entries map[string]*tokenEntry
	order   []string
	opened  bool
	closed  bool

	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	nowFn func() time.Time
}

// Option customises an Engine.
type Option func(*Engine)

// WithPersistence attaches a write-only snapshot sink. Failures are logged
// and never surface to subscribers.
func WithPersistence(p market.Persistence) Option {
	return func(e *Engine) { e.persist = p }
}

// WithProviderName overrides the provider name recorded alongside persisted
// snapshots.
func WithProviderName(name string) Option {
	return func(e *Engine) {
		if name != "" {
			e.providerName = name
		}
	}
}

// NewEngine constructs an engine over the given provider. The config supplies
// the refresh cadence, request budget and tracking capacity.
func NewEngine(cfg *Config, provider market.Provider, opts ...Option) *Engine {
	if cfg == nil {
		cfg = Default()
	}
	e := &Engine{
		cfg:          cfg,
		provider:     provider,
		providerName: cfg.Provider,
		limiter:      ratelimit.NewLimiter(cfg.RateLimit, cfg.RateWindow),
		entries:      make(map[string]*tokenEntry),
		stopChan:     make(chan struct{}),
		nowFn:        time.Now,
	}
	e.queue = ratelimit.NewQueue(e.limiter, ratelimit.WithErrorFunc(func(err error) {
		logx.Errorf("watch: queued fetch failed: %v", err)
	}))
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Open starts the refresh scheduler. It fails if the engine is already open
// or has been closed.
func (e *Engine) Open() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}
	if e.opened {
		return errors.New("watch: engine already open")
	}
	e.opened = true
	e.wg.Add(1)
	go e.run()
	return nil
}

// Close stops the scheduler, drops any backlogged fetches and waits for
// in-flight work to finish. Safe to call more than once.
func (e *Engine) Close() {
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()
	e.stopOnce.Do(func() { close(e.stopChan) })
	e.wg.Wait()
	e.queue.Close()
}

// Subscribe registers a listener for a token and enqueues an immediate fetch
// so the listener sees fresh data without waiting for the next refresh tick.
// The token is canonicalized before registration. Subscribing to a token not
// yet tracked fails with ErrTooManyTokens once the tracked set is full.
func (e *Engine) Subscribe(token string, l Listener) (*Subscription, error) {
	canonical := market.Canonical(token)
	if canonical == "" {
		return nil, errors.New("watch: empty token")
	}
	if l == nil {
		return nil, errors.New("watch: nil listener")
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil, ErrClosed
	}
	entry, ok := e.entries[canonical]
	if !ok {
		if len(e.order) >= e.cfg.MaxTrackedTokens {
			e.mu.Unlock()
			return nil, fmt.Errorf("%w: %d tokens tracked", ErrTooManyTokens, len(e.order))
		}
		entry = &tokenEntry{}
		e.entries[canonical] = entry
		e.order = append(e.order, canonical)
	}
	sub := &Subscription{engine: e, token: canonical, listener: l}
	entry.subs = append(entry.subs, sub)
	e.mu.Unlock()

	e.queue.Enqueue(func(ctx context.Context) error {
		return e.fetchBatch(ctx, []string{canonical})
	})
	return sub, nil
}

// remove detaches a subscription; the last one takes the token and its
// snapshot with it.
func (e *Engine) remove(sub *Subscription) {
	e.mu.Lock()
	defer e.mu.Unlock()
	entry, ok := e.entries[sub.token]
	if !ok {
		return
	}
	for i, s := range entry.subs {
		if s == sub {
			entry.subs = append(entry.subs[:i], entry.subs[i+1:]...)
			break
		}
	}
	if len(entry.subs) > 0 {
		return
	}
	delete(e.entries, sub.token)
	for i, token := range e.order {
		if token == sub.token {
			e.order = append(e.order[:i], e.order[i+1:]...)
			break
		}
	}
}

// Snapshot returns the cached snapshot for a token. It never triggers a
// fetch; a token that is tracked but not yet fetched reports false.
func (e *Engine) Snapshot(token string) (*market.TokenSnapshot, bool) {
	canonical := market.Canonical(token)
	e.mu.RLock()
	defer e.mu.RUnlock()
	entry, ok := e.entries[canonical]
	if !ok || entry.snapshot == nil {
		return nil, false
	}
	return entry.snapshot, true
}

// Tokens returns the tracked tokens in registration order.
func (e *Engine) Tokens() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]string, len(e.order))
	copy(out, e.order)
	return out
}

// States returns every tracked token with its current snapshot, in
// registration order.
func (e *Engine) States() []TokenState {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]TokenState, 0, len(e.order))
	for _, token := range e.order {
		entry := e.entries[token]
		if entry == nil {
			continue
		}
		out = append(out, TokenState{
			Token:     token,
			Snapshot:  entry.snapshot,
			UpdatedAt: entry.updatedAt,
		})
	}
	return out
}

// Fetch performs a one-off rate-limited lookup through the engine's queue and
// returns the result. The token does not need to be tracked; when it is, the
// fetched snapshot also refreshes the cache. A token the provider knows
// nothing about fails with market.ErrNoData.
func (e *Engine) Fetch(ctx context.Context, token string) (*market.TokenSnapshot, error) {
	canonical := market.Canonical(token)
	if canonical == "" {
		return nil, errors.New("watch: empty token")
	}
	e.mu.RLock()
	closed := e.closed
	e.mu.RUnlock()
	if closed {
		return nil, ErrClosed
	}

	type result struct {
		snap *market.TokenSnapshot
		err  error
	}
	resCh := make(chan result, 1)
	e.queue.Enqueue(func(qctx context.Context) error {
		snaps, err := e.provider.Quotes(qctx, []string{canonical})
		if err != nil {
			resCh <- result{nil, fmt.Errorf("watch: lookup %s: %w", canonical, err)}
			return fmt.Errorf("watch: lookup %s: %w", canonical, err)
		}
		snap, ok := snaps[canonical]
		if !ok || snap == nil {
			resCh <- result{nil, fmt.Errorf("watch: lookup %s: %w", canonical, market.ErrNoData)}
			return nil
		}
		e.recordSnapshot(qctx, snap)
		resCh <- result{snap, nil}
		return nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-resCh:
		return r.snap, r.err
	}
}

// run is the refresh scheduler: every interval it collects tokens whose data
// has aged past the interval and enqueues them in registration-order batches.
func (e *Engine) run() {
	defer e.wg.Done()
	ticker := time.NewTicker(e.cfg.RefreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-e.stopChan:
			return
		case <-ticker.C:
			e.enqueueStale()
		}
	}
}

// enqueueStale chunks the stale tokens and enqueues one batch fetch per
// chunk. Tokens are stale when their last update is at least a full refresh
// interval old; a token that has never been fetched is always stale.
func (e *Engine) enqueueStale() {
	now := e.nowFn()

	e.mu.RLock()
	stale := make([]string, 0, len(e.order))
	for _, token := range e.order {
		entry := e.entries[token]
		if entry == nil {
			continue
		}
		if now.Sub(entry.updatedAt) >= e.cfg.RefreshInterval {
			stale = append(stale, token)
		}
	}
	e.mu.RUnlock()

	for start := 0; start < len(stale); start += e.cfg.BatchSize {
		end := start + e.cfg.BatchSize
		if end > len(stale) {
			end = len(stale)
		}
		chunk := stale[start:end]
		e.queue.Enqueue(func(ctx context.Context) error {
			return e.fetchBatch(ctx, chunk)
		})
	}
}

// fetchBatch resolves a chunk of tokens with a single provider call and
// records whatever came back. Tokens missing from the response keep their
// previous snapshot; a transport error leaves the whole chunk stale for the
// next tick.
func (e *Engine) fetchBatch(ctx context.Context, tokens []string) error {
	snaps, err := e.provider.Quotes(ctx, tokens)
	if err != nil {
		return fmt.Errorf("watch: refresh %v: %w", tokens, err)
	}
	for _, token := range tokens {
		if snap, ok := snaps[token]; ok && snap != nil {
			e.recordSnapshot(ctx, snap)
		}
	}
	return nil
}

// recordSnapshot stores a fetched snapshot, notifies the token's listeners
// and feeds the persistence sink. Writes for tokens no longer tracked are
// dropped: a fetch that was in flight when the last subscriber cancelled
// must leave no residue behind.
func (e *Engine) recordSnapshot(ctx context.Context, snap *market.TokenSnapshot) {
	if snap == nil {
		return
	}
	now := e.nowFn()

	e.mu.Lock()
	entry, ok := e.entries[snap.Token]
	if !ok {
		e.mu.Unlock()
		return
	}
	entry.snapshot = snap
	entry.updatedAt = now
	subs := make([]*Subscription, len(entry.subs))
	copy(subs, entry.subs)
	e.mu.Unlock()

	// Listeners run outside the lock so they may call back into the engine.
	for _, sub := range subs {
		sub.listener.SnapshotUpdated(snap)
	}

	if e.persist != nil {
		if err := e.persist.RecordSnapshot(ctx, e.providerName, snap); err != nil {
			logx.WithContext(ctx).Errorf("watch: persist snapshot %s: %v", snap.Token, err)
		}
	}
}
