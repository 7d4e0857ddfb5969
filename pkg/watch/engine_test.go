package watch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"tokenwatch/pkg/market"
)

func TestSubscribeTriggersImmediateFetch(t *testing.T) {
	provider := newFakeProvider()
	provider.set("wif", 2.41)

	e := NewEngine(testConfig(), provider)
	defer e.Close()

	sub, err := e.Subscribe("WIF", nopListener())
	require.NoError(t, err, "subscribe should accept a fresh token")
	require.Equal(t, "wif", sub.Token(), "tokens must be canonicalized to lower case")

	require.Eventually(t, func() bool {
		_, ok := e.Snapshot("wif")
		return ok
	}, 2*time.Second, 10*time.Millisecond, "subscribe must enqueue a fetch without waiting for a tick")

	snap, ok := e.Snapshot("WIF")
	require.True(t, ok, "snapshot lookup must canonicalize its input")
	require.Equal(t, 2.41, snap.PriceUSD)
	require.Equal(t, [][]string{{"wif"}}, provider.requests(), "the immediate fetch carries just the new token")
}

func TestSubscribeCapacity(t *testing.T) {
	provider := newFakeProvider()
	cfg := testConfig()
	cfg.MaxTrackedTokens = 2
	e := NewEngine(cfg, provider)
	defer e.Close()

	_, err := e.Subscribe("aaa", nopListener())
	require.NoError(t, err)
	_, err = e.Subscribe("bbb", nopListener())
	require.NoError(t, err)

	_, err = e.Subscribe("ccc", nopListener())
	require.Error(t, err, "a third token must be rejected at capacity two")
	require.True(t, errors.Is(err, ErrTooManyTokens), "unexpected error: %v", err)

	// Another listener on an already tracked token does not count against
	// capacity.
	_, err = e.Subscribe("AAA", nopListener())
	require.NoError(t, err, "existing tokens accept more listeners at capacity")
}

func TestCancelLeavesNoResidue(t *testing.T) {
	provider := newFakeProvider()
	provider.set("pepe", 0.00001234)
	cfg := testConfig()
	cfg.MaxTrackedTokens = 1
	e := NewEngine(cfg, provider)
	defer e.Close()

	first, err := e.Subscribe("pepe", nopListener())
	require.NoError(t, err)
	second, err := e.Subscribe("pepe", nopListener())
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		_, ok := e.Snapshot("pepe")
		return ok
	}, 2*time.Second, 10*time.Millisecond)

	first.Cancel()
	_, ok := e.Snapshot("pepe")
	require.True(t, ok, "the snapshot survives while a subscription remains")

	second.Cancel()
	second.Cancel() // idempotent
	_, ok = e.Snapshot("pepe")
	require.False(t, ok, "the last cancel must drop the snapshot with the token")
	require.Empty(t, e.Tokens(), "the tracked set must be empty again")

	// Capacity freed by the eviction is usable immediately.
	_, err = e.Subscribe("wif", nopListener())
	require.NoError(t, err, "eviction must free a tracking slot")
}

func TestListenersNotifiedOnUpdate(t *testing.T) {
	provider := newFakeProvider()
	provider.set("wif", 2.41)
	e := NewEngine(testConfig(), provider)
	defer e.Close()

	got := make(chan *market.TokenSnapshot, 2)
	listener := ListenerFunc(func(snap *market.TokenSnapshot) {
		// Calling back into the engine from a listener must not deadlock.
		e.Snapshot(snap.Token)
		got <- snap
	})

	_, err := e.Subscribe("wif", listener)
	require.NoError(t, err)
	_, err = e.Subscribe("wif", listener)
	require.NoError(t, err, "the same listener may subscribe twice and receives two callbacks")

	deadline := time.After(2 * time.Second)
	for i := 0; i < 2; i++ {
		select {
		case snap := <-got:
			require.Equal(t, "wif", snap.Token)
			require.Equal(t, 2.41, snap.PriceUSD)
		case <-deadline:
			t.Fatal("listener was not notified in time")
		}
	}
}

func TestSchedulerBatchesInRegistrationOrder(t *testing.T) {
	provider := newFakeProvider()
	tokens := []string{"aaa", "bbb", "ccc", "ddd", "eee"}
	for _, token := range tokens {
		provider.set(token, 1)
	}
	cfg := testConfig()
	cfg.RefreshInterval = 25 * time.Millisecond
	cfg.BatchSize = 2
	e := NewEngine(cfg, provider)
	defer e.Close()

	for _, token := range tokens {
		_, err := e.Subscribe(token, nopListener())
		require.NoError(t, err)
	}
	require.NoError(t, e.Open())

	// Wait until the scheduler has had at least one full refresh pass beyond
	// the per-subscribe fetches.
	require.Eventually(t, func() bool {
		return len(provider.requests()) >= len(tokens)+3
	}, 5*time.Second, 10*time.Millisecond, "scheduler never refreshed the tracked set")

	var sawFullChunk, sawTail bool
	for _, call := range provider.requests() {
		require.LessOrEqual(t, len(call), cfg.BatchSize, "no request may exceed the batch size")
		if len(call) == 2 && call[0] == "aaa" && call[1] == "bbb" {
			sawFullChunk = true
		}
		if len(call) == 1 && call[0] == "eee" {
			sawTail = true
		}
	}
	require.True(t, sawFullChunk, "stale tokens must be chunked in registration order")
	require.True(t, sawTail, "the remainder chunk must be fetched on its own")
}

func TestBatchPartialResponseKeepsMissingUntouched(t *testing.T) {
	provider := newFakeProvider()
	provider.set("aaa", 1.5)
	provider.set("bbb", 2.5)
	e := NewEngine(testConfig(), provider)
	defer e.Close()

	for _, token := range []string{"aaa", "bbb", "ghost"} {
		_, err := e.Subscribe(token, nopListener())
		require.NoError(t, err)
	}

	require.Eventually(t, func() bool {
		_, okA := e.Snapshot("aaa")
		_, okB := e.Snapshot("bbb")
		return okA && okB
	}, 2*time.Second, 10*time.Millisecond)

	_, ok := e.Snapshot("ghost")
	require.False(t, ok, "a token absent from the response must stay empty")

	states := e.States()
	require.Len(t, states, 3, "unresolved tokens remain tracked")
	require.Equal(t, []string{"aaa", "bbb", "ghost"}, []string{states[0].Token, states[1].Token, states[2].Token},
		"states must come back in registration order")
	require.Nil(t, states[2].Snapshot)
}

func TestTransientFailureKeepsStaleSnapshot(t *testing.T) {
	provider := newFakeProvider()
	provider.set("wif", 2.41)
	clock := newFakeClock()
	e := NewEngine(testConfig(), provider)
	e.nowFn = clock.Now
	defer e.Close()

	_, err := e.Subscribe("wif", nopListener())
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		_, ok := e.Snapshot("wif")
		return ok
	}, 2*time.Second, 10*time.Millisecond)

	// Next refresh hits a dead upstream; the stale snapshot must survive.
	provider.fail(errors.New("connection reset"))
	clock.Advance(time.Hour)
	e.enqueueStale()
	require.Eventually(t, func() bool {
		return len(provider.requests()) >= 2
	}, 2*time.Second, 10*time.Millisecond, "the failing refresh never ran")

	snap, ok := e.Snapshot("wif")
	require.True(t, ok, "a transient failure must not evict cached data")
	require.Equal(t, 2.41, snap.PriceUSD)

	// Upstream recovers with a new price.
	provider.fail(nil)
	provider.set("wif", 2.5)
	e.enqueueStale()
	require.Eventually(t, func() bool {
		snap, ok := e.Snapshot("wif")
		return ok && snap.PriceUSD == 2.5
	}, 2*time.Second, 10*time.Millisecond, "recovery must refresh the snapshot")
}

func TestRecordSnapshotDropsEvictedToken(t *testing.T) {
	provider := newFakeProvider()
	e := NewEngine(testConfig(), provider)
	defer e.Close()

	sub, err := e.Subscribe("wif", nopListener())
	require.NoError(t, err)
	sub.Cancel()

	// Simulates a fetch completing after the last subscriber left.
	e.recordSnapshot(context.Background(), &market.TokenSnapshot{Token: "wif", PriceUSD: 2.41})

	_, ok := e.Snapshot("wif")
	require.False(t, ok, "a late write for an evicted token must be dropped")
	require.Empty(t, e.Tokens())
}

func TestFetchOnDemand(t *testing.T) {
	provider := newFakeProvider()
	provider.set("bonk", 0.000021)
	e := NewEngine(testConfig(), provider)
	defer e.Close()

	snap, err := e.Fetch(context.Background(), "BONK")
	require.NoError(t, err, "lookup of a known token should succeed")
	require.Equal(t, "bonk", snap.Token)
	require.Equal(t, 0.000021, snap.PriceUSD)
	require.Empty(t, e.Tokens(), "a one-off lookup must not start tracking the token")

	_, err = e.Fetch(context.Background(), "ghost")
	require.Error(t, err)
	require.True(t, errors.Is(err, market.ErrNoData), "unexpected error: %v", err)

	provider.fail(errors.New("bad gateway"))
	_, err = e.Fetch(context.Background(), "bonk")
	require.Error(t, err, "transport failures must surface to the caller")
	require.False(t, errors.Is(err, market.ErrNoData))
}

func TestEngineLifecycle(t *testing.T) {
	provider := newFakeProvider()
	e := NewEngine(testConfig(), provider)

	require.NoError(t, e.Open())
	require.Error(t, e.Open(), "a second open must fail")

	e.Close()
	e.Close() // idempotent

	_, err := e.Subscribe("wif", nopListener())
	require.True(t, errors.Is(err, ErrClosed), "subscribe after close must fail: %v", err)
	_, err = e.Fetch(context.Background(), "wif")
	require.True(t, errors.Is(err, ErrClosed), "fetch after close must fail: %v", err)
}

// --- helpers ---

func testConfig() *Config {
	return &Config{
		RefreshInterval:  time.Minute,
		RateLimit:        1000,
		RateWindow:       time.Minute,
		BatchSize:        10,
		MaxTrackedTokens: 6,
	}
}

func nopListener() Listener {
	return ListenerFunc(func(*market.TokenSnapshot) {})
}

type fakeProvider struct {
	mu     sync.Mutex
	quotes map[string]*market.TokenSnapshot
	calls  [][]string
	err    error
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{quotes: make(map[string]*market.TokenSnapshot)}
}

func (f *fakeProvider) set(token string, price float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.quotes[token] = &market.TokenSnapshot{Token: token, PriceUSD: price, LastUpdated: time.Now()}
}

func (f *fakeProvider) fail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func (f *fakeProvider) requests() [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]string, len(f.calls))
	copy(out, f.calls)
	return out
}

func (f *fakeProvider) Quotes(ctx context.Context, tokens []string) (map[string]*market.TokenSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	call := make([]string, len(tokens))
	copy(call, tokens)
	f.calls = append(f.calls, call)
	if f.err != nil {
		return nil, f.err
	}
	out := make(map[string]*market.TokenSnapshot, len(tokens))
	for _, token := range tokens {
		if snap, ok := f.quotes[token]; ok {
			out[token] = snap
		}
	}
	return out, nil
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Now()}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
