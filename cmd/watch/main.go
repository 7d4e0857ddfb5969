package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/zeromicro/go-zero/core/logx"

	cachekeys "tokenwatch/internal/cache"
	"tokenwatch/internal/cli"
	"tokenwatch/internal/config"
	paperpersist "tokenwatch/internal/persistence/paper"
	"tokenwatch/internal/svc"
	"tokenwatch/pkg/market"
	"tokenwatch/pkg/watch"
)

const (
	equityInterval  = 5 * time.Minute  // Portfolio snapshot interval
	mirrorInterval  = 30 * time.Second // Watched token set republish interval
	hydrateTimeout  = 5 * time.Second  // Timeout for startup cache warming
	recordTimeout   = 5 * time.Second  // Timeout for one equity write
	shutdownTimeout = 10 * time.Second // Grace period for shutdown
)

var watchedTokens = []string{"wif", "pepe", "bonk"}

func main() {
	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds)
	log.Println("[main] Starting watch daemon...")
	logx.MustSetup(logx.LogConf{})
	logx.DisableStat()

	// Load application configuration
	var appCfg *config.Config
	var err error
	configPath := "etc/tokenwatch.yaml"
	appCfg, err = config.Load(configPath)
	if err != nil {
		log.Printf("[main] Warning: Failed to load app config: %v", err)
		log.Printf("[main] Using default configuration")
		appCfg = &config.Config{Env: "test"} // Default fallback
	}

	// Log configuration information
	log.Printf("[main] Configuration loaded:")
	for _, line := range cli.ConfigSummaryLines(appCfg) {
		log.Printf("  - %s", line)
	}
	log.Printf("  - Watched Tokens: %v", watchedTokens)
	log.Printf("  - Equity Interval: %s", equityInterval)

	svcCtx := svc.NewServiceContext(appCfg)
	log.Printf("  - Market Provider: %s", svcCtx.MarketName)

	if err := svcCtx.Engine.Open(); err != nil {
		log.Fatalf("[main] Failed to open watch engine: %v", err)
	}
	defer svcCtx.Engine.Close()

	// Warm the trade and equity caches from storage before watching
	if svcCtx.Trades != nil {
		hydrateCtx, cancel := context.WithTimeout(context.Background(), hydrateTimeout)
		if err := svcCtx.Trades.HydrateCaches(hydrateCtx); err != nil {
			log.Printf("[main] Warning: cache hydration failed: %v", err)
		}
		cancel()
	}

	// Report where each watched price left off before live updates resume
	if svcCtx.Repo != nil {
		logStoredPrices(svcCtx)
	}

	// Create context for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	subs := subscribeAll(svcCtx)
	defer func() {
		for _, sub := range subs {
			sub.Cancel()
		}
	}()

	// Start equity recording task
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		runEquityRecorder(ctx, svcCtx)
	}()

	// Start watch-set mirror task when Redis is configured
	if svcCtx.Cache != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			runWatchMirror(ctx, svcCtx)
		}()
	}

	log.Println("[main] Watch daemon started. Press Ctrl+C to stop.")

	// Wait for signal
	<-ctx.Done()
	log.Println("[main] Shutdown signal received, stopping tasks...")

	// Give tasks time to complete current work
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Println("[main] All tasks stopped cleanly")
	case <-shutdownCtx.Done():
		log.Println("[main] Shutdown timeout exceeded, forcing exit")
	}

	log.Println("[main] Watch daemon stopped")
}

// subscribeAll registers a logging listener for every watched token. A token
// rejected for capacity is logged and skipped; the rest keep streaming.
func subscribeAll(svcCtx *svc.ServiceContext) []*watch.Subscription {
	subs := make([]*watch.Subscription, 0, len(watchedTokens))
	for _, token := range watchedTokens {
		sub, err := svcCtx.Engine.Subscribe(token, watch.ListenerFunc(func(snap *market.TokenSnapshot) {
			log.Printf("[watch.%s] price=%.6f change_24h=%.2f%% liquidity=%.0f volume=%.0f",
				snap.Token, snap.PriceUSD, snap.PriceChange24h, snap.LiquidityUSD, snap.Volume24h)
		}))
		if err != nil {
			log.Printf("[watch.%s] [ERROR] subscribe failed: %v", token, err)
			continue
		}
		subs = append(subs, sub)
	}
	return subs
}

// runEquityRecorder values the paper portfolio on a schedule and mirrors it
// to storage when persistence is configured.
func runEquityRecorder(ctx context.Context, svcCtx *svc.ServiceContext) {
	ticker := time.NewTicker(equityInterval)
	defer ticker.Stop()

	// Run once immediately on startup
	recordEquity(ctx, svcCtx)

	for {
		select {
		case <-ctx.Done():
			log.Println("[equity] Stopping equity recorder")
			return
		case <-ticker.C:
			recordEquity(ctx, svcCtx)
		}
	}
}

// logStoredPrices logs the freshest mirrored tick per watched token.
func logStoredPrices(svcCtx *svc.ServiceContext) {
	ctx, cancel := context.WithTimeout(context.Background(), hydrateTimeout)
	defer cancel()
	latest, err := svcCtx.Repo.Ticks.LatestByTokens(ctx, watchedTokens)
	if err != nil {
		log.Printf("[main] Warning: stored price lookup failed: %v", err)
		return
	}
	for _, token := range market.CanonicalAll(watchedTokens) {
		if tick, ok := latest[token]; ok {
			log.Printf("[main] Last stored %s price=%.6f ts_ms=%d", token, tick.PriceUSD, tick.TimestampMs)
		}
	}
}

// runWatchMirror republishes the tracked token set to Redis so other
// processes can see what the daemon currently follows.
func runWatchMirror(ctx context.Context, svcCtx *svc.ServiceContext) {
	ticker := time.NewTicker(mirrorInterval)
	defer ticker.Stop()

	mirrorWatchedTokens(ctx, svcCtx)

	for {
		select {
		case <-ctx.Done():
			log.Println("[mirror] Stopping watch-set mirror")
			return
		case <-ticker.C:
			mirrorWatchedTokens(ctx, svcCtx)
		}
	}
}

func mirrorWatchedTokens(parentCtx context.Context, svcCtx *svc.ServiceContext) {
	if parentCtx.Err() != nil {
		return
	}
	writeCtx, cancel := context.WithTimeout(parentCtx, recordTimeout)
	defer cancel()
	key := cachekeys.WatchedTokensKey()
	tokens := svcCtx.Engine.Tokens()
	if err := svcCtx.Cache.SetWithExpireCtx(writeCtx, key, tokens, cachekeys.WatchedTokensTTL(svcCtx.TTL)); err != nil {
		log.Printf("[mirror] [ERROR] set %s: %v", key, err)
	}
}

// recordEquity values the account at current snapshot prices and logs the
// result. Tokens without a snapshot price value at zero.
func recordEquity(parentCtx context.Context, svcCtx *svc.ServiceContext) {
	// Check if parent context is already cancelled
	if parentCtx.Err() != nil {
		return
	}

	start := time.Now()
	portfolio, err := svcCtx.Account.Portfolio(svcCtx.PriceOf)
	elapsed := time.Since(start)
	if err != nil {
		log.Printf("[equity] [ERROR] %v, took %dms", err, elapsed.Milliseconds())
		return
	}

	log.Printf("[equity] [OK] balance=%.2f equity=%.2f realized=%.2f unrealized=%.2f positions=%d, took %dms",
		portfolio.Balance, portfolio.Equity, portfolio.RealizedPnL, portfolio.UnrealizedPnL,
		len(portfolio.Positions), elapsed.Milliseconds())

	if svcCtx.Trades == nil {
		return
	}

	writeCtx, cancel := context.WithTimeout(parentCtx, recordTimeout)
	defer cancel()
	snapshot := paperpersist.EquitySnapshot{
		Balance:       portfolio.Balance,
		Equity:        portfolio.Equity,
		RealizedPnL:   portfolio.RealizedPnL,
		UnrealizedPnL: portfolio.UnrealizedPnL,
		TotalPnL:      portfolio.TotalPnL,
		Positions:     len(portfolio.Positions),
		At:            time.Now().UTC(),
	}
	if err := svcCtx.Trades.RecordEquitySnapshot(writeCtx, snapshot); err != nil {
		log.Printf("[equity] [ERROR] persist snapshot: %v", err)
	}
}
