package cache

import (
	"fmt"
	"strings"
	"time"

	"tokenwatch/internal/config"
)

// Namespace is the Redis key prefix for the tokenwatch application.
const Namespace = "tokenwatch"

// TTLClass represents a config-driven TTL bucket.
type TTLClass string

const (
	TTLShort  TTLClass = "short"
	TTLMedium TTLClass = "medium"
	TTLLong   TTLClass = "long"
)

// TTLSet normalises cache TTLs from config into time.Duration values.
type TTLSet struct {
	Short  time.Duration
	Medium time.Duration
	Long   time.Duration
}

// NewTTLSet converts config TTLs (in seconds) into durations.
func NewTTLSet(cfg config.CacheTTL) TTLSet {
	return TTLSet{
		Short:  durationOrDefault(cfg.Short, 10*time.Second),
		Medium: durationOrDefault(cfg.Medium, time.Minute),
		Long:   durationOrDefault(cfg.Long, 5*time.Minute),
	}
}

// durationOrDefault maps configured seconds to a duration. Zero selects the
// fallback; a negative value disables the tier outright.
func durationOrDefault(seconds int, fallback time.Duration) time.Duration {
	switch {
	case seconds < 0:
		return 0
	case seconds == 0:
		return fallback
	default:
		return time.Duration(seconds) * time.Second
	}
}

// Duration returns the configured duration for the given TTL class.
func (t TTLSet) Duration(class TTLClass) time.Duration {
	switch class {
	case TTLShort:
		return t.Short
	case TTLMedium:
		return t.Medium
	case TTLLong:
		return t.Long
	default:
		return 0
	}
}

// Scaled applies a multiplier to a TTL class, useful for half/double TTL variants.
func (t TTLSet) Scaled(class TTLClass, factor float64) time.Duration {
	base := t.Duration(class)
	if base <= 0 || factor <= 0 {
		return base
	}
	return time.Duration(float64(base) * factor)
}

// formatKey joins non-blank parts under the application namespace.
func formatKey(parts ...string) string {
	key := Namespace
	for _, part := range parts {
		if clean := strings.TrimSpace(part); clean != "" {
			key += ":" + clean
		}
	}
	return key
}

// --- Snapshot & Price Keys --------------------------------------------------

// SnapshotLatestKey returns the default latest snapshot key without provider scoping.
func SnapshotLatestKey(token string) string {
	return formatKey("snapshot", "latest", token)
}

// SnapshotLatestByProviderKey returns the latest snapshot key scoped by provider.
func SnapshotLatestByProviderKey(provider, token string) string {
	return formatKey("snapshot", "latest", provider, token)
}

// TokenPricesKey holds the aggregated price map for all watched tokens.
func TokenPricesKey() string {
	return formatKey("token_prices")
}

// TicksRecentKey holds a short list of recent price ticks for one token.
func TicksRecentKey(token string) string {
	return formatKey("ticks", "recent", token)
}

// --- Paper Account Keys -----------------------------------------------------

// TradesRecentKey holds the most recent paper trades, newest first.
func TradesRecentKey() string {
	return formatKey("trades", "recent")
}

// TradesByTokenKey holds recent paper trades filtered to one token.
func TradesByTokenKey(token string) string {
	return formatKey("trades", "recent", token)
}

// TradeIngestGuardKey prevents duplicate ingestion of the same trade ID.
func TradeIngestGuardKey(tradeID string) string {
	return formatKey("ingest", "trade", tradeID)
}

// PortfolioKey stores a pre-rendered portfolio payload.
func PortfolioKey() string {
	return formatKey("portfolio")
}

// EquityRecentKey holds recent equity snapshots, newest first.
func EquityRecentKey() string {
	return formatKey("equity", "recent")
}

// --- Watch State Keys -------------------------------------------------------

// WatchedTokensKey holds the token identifiers currently tracked by the engine.
func WatchedTokensKey() string {
	return formatKey("watch", "tokens")
}

// RefreshLockKey is used as a short-lived guard around manual refreshes.
func RefreshLockKey(token string) string {
	return formatKey("lock", "refresh", token)
}

// --- TTL Helpers ------------------------------------------------------------

// SnapshotTTL returns the short-lived TTL for individual snapshot keys.
func SnapshotTTL(ttl TTLSet) time.Duration {
	return ttl.Duration(TTLShort)
}

// TokenPricesTTL returns the TTL for the bundled price map.
func TokenPricesTTL(ttl TTLSet) time.Duration {
	return ttl.Duration(TTLShort)
}

// TicksRecentTTL returns the TTL for recent tick lists.
func TicksRecentTTL(ttl TTLSet) time.Duration {
	return ttl.Duration(TTLMedium)
}

// TradesRecentTTL returns the TTL for recent trades lists.
func TradesRecentTTL(ttl TTLSet) time.Duration {
	return ttl.Duration(TTLMedium)
}

// TradeIngestGuardTTL returns the TTL for trade idempotency guards.
func TradeIngestGuardTTL() time.Duration {
	return 24 * time.Hour
}

// PortfolioTTL returns the TTL for portfolio payloads.
func PortfolioTTL(ttl TTLSet) time.Duration {
	return ttl.Scaled(TTLShort, 0.5) // target ~5s when short=10s
}

// EquityRecentTTL returns the TTL for equity snapshot lists.
func EquityRecentTTL(ttl TTLSet) time.Duration {
	return ttl.Duration(TTLLong)
}

// WatchedTokensTTL returns the TTL for the watched token set.
func WatchedTokensTTL(ttl TTLSet) time.Duration {
	return ttl.Duration(TTLMedium)
}

// RefreshLockTTL returns the TTL for manual refresh guards.
func RefreshLockTTL(ttl TTLSet) time.Duration {
	return ttl.Scaled(TTLShort, 0.5) // target ~5s when short=10s
}

// FormatCacheKey is exported for dynamic key construction when patterns
// are not covered by helpers.
func FormatCacheKey(parts ...string) string {
	return formatKey(parts...)
}

// BuildKeyWithSuffix appends an arbitrary suffix to an existing key.
func BuildKeyWithSuffix(baseKey, suffix string) string {
	clean := strings.TrimSpace(suffix)
	if clean == "" {
		return baseKey
	}
	return fmt.Sprintf("%s:%s", baseKey, clean)
}
