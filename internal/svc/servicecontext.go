package svc

import (
	"database/sql"
	"log"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx driver
	gocache "github.com/zeromicro/go-zero/core/stores/cache"
	"github.com/zeromicro/go-zero/core/stores/redis"
	"github.com/zeromicro/go-zero/core/stores/sqlx"
	"github.com/zeromicro/go-zero/core/syncx"

	cachekeys "tokenwatch/internal/cache"
	"tokenwatch/internal/config"
	marketpersist "tokenwatch/internal/persistence/market"
	paperpersist "tokenwatch/internal/persistence/paper"
	"tokenwatch/internal/repo"
	marketpkg "tokenwatch/pkg/market"
	_ "tokenwatch/pkg/market/dexscreener"
	simfeed "tokenwatch/pkg/market/sim"
	paperpkg "tokenwatch/pkg/paper"
	watchpkg "tokenwatch/pkg/watch"
)

type ServiceContext struct {
	Config config.Config

	MarketConfig    *marketpkg.Config
	MarketProviders map[string]marketpkg.Provider
	DefaultMarket   marketpkg.Provider
	MarketName      string

	WatchConfig *watchpkg.Config
	Engine      *watchpkg.Engine

	PaperConfig *paperpkg.Config
	Account     *paperpkg.Account

	DBConn    sqlx.SqlConn
	Redis     *redis.Redis
	Cache     gocache.Cache
	TTL       cachekeys.TTLSet
	Repo      *repo.Set
	Snapshots marketpkg.Persistence
	Trades    *paperpersist.Service
}

func NewServiceContext(c *config.Config) *ServiceContext {
	svc := &ServiceContext{
		Config: *c,
		TTL:    cachekeys.NewTTLSet(c.TTL),
	}

	// Storage is optional; the engine and account run fully in memory without it.
	if c.Postgres.DSN != "" {
		svc.DBConn = sqlx.NewSqlConn("pgx", c.Postgres.DSN)
	}
	if strings.TrimSpace(c.Redis.Host) != "" {
		svc.Redis = redis.MustNewRedis(c.Redis)
		svc.Cache = gocache.NewNode(svc.Redis, syncx.NewSingleFlight(), gocache.NewStat(cachekeys.Namespace), sql.ErrNoRows)
	}
	if svc.DBConn != nil {
		repos, err := repo.New(repo.Dependencies{
			DBConn: svc.DBConn,
			Cache:  svc.Cache,
			TTL:    svc.TTL,
		})
		if err != nil {
			log.Fatalf("failed to build repositories: %v", err)
		}
		svc.Repo = repos
		svc.Snapshots = marketpersist.NewService(marketpersist.Config{
			SQLConn: svc.DBConn,
			Cache:   svc.Cache,
			TTL:     svc.TTL,
		})
		svc.Trades = paperpersist.NewService(paperpersist.Config{
			SQLConn: svc.DBConn,
			Cache:   svc.Cache,
			TTL:     svc.TTL,
		})
	}

	// Build market providers from the hydrated section.
	if c.Market.Value != nil {
		marketCfg := c.Market.Value
		providers, err := marketCfg.BuildProviders()
		if err != nil {
			log.Fatalf("failed to build market providers: %v", err)
		}
		name, provider, err := marketCfg.DefaultProvider(providers)
		if err != nil {
			log.Fatalf("failed to pick default market provider: %v", err)
		}
		svc.MarketConfig = marketCfg
		svc.MarketProviders = providers
		svc.DefaultMarket = provider
		svc.MarketName = name
	}

	// Apply test environment defaults: quotes come from the deterministic sim
	// feed so tests and local runs never touch the network.
	if c.IsTestEnv() {
		if name, provider, ok := svc.simProvider(); ok {
			svc.DefaultMarket = provider
			svc.MarketName = name
		} else {
			feed := simfeed.New("sim", 0)
			if svc.MarketProviders == nil {
				svc.MarketProviders = make(map[string]marketpkg.Provider, 1)
			}
			svc.MarketProviders["sim"] = feed
			svc.DefaultMarket = feed
			svc.MarketName = "sim"
		}
	}
	if svc.DefaultMarket == nil {
		log.Fatalf("no market provider configured (set Market.File or Env: test)")
	}

	// Watch engine mirrors snapshots through the persistence sink when storage
	// is configured. The caller owns Open/Close.
	watchCfg := c.Watch.Value
	if watchCfg == nil {
		watchCfg = watchpkg.Default()
	}
	svc.WatchConfig = watchCfg
	engineOpts := []watchpkg.Option{watchpkg.WithProviderName(svc.MarketName)}
	if svc.Snapshots != nil {
		engineOpts = append(engineOpts, watchpkg.WithPersistence(svc.Snapshots))
	}
	svc.Engine = watchpkg.NewEngine(watchCfg, svc.DefaultMarket, engineOpts...)

	// Paper account.
	paperCfg := c.Paper.Value
	if paperCfg == nil {
		paperCfg = paperpkg.DefaultConfig()
	}
	svc.PaperConfig = paperCfg
	var accountOpts []paperpkg.Option
	if svc.Trades != nil {
		accountOpts = append(accountOpts, paperpkg.WithPersistence(svc.Trades))
	}
	svc.Account = paperpkg.NewAccount(paperCfg, accountOpts...)

	return svc
}

// simProvider returns the first configured provider backed by the sim feed.
func (s *ServiceContext) simProvider() (string, marketpkg.Provider, bool) {
	if s.MarketConfig == nil {
		return "", nil, false
	}
	for name, providerCfg := range s.MarketConfig.Providers {
		if providerCfg != nil && strings.EqualFold(strings.TrimSpace(providerCfg.Type), "sim") {
			if provider, ok := s.MarketProviders[name]; ok {
				return name, provider, true
			}
		}
	}
	return "", nil, false
}

// PriceOf reports the engine's last known price for a token, used to value
// paper positions without forcing a network fetch.
func (s *ServiceContext) PriceOf(token string) (float64, bool) {
	if s == nil || s.Engine == nil {
		return 0, false
	}
	snap, ok := s.Engine.Snapshot(token)
	if !ok || snap == nil {
		return 0, false
	}
	return snap.PriceUSD, true
}
