package repo

import (
	"errors"

	"github.com/zeromicro/go-zero/core/stores/cache"
	"github.com/zeromicro/go-zero/core/stores/sqlx"

	cachekeys "tokenwatch/internal/cache"
)

// Dependencies bundles the shared infrastructure required by repository
// implementations.
type Dependencies struct {
	DBConn sqlx.SqlConn
	Cache  cache.Cache
	TTL    cachekeys.TTLSet
}

// Set groups the read-side repositories the handlers and daemon pull from.
type Set struct {
	Ticks  TicksRepo
	Trades TradesRepo
	Equity EquityRepo
}

// New builds the Set. The database connection is the one hard requirement;
// cache and TTLs may be zero for cacheless deployments.
func New(deps Dependencies) (*Set, error) {
	if deps.DBConn == nil {
		return nil, errors.New("repo: db connection is required")
	}

	ticks := newTicksRepo(deps)
	trades := newTradesRepo(deps)
	equity := newEquityRepo(deps)

	return &Set{
		Ticks:  ticks,
		Trades: trades,
		Equity: equity,
	}, nil
}
