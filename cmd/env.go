package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"

	"github.com/DuKro90/draftcraft/internal/benchmark"
	"github.com/DuKro90/draftcraft/internal/catalog"
	"github.com/DuKro90/draftcraft/internal/engine"
	"github.com/DuKro90/draftcraft/internal/pricing"
	"github.com/DuKro90/draftcraft/internal/rule"
	"github.com/DuKro90/draftcraft/internal/store"
)

// env bundles the wired collaborators a command needs.
type env struct {
	Store     store.Store
	Cache     *catalog.CacheService
	Engine    *engine.Engine
	Benchmark *benchmark.Aggregator
}

// initEnv opens the configured store and wires the pricing core around it,
// registering the cache invalidation hook on the store's write path.
func initEnv(ctx context.Context) (*env, error) {
	st, err := openStore(ctx)
	if err != nil {
		return nil, err
	}

	cache := catalog.NewCacheService(
		catalog.New(st),
		time.Duration(cfg.Cache.TTLMinutes)*time.Minute,
	)
	st.OnFactorChange(cache.Invalidate)

	rates := make(pricing.BaseRates, len(cfg.Pricing.BaseRates))
	for category, rate := range cfg.Pricing.BaseRates {
		rates[category] = decimal.NewFromFloat(rate)
	}

	return &env{
		Store:     st,
		Cache:     cache,
		Engine:    engine.New(cache, st, pricing.NewCalculator(rates)),
		Benchmark: benchmark.NewAggregator(st),
	}, nil
}

func (e *env) Close() {
	_ = e.Store.Close()
}

func openStore(ctx context.Context) (store.Store, error) {
	limits := ruleLimits()
	switch cfg.Store.Driver {
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		}, limits)
	case "sqlite", "":
		return store.NewSQLite(cfg.Store.DatabaseURL, limits)
	default:
		return nil, eris.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

func ruleLimits() rule.Limits {
	limits := rule.DefaultLimits()
	if cfg.Rules.MaxDepth > 0 {
		limits.MaxDepth = cfg.Rules.MaxDepth
	}
	if cfg.Rules.MaxNodes > 0 {
		limits.MaxNodes = cfg.Rules.MaxNodes
	}
	return limits
}
