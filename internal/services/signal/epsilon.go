package signal

import (
	"context"
	"fmt"
	"sort"
	"time"

	domrepo "WalletPulse/internal/domain/repository"
	domsvc "WalletPulse/internal/domain/service"
	icache "WalletPulse/internal/service/cache"
	pkgcache "WalletPulse/pkg/cache"
)

// RelativeEpsilonFactor scales the 24h median position magnitude into the
// relative epsilon component.
const RelativeEpsilonFactor = 0.02

// EpsilonResolver computes the minimum meaningful position change for one
// (subject, instrument). The result is the larger of a fixed per-instrument
// floor and 2% of the wallet's 24h median absolute size, so that a whale's
// rounding noise is not read as intent while a small wallet's real moves are.
type EpsilonResolver struct {
	store    domrepo.ObservationStore
	floors   map[string]float64
	fallback float64
	cache    *icache.TTLCache
	shared   pkgcache.Service
	cacheTTL time.Duration
}

// ResolverOption configures EpsilonResolver.
type ResolverOption func(*EpsilonResolver)

// WithSharedCache attaches a process-external cache layer so multiple
// instances resolve against the same epsilons.
func WithSharedCache(c pkgcache.Service) ResolverOption {
	return func(r *EpsilonResolver) { r.shared = c }
}

// NewEpsilonResolver builds a resolver with per-instrument absolute floors.
// fallback is used for instruments not present in floors.
func NewEpsilonResolver(store domrepo.ObservationStore, floors map[string]float64, fallback float64, opts ...ResolverOption) *EpsilonResolver {
	if fallback <= 0 {
		fallback = 0.01
	}
	r := &EpsilonResolver{
		store:    store,
		floors:   floors,
		fallback: fallback,
		cache:    icache.NewTTLCache(),
		cacheTTL: time.Hour,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the epsilon for one (subject, instrument). Values are
// cached for an hour; the 24h median moves slowly.
func (r *EpsilonResolver) Resolve(ctx context.Context, subject, instrument string) (float64, error) {
	key := pkgcache.GenerateKeyWithParams("eps", subject, instrument)
	if v, ok := r.cache.Get(key); ok {
		if eps, ok2 := v.(float64); ok2 {
			return eps, nil
		}
	}
	if r.shared != nil {
		var eps float64
		if err := r.shared.Get(ctx, key, &eps); err == nil && eps > 0 {
			r.cache.Set(key, eps, r.cacheTTL)
			return eps, nil
		}
	}

	history, err := r.store.History24h(ctx, subject, instrument, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("epsilon history %s/%s: %w", subject, instrument, err)
	}

	eps := Epsilon(r.Floor(instrument), history)
	r.cache.Set(key, eps, r.cacheTTL)
	if r.shared != nil {
		// best-effort; local cache still bounds recompute cost
		_ = r.shared.Set(ctx, key, eps, r.cacheTTL)
	}
	return eps, nil
}

// Floor returns the absolute epsilon floor for an instrument.
func (r *EpsilonResolver) Floor(instrument string) float64 {
	if f, ok := r.floors[instrument]; ok && f > 0 {
		return f
	}
	return r.fallback
}

// Epsilon computes ε = max(floor, 0.02 × median(|size|)). Empty history or a
// zero median falls back to the floor alone. The result is always positive.
func Epsilon(floor float64, history []float64) float64 {
	if floor <= 0 {
		floor = 1e-9
	}
	if len(history) == 0 {
		return floor
	}
	med := medianAbs(history)
	if med == 0 {
		return floor
	}
	rel := RelativeEpsilonFactor * med
	if rel > floor {
		return rel
	}
	return floor
}

func medianAbs(xs []float64) float64 {
	abs := make([]float64, len(xs))
	for i, x := range xs {
		if x < 0 {
			x = -x
		}
		abs[i] = x
	}
	sort.Float64s(abs)
	n := len(abs)
	if n%2 == 1 {
		return abs[n/2]
	}
	return (abs[n/2-1] + abs[n/2]) / 2
}

var _ domsvc.EpsilonResolver = (*EpsilonResolver)(nil)
