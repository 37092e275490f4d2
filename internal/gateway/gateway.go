// Package gateway merges the primary and secondary quote providers
// behind one provider-agnostic interface: failover, per-provider rate
// limiting, record normalization, and cache integration.
package gateway

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/zhquant/ashare/internal/cache"
	"github.com/zhquant/ashare/internal/common"
	"github.com/zhquant/ashare/internal/interfaces"
	"github.com/zhquant/ashare/internal/models"
	"github.com/zhquant/ashare/internal/providers"
)

// Upstream call deadlines
const (
	referenceDeadline = 10 * time.Second
	fetchDeadline     = 30 * time.Second
)

// TTLs groups the cache lifetimes per operation kind.
type TTLs struct {
	Reference    time.Duration
	Snapshot     time.Duration
	History      time.Duration
	Fundamentals time.Duration
}

// DefaultTTLs returns the stock cache lifetimes.
func DefaultTTLs() TTLs {
	return TTLs{
		Reference:    time.Hour,
		Snapshot:     5 * time.Minute,
		History:      15 * time.Minute,
		Fundamentals: 15 * time.Minute,
	}
}

// Gateway implements interfaces.DataGateway.
type Gateway struct {
	primary   interfaces.QuoteProvider
	secondary interfaces.QuoteProvider

	primaryLimiter   *rate.Limiter
	secondaryLimiter *rate.Limiter

	cache *cache.Cache
	ttls  TTLs

	logger *common.Logger

	mu     sync.Mutex
	counts map[string]int64
}

// Option configures the gateway
type Option func(*Gateway)

// WithLogger sets the logger
func WithLogger(logger *common.Logger) Option {
	return func(g *Gateway) {
		g.logger = logger
	}
}

// WithRateLimits sets the per-provider token buckets in requests/second
func WithRateLimits(primaryRPS, secondaryRPS float64) Option {
	return func(g *Gateway) {
		g.primaryLimiter = newLimiter(primaryRPS)
		g.secondaryLimiter = newLimiter(secondaryRPS)
	}
}

// WithCache sets the shared quote cache
func WithCache(c *cache.Cache) Option {
	return func(g *Gateway) {
		g.cache = c
	}
}

// WithTTLs overrides the cache lifetimes
func WithTTLs(ttls TTLs) Option {
	return func(g *Gateway) {
		g.ttls = ttls
	}
}

func newLimiter(rps float64) *rate.Limiter {
	if rps <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	burst := int(rps)
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(rps), burst)
}

// New creates a gateway over the two providers.
func New(primary, secondary interfaces.QuoteProvider, opts ...Option) *Gateway {
	g := &Gateway{
		primary:          primary,
		secondary:        secondary,
		primaryLimiter:   newLimiter(5),
		secondaryLimiter: newLimiter(3),
		cache:            cache.New(10000),
		ttls:             DefaultTTLs(),
		logger:           common.NewSilentLogger(),
		counts:           make(map[string]int64),
	}

	for _, opt := range opts {
		opt(g)
	}

	return g
}

// CallCounts returns cumulative upstream calls per provider name.
func (g *Gateway) CallCounts() map[string]int64 {
	g.mu.Lock()
	defer g.mu.Unlock()

	out := make(map[string]int64, len(g.counts))
	for k, v := range g.counts {
		out[k] = v
	}
	return out
}

func (g *Gateway) recordCall(provider string) {
	g.mu.Lock()
	g.counts[provider]++
	g.mu.Unlock()
}

// callOne waits for the provider's token bucket, then invokes op.
// An exhausted bucket blocks until the caller's deadline, then reads
// as RateLimited.
func (g *Gateway) callOne(ctx context.Context, p interfaces.QuoteProvider, limiter *rate.Limiter, op func(context.Context, interfaces.QuoteProvider) (interface{}, error)) (interface{}, error) {
	if err := limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %s: token bucket: %v", providers.ErrRateLimited, p.Name(), err)
	}

	g.recordCall(p.Name())
	return op(ctx, p)
}

// failover tries the primary, falls through to the secondary on
// transient failures, and propagates the stronger error when both fail.
func (g *Gateway) failover(ctx context.Context, op func(context.Context, interfaces.QuoteProvider) (interface{}, error)) (interface{}, error) {
	v, primaryErr := g.callOne(ctx, g.primary, g.primaryLimiter, op)
	if primaryErr == nil {
		return v, nil
	}
	if !providers.Transient(primaryErr) {
		return nil, primaryErr
	}

	g.logger.Warn().
		Str("provider", g.primary.Name()).
		Err(primaryErr).
		Msg("primary provider failed, trying secondary")

	v, secondaryErr := g.callOne(ctx, g.secondary, g.secondaryLimiter, op)
	if secondaryErr == nil {
		return v, nil
	}
	return nil, providers.Stronger(primaryErr, secondaryErr)
}

// LoadReferenceUniverse returns the cached full roster.
func (g *Gateway) LoadReferenceUniverse(ctx context.Context) ([]models.TickerRef, error) {
	key := cache.Key("reference")
	v, err := g.cache.Get(ctx, key, g.ttls.Reference, func(ctx context.Context) (interface{}, error) {
		ctx, cancel := context.WithTimeout(ctx, referenceDeadline)
		defer cancel()
		return g.failover(ctx, func(ctx context.Context, p interfaces.QuoteProvider) (interface{}, error) {
			return p.LoadReferenceUniverse(ctx)
		})
	})
	if err != nil {
		return nil, err
	}
	return v.([]models.TickerRef), nil
}

// FetchSnapshotBatch returns normalized latest-session records. Records
// failing normalization are dropped from the batch, never aborting it.
func (g *Gateway) FetchSnapshotBatch(ctx context.Context, codes []string) (map[string]models.QuoteSnapshot, error) {
	key := cache.Key("snapshots", codes)
	v, err := g.cache.Get(ctx, key, g.ttls.Snapshot, func(ctx context.Context) (interface{}, error) {
		ctx, cancel := context.WithTimeout(ctx, fetchDeadline)
		defer cancel()
		raw, err := g.failover(ctx, func(ctx context.Context, p interfaces.QuoteProvider) (interface{}, error) {
			return p.FetchSnapshotBatch(ctx, codes)
		})
		if err != nil {
			return nil, err
		}
		batch := raw.(map[string]models.QuoteSnapshot)
		out := make(map[string]models.QuoteSnapshot, len(batch))
		for code, snap := range batch {
			if snap.Close <= 0 || snap.Volume < 0 {
				g.logger.Debug().Str("ticker", code).Msg("dropping malformed snapshot")
				continue
			}
			out[code] = snap
		}
		return out, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(map[string]models.QuoteSnapshot), nil
}

// FetchHistory returns normalized daily bars, oldest first.
func (g *Gateway) FetchHistory(ctx context.Context, code string, from, to time.Time) ([]models.HistoryBar, error) {
	key := cache.Key("history", code, from.Format("20060102"), to.Format("20060102"))
	v, err := g.cache.Get(ctx, key, g.ttls.History, func(ctx context.Context) (interface{}, error) {
		ctx, cancel := context.WithTimeout(ctx, fetchDeadline)
		defer cancel()
		raw, err := g.failover(ctx, func(ctx context.Context, p interfaces.QuoteProvider) (interface{}, error) {
			return p.FetchHistory(ctx, code, from, to)
		})
		if err != nil {
			return nil, err
		}
		bars := raw.([]models.HistoryBar)
		for _, b := range bars {
			if b.Close <= 0 || b.Volume < 0 {
				return nil, fmt.Errorf("%w: history for %s: bar %s failed normalization", providers.ErrMalformed, code, b.Date.Format("2006-01-02"))
			}
		}
		return bars, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]models.HistoryBar), nil
}

// FetchFundamentals returns fundamentals for one ticker.
func (g *Gateway) FetchFundamentals(ctx context.Context, code string) (*models.Fundamentals, error) {
	key := cache.Key("fundamentals", code)
	v, err := g.cache.Get(ctx, key, g.ttls.Fundamentals, func(ctx context.Context) (interface{}, error) {
		ctx, cancel := context.WithTimeout(ctx, fetchDeadline)
		defer cancel()
		return g.failover(ctx, func(ctx context.Context, p interfaces.QuoteProvider) (interface{}, error) {
			return p.FetchFundamentals(ctx, code)
		})
	})
	if err != nil {
		return nil, err
	}
	return v.(*models.Fundamentals), nil
}

// Ensure Gateway implements the contract
var _ interfaces.DataGateway = (*Gateway)(nil)
