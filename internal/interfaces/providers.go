// Package interfaces defines the service and provider contracts.
package interfaces

import (
	"context"
	"time"

	"github.com/zhquant/ashare/internal/models"
)

// QuoteProvider is the capability contract for an upstream market-data
// source. Implementations fail with the sentinel error kinds declared in
// the providers package (Unavailable, RateLimited, NotFound, Malformed),
// wrapped with call context.
type QuoteProvider interface {
	// Name identifies the provider in logs and data-source breakdowns
	Name() string

	// LoadReferenceUniverse retrieves the full A-share roster
	LoadReferenceUniverse(ctx context.Context) ([]models.TickerRef, error)

	// FetchSnapshotBatch retrieves latest-session records for tickers
	FetchSnapshotBatch(ctx context.Context, codes []string) (map[string]models.QuoteSnapshot, error)

	// FetchHistory retrieves daily OHLCV bars, oldest first
	FetchHistory(ctx context.Context, code string, from, to time.Time) ([]models.HistoryBar, error)

	// FetchFundamentals retrieves fundamental fields for one ticker
	FetchFundamentals(ctx context.Context, code string) (*models.Fundamentals, error)
}

// DataGateway merges the two providers behind one interface with
// failover, normalization, and per-provider rate limiting.
type DataGateway interface {
	LoadReferenceUniverse(ctx context.Context) ([]models.TickerRef, error)
	FetchSnapshotBatch(ctx context.Context, codes []string) (map[string]models.QuoteSnapshot, error)
	FetchHistory(ctx context.Context, code string, from, to time.Time) ([]models.HistoryBar, error)
	FetchFundamentals(ctx context.Context, code string) (*models.Fundamentals, error)

	// CallCounts returns cumulative upstream calls per provider name
	CallCounts() map[string]int64
}

// UniverseResolver translates a market/industry filter into a
// deterministic ticker list.
type UniverseResolver interface {
	Resolve(ctx context.Context, filter models.UniverseFilter) ([]models.TickerRef, error)
}
