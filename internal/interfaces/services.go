package interfaces

import (
	"context"

	"github.com/zhquant/ashare/internal/models"
)

// StrategyRegistry is the process-local immutable list of strategies.
type StrategyRegistry interface {
	// List returns all strategy definitions in registration order
	List() []models.StrategyDefinition

	// Get returns the definition for an id, or false when unknown
	Get(id string) (models.StrategyDefinition, bool)
}

// JobEngine owns the strategy-execution job lifecycle.
type JobEngine interface {
	// Start validates the request, allocates a job, and returns its id
	Start(ctx context.Context, req models.ExecutionRequest) (string, error)

	// Progress returns the current poll view for a job
	Progress(id string) (*models.ProgressView, error)

	// Result returns the sealed result for a terminal job
	Result(id string) (*models.FinalResult, error)

	// Cancel requests cooperative cancellation of a pending or running job
	Cancel(id string) error

	// Close stops accepting jobs and waits for orchestrators to drain
	Close()
}

// AnalysisService computes single-ticker multi-timeframe analysis.
type AnalysisService interface {
	Analyze(ctx context.Context, code string) (*models.TickerAnalysis, error)
}

// OverviewService summarizes whole-market breadth.
type OverviewService interface {
	Overview(ctx context.Context) (*models.MarketOverview, error)
}

// LimitUpService analyzes the daily limit-up cohort.
type LimitUpService interface {
	Report(ctx context.Context) (*models.LimitUpReport, error)
}
