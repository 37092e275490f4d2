package models

import "time"

// Job states
const (
	JobStatePending   = "pending"
	JobStateRunning   = "running"
	JobStateCompleted = "completed"
	JobStateFailed    = "failed"
	JobStateCancelled = "cancelled"
)

// IsTerminalState reports whether a job state admits no further transitions.
func IsTerminalState(state string) bool {
	return state == JobStateCompleted || state == JobStateFailed || state == JobStateCancelled
}

// Execution stages, in order
const (
	StageInitializing      = "initializing"
	StageResolvingUniverse = "resolving-universe"
	StageFetchingData      = "fetching-data"
	StageAnalyzing         = "analyzing"
	StageRanking           = "ranking"
	StageFinalizing        = "finalizing"
	StageDone              = "done"
)

var stageFloors = map[string]int{
	StageInitializing:      0,
	StageResolvingUniverse: 5,
	StageFetchingData:      10,
	StageAnalyzing:         10,
	StageRanking:           95,
	StageFinalizing:        98,
	StageDone:              100,
}

// StageFloor returns the minimum progress percent for a stage, keeping
// the reported percent monotone while ticker counts are still unknown.
func StageFloor(stage string) int {
	return stageFloors[stage]
}

// ExecutionRequest is the start-execution payload.
type ExecutionRequest struct {
	StrategyID  string             `json:"strategy_id" validate:"required"`
	Parameters  StrategyParameters `json:"parameters,omitempty"`
	Markets     []string           `json:"markets,omitempty"`
	Industries  []string           `json:"industries,omitempty"`
	MaxStocks   *int               `json:"max_stocks,omitempty" validate:"omitempty,min=1"`
	MinScore    *float64           `json:"min_score,omitempty" validate:"omitempty,min=0,max=100"`
	WorkerCount *int               `json:"worker_count,omitempty" validate:"omitempty,min=1,max=16"`
}

// ProgressView is the poll-read snapshot of a running or finished job.
type ProgressView struct {
	ExecutionID    string    `json:"execution_id"`
	State          string    `json:"state"`
	Stage          string    `json:"stage"`
	Percent        int       `json:"percent"`
	Total          int       `json:"total"`
	Analyzed       int       `json:"analyzed"`
	Qualified      int       `json:"qualified"`
	Skipped        int       `json:"skipped"`
	CurrentTicker  string    `json:"current_ticker,omitempty"`
	StartedAt      time.Time `json:"started_at"`
	ElapsedSeconds float64   `json:"elapsed_seconds"`
}

// FinalResult is the sealed outcome of a strategy execution.
type FinalResult struct {
	ExecutionID string    `json:"execution_id"`
	StrategyID  string    `json:"strategy_id"`
	State       string    `json:"state"`
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`

	TotalUniverse   int `json:"total_universe"`
	AnalysisSetSize int `json:"analysis_set_size"`
	Analyzed        int `json:"analyzed"`
	Qualified       int `json:"qualified"`
	Skipped         int `json:"skipped"`

	TopQualified []ScoredStock `json:"top_qualified"`
	AllQualified []ScoredStock `json:"all_qualified"`

	GradeDistribution  map[string]int `json:"grade_distribution"`
	MarketDistribution map[string]int `json:"market_distribution"`
	DataSources        map[string]int `json:"data_sources"`

	AvgScore           float64 `json:"avg_score"`
	MaxScore           float64 `json:"max_score"`
	AvgSecondsPerStock float64 `json:"avg_seconds_per_stock"`

	Truncated     bool   `json:"truncated"`
	Cancelled     bool   `json:"cancelled"`
	FailureReason string `json:"failure_reason,omitempty"`
}

// Job event types broadcast over the progress hub
const (
	EventJobQueued    = "job_queued"
	EventJobStarted   = "job_started"
	EventJobProgress  = "job_progress"
	EventJobCompleted = "job_completed"
	EventJobFailed    = "job_failed"
	EventJobCancelled = "job_cancelled"
)

// JobEvent is one message on the progress event stream.
type JobEvent struct {
	Type        string    `json:"type"`
	ExecutionID string    `json:"execution_id"`
	StrategyID  string    `json:"strategy_id,omitempty"`
	State       string    `json:"state"`
	Stage       string    `json:"stage,omitempty"`
	Percent     int       `json:"percent"`
	Timestamp   time.Time `json:"timestamp"`
}
