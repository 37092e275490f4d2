// Package engine owns the strategy-execution job lifecycle: validation,
// the bounded per-job worker pool, progress reporting, ranking, and
// result retention.
package engine

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/zhquant/ashare/internal/common"
	"github.com/zhquant/ashare/internal/interfaces"
	"github.com/zhquant/ashare/internal/models"
	"github.com/zhquant/ashare/internal/strategy"
)

// Start and lookup failures
var (
	ErrUnknownStrategy   = errors.New("unknown strategy")
	ErrInvalidParameters = errors.New("invalid parameters")
	ErrBadFilter         = errors.New("bad universe filter")
	ErrCapacityExceeded  = errors.New("too many concurrent executions")
	ErrNotFound          = errors.New("execution not found")
	ErrNotReady          = errors.New("execution not finished")
	ErrAlreadyTerminal   = errors.New("execution already terminal")
)

const (
	defaultMaxStocks = 100
	topQualifiedCap  = 50

	// progress writes are coalesced to this cadence
	publishInterval = 500 * time.Millisecond

	// soft deadline: perTickerBudget x ceil(set/workers) + setupBudget
	perTickerBudget = 10 * time.Second
	setupBudget     = 60 * time.Second

	// history window feeding the indicator kernel
	historyDays = 250

	failureReasonDataQuality = "data_quality_below_threshold"
)

// Config bounds the engine's concurrency and retention.
type Config struct {
	DefaultWorkers    int
	MaxWorkers        int
	MaxConcurrentJobs int
	JobRetention      int
}

// DefaultConfig returns the stock engine limits.
func DefaultConfig() Config {
	return Config{
		DefaultWorkers:    5,
		MaxWorkers:        16,
		MaxConcurrentJobs: 4,
		JobRetention:      64,
	}
}

// Engine implements interfaces.JobEngine.
type Engine struct {
	gateway  interfaces.DataGateway
	resolver interfaces.UniverseResolver
	registry interfaces.StrategyRegistry
	store    *Store
	hub      *Hub
	logger   *common.Logger
	cfg      Config

	baseCtx context.Context
	stop    context.CancelFunc
	wg      sync.WaitGroup

	active atomic.Int64
	closed atomic.Bool

	// now is replaceable in tests
	now func() time.Time
}

// Option configures the engine
type Option func(*Engine)

// WithLogger sets the logger
func WithLogger(logger *common.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithConfig overrides the engine limits
func WithConfig(cfg Config) Option {
	return func(e *Engine) {
		e.cfg = cfg
	}
}

// WithClock replaces the clock, for tests
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// New creates an engine and starts its event hub.
func New(gateway interfaces.DataGateway, resolver interfaces.UniverseResolver, registry interfaces.StrategyRegistry, opts ...Option) *Engine {
	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		gateway:  gateway,
		resolver: resolver,
		registry: registry,
		logger:   common.NewSilentLogger(),
		cfg:      DefaultConfig(),
		baseCtx:  ctx,
		stop:     cancel,
		now:      time.Now,
	}

	for _, opt := range opts {
		opt(e)
	}

	if e.cfg.MaxWorkers < 1 || e.cfg.MaxWorkers > 16 {
		e.cfg.MaxWorkers = 16
	}
	if e.cfg.DefaultWorkers < 1 {
		e.cfg.DefaultWorkers = 5
	}
	if e.cfg.MaxConcurrentJobs < 1 {
		e.cfg.MaxConcurrentJobs = 4
	}

	e.store = NewStore(e.cfg.JobRetention)
	e.hub = NewHub(e.logger)
	e.safeGo("event-hub", e.hub.Run)

	return e
}

// Hub returns the job event hub for handler registration.
func (e *Engine) Hub() *Hub {
	return e.hub
}

// Store exposes the progress store, for tests.
func (e *Engine) Store() *Store {
	return e.store
}

// safeGo launches a goroutine with panic recovery and logging.
func (e *Engine) safeGo(name string, fn func()) {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				e.logger.Error().
					Str("goroutine", name).
					Str("panic", fmt.Sprintf("%v", r)).
					Str("stack", string(debug.Stack())).
					Msg("recovered from panic in engine goroutine")
			}
		}()
		fn()
	}()
}

// jobState is the mutable per-job record. Counter fields are atomics so
// workers update them without taking the job lock; everything else is
// guarded by mu.
type jobState struct {
	id     string
	def    models.StrategyDefinition
	params models.StrategyParameters
	filter models.UniverseFilter

	minScore  float64
	maxStocks int
	workers   int

	cancelJob  context.CancelFunc
	cancelFlag atomic.Bool

	analyzed      atomic.Int64
	skipped       atomic.Int64
	qualifiedEst  atomic.Int64
	currentTicker atomic.Value // string, best-effort sample

	mu            sync.RWMutex
	state         string
	stage         string
	percent       int
	startedAt     time.Time
	completedAt   time.Time
	totalUniverse int
	totalSet      int
	view          models.ProgressView
	lastPublish   time.Time
	truncated     bool
	inputs        []*strategy.StockData
	result        *models.FinalResult
	callsAtStart  map[string]int64
}

func (j *jobState) cancelled() bool {
	return j.cancelFlag.Load()
}

// Start validates the request, allocates a job, and returns its id.
func (e *Engine) Start(ctx context.Context, req models.ExecutionRequest) (string, error) {
	if e.closed.Load() {
		return "", ErrCapacityExceeded
	}

	def, ok := e.registry.Get(req.StrategyID)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownStrategy, req.StrategyID)
	}

	if err := strategy.ValidateParameters(def, req.Parameters); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidParameters, err)
	}

	maxStocks := defaultMaxStocks
	if req.MaxStocks != nil {
		if *req.MaxStocks < 1 {
			return "", fmt.Errorf("%w: max_stocks must be >= 1", ErrInvalidParameters)
		}
		maxStocks = *req.MaxStocks
	}

	minScore := def.MinScoreDefault
	if req.MinScore != nil {
		if *req.MinScore < 0 || *req.MinScore > 100 {
			return "", fmt.Errorf("%w: min_score must be in [0, 100]", ErrInvalidParameters)
		}
		minScore = *req.MinScore
	}

	workers := e.cfg.DefaultWorkers
	if req.WorkerCount != nil {
		workers = *req.WorkerCount
	}
	if workers < 1 {
		workers = 1
	}
	if workers > e.cfg.MaxWorkers {
		workers = e.cfg.MaxWorkers
	}

	filter := models.UniverseFilter{Markets: req.Markets, Industries: req.Industries}
	if err := validateFilter(filter); err != nil {
		return "", err
	}

	if int(e.active.Add(1)) > e.cfg.MaxConcurrentJobs {
		e.active.Add(-1)
		return "", ErrCapacityExceeded
	}

	jobCtx, cancelJob := context.WithCancel(e.baseCtx)

	j := &jobState{
		id:           uuid.NewString(),
		def:          def,
		params:       req.Parameters,
		filter:       filter,
		minScore:     minScore,
		maxStocks:    maxStocks,
		workers:      workers,
		cancelJob:    cancelJob,
		state:        models.JobStatePending,
		stage:        models.StageInitializing,
		startedAt:    e.now(),
		callsAtStart: e.gateway.CallCounts(),
	}
	j.currentTicker.Store("")
	j.view = models.ProgressView{
		ExecutionID: j.id,
		State:       j.state,
		Stage:       j.stage,
		StartedAt:   j.startedAt,
	}

	e.store.Put(j)
	e.hub.Broadcast(models.JobEvent{
		Type:        models.EventJobQueued,
		ExecutionID: j.id,
		StrategyID:  def.ID,
		State:       j.state,
		Stage:       j.stage,
		Timestamp:   e.now(),
	})

	e.safeGo("orchestrator-"+j.id, func() {
		defer e.active.Add(-1)
		e.orchestrate(jobCtx, j)
	})

	e.logger.Info().
		Str("execution_id", j.id).
		Str("strategy_id", def.ID).
		Int("workers", workers).
		Int("max_stocks", maxStocks).
		Msg("execution accepted")

	return j.id, nil
}

func validateFilter(filter models.UniverseFilter) error {
	for _, m := range filter.Markets {
		switch m {
		case models.FilterAll, models.MarketSH, models.MarketSZ, models.MarketBJ:
		default:
			return fmt.Errorf("%w: unknown market tag %q", ErrBadFilter, m)
		}
	}
	for _, ind := range filter.Industries {
		if ind == "" {
			return fmt.Errorf("%w: empty industry tag", ErrBadFilter)
		}
	}
	return nil
}

// Progress returns the coalesced poll view for a job.
func (e *Engine) Progress(id string) (*models.ProgressView, error) {
	j := e.store.Get(id)
	if j == nil {
		return nil, ErrNotFound
	}

	j.mu.RLock()
	defer j.mu.RUnlock()
	view := j.view
	return &view, nil
}

// Result returns the sealed result for a terminal job.
func (e *Engine) Result(id string) (*models.FinalResult, error) {
	j := e.store.Get(id)
	if j == nil {
		return nil, ErrNotFound
	}

	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.result == nil {
		return nil, ErrNotReady
	}
	result := *j.result
	return &result, nil
}

// Cancel requests cooperative cancellation.
func (e *Engine) Cancel(id string) error {
	j := e.store.Get(id)
	if j == nil {
		return ErrNotFound
	}

	j.mu.RLock()
	terminal := models.IsTerminalState(j.state)
	j.mu.RUnlock()
	if terminal {
		return ErrAlreadyTerminal
	}

	j.cancelFlag.Store(true)
	j.cancelJob()

	e.logger.Info().Str("execution_id", id).Msg("cancellation requested")
	return nil
}

// Close stops accepting jobs, cancels orchestrators, and waits for them.
func (e *Engine) Close() {
	if e.closed.Swap(true) {
		return
	}
	e.stop()
	e.hub.Stop()
	e.wg.Wait()
	e.logger.Info().Msg("engine stopped")
}

// transition advances the job state, publishes, and broadcasts.
// Transitions out of a terminal state are ignored.
func (e *Engine) transition(j *jobState, state, stage string) {
	j.mu.Lock()
	if models.IsTerminalState(j.state) {
		j.mu.Unlock()
		return
	}
	j.state = state
	j.stage = stage
	if models.IsTerminalState(state) {
		j.completedAt = e.now()
	}
	e.publishLocked(j, true)
	eventType := eventForState(state)
	event := models.JobEvent{
		Type:        eventType,
		ExecutionID: j.id,
		StrategyID:  j.def.ID,
		State:       j.state,
		Stage:       j.stage,
		Percent:     j.percent,
		Timestamp:   e.now(),
	}
	j.mu.Unlock()

	e.hub.Broadcast(event)
}

func eventForState(state string) string {
	switch state {
	case models.JobStateRunning:
		return models.EventJobStarted
	case models.JobStateCompleted:
		return models.EventJobCompleted
	case models.JobStateFailed:
		return models.EventJobFailed
	case models.JobStateCancelled:
		return models.EventJobCancelled
	default:
		return models.EventJobProgress
	}
}

// setStage advances the stage within the running state.
func (e *Engine) setStage(j *jobState, stage string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if models.IsTerminalState(j.state) {
		return
	}
	j.stage = stage
	e.publishLocked(j, true)
}

// publish refreshes the poll view at the coalesced cadence.
func (e *Engine) publish(j *jobState, force bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	e.publishLocked(j, force)
}

func (e *Engine) publishLocked(j *jobState, force bool) {
	now := e.now()
	if !force && now.Sub(j.lastPublish) < publishInterval {
		return
	}
	j.lastPublish = now

	analyzed := int(j.analyzed.Load())
	skipped := int(j.skipped.Load())

	percent := models.StageFloor(j.stage)
	if j.totalSet > 0 {
		byCount := (analyzed + skipped) * 100 / j.totalSet
		if byCount > percent {
			percent = byCount
		}
	}
	// the bar never moves backwards
	if percent < j.percent {
		percent = j.percent
	}
	if percent > 100 {
		percent = 100
	}
	j.percent = percent

	current, _ := j.currentTicker.Load().(string)

	j.view = models.ProgressView{
		ExecutionID:    j.id,
		State:          j.state,
		Stage:          j.stage,
		Percent:        percent,
		Total:          j.totalSet,
		Analyzed:       analyzed,
		Qualified:      j.qualifiedLocked(),
		Skipped:        skipped,
		CurrentTicker:  current,
		StartedAt:      j.startedAt,
		ElapsedSeconds: now.Sub(j.startedAt).Seconds(),
	}
}

// qualifiedLocked reads the qualified count: the sealed result when
// present, otherwise the workers' provisional estimate. The estimate
// is computed without the cohort-dependent momentum bonus, so it can
// undercount until the seal recomputes against the full cohort.
func (j *jobState) qualifiedLocked() int {
	if j.result != nil {
		return j.result.Qualified
	}
	return int(j.qualifiedEst.Load())
}
