package engine

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/zhquant/ashare/internal/indicators"
	"github.com/zhquant/ashare/internal/models"
	"github.com/zhquant/ashare/internal/strategy"
)

// orchestrate drives one job from resolution through sealing. It owns
// all mutations of the job state; workers only touch the atomic
// counters and the input accumulator.
func (e *Engine) orchestrate(ctx context.Context, j *jobState) {
	if j.cancelled() {
		e.seal(j, models.JobStateCancelled, "")
		return
	}

	e.transition(j, models.JobStateRunning, models.StageResolvingUniverse)

	universe, err := e.resolver.Resolve(ctx, j.filter)
	if err != nil {
		if j.cancelled() {
			e.seal(j, models.JobStateCancelled, "")
			return
		}
		e.logger.Error().Str("execution_id", j.id).Err(err).Msg("universe resolution failed")
		e.seal(j, models.JobStateFailed, "universe_resolution_failed")
		return
	}

	set := universe
	if len(set) > j.maxStocks {
		set = set[:j.maxStocks]
	}

	j.mu.Lock()
	j.totalUniverse = len(universe)
	j.totalSet = len(set)
	j.mu.Unlock()

	if len(set) == 0 {
		e.seal(j, models.JobStateCompleted, "")
		return
	}

	deadline := e.now().
		Add(time.Duration(ceilDiv(len(set), j.workers)) * perTickerBudget).
		Add(setupBudget)

	e.setStage(j, models.StageFetchingData)

	codes := make([]string, len(set))
	for i, ref := range set {
		codes[i] = ref.Code
	}
	snapshots, err := e.gateway.FetchSnapshotBatch(ctx, codes)
	if err != nil {
		e.logger.Warn().Str("execution_id", j.id).Err(err).Msg("snapshot batch failed, tickers will skip individually")
		snapshots = map[string]models.QuoteSnapshot{}
	}

	e.setStage(j, models.StageAnalyzing)

	skipThreshold := int64(len(set) / 2)
	if skipThreshold < 50 {
		skipThreshold = 50
	}
	var overThreshold atomic.Bool

	tasks := make(chan models.TickerRef)
	var producerWG sync.WaitGroup
	producerWG.Add(1)
	go func() {
		defer producerWG.Done()
		defer close(tasks)
		for _, ref := range set {
			if j.cancelled() || overThreshold.Load() {
				return
			}
			if e.now().After(deadline) {
				j.mu.Lock()
				j.truncated = true
				j.mu.Unlock()
				e.logger.Warn().Str("execution_id", j.id).Msg("soft deadline expired, sealing partial result")
				return
			}
			select {
			case tasks <- ref:
			case <-ctx.Done():
				return
			}
		}
	}()

	var workerWG sync.WaitGroup
	for i := 0; i < j.workers; i++ {
		workerWG.Add(1)
		go func() {
			defer workerWG.Done()
			for ref := range tasks {
				if j.cancelled() || overThreshold.Load() {
					continue
				}

				j.currentTicker.Store(ref.Code)
				data, err := e.analyzeTicker(ctx, j, ref, snapshots)
				if err != nil {
					skips := j.skipped.Add(1)
					e.logger.Debug().
						Str("execution_id", j.id).
						Str("ticker", ref.Code).
						Err(err).
						Msg("ticker skipped")
					if skips > skipThreshold {
						overThreshold.Store(true)
						j.cancelJob()
					}
				} else if data != nil {
					j.mu.Lock()
					j.inputs = append(j.inputs, data)
					j.mu.Unlock()
					j.analyzed.Add(1)
					if strategy.Evaluate(j.def, j.params, j.minScore, data).Qualified {
						j.qualifiedEst.Add(1)
					}
				}

				e.publish(j, false)
			}
		}()
	}

	producerWG.Wait()
	workerWG.Wait()

	switch {
	case overThreshold.Load():
		e.seal(j, models.JobStateFailed, failureReasonDataQuality)
	case j.cancelled():
		e.seal(j, models.JobStateCancelled, "")
	default:
		e.seal(j, models.JobStateCompleted, "")
	}
}

// analyzeTicker runs the per-ticker pipeline: fetch, then indicators.
// The cancellation flag is observed between stages. A nil, nil return
// means the task was abandoned by cancellation and counts as neither
// analyzed nor skipped.
func (e *Engine) analyzeTicker(ctx context.Context, j *jobState, ref models.TickerRef, snapshots map[string]models.QuoteSnapshot) (*strategy.StockData, error) {
	snap, ok := snapshots[ref.Code]
	if !ok {
		return nil, &missingSnapshotError{code: ref.Code}
	}

	to := e.now()
	from := to.AddDate(0, 0, -historyDays)
	bars, err := e.gateway.FetchHistory(ctx, ref.Code, from, to)
	if err != nil {
		if j.cancelled() {
			return nil, nil
		}
		return nil, err
	}
	if j.cancelled() {
		return nil, nil
	}

	fundamentals, err := e.gateway.FetchFundamentals(ctx, ref.Code)
	if err != nil {
		if j.cancelled() {
			return nil, nil
		}
		return nil, err
	}
	if j.cancelled() {
		return nil, nil
	}

	set := indicators.Compute(bars)

	return &strategy.StockData{
		Ref:          ref,
		Snapshot:     snap,
		Fundamentals: *fundamentals,
		Indicators:   *set,
	}, nil
}

type missingSnapshotError struct {
	code string
}

func (e *missingSnapshotError) Error() string {
	return "no snapshot for " + e.code
}

// seal evaluates the accumulated inputs, ranks, assembles the final
// result, and atomically flips the job to its terminal state.
func (e *Engine) seal(j *jobState, finalState, failureReason string) {
	e.setStage(j, models.StageRanking)

	j.mu.Lock()
	inputs := j.inputs
	j.mu.Unlock()

	medians := industryMedians(inputs)
	scored := make([]models.ScoredStock, 0, len(inputs))
	for _, d := range inputs {
		if med, ok := medians[d.Ref.Industry]; ok {
			d.IndustryMedianReturn20 = &med
		}
		scored = append(scored, strategy.Evaluate(j.def, j.params, j.minScore, d))
	}

	rankStocks(scored)

	qualified := make([]models.ScoredStock, 0, len(scored))
	for _, s := range scored {
		if s.Qualified {
			qualified = append(qualified, s)
		}
	}

	topN := len(qualified)
	if topN > topQualifiedCap {
		topN = topQualifiedCap
	}

	gradeDist := make(map[string]int)
	marketDist := make(map[string]int)
	var sumScore, maxScore float64
	for _, s := range scored {
		gradeDist[s.Grade]++
		marketDist[s.Market]++
		sumScore += s.Score
		if s.Score > maxScore {
			maxScore = s.Score
		}
	}
	avgScore := 0.0
	if len(scored) > 0 {
		avgScore = sumScore / float64(len(scored))
	}

	e.setStage(j, models.StageFinalizing)

	now := e.now()
	counts := e.gateway.CallCounts()

	j.mu.Lock()
	sources := make(map[string]int)
	for name, n := range counts {
		delta := n - j.callsAtStart[name]
		if delta > 0 {
			sources[name] = int(delta)
		}
	}

	analyzed := int(j.analyzed.Load())
	avgSeconds := 0.0
	if analyzed > 0 {
		avgSeconds = now.Sub(j.startedAt).Seconds() / float64(analyzed)
	}

	j.result = &models.FinalResult{
		ExecutionID:        j.id,
		StrategyID:         j.def.ID,
		State:              finalState,
		StartedAt:          j.startedAt,
		CompletedAt:        now,
		TotalUniverse:      j.totalUniverse,
		AnalysisSetSize:    j.totalSet,
		Analyzed:           analyzed,
		Qualified:          len(qualified),
		Skipped:            int(j.skipped.Load()),
		TopQualified:       qualified[:topN],
		AllQualified:       qualified,
		GradeDistribution:  gradeDist,
		MarketDistribution: marketDist,
		DataSources:        sources,
		AvgScore:           avgScore,
		MaxScore:           maxScore,
		AvgSecondsPerStock: avgSeconds,
		Truncated:          j.truncated,
		Cancelled:          finalState == models.JobStateCancelled,
		FailureReason:      failureReason,
	}
	j.mu.Unlock()

	e.transition(j, finalState, models.StageDone)
	e.store.MarkTerminal(j.id)

	e.logger.Info().
		Str("execution_id", j.id).
		Str("state", finalState).
		Int("analyzed", analyzed).
		Int("qualified", len(qualified)).
		Msg("execution sealed")
}

// rankStocks orders by score descending, market cap descending, then
// ticker code ascending.
func rankStocks(stocks []models.ScoredStock) {
	sort.SliceStable(stocks, func(i, j int) bool {
		if stocks[i].Score != stocks[j].Score {
			return stocks[i].Score > stocks[j].Score
		}
		if stocks[i].MarketCap != stocks[j].MarketCap {
			return stocks[i].MarketCap > stocks[j].MarketCap
		}
		return stocks[i].Code < stocks[j].Code
	})
}

// industryMedians computes the median 20-bar return per industry over
// the analysis inputs.
func industryMedians(inputs []*strategy.StockData) map[string]float64 {
	byIndustry := make(map[string][]float64)
	for _, d := range inputs {
		if d.Indicators.Return20 == nil || d.Ref.Industry == "" {
			continue
		}
		byIndustry[d.Ref.Industry] = append(byIndustry[d.Ref.Industry], *d.Indicators.Return20)
	}

	out := make(map[string]float64, len(byIndustry))
	for industry, returns := range byIndustry {
		sort.Float64s(returns)
		out[industry] = stat.Quantile(0.5, stat.Empirical, returns, nil)
	}
	return out
}

func ceilDiv(a, b int) int {
	if b < 1 {
		b = 1
	}
	return (a + b - 1) / b
}
