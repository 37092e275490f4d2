package strategy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhquant/ashare/internal/models"
)

// blueChipStock builds a ticker that satisfies every blue_chip_stable
// default bound, with no technical bonuses in play.
func blueChipStock() *StockData {
	return &StockData{
		Ref: models.TickerRef{
			Code:      "600036",
			Name:      "招商银行",
			Market:    models.MarketSH,
			Industry:  "银行",
			MarketCap: 9000,
		},
		Snapshot: models.QuoteSnapshot{Code: "600036", Close: 35.2, PrevClose: 35.0},
		Fundamentals: models.Fundamentals{
			PE:            models.Float64Ptr(6.5),
			PB:            models.Float64Ptr(0.9),
			ROE:           models.Float64Ptr(15.1),
			DebtRatio:     models.Float64Ptr(50),
			DividendYield: models.Float64Ptr(5.5),
		},
		Indicators: models.IndicatorSet{MACDCrossBarsAgo: -1},
	}
}

func blueChipDef(t *testing.T) models.StrategyDefinition {
	t.Helper()
	def, ok := NewDefaultRegistry().Get("blue_chip_stable")
	require.True(t, ok)
	return def
}

func TestEvaluate_SuppliedParamsOnlyActivateThemselves(t *testing.T) {
	def := blueChipDef(t)
	d := blueChipStock()

	// four of six bounds supplied, all satisfied: the absent two must
	// not dilute the score
	params := models.StrategyParameters{
		"pe_max":         20,
		"pb_max":         2,
		"roe_min":        10,
		"market_cap_min": 500,
	}

	stock := Evaluate(def, params, 60, d)
	assert.Equal(t, float64(100), stock.Score)
	assert.Equal(t, models.GradeS, stock.Grade)
	assert.True(t, stock.Qualified)
	assert.Equal(t, 4, stock.SignalsCount)
}

func TestEvaluate_EmptyBindingUsesFullDefaults(t *testing.T) {
	def := blueChipDef(t)
	d := blueChipStock()

	stock := Evaluate(def, nil, 60, d)
	assert.Equal(t, float64(100), stock.Score)
	assert.True(t, stock.Qualified)
	assert.Equal(t, 6, stock.SignalsCount)
}

func TestEvaluate_SoftFailureLowersScoreOnly(t *testing.T) {
	def := blueChipDef(t)
	d := blueChipStock()
	d.Fundamentals.DividendYield = models.Float64Ptr(0.5) // below the 2% floor, soft

	stock := Evaluate(def, nil, 60, d)
	// 5 of 6 equal-weight bounds satisfied
	assert.InDelta(t, 100.0*5/6, stock.Score, 1e-9)
	assert.True(t, stock.Qualified)
	assert.Contains(t, stock.Reason, "dividend_yield")
}

func TestEvaluate_HardViolationDisqualifies(t *testing.T) {
	def := blueChipDef(t)
	d := blueChipStock()
	d.Fundamentals.ROE = models.Float64Ptr(3) // below the hard 10% floor

	stock := Evaluate(def, nil, 60, d)
	assert.False(t, stock.Qualified)
	assert.Contains(t, stock.Reason, "roe")
}

func TestEvaluate_AbsentHardFieldRejects(t *testing.T) {
	def := blueChipDef(t)
	d := blueChipStock()
	d.Fundamentals.PE = nil // pe_max is hard

	stock := Evaluate(def, nil, 0, d)
	assert.False(t, stock.Qualified)
	assert.Contains(t, stock.Reason, "pe unavailable")
}

func TestEvaluate_AbsentSoftFieldCountsUnsatisfied(t *testing.T) {
	def := blueChipDef(t)
	d := blueChipStock()
	d.Fundamentals.DividendYield = nil // soft bound

	stock := Evaluate(def, nil, 60, d)
	assert.InDelta(t, 100.0*5/6, stock.Score, 1e-9)
	assert.True(t, stock.Qualified)
}

func TestEvaluate_WeightedBounds(t *testing.T) {
	def, ok := NewDefaultRegistry().Get("deep_value")
	require.True(t, ok)

	d := blueChipStock()
	d.Fundamentals.CurrentRatio = models.Float64Ptr(1.5)
	// fail only the weight-2 pb_max bound
	d.Fundamentals.PB = models.Float64Ptr(5)

	stock := Evaluate(def, nil, 0, d)
	// weights: pe 2 + pb 2 + roe 1 + current 1 + debt 1 = 7; pb missing
	assert.InDelta(t, 100.0*5/7, stock.Score, 1e-9)
	assert.False(t, stock.Qualified, "pb_max is a hard bound")
}

func TestEvaluate_TechnicalAlignmentBonus(t *testing.T) {
	def := blueChipDef(t)
	d := blueChipStock()
	d.Fundamentals.DividendYield = models.Float64Ptr(0.5) // one soft miss keeps base below 100
	d.Indicators.MACDCrossBarsAgo = 1
	d.Indicators.MA20 = models.Float64Ptr(30) // close 35.2 above MA20

	stock := Evaluate(def, nil, 60, d)
	assert.InDelta(t, 100.0*5/6+10, stock.Score, 1e-9)
}

func TestEvaluate_IndustryMomentumBonus(t *testing.T) {
	def := blueChipDef(t)
	d := blueChipStock()
	d.Fundamentals.DividendYield = models.Float64Ptr(0.5)
	d.Indicators.Return20 = models.Float64Ptr(8)
	d.IndustryMedianReturn20 = models.Float64Ptr(2)

	stock := Evaluate(def, nil, 60, d)
	assert.InDelta(t, 100.0*5/6+5, stock.Score, 1e-9)
}

func TestEvaluate_ScoreClippedAtHundred(t *testing.T) {
	def := blueChipDef(t)
	d := blueChipStock()
	d.Indicators.MACDCrossBarsAgo = 0
	d.Indicators.MA20 = models.Float64Ptr(30)
	d.Indicators.Return20 = models.Float64Ptr(8)
	d.IndustryMedianReturn20 = models.Float64Ptr(2)

	stock := Evaluate(def, nil, 60, d)
	assert.Equal(t, float64(100), stock.Score)
}

func TestEvaluate_MinScoreGate(t *testing.T) {
	def := blueChipDef(t)
	d := blueChipStock()
	d.Fundamentals.DividendYield = models.Float64Ptr(0.5)
	d.Fundamentals.PB = models.Float64Ptr(10) // second soft miss

	stock := Evaluate(def, nil, 70, d)
	assert.InDelta(t, 100.0*4/6, stock.Score, 1e-9)
	assert.False(t, stock.Qualified, "score below min_score")
}

func TestEvaluate_Deterministic(t *testing.T) {
	def := blueChipDef(t)
	a := Evaluate(def, nil, 60, blueChipStock())
	b := Evaluate(def, nil, 60, blueChipStock())
	assert.Equal(t, a, b)
}

func TestGradeForScore(t *testing.T) {
	cases := []struct {
		score float64
		grade string
	}{
		{95, models.GradeS},
		{90, models.GradeS},
		{85, models.GradeA},
		{75, models.GradeB},
		{65, models.GradeC},
		{10, models.GradeD},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.grade, models.GradeForScore(tc.score), "score %v", tc.score)
	}
}
