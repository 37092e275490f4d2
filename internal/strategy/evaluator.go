package strategy

import (
	"fmt"
	"sort"

	"github.com/zhquant/ashare/internal/models"
)

// StockData is the merged per-ticker input to evaluation: reference
// row, latest snapshot, fundamentals, and the computed indicator set.
type StockData struct {
	Ref          models.TickerRef
	Snapshot     models.QuoteSnapshot
	Fundamentals models.Fundamentals
	Indicators   models.IndicatorSet

	// IndustryMedianReturn20 is the median 20-bar return of the
	// ticker's industry cohort; nil when unknown.
	IndustryMedianReturn20 *float64
}

// fieldAccessor reads one numeric field from the merged data. A nil
// return means the field is absent for this ticker.
type fieldAccessor func(d *StockData) *float64

// accessors is the field table the evaluator reads schemas through.
var accessors = map[string]fieldAccessor{
	"pe":             func(d *StockData) *float64 { return d.Fundamentals.PE },
	"pb":             func(d *StockData) *float64 { return d.Fundamentals.PB },
	"roe":            func(d *StockData) *float64 { return d.Fundamentals.ROE },
	"revenue_growth": func(d *StockData) *float64 { return d.Fundamentals.RevenueGrowth },
	"profit_growth":  func(d *StockData) *float64 { return d.Fundamentals.ProfitGrowth },
	"debt_ratio":     func(d *StockData) *float64 { return d.Fundamentals.DebtRatio },
	"current_ratio":  func(d *StockData) *float64 { return d.Fundamentals.CurrentRatio },
	"dividend_yield": func(d *StockData) *float64 { return d.Fundamentals.DividendYield },
	"payout_ratio":   func(d *StockData) *float64 { return d.Fundamentals.PayoutRatio },
	"gross_margin":   func(d *StockData) *float64 { return d.Fundamentals.GrossMargin },
	"rd_ratio":       func(d *StockData) *float64 { return d.Fundamentals.RDRatio },

	"market_cap": func(d *StockData) *float64 {
		if d.Fundamentals.MarketCap != nil {
			return d.Fundamentals.MarketCap
		}
		if d.Ref.MarketCap > 0 {
			return models.Float64Ptr(d.Ref.MarketCap)
		}
		return nil
	},
	"float_cap": func(d *StockData) *float64 {
		if d.Fundamentals.FloatCap != nil {
			return d.Fundamentals.FloatCap
		}
		if d.Ref.FloatCap > 0 {
			return models.Float64Ptr(d.Ref.FloatCap)
		}
		return nil
	},

	"close":          func(d *StockData) *float64 { return models.Float64Ptr(d.Snapshot.Close) },
	"percent_change": func(d *StockData) *float64 { return models.Float64Ptr(d.Snapshot.PercentChange()) },
	"turnover_rate":  func(d *StockData) *float64 { return models.Float64Ptr(d.Snapshot.TurnoverRate) },

	"rsi": func(d *StockData) *float64 { return d.Indicators.RSI },
	"macd_hist": func(d *StockData) *float64 {
		if d.Indicators.MACD == nil {
			return nil
		}
		return models.Float64Ptr(d.Indicators.MACD.Histogram)
	},
	"close_to_ma20": func(d *StockData) *float64 {
		if d.Indicators.MA20 == nil || *d.Indicators.MA20 == 0 {
			return nil
		}
		return models.Float64Ptr(d.Snapshot.Close / *d.Indicators.MA20)
	},
	"concentration": func(d *StockData) *float64 {
		if d.Indicators.Chips == nil {
			return nil
		}
		return models.Float64Ptr(d.Indicators.Chips.Concentration)
	},
	"profit_ratio": func(d *StockData) *float64 {
		if d.Indicators.Chips == nil {
			return nil
		}
		return models.Float64Ptr(d.Indicators.Chips.ProfitRatio)
	},
}

// Bonus caps
const (
	technicalBonus = 10
	momentumBonus  = 5
)

// activeBounds resolves which schema entries are evaluated and with
// what values: an explicit binding activates exactly the supplied
// parameters; an empty binding activates the full default set.
func activeBounds(def models.StrategyDefinition, params models.StrategyParameters) []boundEval {
	var bounds []boundEval
	for _, spec := range def.Schema {
		value, supplied := params[spec.Name]
		if len(params) > 0 && !supplied {
			continue
		}
		if !supplied {
			value = spec.Default
		}
		weight := spec.Weight
		if weight <= 0 {
			weight = 1
		}
		bounds = append(bounds, boundEval{spec: spec, value: value, weight: weight})
	}
	return bounds
}

type boundEval struct {
	spec   models.ParamSpec
	value  float64
	weight float64
}

func (b boundEval) describe() string {
	if b.spec.Kind == models.BoundUpper {
		return fmt.Sprintf("%s <= %g", b.spec.Field, b.value)
	}
	return fmt.Sprintf("%s >= %g", b.spec.Field, b.value)
}

// Evaluate scores one ticker against a strategy binding. The evaluator
// is pure: same inputs always produce the same ScoredStock.
func Evaluate(def models.StrategyDefinition, params models.StrategyParameters, minScore float64, d *StockData) models.ScoredStock {
	bounds := activeBounds(def, params)

	var (
		totalWeight     float64
		satisfiedWeight float64
		satisfiedCount  int
		hardViolated    bool
		firstFailure    string
		satisfied       []boundEval
	)

	for _, b := range bounds {
		totalWeight += b.weight

		accessor, ok := accessors[b.spec.Field]
		var field *float64
		if ok {
			field = accessor(d)
		}

		if field == nil {
			if b.spec.Hard {
				hardViolated = true
			}
			if firstFailure == "" {
				firstFailure = fmt.Sprintf("%s unavailable", b.spec.Field)
			}
			continue
		}

		pass := *field >= b.value
		if b.spec.Kind == models.BoundUpper {
			pass = *field <= b.value
		}

		if pass {
			satisfiedWeight += b.weight
			satisfiedCount++
			satisfied = append(satisfied, b)
			continue
		}

		if b.spec.Hard {
			hardViolated = true
		}
		if firstFailure == "" {
			firstFailure = fmt.Sprintf("failed %s (actual %.2f)", b.describe(), *field)
		}
	}

	score := 0.0
	if totalWeight > 0 {
		score = satisfiedWeight / totalWeight * 100
	}

	signals := satisfiedCount
	if bonus := technicalAlignmentBonus(d); bonus > 0 {
		score += bonus
		signals++
	}
	if bonus := industryMomentumBonus(d); bonus > 0 {
		score += bonus
		signals++
	}

	if score > 100 {
		score = 100
	}
	if score < 0 {
		score = 0
	}

	reason := firstFailure
	if reason == "" {
		reason = summarizeSatisfied(satisfied)
	}

	stock := models.ScoredStock{
		Code:          d.Ref.Code,
		Name:          d.Ref.Name,
		Market:        d.Ref.Market,
		Industry:      d.Ref.Industry,
		Score:         score,
		Grade:         models.GradeForScore(score),
		Qualified:     score >= minScore && !hardViolated,
		Reason:        reason,
		Close:         d.Snapshot.Close,
		PercentChange: d.Snapshot.PercentChange(),
		PE:            d.Fundamentals.PE,
		PB:            d.Fundamentals.PB,
		ROE:           d.Fundamentals.ROE,
		SignalsCount:  signals,
	}

	if mcap := accessors["market_cap"](d); mcap != nil {
		stock.MarketCap = *mcap
	}
	if d.Indicators.MACD != nil {
		stock.MACDHist = models.Float64Ptr(d.Indicators.MACD.Histogram)
	}
	stock.RSI = d.Indicators.RSI
	stock.BollingerPosition = d.Indicators.BollingerPosition(d.Snapshot.Close)

	return stock
}

// technicalAlignmentBonus awards up to +10 when a bullish MACD
// crossover landed within the last 3 bars and price sits above MA20.
func technicalAlignmentBonus(d *StockData) float64 {
	cross := d.Indicators.MACDCrossBarsAgo
	if cross < 0 || cross >= 3 {
		return 0
	}
	if d.Indicators.MA20 == nil || d.Snapshot.Close <= *d.Indicators.MA20 {
		return 0
	}
	return technicalBonus
}

// industryMomentumBonus awards up to +5 when the 20-bar return beats
// the industry median.
func industryMomentumBonus(d *StockData) float64 {
	if d.Indicators.Return20 == nil || d.IndustryMedianReturn20 == nil {
		return 0
	}
	if *d.Indicators.Return20 <= *d.IndustryMedianReturn20 {
		return 0
	}
	return momentumBonus
}

// summarizeSatisfied names the highest-weighted satisfied bounds.
func summarizeSatisfied(satisfied []boundEval) string {
	if len(satisfied) == 0 {
		return "no bounds evaluated"
	}

	sort.SliceStable(satisfied, func(i, j int) bool { return satisfied[i].weight > satisfied[j].weight })
	limit := 3
	if len(satisfied) < limit {
		limit = len(satisfied)
	}

	out := "satisfied"
	for i := 0; i < limit; i++ {
		out += " " + satisfied[i].describe()
		if i < limit-1 {
			out += ","
		}
	}
	return out
}
