// Package strategy holds the built-in strategy registry and the
// schema-driven evaluator.
package strategy

import (
	"fmt"

	"github.com/zhquant/ashare/internal/interfaces"
	"github.com/zhquant/ashare/internal/models"
)

// Registry is the process-local immutable strategy list.
type Registry struct {
	order []string
	byID  map[string]models.StrategyDefinition
}

// NewRegistry creates a registry from definitions, preserving order.
func NewRegistry(defs []models.StrategyDefinition) *Registry {
	r := &Registry{byID: make(map[string]models.StrategyDefinition, len(defs))}
	for _, def := range defs {
		if _, dup := r.byID[def.ID]; dup {
			continue
		}
		r.order = append(r.order, def.ID)
		r.byID[def.ID] = def
	}
	return r
}

// NewDefaultRegistry returns the six built-in strategies.
func NewDefaultRegistry() *Registry {
	return NewRegistry(builtinStrategies())
}

// List returns all definitions in registration order.
func (r *Registry) List() []models.StrategyDefinition {
	out := make([]models.StrategyDefinition, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id])
	}
	return out
}

// Get returns the definition for an id.
func (r *Registry) Get(id string) (models.StrategyDefinition, bool) {
	def, ok := r.byID[id]
	return def, ok
}

// ValidateParameters checks a binding against the declared schema:
// every supplied name must exist and sit inside its declared range.
func ValidateParameters(def models.StrategyDefinition, params models.StrategyParameters) error {
	specs := make(map[string]models.ParamSpec, len(def.Schema))
	for _, spec := range def.Schema {
		specs[spec.Name] = spec
	}

	for name, value := range params {
		spec, ok := specs[name]
		if !ok {
			return fmt.Errorf("unknown parameter %q for strategy %s", name, def.ID)
		}
		if value < spec.RangeMin || value > spec.RangeMax {
			return fmt.Errorf("parameter %q=%g outside declared range [%g, %g]", name, value, spec.RangeMin, spec.RangeMax)
		}
	}
	return nil
}

func lower(name, field string, weight, def, min, max float64, hard bool) models.ParamSpec {
	return models.ParamSpec{Name: name, Field: field, Kind: models.BoundLower, Weight: weight, Hard: hard, Default: def, RangeMin: min, RangeMax: max}
}

func upper(name, field string, weight, def, min, max float64, hard bool) models.ParamSpec {
	return models.ParamSpec{Name: name, Field: field, Kind: models.BoundUpper, Weight: weight, Hard: hard, Default: def, RangeMin: min, RangeMax: max}
}

func defaultsFor(schema []models.ParamSpec) models.StrategyParameters {
	out := make(models.StrategyParameters, len(schema))
	for _, spec := range schema {
		out[spec.Name] = spec.Default
	}
	return out
}

func builtinStrategies() []models.StrategyDefinition {
	var defs []models.StrategyDefinition

	blueChip := []models.ParamSpec{
		upper("pe_max", "pe", 1, 25, 1, 100, true),
		upper("pb_max", "pb", 1, 3, 0.1, 20, false),
		lower("roe_min", "roe", 1, 10, 0, 50, true),
		lower("market_cap_min", "market_cap", 1, 1000, 0, 50000, false),
		upper("debt_ratio_max", "debt_ratio", 1, 60, 0, 100, false),
		lower("dividend_yield_min", "dividend_yield", 1, 2, 0, 20, false),
	}
	defs = append(defs, models.StrategyDefinition{
		ID:              "blue_chip_stable",
		Name:            "Blue-chip Stable",
		Category:        "value",
		RiskLevel:       "low",
		Description:     "Large caps with cheap valuations, solid returns on equity and a dividend floor.",
		Schema:          blueChip,
		Defaults:        defaultsFor(blueChip),
		MinScoreDefault: 60,
	})

	highDividend := []models.ParamSpec{
		lower("dividend_yield_min", "dividend_yield", 2, 4, 0, 20, true),
		lower("payout_ratio_min", "payout_ratio", 1, 30, 0, 100, false),
		upper("pe_max", "pe", 1, 15, 1, 100, false),
		upper("pb_max", "pb", 1, 2, 0.1, 20, false),
		upper("debt_ratio_max", "debt_ratio", 1, 60, 0, 100, false),
	}
	defs = append(defs, models.StrategyDefinition{
		ID:              "high_dividend",
		Name:            "High Dividend",
		Category:        "income",
		RiskLevel:       "low",
		Description:     "Sustained payers with a hard dividend-yield floor.",
		Schema:          highDividend,
		Defaults:        defaultsFor(highDividend),
		MinScoreDefault: 60,
	})

	qualityGrowth := []models.ParamSpec{
		lower("revenue_growth_min", "revenue_growth", 2, 15, -50, 200, true),
		lower("profit_growth_min", "profit_growth", 2, 20, -50, 300, true),
		lower("roe_min", "roe", 1, 15, 0, 50, false),
		lower("gross_margin_min", "gross_margin", 1, 30, 0, 100, false),
		lower("rd_ratio_min", "rd_ratio", 1, 3, 0, 50, false),
		upper("pe_max", "pe", 1, 60, 1, 300, false),
	}
	defs = append(defs, models.StrategyDefinition{
		ID:              "quality_growth",
		Name:            "Quality Growth",
		Category:        "growth",
		RiskLevel:       "medium",
		Description:     "Compounders with double-digit top and bottom line growth.",
		Schema:          qualityGrowth,
		Defaults:        defaultsFor(qualityGrowth),
		MinScoreDefault: 65,
	})

	value := []models.ParamSpec{
		upper("pe_max", "pe", 2, 12, 1, 50, true),
		upper("pb_max", "pb", 2, 1.5, 0.1, 10, true),
		lower("roe_min", "roe", 1, 8, 0, 50, false),
		lower("current_ratio_min", "current_ratio", 1, 1, 0, 10, false),
		upper("debt_ratio_max", "debt_ratio", 1, 50, 0, 100, false),
	}
	defs = append(defs, models.StrategyDefinition{
		ID:              "deep_value",
		Name:            "Deep Value",
		Category:        "value",
		RiskLevel:       "medium",
		Description:     "Statistically cheap names with hard valuation ceilings.",
		Schema:          value,
		Defaults:        defaultsFor(value),
		MinScoreDefault: 60,
	})

	momentum := []models.ParamSpec{
		lower("close_to_ma20_min", "close_to_ma20", 2, 1, 0.5, 2, true),
		lower("macd_hist_min", "macd_hist", 1, 0, -10, 10, false),
		lower("rsi_min", "rsi", 1, 50, 0, 100, false),
		upper("rsi_max", "rsi", 1, 80, 0, 100, false),
		lower("turnover_rate_min", "turnover_rate", 1, 1, 0, 50, false),
	}
	defs = append(defs, models.StrategyDefinition{
		ID:              "momentum_trend",
		Name:            "Momentum Trend",
		Category:        "technical",
		RiskLevel:       "high",
		Description:     "Price above trend with constructive MACD and active turnover.",
		Schema:          momentum,
		Defaults:        defaultsFor(momentum),
		MinScoreDefault: 60,
	})

	smallCapGrowth := []models.ParamSpec{
		upper("market_cap_max", "market_cap", 1, 200, 10, 2000, true),
		lower("revenue_growth_min", "revenue_growth", 2, 20, -50, 300, false),
		lower("profit_growth_min", "profit_growth", 2, 20, -50, 300, false),
		lower("turnover_rate_min", "turnover_rate", 1, 2, 0, 50, false),
		upper("float_cap_max", "float_cap", 1, 100, 1, 1000, false),
	}
	defs = append(defs, models.StrategyDefinition{
		ID:              "small_cap_growth",
		Name:            "Small-cap Growth",
		Category:        "growth",
		RiskLevel:       "high",
		Description:     "Small floats growing fast, capped by total market cap.",
		Schema:          smallCapGrowth,
		Defaults:        defaultsFor(smallCapGrowth),
		MinScoreDefault: 65,
	})

	return defs
}

// Ensure Registry implements the contract
var _ interfaces.StrategyRegistry = (*Registry)(nil)
