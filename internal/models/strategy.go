package models

// Bound kinds for strategy parameters
const (
	BoundLower = "lower" // field must be >= the bound value
	BoundUpper = "upper" // field must be <= the bound value
)

// Grade buckets
const (
	GradeS = "S"
	GradeA = "A"
	GradeB = "B"
	GradeC = "C"
	GradeD = "D"
)

// GradeForScore maps a final score to its letter grade.
func GradeForScore(score float64) string {
	switch {
	case score >= 90:
		return GradeS
	case score >= 80:
		return GradeA
	case score >= 70:
		return GradeB
	case score >= 60:
		return GradeC
	default:
		return GradeD
	}
}

// ParamSpec declares one numeric bound in a strategy schema. Field names
// the data field the bound reads (resolved through the evaluator's
// accessor table); Name is the externally visible parameter key.
type ParamSpec struct {
	Name     string  `json:"name"`
	Field    string  `json:"field"`
	Kind     string  `json:"kind"` // lower / upper
	Weight   float64 `json:"weight"`
	Hard     bool    `json:"hard"`
	Default  float64 `json:"default"`
	RangeMin float64 `json:"range_min"`
	RangeMax float64 `json:"range_max"`
}

// StrategyParameters binds concrete values to a schema by parameter name.
type StrategyParameters map[string]float64

// StrategyDefinition is one immutable entry of the strategy registry.
type StrategyDefinition struct {
	ID              string             `json:"id"`
	Name            string             `json:"name"`
	Category        string             `json:"category"`
	RiskLevel       string             `json:"risk_level"`
	Description     string             `json:"description,omitempty"`
	Schema          []ParamSpec        `json:"parameter_schema"`
	Defaults        StrategyParameters `json:"default_parameters"`
	MinScoreDefault float64            `json:"min_score_default"`
}

// ScoredStock is one evaluated ticker in a strategy execution result.
type ScoredStock struct {
	Code     string `json:"code"`
	Name     string `json:"name"`
	Market   string `json:"market"`
	Industry string `json:"industry"`

	Score     float64 `json:"score"`
	Grade     string  `json:"grade"`
	Qualified bool    `json:"qualified"`
	Reason    string  `json:"reason"`

	Close         float64 `json:"close"`
	PercentChange float64 `json:"percent_change"`

	PE        *float64 `json:"pe,omitempty"`
	PB        *float64 `json:"pb,omitempty"`
	ROE       *float64 `json:"roe,omitempty"`
	MarketCap float64  `json:"market_cap"`

	MACDHist          *float64 `json:"macd_hist,omitempty"`
	RSI               *float64 `json:"rsi,omitempty"`
	BollingerPosition float64  `json:"bollinger_position"`

	SignalsCount int `json:"signals_count"`
}
