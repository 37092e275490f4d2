package models

import "time"

// ChangeBucket is one bin of the percent-change histogram.
type ChangeBucket struct {
	Label string  `json:"label"` // e.g. "-5~-3"
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Count int     `json:"count"`
}

// MarketOverview summarizes whole-market breadth for one session.
type MarketOverview struct {
	Timestamp    time.Time `json:"timestamp"`
	TotalTickers int       `json:"total_tickers"`

	UpCount   int `json:"up_count"`
	DownCount int `json:"down_count"`
	FlatCount int `json:"flat_count"`

	LimitUpCount   int `json:"limit_up_count"`
	LimitDownCount int `json:"limit_down_count"`

	MeanChange   float64 `json:"mean_change"`
	MedianChange float64 `json:"median_change"`

	ChangeHistogram []ChangeBucket `json:"change_histogram"`

	TurnoverLeaders []QuoteSnapshot `json:"turnover_leaders"`

	MarketBreakdown map[string]int `json:"market_breakdown"`
}

// LimitUpEntry is one member of the day's limit-up cohort.
type LimitUpEntry struct {
	Code          string  `json:"code"`
	Name          string  `json:"name"`
	Market        string  `json:"market"`
	Industry      string  `json:"industry"`
	Close         float64 `json:"close"`
	PercentChange float64 `json:"percent_change"`
	TurnoverRate  float64 `json:"turnover_rate"`
	Sealed        bool    `json:"sealed"` // close sits at the cap
}

// IndustryCohort groups limit-up entries sharing an industry tag.
type IndustryCohort struct {
	Industry string         `json:"industry"`
	Count    int            `json:"count"`
	Entries  []LimitUpEntry `json:"entries"`
}

// LimitUpReport is the daily limit-up cohort analysis.
type LimitUpReport struct {
	Timestamp     time.Time        `json:"timestamp"`
	Total         int              `json:"total"`
	SealedCount   int              `json:"sealed_count"`
	ReopenCount   int              `json:"reopen_count"`
	StrengthScore float64          `json:"strength_score"` // 0-100
	ByIndustry    []IndustryCohort `json:"by_industry"`
}

// TimeframeAnalysis holds one timeframe's indicator summary and signal tags.
type TimeframeAnalysis struct {
	Timeframe  string       `json:"timeframe"` // daily / weekly / monthly
	BarCount   int          `json:"bar_count"`
	Indicators IndicatorSet `json:"indicators"`
	Signals    []string     `json:"signals"`
}

// TickerAnalysis is the single-ticker technical analysis response.
type TickerAnalysis struct {
	Code       string              `json:"code"`
	Name       string              `json:"name"`
	Market     string              `json:"market"`
	Snapshot   QuoteSnapshot       `json:"snapshot"`
	Timeframes []TimeframeAnalysis `json:"timeframes"`
	Advice     string              `json:"advice"` // buy / sell / hold
	BuyVotes   int                 `json:"buy_votes"`
	SellVotes  int                 `json:"sell_votes"`
	Timestamp  time.Time           `json:"timestamp"`
}
