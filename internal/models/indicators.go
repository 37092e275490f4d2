package models

// MACDValue holds the latest MACD reading.
type MACDValue struct {
	DIF       float64 `json:"dif"`
	DEA       float64 `json:"dea"`
	Histogram float64 `json:"histogram"`
}

// BollingerValue holds the latest Bollinger band reading.
type BollingerValue struct {
	Upper  float64 `json:"upper"`
	Middle float64 `json:"middle"`
	Lower  float64 `json:"lower"`
}

// KDJValue holds the latest KDJ reading.
type KDJValue struct {
	K float64 `json:"k"`
	D float64 `json:"d"`
	J float64 `json:"j"`
}

// ChipDistribution is the estimated cost-basis distribution over price
// buckets, built from volume-at-price history with exponential decay.
type ChipDistribution struct {
	BucketPrices  []float64 `json:"bucket_prices"` // bucket center prices, ascending
	BucketMass    []float64 `json:"bucket_mass"`   // accumulated decayed volume per bucket
	MainPeakPrice float64   `json:"main_peak_price"`
	AverageCost   float64   `json:"average_cost"`
	Concentration float64   `json:"concentration"` // mass share of the 20 buckets around the peak
	Support       float64   `json:"support"`
	Resistance    float64   `json:"resistance"`
	ProfitRatio   float64   `json:"profit_ratio"` // mass share below current price
}

// IndicatorSet is the latest-value summary of all computed indicators
// for one ticker. Moving averages are nil when the history is shorter
// than the window.
type IndicatorSet struct {
	MA5  *float64 `json:"ma5,omitempty"`
	MA10 *float64 `json:"ma10,omitempty"`
	MA20 *float64 `json:"ma20,omitempty"`
	MA60 *float64 `json:"ma60,omitempty"`

	MACD      *MACDValue      `json:"macd,omitempty"`
	RSI       *float64        `json:"rsi,omitempty"`
	Bollinger *BollingerValue `json:"bollinger,omitempty"`
	KDJ       *KDJValue       `json:"kdj,omitempty"`

	Chips *ChipDistribution `json:"chips,omitempty"`

	// MACDCrossBarsAgo is the bar offset of the most recent bullish DIF/DEA
	// crossover (0 = latest bar), or -1 when none occurred in the history.
	MACDCrossBarsAgo int `json:"macd_cross_bars_ago"`

	// Return20 is the 20-bar close-to-close return in percent; nil with
	// fewer than 21 bars.
	Return20 *float64 `json:"return_20,omitempty"`
}

// BollingerPosition locates the close within the bands: 0 at the lower
// band, 1 at the upper band. Returns 0.5 when the bands are degenerate.
func (s *IndicatorSet) BollingerPosition(close float64) float64 {
	if s.Bollinger == nil {
		return 0.5
	}
	width := s.Bollinger.Upper - s.Bollinger.Lower
	if width <= 0 {
		return 0.5
	}
	return (close - s.Bollinger.Lower) / width
}
