// Package indicators implements the pure technical-indicator kernel.
// All functions take bar sequences ordered oldest first and perform no
// I/O; the same input always yields the same output.
package indicators

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/zhquant/ashare/internal/models"
)

// Closes extracts the close series from a bar sequence.
func Closes(bars []models.HistoryBar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close
	}
	return out
}

// MA returns the simple moving average of the last n closes, or nil
// when the history is shorter than the window.
func MA(bars []models.HistoryBar, n int) *float64 {
	if n < 1 || len(bars) < n {
		return nil
	}
	sum := 0.0
	for _, b := range bars[len(bars)-n:] {
		sum += b.Close
	}
	v := sum / float64(n)
	return &v
}

// EMASeries computes the exponential moving average over values, seeded
// with the first value.
func EMASeries(values []float64, n int) []float64 {
	out := make([]float64, len(values))
	if len(values) == 0 {
		return out
	}
	alpha := 2.0 / float64(n+1)
	out[0] = values[0]
	for i := 1; i < len(values); i++ {
		out[i] = alpha*values[i] + (1-alpha)*out[i-1]
	}
	return out
}

// MACDSeries computes DIF, DEA and histogram series over closes.
// Histogram uses the A-share convention 2 x (DIF - DEA).
func MACDSeries(closes []float64) (dif, dea, hist []float64) {
	ema12 := EMASeries(closes, 12)
	ema26 := EMASeries(closes, 26)

	dif = make([]float64, len(closes))
	for i := range closes {
		dif[i] = ema12[i] - ema26[i]
	}
	dea = EMASeries(dif, 9)

	hist = make([]float64, len(closes))
	for i := range closes {
		hist[i] = 2 * (dif[i] - dea[i])
	}
	return dif, dea, hist
}

// MACDLatest returns the latest MACD reading, or nil with fewer than
// 26 bars.
func MACDLatest(bars []models.HistoryBar) *models.MACDValue {
	if len(bars) < 26 {
		return nil
	}
	dif, dea, hist := MACDSeries(Closes(bars))
	last := len(bars) - 1
	return &models.MACDValue{
		DIF:       dif[last],
		DEA:       dea[last],
		Histogram: hist[last],
	}
}

// MACDBullishCrossBarsAgo returns the bar offset of the most recent
// bullish DIF/DEA crossover (0 = latest bar), or -1 when none exists.
func MACDBullishCrossBarsAgo(bars []models.HistoryBar) int {
	if len(bars) < 27 {
		return -1
	}
	dif, dea, _ := MACDSeries(Closes(bars))
	for offset := 0; offset < len(bars)-1; offset++ {
		i := len(bars) - 1 - offset
		if dif[i] > dea[i] && dif[i-1] <= dea[i-1] {
			return offset
		}
	}
	return -1
}

// RSI computes the Wilder-smoothed relative strength index over the
// last value of the series. Returns nil with fewer than period+1 bars.
func RSI(bars []models.HistoryBar, period int) *float64 {
	if len(bars) < period+1 {
		return nil
	}

	closes := Closes(bars)

	var avgGain, avgLoss float64
	for i := 1; i <= period; i++ {
		change := closes[i] - closes[i-1]
		if change > 0 {
			avgGain += change
		} else {
			avgLoss -= change
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)

	for i := period + 1; i < len(closes); i++ {
		change := closes[i] - closes[i-1]
		gain, loss := 0.0, 0.0
		if change > 0 {
			gain = change
		} else {
			loss = -change
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
	}

	if avgLoss == 0 {
		v := 100.0
		return &v
	}
	rs := avgGain / avgLoss
	v := 100 - 100/(1+rs)
	return &v
}

// Bollinger computes the 20-bar middle band with 2-sigma population
// bands. Returns nil with fewer than period bars.
func Bollinger(bars []models.HistoryBar, period int, width float64) *models.BollingerValue {
	if len(bars) < period {
		return nil
	}
	window := Closes(bars[len(bars)-period:])
	middle := stat.Mean(window, nil)
	sigma := math.Sqrt(stat.PopVariance(window, nil))
	return &models.BollingerValue{
		Upper:  middle + width*sigma,
		Middle: middle,
		Lower:  middle - width*sigma,
	}
}

// KDJ computes the classical 1/3-weight recursion over a 9-bar rolling
// range. Returns nil with fewer than 9 bars.
func KDJ(bars []models.HistoryBar, rsvPeriod int) *models.KDJValue {
	if len(bars) < rsvPeriod {
		return nil
	}

	k, d := 50.0, 50.0
	for i := rsvPeriod - 1; i < len(bars); i++ {
		high := bars[i].High
		low := bars[i].Low
		for j := i - rsvPeriod + 1; j < i; j++ {
			if bars[j].High > high {
				high = bars[j].High
			}
			if bars[j].Low < low {
				low = bars[j].Low
			}
		}

		rsv := 50.0
		if high > low {
			rsv = (bars[i].Close - low) / (high - low) * 100
		}
		k = k*2/3 + rsv/3
		d = d*2/3 + k/3
	}

	return &models.KDJValue{K: k, D: d, J: 3*k - 2*d}
}

// Return20 returns the 20-bar close-to-close return in percent, or nil
// with fewer than 21 bars.
func Return20(bars []models.HistoryBar) *float64 {
	if len(bars) < 21 {
		return nil
	}
	base := bars[len(bars)-21].Close
	if base == 0 {
		return nil
	}
	v := (bars[len(bars)-1].Close/base - 1) * 100
	return &v
}

// Compute assembles the full latest-value indicator summary for a bar
// sequence.
func Compute(bars []models.HistoryBar) *models.IndicatorSet {
	set := &models.IndicatorSet{
		MA5:              MA(bars, 5),
		MA10:             MA(bars, 10),
		MA20:             MA(bars, 20),
		MA60:             MA(bars, 60),
		MACD:             MACDLatest(bars),
		RSI:              RSI(bars, 14),
		Bollinger:        Bollinger(bars, 20, 2),
		KDJ:              KDJ(bars, 9),
		MACDCrossBarsAgo: MACDBullishCrossBarsAgo(bars),
		Return20:         Return20(bars),
	}
	if chips := ComputeChips(bars); chips != nil {
		set.Chips = chips
	}
	return set
}
