package indicators

import "github.com/zhquant/ashare/internal/models"

// Chip distribution parameters
const (
	chipBuckets         = 100
	chipDecay           = 0.95
	concentrationWindow = 20
)

// ComputeChips estimates the holder cost-basis distribution from
// volume-at-price history. Each bar spreads its volume uniformly over
// [low, high], weighted by decay^age with the latest bar at age 0.
// Returns nil for empty input or a degenerate price range.
func ComputeChips(bars []models.HistoryBar) *models.ChipDistribution {
	if len(bars) == 0 {
		return nil
	}

	minLow := bars[0].Low
	maxHigh := bars[0].High
	for _, b := range bars {
		if b.Low < minLow {
			minLow = b.Low
		}
		if b.High > maxHigh {
			maxHigh = b.High
		}
	}
	if maxHigh <= minLow {
		return nil
	}

	bucketWidth := (maxHigh - minLow) / chipBuckets
	mass := make([]float64, chipBuckets)

	weight := 1.0
	for i := len(bars) - 1; i >= 0; i-- {
		b := bars[i]
		if b.Volume > 0 && b.High > b.Low {
			spreadVolume(mass, minLow, bucketWidth, b.Low, b.High, b.Volume*weight)
		} else if b.Volume > 0 {
			// zero-range bar: all volume lands in one bucket
			idx := bucketIndex(b.Close, minLow, bucketWidth)
			mass[idx] += b.Volume * weight
		}
		weight *= chipDecay
	}

	centers := make([]float64, chipBuckets)
	for i := range centers {
		centers[i] = minLow + (float64(i)+0.5)*bucketWidth
	}

	total := 0.0
	weighted := 0.0
	for i, m := range mass {
		total += m
		weighted += m * centers[i]
	}
	if total == 0 {
		return nil
	}

	// higher-price bucket wins peak ties
	peak := 0
	for i := 1; i < chipBuckets; i++ {
		if mass[i] >= mass[peak] {
			peak = i
		}
	}

	lo := peak - concentrationWindow/2
	hi := lo + concentrationWindow
	if lo < 0 {
		lo = 0
	}
	if hi > chipBuckets {
		hi = chipBuckets
	}
	windowMass := 0.0
	for i := lo; i < hi; i++ {
		windowMass += mass[i]
	}

	close := bars[len(bars)-1].Close

	profitMass := 0.0
	supportIdx, resistanceIdx := -1, -1
	for i, m := range mass {
		if centers[i] < close {
			profitMass += m
			if supportIdx < 0 || m >= mass[supportIdx] {
				supportIdx = i
			}
		} else if centers[i] > close {
			if resistanceIdx < 0 || m > mass[resistanceIdx] {
				resistanceIdx = i
			}
		}
	}

	support := minLow
	if supportIdx >= 0 {
		support = centers[supportIdx]
	}
	resistance := maxHigh
	if resistanceIdx >= 0 {
		resistance = centers[resistanceIdx]
	}

	return &models.ChipDistribution{
		BucketPrices:  centers,
		BucketMass:    mass,
		MainPeakPrice: centers[peak],
		AverageCost:   weighted / total,
		Concentration: windowMass / total,
		Support:       support,
		Resistance:    resistance,
		ProfitRatio:   profitMass / total,
	}
}

// spreadVolume distributes volume across buckets overlapping [low, high]
// in proportion to the overlap length.
func spreadVolume(mass []float64, minLow, bucketWidth, low, high, volume float64) {
	span := high - low
	first := bucketIndex(low, minLow, bucketWidth)
	last := bucketIndex(high, minLow, bucketWidth)
	for i := first; i <= last && i < len(mass); i++ {
		bucketLo := minLow + float64(i)*bucketWidth
		bucketHi := bucketLo + bucketWidth
		overlap := minFloat(high, bucketHi) - maxFloat(low, bucketLo)
		if overlap > 0 {
			mass[i] += volume * overlap / span
		}
	}
}

func bucketIndex(price, minLow, bucketWidth float64) int {
	idx := int((price - minLow) / bucketWidth)
	if idx < 0 {
		return 0
	}
	if idx >= chipBuckets {
		return chipBuckets - 1
	}
	return idx
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
