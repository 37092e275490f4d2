package analysis

import (
	"fmt"
	"sort"

	"github.com/zhquant/ashare/internal/models"
)

// BucketKey maps a bar date to its resampling bucket.
type BucketKey func(bar models.HistoryBar) string

// WeekKey buckets bars by ISO year and week.
func WeekKey(bar models.HistoryBar) string {
	year, week := bar.Date.ISOWeek()
	return formatKey(year, week)
}

// MonthKey buckets bars by year and month.
func MonthKey(bar models.HistoryBar) string {
	return formatKey(bar.Date.Year(), int(bar.Date.Month()))
}

func formatKey(a, b int) string {
	return fmt.Sprintf("%04d-%02d", a, b)
}

// Resample aggregates daily bars into coarser bars: first open, last
// close, extreme high/low, summed volume, dated at the bucket's last
// session. Input must be ordered oldest first; output preserves order.
func Resample(daily []models.HistoryBar, key BucketKey) []models.HistoryBar {
	if len(daily) == 0 {
		return nil
	}

	order := make([]string, 0)
	buckets := make(map[string]models.HistoryBar)
	for _, bar := range daily {
		k := key(bar)
		agg, ok := buckets[k]
		if !ok {
			order = append(order, k)
			buckets[k] = bar
			continue
		}
		agg.Close = bar.Close
		agg.Date = bar.Date
		if bar.High > agg.High {
			agg.High = bar.High
		}
		if bar.Low < agg.Low {
			agg.Low = bar.Low
		}
		agg.Volume += bar.Volume
		buckets[k] = agg
	}

	out := make([]models.HistoryBar, 0, len(order))
	for _, k := range order {
		out = append(out, buckets[k])
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}
