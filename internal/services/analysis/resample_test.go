package analysis

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhquant/ashare/internal/models"
)

func dayBar(y int, m time.Month, d int, open, high, low, close, volume float64) models.HistoryBar {
	return models.HistoryBar{
		Date:   time.Date(y, m, d, 0, 0, 0, 0, time.UTC),
		Open:   open,
		High:   high,
		Low:    low,
		Close:  close,
		Volume: volume,
	}
}

func TestResample_Weekly(t *testing.T) {
	// Mon 2026-03-02 .. Wed 2026-03-04 then Mon 2026-03-09
	daily := []models.HistoryBar{
		dayBar(2026, 3, 2, 10, 11, 9.5, 10.5, 100),
		dayBar(2026, 3, 3, 10.5, 12, 10, 11.5, 200),
		dayBar(2026, 3, 4, 11.5, 11.8, 10.2, 10.4, 150),
		dayBar(2026, 3, 9, 10.4, 10.9, 10.1, 10.7, 300),
	}

	weekly := Resample(daily, WeekKey)
	require.Len(t, weekly, 2)

	first := weekly[0]
	assert.Equal(t, 10.0, first.Open, "first open of the week")
	assert.Equal(t, 10.4, first.Close, "last close of the week")
	assert.Equal(t, 12.0, first.High)
	assert.Equal(t, 9.5, first.Low)
	assert.Equal(t, 450.0, first.Volume)
	assert.Equal(t, daily[2].Date, first.Date, "dated at the bucket's last session")

	assert.Equal(t, daily[3].Date, weekly[1].Date)
}

func TestResample_Monthly(t *testing.T) {
	daily := []models.HistoryBar{
		dayBar(2026, 1, 30, 10, 11, 9, 10.5, 100),
		dayBar(2026, 2, 2, 10.5, 12, 10, 11.5, 200),
		dayBar(2026, 2, 27, 11.5, 13, 11, 12.5, 300),
	}

	monthly := Resample(daily, MonthKey)
	require.Len(t, monthly, 2)

	feb := monthly[1]
	assert.Equal(t, 10.5, feb.Open)
	assert.Equal(t, 12.5, feb.Close)
	assert.Equal(t, 500.0, feb.Volume)
}

func TestResample_EmptyInput(t *testing.T) {
	assert.Nil(t, Resample(nil, WeekKey))
}

func TestWeekKey_ISOYearBoundary(t *testing.T) {
	// 2026-01-01 falls in ISO week 1 of 2026; 2025-12-29 (Monday) does too
	a := WeekKey(dayBar(2025, 12, 29, 1, 1, 1, 1, 1))
	b := WeekKey(dayBar(2026, 1, 1, 1, 1, 1, 1, 1))
	assert.Equal(t, a, b, "bars either side of the year boundary share an ISO week")
}
