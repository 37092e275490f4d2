// Package analysis computes single-ticker multi-timeframe technical
// analysis and trading-signal tags.
package analysis

import (
	"context"
	"fmt"
	"time"

	"github.com/zhquant/ashare/internal/common"
	"github.com/zhquant/ashare/internal/indicators"
	"github.com/zhquant/ashare/internal/interfaces"
	"github.com/zhquant/ashare/internal/models"
	"github.com/zhquant/ashare/internal/providers"
)

const historyDays = 420

// Service implements interfaces.AnalysisService.
type Service struct {
	gateway interfaces.DataGateway
	logger  *common.Logger
	now     func() time.Time
}

// NewService creates an analysis service.
func NewService(gateway interfaces.DataGateway, logger *common.Logger) *Service {
	if logger == nil {
		logger = common.NewSilentLogger()
	}
	return &Service{gateway: gateway, logger: logger, now: time.Now}
}

// Analyze fetches snapshot and history for one ticker and summarizes
// daily, weekly, and monthly timeframes.
func (s *Service) Analyze(ctx context.Context, code string) (*models.TickerAnalysis, error) {
	market := models.MarketFromCode(code)
	if market == "" {
		return nil, fmt.Errorf("%w: unrecognized code %q", providers.ErrNotFound, code)
	}

	snapshots, err := s.gateway.FetchSnapshotBatch(ctx, []string{code})
	if err != nil {
		return nil, err
	}
	snap, ok := snapshots[code]
	if !ok {
		return nil, fmt.Errorf("%w: no snapshot for %s", providers.ErrNotFound, code)
	}

	to := s.now()
	from := to.AddDate(0, 0, -historyDays)
	daily, err := s.gateway.FetchHistory(ctx, code, from, to)
	if err != nil {
		return nil, err
	}

	timeframes := []models.TimeframeAnalysis{
		analyzeTimeframe("daily", daily),
		analyzeTimeframe("weekly", Resample(daily, WeekKey)),
		analyzeTimeframe("monthly", Resample(daily, MonthKey)),
	}

	buy, sell := 0, 0
	for _, tf := range timeframes {
		b, s := countVotes(tf.Signals)
		buy += b
		sell += s
	}

	advice := "hold"
	if buy-sell >= 2 {
		advice = "buy"
	} else if sell-buy >= 2 {
		advice = "sell"
	}

	return &models.TickerAnalysis{
		Code:       code,
		Name:       snap.Name,
		Market:     market,
		Snapshot:   snap,
		Timeframes: timeframes,
		Advice:     advice,
		BuyVotes:   buy,
		SellVotes:  sell,
		Timestamp:  s.now(),
	}, nil
}

func analyzeTimeframe(name string, bars []models.HistoryBar) models.TimeframeAnalysis {
	set := indicators.Compute(bars)
	return models.TimeframeAnalysis{
		Timeframe:  name,
		BarCount:   len(bars),
		Indicators: *set,
		Signals:    signalTags(set, bars),
	}
}

// signalTags derives the latest-value signal tags for one timeframe.
func signalTags(set *models.IndicatorSet, bars []models.HistoryBar) []string {
	var tags []string
	if len(bars) == 0 {
		return tags
	}
	close := bars[len(bars)-1].Close

	if set.MA5 != nil && set.MA10 != nil && set.MA20 != nil {
		if *set.MA5 > *set.MA10 && *set.MA10 > *set.MA20 {
			tags = append(tags, "ma_bullish_alignment")
		} else if *set.MA5 < *set.MA10 && *set.MA10 < *set.MA20 {
			tags = append(tags, "ma_bearish_alignment")
		}
	}

	if set.MACDCrossBarsAgo >= 0 && set.MACDCrossBarsAgo < 3 {
		tags = append(tags, "macd_golden_cross")
	}
	if set.MACD != nil {
		if set.MACD.Histogram > 0 {
			tags = append(tags, "macd_bullish")
		} else if set.MACD.Histogram < 0 {
			tags = append(tags, "macd_bearish")
		}
	}

	if set.RSI != nil {
		switch {
		case *set.RSI >= 70:
			tags = append(tags, "rsi_overbought")
		case *set.RSI <= 30:
			tags = append(tags, "rsi_oversold")
		}
	}

	if set.Bollinger != nil {
		switch {
		case close > set.Bollinger.Upper:
			tags = append(tags, "boll_above_upper")
		case close < set.Bollinger.Lower:
			tags = append(tags, "boll_below_lower")
		}
	}

	if set.KDJ != nil {
		switch {
		case set.KDJ.J >= 90:
			tags = append(tags, "kdj_overbought")
		case set.KDJ.J <= 10:
			tags = append(tags, "kdj_oversold")
		}
	}

	if set.Chips != nil && set.Chips.ProfitRatio >= 0.8 {
		tags = append(tags, "chips_mostly_in_profit")
	}

	return tags
}

// bullish and bearish vote weights per tag
var bullishTags = map[string]bool{
	"ma_bullish_alignment":   true,
	"macd_golden_cross":      true,
	"macd_bullish":           true,
	"rsi_oversold":           true,
	"boll_below_lower":       true,
	"kdj_oversold":           true,
	"chips_mostly_in_profit": true,
}

var bearishTags = map[string]bool{
	"ma_bearish_alignment": true,
	"macd_bearish":         true,
	"rsi_overbought":       true,
	"boll_above_upper":     true,
	"kdj_overbought":       true,
}

func countVotes(tags []string) (buy, sell int) {
	for _, t := range tags {
		if bullishTags[t] {
			buy++
		}
		if bearishTags[t] {
			sell++
		}
	}
	return buy, sell
}

// Ensure Service implements the contract
var _ interfaces.AnalysisService = (*Service)(nil)
