// Package models defines the data structures shared across the service.
package models

import (
	"strings"
	"time"
)

// Market tags derived from the ticker code prefix
const (
	MarketSH = "SH"
	MarketSZ = "SZ"
	MarketBJ = "BJ"
)

// Board tags classify the listing board within an exchange
const (
	BoardMainSH  = "main_board_sh"
	BoardMainSZ  = "main_board_sz"
	BoardGEM     = "gem"
	BoardSTAR    = "star_market"
	BoardBeijing = "beijing"
)

// FilterAll is the wildcard token accepted on either universe-filter axis
const FilterAll = "ALL"

// TickerRef is one row of the reference universe roster.
type TickerRef struct {
	Code      string  `json:"code"`   // 6-digit code, e.g. "600036"
	Market    string  `json:"market"` // SH / SZ / BJ
	Board     string  `json:"board"`
	Name      string  `json:"name"`
	Industry  string  `json:"industry"`
	Region    string  `json:"region,omitempty"`
	MarketCap float64 `json:"market_cap"` // total cap, 100M CNY
	FloatCap  float64 `json:"float_cap"`  // free-float cap, 100M CNY
}

// MarketFromCode derives the market tag from a 6-digit ticker code.
// Unknown prefixes return an empty tag.
func MarketFromCode(code string) string {
	switch {
	case hasAnyPrefix(code, "600", "601", "603", "605", "688"):
		return MarketSH
	case hasAnyPrefix(code, "000", "001", "002", "003", "300"):
		return MarketSZ
	case hasAnyPrefix(code, "8", "4"):
		return MarketBJ
	default:
		return ""
	}
}

// BoardFromCode derives the listing board from a 6-digit ticker code.
func BoardFromCode(code string) string {
	switch {
	case strings.HasPrefix(code, "688"):
		return BoardSTAR
	case hasAnyPrefix(code, "600", "601", "603", "605"):
		return BoardMainSH
	case strings.HasPrefix(code, "300"):
		return BoardGEM
	case hasAnyPrefix(code, "000", "001", "002", "003"):
		return BoardMainSZ
	case hasAnyPrefix(code, "8", "4"):
		return BoardBeijing
	default:
		return ""
	}
}

func hasAnyPrefix(s string, prefixes ...string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

// QuoteSnapshot is the latest-session record for one ticker.
type QuoteSnapshot struct {
	Code         string    `json:"code"`
	Name         string    `json:"name,omitempty"`
	Open         float64   `json:"open"`
	High         float64   `json:"high"`
	Low          float64   `json:"low"`
	Close        float64   `json:"close"`
	PrevClose    float64   `json:"prev_close"`
	Volume       float64   `json:"volume"`   // shares
	Turnover     float64   `json:"turnover"` // traded value, CNY
	TurnoverRate float64   `json:"turnover_rate"`
	Timestamp    time.Time `json:"timestamp"`
}

// PercentChange returns the session change relative to the previous close.
func (s *QuoteSnapshot) PercentChange() float64 {
	if s.PrevClose == 0 {
		return 0
	}
	return (s.Close - s.PrevClose) / s.PrevClose * 100
}

// HistoryBar is a single dated OHLCV row. Sequences are ordered oldest
// first, most recent last.
type HistoryBar struct {
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// Fundamentals carries per-ticker fundamental fields. Missing upstream
// values are nil, never zero.
type Fundamentals struct {
	Code          string   `json:"code"`
	PE            *float64 `json:"pe,omitempty"`
	PB            *float64 `json:"pb,omitempty"`
	ROE           *float64 `json:"roe,omitempty"`
	RevenueGrowth *float64 `json:"revenue_growth,omitempty"` // YoY %
	ProfitGrowth  *float64 `json:"profit_growth,omitempty"`  // YoY %
	DebtRatio     *float64 `json:"debt_ratio,omitempty"`
	CurrentRatio  *float64 `json:"current_ratio,omitempty"`
	DividendYield *float64 `json:"dividend_yield,omitempty"`
	PayoutRatio   *float64 `json:"payout_ratio,omitempty"`
	GrossMargin   *float64 `json:"gross_margin,omitempty"`
	RDRatio       *float64 `json:"rd_ratio,omitempty"`
	MarketCap     *float64 `json:"market_cap,omitempty"` // 100M CNY
	FloatCap      *float64 `json:"float_cap,omitempty"`  // 100M CNY
}

// Float64Ptr is a convenience constructor for optional fields.
func Float64Ptr(v float64) *float64 {
	return &v
}

// UniverseFilter selects tickers by market and industry tags. The ALL
// token on either axis means no restriction on that axis.
type UniverseFilter struct {
	Markets    []string `json:"markets"`
	Industries []string `json:"industries"`
}

// MatchesMarket reports whether the given market tag passes the filter.
func (f *UniverseFilter) MatchesMarket(market string) bool {
	return matchesAxis(f.Markets, market)
}

// MatchesIndustry reports whether the given industry tag passes the filter.
func (f *UniverseFilter) MatchesIndustry(industry string) bool {
	return matchesAxis(f.Industries, industry)
}

func matchesAxis(tags []string, value string) bool {
	if len(tags) == 0 {
		return true
	}
	for _, t := range tags {
		if t == FilterAll || t == value {
			return true
		}
	}
	return false
}
