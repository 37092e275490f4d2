package models

import "testing"

func TestMarketFromCode(t *testing.T) {
	cases := []struct {
		code string
		want string
	}{
		{"600036", MarketSH},
		{"601318", MarketSH},
		{"603259", MarketSH},
		{"605117", MarketSH},
		{"688981", MarketSH},
		{"000001", MarketSZ},
		{"001979", MarketSZ},
		{"002415", MarketSZ},
		{"003816", MarketSZ},
		{"300750", MarketSZ},
		{"832566", MarketBJ},
		{"430047", MarketBJ},
		{"999999", ""},
		{"60003", ""}, // five digits
		{"", ""},
	}
	for _, tc := range cases {
		if got := MarketFromCode(tc.code); got != tc.want {
			t.Errorf("MarketFromCode(%q) = %q, want %q", tc.code, got, tc.want)
		}
	}
}

func TestBoardFromCode(t *testing.T) {
	cases := []struct {
		code string
		want string
	}{
		{"600036", BoardMainSH},
		{"688981", BoardSTAR},
		{"000001", BoardMainSZ},
		{"300750", BoardGEM},
		{"832566", BoardBeijing},
		{"999999", ""},
	}
	for _, tc := range cases {
		if got := BoardFromCode(tc.code); got != tc.want {
			t.Errorf("BoardFromCode(%q) = %q, want %q", tc.code, got, tc.want)
		}
	}
}

func TestQuoteSnapshot_PercentChange(t *testing.T) {
	s := QuoteSnapshot{Close: 110, PrevClose: 100}
	if got := s.PercentChange(); got != 10 {
		t.Errorf("PercentChange = %v, want 10", got)
	}

	s = QuoteSnapshot{Close: 110, PrevClose: 0}
	if got := s.PercentChange(); got != 0 {
		t.Errorf("PercentChange with zero prev close = %v, want 0", got)
	}
}

func TestUniverseFilter_Matching(t *testing.T) {
	f := UniverseFilter{Markets: []string{MarketSH}, Industries: []string{"银行"}}

	if !f.MatchesMarket(MarketSH) {
		t.Error("SH should match")
	}
	if f.MatchesMarket(MarketSZ) {
		t.Error("SZ should not match")
	}
	if !f.MatchesIndustry("银行") {
		t.Error("listed industry should match")
	}
	if f.MatchesIndustry("白酒") {
		t.Error("unlisted industry should not match")
	}
}

func TestUniverseFilter_EmptyAndAllMatchEverything(t *testing.T) {
	empty := UniverseFilter{}
	if !empty.MatchesMarket(MarketBJ) || !empty.MatchesIndustry("任意") {
		t.Error("empty filter should match everything")
	}

	all := UniverseFilter{Markets: []string{FilterAll}, Industries: []string{FilterAll}}
	if !all.MatchesMarket(MarketSZ) || !all.MatchesIndustry("任意") {
		t.Error("ALL wildcard should match everything")
	}
}
