package overview

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhquant/ashare/internal/models"
)

type stubGateway struct {
	roster []models.TickerRef
	snaps  map[string]models.QuoteSnapshot
}

func (g *stubGateway) LoadReferenceUniverse(ctx context.Context) ([]models.TickerRef, error) {
	return g.roster, nil
}

func (g *stubGateway) FetchSnapshotBatch(ctx context.Context, codes []string) (map[string]models.QuoteSnapshot, error) {
	out := make(map[string]models.QuoteSnapshot)
	for _, code := range codes {
		if snap, ok := g.snaps[code]; ok {
			out[code] = snap
		}
	}
	return out, nil
}

func (g *stubGateway) FetchHistory(ctx context.Context, code string, from, to time.Time) ([]models.HistoryBar, error) {
	return nil, nil
}

func (g *stubGateway) FetchFundamentals(ctx context.Context, code string) (*models.Fundamentals, error) {
	return nil, nil
}

func (g *stubGateway) CallCounts() map[string]int64 { return nil }

func snapAt(code string, prevClose, close, turnover float64) models.QuoteSnapshot {
	return models.QuoteSnapshot{Code: code, PrevClose: prevClose, Close: close, Turnover: turnover, Volume: 100}
}

func marketFixture() *stubGateway {
	roster := []models.TickerRef{
		{Code: "600036", Name: "招商银行", Market: models.MarketSH, Board: models.BoardMainSH, Industry: "银行"},
		{Code: "000001", Name: "平安银行", Market: models.MarketSZ, Board: models.BoardMainSZ, Industry: "银行"},
		{Code: "300750", Name: "宁德时代", Market: models.MarketSZ, Board: models.BoardGEM, Industry: "电池"},
		{Code: "688981", Name: "中芯国际", Market: models.MarketSH, Board: models.BoardSTAR, Industry: "半导体"},
	}
	snaps := map[string]models.QuoteSnapshot{
		"600036": snapAt("600036", 100, 110, 9e8), // +10%, at the main-board cap
		"000001": snapAt("000001", 100, 97, 5e8),  // -3%
		"300750": snapAt("300750", 100, 100.02, 7e8),
		"688981": snapAt("688981", 100, 120, 3e8), // +20%, at the STAR cap
	}
	return &stubGateway{roster: roster, snaps: snaps}
}

func TestOverview_Breadth(t *testing.T) {
	s := NewService(marketFixture(), nil)

	ov, err := s.Overview(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 4, ov.TotalTickers)
	assert.Equal(t, 2, ov.UpCount)
	assert.Equal(t, 1, ov.DownCount)
	assert.Equal(t, 1, ov.FlatCount)
	assert.Equal(t, 2, ov.MarketBreakdown[models.MarketSH])
	assert.Equal(t, 2, ov.MarketBreakdown[models.MarketSZ])
}

func TestOverview_LimitCounts(t *testing.T) {
	s := NewService(marketFixture(), nil)

	ov, err := s.Overview(context.Background())
	require.NoError(t, err)

	// 600036 at +10 on a 10% board and 688981 at +20 on a 20% board
	assert.Equal(t, 2, ov.LimitUpCount)
	assert.Equal(t, 0, ov.LimitDownCount)
}

func TestOverview_TurnoverLeadersSorted(t *testing.T) {
	s := NewService(marketFixture(), nil)

	ov, err := s.Overview(context.Background())
	require.NoError(t, err)

	require.NotEmpty(t, ov.TurnoverLeaders)
	for i := 1; i < len(ov.TurnoverLeaders); i++ {
		assert.GreaterOrEqual(t, ov.TurnoverLeaders[i-1].Turnover, ov.TurnoverLeaders[i].Turnover)
	}
	assert.Equal(t, "600036", ov.TurnoverLeaders[0].Code)
}

func TestOverview_HistogramCountsEveryTicker(t *testing.T) {
	s := NewService(marketFixture(), nil)

	ov, err := s.Overview(context.Background())
	require.NoError(t, err)

	total := 0
	for _, b := range ov.ChangeHistogram {
		total += b.Count
	}
	assert.Equal(t, ov.TotalTickers, total)
}

func TestLimitFor(t *testing.T) {
	cases := []struct {
		name  string
		ref   models.TickerRef
		limit float64
	}{
		{"main board", models.TickerRef{Board: models.BoardMainSH}, 10},
		{"gem", models.TickerRef{Board: models.BoardGEM}, 20},
		{"star", models.TickerRef{Board: models.BoardSTAR}, 20},
		{"beijing", models.TickerRef{Board: models.BoardBeijing}, 30},
		{"st name", models.TickerRef{Name: "*ST康得", Board: models.BoardMainSZ}, 5},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.limit, LimitFor(tc.ref), tc.name)
	}
}

func TestAddToHistogram_ClampsOutliers(t *testing.T) {
	buckets := newHistogram()
	addToHistogram(buckets, -44)
	addToHistogram(buckets, 44)

	assert.Equal(t, 1, buckets[0].Count)
	assert.Equal(t, 1, buckets[len(buckets)-1].Count)
}
