package limitup

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
	return g.snaps, nil
}

func (g *stubGateway) FetchHistory(ctx context.Context, code string, from, to time.Time) ([]models.HistoryBar, error) {
	return nil, nil
}

func (g *stubGateway) FetchFundamentals(ctx context.Context, code string) (*models.Fundamentals, error) {
	return nil, nil
}

func (g *stubGateway) CallCounts() map[string]int64 { return nil }

func limitUpFixture() *stubGateway {
	roster := []models.TickerRef{
		{Code: "600100", Name: "同方股份", Market: models.MarketSH, Board: models.BoardMainSH, Industry: "计算机"},
		{Code: "600200", Name: "江苏吴中", Market: models.MarketSH, Board: models.BoardMainSH, Industry: "计算机"},
		{Code: "000300", Name: "某制造", Market: models.MarketSZ, Board: models.BoardMainSZ, Industry: "机械"},
		{Code: "300400", Name: "某创业", Market: models.MarketSZ, Board: models.BoardGEM, Industry: "机械"},
	}
	snaps := map[string]models.QuoteSnapshot{
		// sealed at the cap: close == high
		"600100": {Code: "600100", PrevClose: 100, Close: 110, High: 110, Volume: 100},
		// reached the cap but reopened: close < high
		"600200": {Code: "600200", PrevClose: 100, Close: 109.9, High: 110, Volume: 100},
		// ordinary gain, not in the cohort
		"000300": {Code: "000300", PrevClose: 100, Close: 104, High: 105, Volume: 100},
		// GEM board needs +20 to join; +10 is not enough
		"300400": {Code: "300400", PrevClose: 100, Close: 110, High: 110, Volume: 100},
	}
	return &stubGateway{roster: roster, snaps: snaps}
}

func TestReport_CohortMembership(t *testing.T) {
	s := NewService(limitUpFixture(), nil)

	report, err := s.Report(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, report.Total)
	assert.Equal(t, 1, report.SealedCount)
	assert.Equal(t, 1, report.ReopenCount)
}

func TestReport_IndustryCohorts(t *testing.T) {
	s := NewService(limitUpFixture(), nil)

	report, err := s.Report(context.Background())
	require.NoError(t, err)

	require.Len(t, report.ByIndustry, 1)
	cohort := report.ByIndustry[0]
	assert.Equal(t, "计算机", cohort.Industry)
	assert.Equal(t, 2, cohort.Count)
	// entries ordered by code
	assert.Equal(t, "600100", cohort.Entries[0].Code)
	assert.Equal(t, "600200", cohort.Entries[1].Code)
	assert.True(t, cohort.Entries[0].Sealed)
	assert.False(t, cohort.Entries[1].Sealed)
}

func TestReport_StrengthScore(t *testing.T) {
	s := NewService(limitUpFixture(), nil)

	report, err := s.Report(context.Background())
	require.NoError(t, err)

	// breadth 2 plus half the cohort sealed: 2 + 20
	assert.InDelta(t, 22, report.StrengthScore, 1e-9)
}

func TestReport_EmptyCohort(t *testing.T) {
	gw := limitUpFixture()
	gw.snaps = map[string]models.QuoteSnapshot{
		"600100": {Code: "600100", PrevClose: 100, Close: 101, High: 102, Volume: 100},
	}
	s := NewService(gw, nil)

	report, err := s.Report(context.Background())
	require.NoError(t, err)

	assert.Zero(t, report.Total)
	assert.Zero(t, report.StrengthScore)
	assert.Empty(t, report.ByIndustry)
}

func TestStrengthScore_BreadthCapped(t *testing.T) {
	r := &models.LimitUpReport{Total: 200, SealedCount: 200}
	assert.InDelta(t, 100, strengthScore(r), 1e-9)
}
