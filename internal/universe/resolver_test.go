package universe

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhquant/ashare/internal/models"
)

// rosterGateway serves a fixed roster; the other operations are unused.
type rosterGateway struct {
	roster []models.TickerRef
	err    error
}

func (g *rosterGateway) LoadReferenceUniverse(ctx context.Context) ([]models.TickerRef, error) {
	return g.roster, g.err
}

func (g *rosterGateway) FetchSnapshotBatch(ctx context.Context, codes []string) (map[string]models.QuoteSnapshot, error) {
	return nil, nil
}

func (g *rosterGateway) FetchHistory(ctx context.Context, code string, from, to time.Time) ([]models.HistoryBar, error) {
	return nil, nil
}

func (g *rosterGateway) FetchFundamentals(ctx context.Context, code string) (*models.Fundamentals, error) {
	return nil, nil
}

func (g *rosterGateway) CallCounts() map[string]int64 { return nil }

func testRoster() []models.TickerRef {
	return []models.TickerRef{
		{Code: "600519", Name: "贵州茅台", Market: models.MarketSH, Industry: "白酒"},
		{Code: "000001", Name: "平安银行", Market: models.MarketSZ, Industry: "银行"},
		{Code: "600036", Name: "招商银行", Market: models.MarketSH, Industry: "银行"},
		{Code: "600036", Name: "招商银行", Market: models.MarketSH, Industry: "银行"}, // duplicate
		{Code: "002450", Name: "*ST康得", Market: models.MarketSZ, Industry: "材料"},
		{Code: "600401", Name: "退市海润", Market: models.MarketSH, Industry: "电力"},
		{Code: "832566", Name: "梓橦宫", Market: models.MarketBJ, Industry: "医药"},
	}
}

func TestResolver_ExcludesSTAndDelisted(t *testing.T) {
	r := NewResolver(&rosterGateway{roster: testRoster()}, nil)

	out, err := r.Resolve(context.Background(), models.UniverseFilter{})
	require.NoError(t, err)

	for _, ref := range out {
		assert.NotContains(t, ref.Name, "ST")
		assert.NotContains(t, ref.Name, "退")
	}
	assert.Len(t, out, 4)
}

func TestResolver_DeduplicatesAndSorts(t *testing.T) {
	r := NewResolver(&rosterGateway{roster: testRoster()}, nil)

	out, err := r.Resolve(context.Background(), models.UniverseFilter{})
	require.NoError(t, err)

	codes := make([]string, len(out))
	for i, ref := range out {
		codes[i] = ref.Code
	}
	assert.Equal(t, []string{"000001", "600036", "600519", "832566"}, codes)
}

func TestResolver_MarketFilter(t *testing.T) {
	r := NewResolver(&rosterGateway{roster: testRoster()}, nil)

	out, err := r.Resolve(context.Background(), models.UniverseFilter{Markets: []string{models.MarketSH}})
	require.NoError(t, err)

	assert.Len(t, out, 2)
	for _, ref := range out {
		assert.Equal(t, models.MarketSH, ref.Market)
	}
}

func TestResolver_IndustryFilter(t *testing.T) {
	r := NewResolver(&rosterGateway{roster: testRoster()}, nil)

	out, err := r.Resolve(context.Background(), models.UniverseFilter{Industries: []string{"银行"}})
	require.NoError(t, err)

	assert.Len(t, out, 2)
	for _, ref := range out {
		assert.Equal(t, "银行", ref.Industry)
	}
}

func TestResolver_AllTagMatchesEverything(t *testing.T) {
	r := NewResolver(&rosterGateway{roster: testRoster()}, nil)

	all, err := r.Resolve(context.Background(), models.UniverseFilter{Markets: []string{models.FilterAll}})
	require.NoError(t, err)
	unfiltered, err := r.Resolve(context.Background(), models.UniverseFilter{})
	require.NoError(t, err)

	assert.Equal(t, unfiltered, all)
}

func TestResolver_EmptyResultIsLegal(t *testing.T) {
	r := NewResolver(&rosterGateway{roster: testRoster()}, nil)

	out, err := r.Resolve(context.Background(), models.UniverseFilter{Industries: []string{"不存在"}})
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestResolver_GatewayErrorPropagates(t *testing.T) {
	boom := errors.New("roster unavailable")
	r := NewResolver(&rosterGateway{err: boom}, nil)

	_, err := r.Resolve(context.Background(), models.UniverseFilter{})
	require.ErrorIs(t, err, boom)
}
