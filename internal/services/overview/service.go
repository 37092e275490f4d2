// Package overview summarizes whole-market breadth from the reference
// roster and batched snapshots.
package overview

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"

	"github.com/zhquant/ashare/internal/common"
	"github.com/zhquant/ashare/internal/interfaces"
	"github.com/zhquant/ashare/internal/models"
)

const (
	snapshotChunk = 500
	fetchParallel = 4
	leaderCount   = 10
	flatBand      = 0.05 // |change| below this counts as flat
)

// Service implements interfaces.OverviewService.
type Service struct {
	gateway interfaces.DataGateway
	logger  *common.Logger
	now     func() time.Time
}

// NewService creates an overview service.
func NewService(gateway interfaces.DataGateway, logger *common.Logger) *Service {
	if logger == nil {
		logger = common.NewSilentLogger()
	}
	return &Service{gateway: gateway, logger: logger, now: time.Now}
}

// Overview fetches the roster, fans out snapshot batches, and reduces
// them into breadth statistics.
func (s *Service) Overview(ctx context.Context) (*models.MarketOverview, error) {
	roster, err := s.gateway.LoadReferenceUniverse(ctx)
	if err != nil {
		return nil, err
	}

	codes := make([]string, len(roster))
	refByCode := make(map[string]models.TickerRef, len(roster))
	for i, ref := range roster {
		codes[i] = ref.Code
		refByCode[ref.Code] = ref
	}

	snaps, err := s.fetchAll(ctx, codes)
	if err != nil {
		return nil, err
	}

	ov := &models.MarketOverview{
		Timestamp:       s.now(),
		TotalTickers:    len(snaps),
		MarketBreakdown: make(map[string]int),
		ChangeHistogram: newHistogram(),
	}

	changes := make([]float64, 0, len(snaps))
	all := make([]models.QuoteSnapshot, 0, len(snaps))
	for code, snap := range snaps {
		change := snap.PercentChange()
		changes = append(changes, change)
		all = append(all, snap)

		switch {
		case change > flatBand:
			ov.UpCount++
		case change < -flatBand:
			ov.DownCount++
		default:
			ov.FlatCount++
		}

		ref := refByCode[code]
		ov.MarketBreakdown[ref.Market]++

		limit := LimitFor(ref)
		if change >= limit-0.2 {
			ov.LimitUpCount++
		} else if change <= -limit+0.2 {
			ov.LimitDownCount++
		}

		addToHistogram(ov.ChangeHistogram, change)
	}

	if len(changes) > 0 {
		ov.MeanChange = stat.Mean(changes, nil)
		sort.Float64s(changes)
		ov.MedianChange = stat.Quantile(0.5, stat.Empirical, changes, nil)
	}

	sort.Slice(all, func(i, j int) bool { return all[i].Turnover > all[j].Turnover })
	if len(all) > leaderCount {
		all = all[:leaderCount]
	}
	ov.TurnoverLeaders = all

	return ov, nil
}

// fetchAll fans snapshot chunks out over a bounded errgroup.
func (s *Service) fetchAll(ctx context.Context, codes []string) (map[string]models.QuoteSnapshot, error) {
	var mu sync.Mutex
	out := make(map[string]models.QuoteSnapshot, len(codes))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(fetchParallel)

	for start := 0; start < len(codes); start += snapshotChunk {
		end := start + snapshotChunk
		if end > len(codes) {
			end = len(codes)
		}
		chunk := codes[start:end]

		g.Go(func() error {
			snaps, err := s.gateway.FetchSnapshotBatch(ctx, chunk)
			if err != nil {
				return err
			}
			mu.Lock()
			for code, snap := range snaps {
				out[code] = snap
			}
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// LimitFor returns the daily price cap in percent for a ticker: 20 on
// growth boards, 5 on special-treatment names, 30 on the Beijing board,
// 10 otherwise.
func LimitFor(ref models.TickerRef) float64 {
	if strings.Contains(ref.Name, "ST") {
		return 5
	}
	switch ref.Board {
	case models.BoardGEM, models.BoardSTAR:
		return 20
	case models.BoardBeijing:
		return 30
	default:
		return 10
	}
}

func newHistogram() []models.ChangeBucket {
	edges := []float64{-21, -10, -5, -3, -1, 0, 1, 3, 5, 10, 21}
	labels := []string{"<-10", "-10~-5", "-5~-3", "-3~-1", "-1~0", "0~1", "1~3", "3~5", "5~10", ">10"}

	buckets := make([]models.ChangeBucket, len(labels))
	for i := range labels {
		buckets[i] = models.ChangeBucket{Label: labels[i], Min: edges[i], Max: edges[i+1]}
	}
	return buckets
}

func addToHistogram(buckets []models.ChangeBucket, change float64) {
	for i := range buckets {
		if change >= buckets[i].Min && change < buckets[i].Max {
			buckets[i].Count++
			return
		}
	}
	// outside all edges: clamp into the nearest end bucket
	if change < buckets[0].Min {
		buckets[0].Count++
	} else {
		buckets[len(buckets)-1].Count++
	}
}

// Ensure Service implements the contract
var _ interfaces.OverviewService = (*Service)(nil)
