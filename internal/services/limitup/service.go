// Package limitup analyzes the daily limit-up cohort: membership,
// industry grouping, seal quality, and cohort strength.
package limitup

import (
	"context"
	"sort"
	"time"

	"github.com/zhquant/ashare/internal/common"
	"github.com/zhquant/ashare/internal/interfaces"
	"github.com/zhquant/ashare/internal/models"
	"github.com/zhquant/ashare/internal/services/overview"
)

// Service implements interfaces.LimitUpService.
type Service struct {
	gateway interfaces.DataGateway
	logger  *common.Logger
	now     func() time.Time
}

// NewService creates a limit-up service.
func NewService(gateway interfaces.DataGateway, logger *common.Logger) *Service {
	if logger == nil {
		logger = common.NewSilentLogger()
	}
	return &Service{gateway: gateway, logger: logger, now: time.Now}
}

// Report builds the day's limit-up cohort analysis.
func (s *Service) Report(ctx context.Context) (*models.LimitUpReport, error) {
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

	snaps, err := s.gateway.FetchSnapshotBatch(ctx, codes)
	if err != nil {
		return nil, err
	}

	report := &models.LimitUpReport{Timestamp: s.now()}
	cohorts := make(map[string][]models.LimitUpEntry)

	for code, snap := range snaps {
		ref := refByCode[code]
		change := snap.PercentChange()
		limit := overview.LimitFor(ref)
		if change < limit-0.2 {
			continue
		}

		// sealed when the close still sits on the session high
		sealed := snap.Close >= snap.High
		entry := models.LimitUpEntry{
			Code:          code,
			Name:          ref.Name,
			Market:        ref.Market,
			Industry:      ref.Industry,
			Close:         snap.Close,
			PercentChange: change,
			TurnoverRate:  snap.TurnoverRate,
			Sealed:        sealed,
		}

		report.Total++
		if sealed {
			report.SealedCount++
		} else {
			report.ReopenCount++
		}
		cohorts[ref.Industry] = append(cohorts[ref.Industry], entry)
	}

	for industry, entries := range cohorts {
		sort.Slice(entries, func(i, j int) bool { return entries[i].Code < entries[j].Code })
		report.ByIndustry = append(report.ByIndustry, models.IndustryCohort{
			Industry: industry,
			Count:    len(entries),
			Entries:  entries,
		})
	}
	sort.Slice(report.ByIndustry, func(i, j int) bool {
		if report.ByIndustry[i].Count != report.ByIndustry[j].Count {
			return report.ByIndustry[i].Count > report.ByIndustry[j].Count
		}
		return report.ByIndustry[i].Industry < report.ByIndustry[j].Industry
	})

	report.StrengthScore = strengthScore(report)
	return report, nil
}

// strengthScore grades the cohort 0-100: breadth of the cohort plus
// seal quality, each capped.
func strengthScore(r *models.LimitUpReport) float64 {
	if r.Total == 0 {
		return 0
	}

	breadth := float64(r.Total)
	if breadth > 60 {
		breadth = 60
	}

	sealQuality := float64(r.SealedCount) / float64(r.Total) * 40

	return breadth + sealQuality
}

// Ensure Service implements the contract
var _ interfaces.LimitUpService = (*Service)(nil)
