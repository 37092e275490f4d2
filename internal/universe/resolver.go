// Package universe translates market/industry filters into deterministic
// ticker lists from the cached reference roster.
package universe

import (
	"context"
	"sort"
	"strings"

	"github.com/zhquant/ashare/internal/common"
	"github.com/zhquant/ashare/internal/interfaces"
	"github.com/zhquant/ashare/internal/models"
)

// suspension and delisting name markers
var excludedMarkers = []string{"ST", "退"}

// Resolver implements interfaces.UniverseResolver.
type Resolver struct {
	gateway interfaces.DataGateway
	logger  *common.Logger
}

// NewResolver creates a resolver over the gateway.
func NewResolver(gateway interfaces.DataGateway, logger *common.Logger) *Resolver {
	if logger == nil {
		logger = common.NewSilentLogger()
	}
	return &Resolver{gateway: gateway, logger: logger}
}

// Resolve returns the deduplicated, code-ascending ticker list matching
// the filter. An empty result is a legal outcome.
func (r *Resolver) Resolve(ctx context.Context, filter models.UniverseFilter) ([]models.TickerRef, error) {
	roster, err := r.gateway.LoadReferenceUniverse(ctx)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(roster))
	out := make([]models.TickerRef, 0, len(roster))
	for _, ref := range roster {
		if excludedName(ref.Name) {
			continue
		}

		market := ref.Market
		if market == "" {
			market = models.MarketFromCode(ref.Code)
		}
		if !filter.MatchesMarket(market) {
			continue
		}
		if !filter.MatchesIndustry(ref.Industry) {
			continue
		}

		if seen[ref.Code] {
			continue
		}
		seen[ref.Code] = true
		out = append(out, ref)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })

	r.logger.Debug().
		Int("roster", len(roster)).
		Int("resolved", len(out)).
		Msg("universe resolved")

	return out, nil
}

func excludedName(name string) bool {
	for _, marker := range excludedMarkers {
		if strings.Contains(name, marker) {
			return true
		}
	}
	return false
}

// Ensure Resolver implements the contract
var _ interfaces.UniverseResolver = (*Resolver)(nil)
