package app

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/zhquant/ashare/internal/cache"
	"github.com/zhquant/ashare/internal/common"
	"github.com/zhquant/ashare/internal/interfaces"
)

const refreshTimeout = 5 * time.Minute

// Scheduler refreshes the reference universe on a cron schedule so the
// first strategy execution of the session does not pay the roster fetch.
type Scheduler struct {
	cron    *cron.Cron
	gateway interfaces.DataGateway
	cache   *cache.Cache
	logger  *common.Logger
}

// NewScheduler builds the cron scheduler from config.
func NewScheduler(cfg common.SchedulerConfig, gateway interfaces.DataGateway, quoteCache *cache.Cache, logger *common.Logger) (*Scheduler, error) {
	s := &Scheduler{
		cron:    cron.New(cron.WithSeconds()),
		gateway: gateway,
		cache:   quoteCache,
		logger:  logger,
	}

	if _, err := s.cron.AddFunc(cfg.UniverseSpec, s.refreshUniverse); err != nil {
		return nil, err
	}

	return s, nil
}

// Start launches the cron loop in its own goroutine.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info().Msg("Scheduler started")
}

// Stop halts the cron loop and waits for a running job to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info().Msg("Scheduler stopped")
}

// refreshUniverse invalidates the cached roster and reloads it.
func (s *Scheduler) refreshUniverse() {
	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
	defer cancel()

	s.cache.Invalidate(cache.Key("reference"))

	roster, err := s.gateway.LoadReferenceUniverse(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Universe refresh failed")
		return
	}

	s.logger.Info().
		Int("tickers", len(roster)).
		Dur("elapsed", time.Since(start)).
		Msg("Universe refresh complete")
}
