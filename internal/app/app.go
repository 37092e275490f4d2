// Package app wires configuration, providers, the gateway, and all
// services into a single shared core used by cmd/ashare-server.
package app

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/zhquant/ashare/internal/cache"
	"github.com/zhquant/ashare/internal/common"
	"github.com/zhquant/ashare/internal/engine"
	"github.com/zhquant/ashare/internal/gateway"
	"github.com/zhquant/ashare/internal/interfaces"
	"github.com/zhquant/ashare/internal/providers/eastmoney"
	"github.com/zhquant/ashare/internal/providers/tushare"
	"github.com/zhquant/ashare/internal/services/analysis"
	"github.com/zhquant/ashare/internal/services/limitup"
	"github.com/zhquant/ashare/internal/services/overview"
	"github.com/zhquant/ashare/internal/strategy"
	"github.com/zhquant/ashare/internal/universe"
)

// App holds all initialized services and shared infrastructure.
type App struct {
	Config          *common.Config
	Logger          *common.Logger
	Cache           *cache.Cache
	Gateway         interfaces.DataGateway
	Resolver        interfaces.UniverseResolver
	Registry        interfaces.StrategyRegistry
	Engine          *engine.Engine
	AnalysisService interfaces.AnalysisService
	OverviewService interfaces.OverviewService
	LimitUpService  interfaces.LimitUpService
	StartupTime     time.Time

	scheduler *Scheduler
}

// getBinaryDir returns the directory containing the executable.
func getBinaryDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	return filepath.Dir(exe)
}

// NewApp initializes configuration, clients, the gateway, and services.
// configPath may be empty, in which case the default resolution logic is used.
func NewApp(configPath string) (*App, error) {
	startupStart := time.Now()

	// Config resolution: provided path, ASHARE_CONFIG, binary dir, then dev fallback
	if configPath == "" {
		configPath = os.Getenv("ASHARE_CONFIG")
	}
	if configPath == "" {
		configPath = filepath.Join(getBinaryDir(), "ashare.toml")
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			configPath = "config/ashare.toml"
		}
	}

	config, err := common.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger := common.NewLogger(config.Logging.Level)

	primary := tushare.NewClient(config.Providers.Tushare.Token,
		tushare.WithBaseURL(config.Providers.Tushare.BaseURL),
		tushare.WithTimeout(config.Providers.Tushare.GetTimeout()),
		tushare.WithLogger(logger),
	)
	secondary := eastmoney.NewClient(
		eastmoney.WithBaseURL(config.Providers.Eastmoney.BaseURL),
		eastmoney.WithTimeout(config.Providers.Eastmoney.GetTimeout()),
		eastmoney.WithLogger(logger),
	)

	quoteCache := cache.New(config.Cache.Size)

	gw := gateway.New(primary, secondary,
		gateway.WithLogger(logger),
		gateway.WithCache(quoteCache),
		gateway.WithRateLimits(config.Providers.Tushare.RateLimit, config.Providers.Eastmoney.RateLimit),
		gateway.WithTTLs(gateway.TTLs{
			Reference:    config.Cache.GetTTLReference(),
			Snapshot:     config.Cache.GetTTLSnapshot(),
			History:      config.Cache.GetTTLHistory(),
			Fundamentals: config.Cache.GetTTLFundamentals(),
		}),
	)

	resolver := universe.NewResolver(gw, logger)
	registry := strategy.NewDefaultRegistry()

	eng := engine.New(gw, resolver, registry,
		engine.WithLogger(logger),
		engine.WithConfig(engine.Config{
			DefaultWorkers:    config.Engine.DefaultWorkerCount,
			MaxWorkers:        config.Engine.MaxWorkerCount,
			MaxConcurrentJobs: config.Engine.MaxConcurrentJobs,
			JobRetention:      config.Engine.JobRetention,
		}),
	)

	a := &App{
		Config:          config,
		Logger:          logger,
		Cache:           quoteCache,
		Gateway:         gw,
		Resolver:        resolver,
		Registry:        registry,
		Engine:          eng,
		AnalysisService: analysis.NewService(gw, logger),
		OverviewService: overview.NewService(gw, logger),
		LimitUpService:  limitup.NewService(gw, logger),
		StartupTime:     startupStart,
	}

	logger.Info().Dur("startup", time.Since(startupStart)).Msg("App initialized")

	return a, nil
}

// StartScheduler launches the cron-driven background refresh when enabled.
func (a *App) StartScheduler() {
	if !a.Config.Scheduler.Enabled {
		a.Logger.Info().Msg("Scheduler disabled")
		return
	}

	sched, err := NewScheduler(a.Config.Scheduler, a.Gateway, a.Cache, a.Logger)
	if err != nil {
		a.Logger.Warn().Err(err).Msg("Scheduler failed to start")
		return
	}
	a.scheduler = sched
	a.scheduler.Start()
}

// Close releases all resources held by the App.
// Shutdown order: stop scheduler, then drain the engine.
func (a *App) Close() {
	if a.scheduler != nil {
		a.scheduler.Stop()
		a.scheduler = nil
	}
	if a.Engine != nil {
		a.Engine.Close()
	}
}
