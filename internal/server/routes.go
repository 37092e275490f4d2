package server

import (
	"net/http"
	"runtime"
	"strings"
	"time"

	"github.com/zhquant/ashare/internal/common"
)

// registerRoutes sets up all REST API routes on the mux.
func (s *Server) registerRoutes(mux *http.ServeMux) {
	// System
	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc("/api/version", s.handleVersion)
	mux.HandleFunc("/api/config", s.handleConfig)
	mux.HandleFunc("/api/shutdown", s.handleShutdown)
	mux.HandleFunc("/debug/memstats", s.handleMemstats)

	// Strategies and executions
	mux.HandleFunc("/api/strategies/ws", s.handleExecutionsWS)
	mux.HandleFunc("/api/strategies/", s.routeStrategies)
	mux.HandleFunc("/api/strategies", s.handleStrategyList)
	mux.HandleFunc("/api/executions/", s.routeExecutions)

	// Stocks
	mux.HandleFunc("/api/stocks/", s.routeStocks)

	// Market
	mux.HandleFunc("/api/market/overview", s.handleMarketOverview)
	mux.HandleFunc("/api/market/limitup", s.handleLimitUp)
}

// routeStrategies dispatches /api/strategies/{id} and /api/strategies/{id}/execute.
func (s *Server) routeStrategies(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/strategies/")
	if path == "" {
		s.handleStrategyList(w, r)
		return
	}

	parts := strings.SplitN(path, "/", 2)
	id := parts[0]
	subpath := ""
	if len(parts) > 1 {
		subpath = parts[1]
	}

	switch subpath {
	case "":
		s.handleStrategyGet(w, r, id)
	case "execute":
		s.handleExecutionStart(w, r, id)
	default:
		WriteError(w, http.StatusNotFound, "Not found")
	}
}

// routeExecutions dispatches /api/executions/{id}, /api/executions/{id}/result,
// and /api/executions/{id}/cancel.
func (s *Server) routeExecutions(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/executions/")
	if path == "" {
		WriteError(w, http.StatusBadRequest, "execution id is required in path")
		return
	}

	parts := strings.SplitN(path, "/", 2)
	id := parts[0]
	subpath := ""
	if len(parts) > 1 {
		subpath = parts[1]
	}

	switch subpath {
	case "":
		s.handleExecutionProgress(w, r, id)
	case "result":
		s.handleExecutionResult(w, r, id)
	case "cancel":
		s.handleExecutionCancel(w, r, id)
	default:
		WriteError(w, http.StatusNotFound, "Not found")
	}
}

// routeStocks dispatches /api/stocks/{code}/analysis.
func (s *Server) routeStocks(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/stocks/")
	if path == "" {
		WriteError(w, http.StatusBadRequest, "ticker code is required in path")
		return
	}

	parts := strings.SplitN(path, "/", 2)
	code := parts[0]
	subpath := ""
	if len(parts) > 1 {
		subpath = parts[1]
	}

	switch subpath {
	case "analysis":
		s.handleStockAnalysis(w, r, code)
	default:
		WriteError(w, http.StatusNotFound, "Not found")
	}
}

// --- System handlers ---

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet, http.MethodHead) {
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet, http.MethodHead) {
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{
		"version": common.GetVersion(),
		"build":   common.GetBuild(),
		"commit":  common.GetGitCommit(),
	})
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	cfg := s.app.Config
	hits, misses := s.app.Cache.Stats()

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"environment":          cfg.Environment,
		"logging_level":        cfg.Logging.Level,
		"tushare_configured":   cfg.Providers.Tushare.Token != "",
		"eastmoney_base_url":   cfg.Providers.Eastmoney.BaseURL,
		"cache_size":           cfg.Cache.Size,
		"cache_entries":        s.app.Cache.Len(),
		"cache_hits":           hits,
		"cache_misses":         misses,
		"max_concurrent_jobs":  cfg.Engine.MaxConcurrentJobs,
		"default_worker_count": cfg.Engine.DefaultWorkerCount,
		"job_retention":        cfg.Engine.JobRetention,
		"scheduler_enabled":    cfg.Scheduler.Enabled,
		"uptime":               time.Since(s.app.StartupTime).Round(time.Second).String(),
	})
}

// handleShutdown handles POST /api/shutdown (dev mode only).
func (s *Server) handleShutdown(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	if s.app.Config.IsProduction() {
		WriteError(w, http.StatusForbidden, "Shutdown endpoint disabled in production")
		return
	}

	s.logger.Info().Msg("Shutdown requested via HTTP endpoint")

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Shutting down gracefully...\n"))

	if flusher, ok := w.(http.Flusher); ok {
		flusher.Flush()
	}

	if s.shutdownChan != nil {
		go func() {
			time.Sleep(100 * time.Millisecond)
			s.shutdownChan <- struct{}{}
		}()
	}
}

func (s *Server) handleMemstats(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"heap_alloc_bytes": m.HeapAlloc,
		"heap_inuse_bytes": m.HeapInuse,
		"heap_idle_bytes":  m.HeapIdle,
		"sys_bytes":        m.Sys,
		"num_gc":           m.NumGC,
		"heap_alloc_mb":    float64(m.HeapAlloc) / 1024 / 1024,
		"heap_inuse_mb":    float64(m.HeapInuse) / 1024 / 1024,
		"heap_idle_mb":     float64(m.HeapIdle) / 1024 / 1024,
		"sys_mb":           float64(m.Sys) / 1024 / 1024,
	})
}
