package server

import (
	"errors"
	"net/http"

	"github.com/zhquant/ashare/internal/providers"
)

// handleStockAnalysis handles GET /api/stocks/{code}/analysis.
func (s *Server) handleStockAnalysis(w http.ResponseWriter, r *http.Request, code string) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	analysis, err := s.app.AnalysisService.Analyze(r.Context(), code)
	if err != nil {
		s.writeProviderError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, analysis)
}

// handleMarketOverview handles GET /api/market/overview.
func (s *Server) handleMarketOverview(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	overview, err := s.app.OverviewService.Overview(r.Context())
	if err != nil {
		s.writeProviderError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, overview)
}

// handleLimitUp handles GET /api/market/limitup.
func (s *Server) handleLimitUp(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	report, err := s.app.LimitUpService.Report(r.Context())
	if err != nil {
		s.writeProviderError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, report)
}

// writeProviderError maps data-layer sentinel errors onto HTTP responses.
func (s *Server) writeProviderError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, providers.ErrNotFound):
		WriteErrorWithCode(w, http.StatusNotFound, err.Error(), "not_found")
	case errors.Is(err, providers.ErrRateLimited):
		WriteErrorWithCode(w, http.StatusTooManyRequests, err.Error(), "rate_limited")
	case errors.Is(err, providers.ErrUnavailable), errors.Is(err, providers.ErrMalformed):
		s.logger.Error().Err(err).Msg("upstream data request failed")
		WriteErrorWithCode(w, http.StatusBadGateway, "upstream data unavailable", "upstream_unavailable")
	default:
		s.logger.Error().Err(err).Msg("market request failed")
		WriteError(w, http.StatusInternalServerError, "Internal server error")
	}
}
