package server

import (
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/zhquant/ashare/internal/engine"
	"github.com/zhquant/ashare/internal/models"
)

// handleExecutionStart handles POST /api/strategies/{id}/execute.
func (s *Server) handleExecutionStart(w http.ResponseWriter, r *http.Request, strategyID string) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req models.ExecutionRequest
	if r.ContentLength != 0 {
		if !DecodeJSON(w, r, &req) {
			return
		}
	}
	req.StrategyID = strategyID

	if err := s.validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			WriteErrorWithCode(w, http.StatusBadRequest, "invalid request: "+verrs[0].Error(), "invalid_parameters")
			return
		}
		WriteErrorWithCode(w, http.StatusBadRequest, "invalid request: "+err.Error(), "invalid_parameters")
		return
	}

	id, err := s.app.Engine.Start(r.Context(), req)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}

	WriteJSON(w, http.StatusAccepted, map[string]string{
		"execution_id": id,
		"state":        models.JobStatePending,
	})
}

// handleExecutionProgress handles GET /api/executions/{id}.
func (s *Server) handleExecutionProgress(w http.ResponseWriter, r *http.Request, id string) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	view, err := s.app.Engine.Progress(id)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, view)
}

// handleExecutionResult handles GET /api/executions/{id}/result.
func (s *Server) handleExecutionResult(w http.ResponseWriter, r *http.Request, id string) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	result, err := s.app.Engine.Result(id)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, result)
}

// handleExecutionCancel handles POST /api/executions/{id}/cancel.
func (s *Server) handleExecutionCancel(w http.ResponseWriter, r *http.Request, id string) {
	if !RequireMethod(w, r, http.MethodPost, http.MethodDelete) {
		return
	}

	if err := s.app.Engine.Cancel(id); err != nil {
		s.writeEngineError(w, err)
		return
	}
	WriteJSON(w, http.StatusAccepted, map[string]string{
		"execution_id": id,
		"state":        "cancelling",
	})
}

// handleExecutionsWS upgrades to a WebSocket feed of job lifecycle events.
func (s *Server) handleExecutionsWS(w http.ResponseWriter, r *http.Request) {
	s.app.Engine.Hub().ServeWS(w, r)
}

// writeEngineError maps engine sentinel errors onto HTTP responses.
func (s *Server) writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, engine.ErrUnknownStrategy):
		WriteErrorWithCode(w, http.StatusNotFound, err.Error(), "unknown_strategy")
	case errors.Is(err, engine.ErrInvalidParameters):
		WriteErrorWithCode(w, http.StatusBadRequest, err.Error(), "invalid_parameters")
	case errors.Is(err, engine.ErrBadFilter):
		WriteErrorWithCode(w, http.StatusBadRequest, err.Error(), "bad_filter")
	case errors.Is(err, engine.ErrCapacityExceeded):
		WriteErrorWithCode(w, http.StatusTooManyRequests, err.Error(), "capacity_exceeded")
	case errors.Is(err, engine.ErrNotFound):
		WriteErrorWithCode(w, http.StatusNotFound, err.Error(), "execution_not_found")
	case errors.Is(err, engine.ErrNotReady):
		WriteErrorWithCode(w, http.StatusConflict, err.Error(), "execution_not_finished")
	case errors.Is(err, engine.ErrAlreadyTerminal):
		WriteErrorWithCode(w, http.StatusConflict, err.Error(), "execution_already_terminal")
	default:
		s.logger.Error().Err(err).Msg("execution request failed")
		WriteError(w, http.StatusInternalServerError, "Internal server error")
	}
}
