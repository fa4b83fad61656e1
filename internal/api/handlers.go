package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/user/etymology-service/internal/coordinator"
	"github.com/user/etymology-service/internal/domain"
)

const maxWordsPerRequest = 200

func (s *Server) handleLookup(w http.ResponseWriter, r *http.Request) {
	var req domain.LookupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if len(req.Words) == 0 {
		s.respondWithError(w, http.StatusBadRequest, "Words list cannot be empty")
		return
	}
	if len(req.Words) > maxWordsPerRequest {
		s.respondWithError(w, http.StatusRequestEntityTooLarge, "Too many words in one request")
		return
	}

	runID := uuid.NewString()
	results, err := s.runner.Run(coordinator.ContextWithRunID(r.Context(), runID), req.Words)
	if err != nil {
		s.logger.Warn("lookup run interrupted", zap.Error(err))
		s.respondWithError(w, http.StatusServiceUnavailable, "Lookup canceled before completion")
		return
	}

	s.record(r.Context(), results)
	s.respondWithJSON(w, http.StatusOK, domain.LookupResponse{
		RunID:   runID,
		Results: results,
	})
}

// record saves each distinct result once. Failures to save are logged; the
// caller still gets its results.
func (s *Server) record(ctx context.Context, results map[string]domain.FetchResult) {
	if s.recorder == nil {
		return
	}
	if err := s.recorder.SaveResults(ctx, domain.Distinct(results)); err != nil {
		s.logger.Error("failed to save lookup results", zap.Error(err))
	}
}

func (s *Server) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	healthStatus := map[string]string{"status": "healthy"}
	code := http.StatusOK
	for name, p := range s.checks {
		if err := p.Ping(ctx); err != nil {
			healthStatus[name] = "unhealthy"
			healthStatus["status"] = "unhealthy"
			code = http.StatusServiceUnavailable
			s.logger.Error("health check failed", zap.String("dependency", name), zap.Error(err))
			continue
		}
		healthStatus[name] = "healthy"
	}

	s.respondWithJSON(w, code, healthStatus)
}

// --- Helper Functions ---

func (s *Server) respondWithError(w http.ResponseWriter, code int, message string) {
	s.respondWithJSON(w, code, map[string]string{"error": message})
}

func (s *Server) respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		s.logger.Error("failed to encode response", zap.Error(err))
		code = http.StatusInternalServerError
		response = []byte(`{"error":"Internal server error"}`)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}
