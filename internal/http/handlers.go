package http

import (
	"errors"
	"net/http"
	"time"

	"budgetboard/internal/dashboard"
	"budgetboard/internal/log"
	"budgetboard/internal/services"
)

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
	}).Write(w)
}

// handleReady reports ready once a dataset is loaded.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ds, err := s.datasets.Current()
	if err != nil {
		ErrorResponse(http.StatusServiceUnavailable, CodeNotReady, err.Error()).
			Header("Retry-After", "5").
			Write(w)
		return
	}
	NewJSONResponse().Body(map[string]any{
		"status":    "ready",
		"source":    ds.Source,
		"records":   ds.Len(),
		"loaded_at": ds.LoadedAt.Format(time.RFC3339),
		"sessions":  s.sessions.Count(),
	}).Write(w)
}

func (s *Server) handleDimensions(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(map[string]any{
		"dimensions": dashboard.Dimensions(),
	}).Write(w)
}

// writeError logs err at a level matching its response and writes it.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error, operation string) {
	resp := ErrorFor(err)
	if resp.statusCode >= http.StatusInternalServerError && !errors.Is(err, services.ErrDatasetNotLoaded) {
		s.events.LogError(r.Context(), "Request failed", err, operation, log.NewFields().
			WithHTTPRequest(r.Method, r.URL.Path, "", "", ""))
	} else {
		log.FromContext(r.Context()).DebugContext(r.Context(), "Request rejected",
			log.FieldOperation, operation,
			log.FieldStatusCode, resp.statusCode,
			log.FieldError, err.Error())
	}
	resp.Write(w)
}
