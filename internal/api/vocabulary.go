// ABOUTME: HTTP handlers for the rule-building vocabulary and execution statistics.
// ABOUTME: These back the admin rule editor's dropdowns and the dashboard widgets.
package api

import (
	"net/http"
	"time"

	"github.com/numzhq/automation/internal/engine"
)

// vocabularyHandler handles GET /api/v1/vocabulary.
// Returns the trigger events, action types, and condition operators rules
// can be built from, with display labels.
func (srv *Server) vocabularyHandler(w http.ResponseWriter, r *http.Request) {
	vocab := srv.engine.Vocabulary()
	writeJSON(w, http.StatusOK, map[string]any{
		"triggers":  vocab.Triggers(),
		"actions":   vocab.Actions(),
		"operators": engine.Operators(),
	})
}

// statisticsHandler handles GET /api/v1/statistics.
// Optional query params start and end (RFC 3339) bound the aggregation window.
func (srv *Server) statisticsHandler(w http.ResponseWriter, r *http.Request) {
	var start, end *time.Time
	if v := r.URL.Query().Get("start"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			http.Error(w, "invalid start", http.StatusBadRequest)
			return
		}
		start = &t
	}
	if v := r.URL.Query().Get("end"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			http.Error(w, "invalid end", http.StatusBadRequest)
			return
		}
		end = &t
	}

	stats, err := srv.store.GetStatistics(r.Context(), start, end)
	if err != nil {
		srv.log.ErrorContext(r.Context(), "statistics", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
