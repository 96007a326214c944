// ABOUTME: HTTP handler for event ingestion: POST /api/v1/events fires the rule engine.
// ABOUTME: The response is the structured firing result, one entry per evaluated rule.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/numzhq/automation/internal/engine"
)

// fireEventBody is the JSON request body for POST /api/v1/events.
type fireEventBody struct {
	Event  string         `json:"event"`
	Data   map[string]any `json:"data"`
	DryRun bool           `json:"dry_run"`
}

// fireEventHandler handles POST /api/v1/events.
// Fires all active rules bound to the event against the supplied data.
func (srv *Server) fireEventHandler(w http.ResponseWriter, r *http.Request) {
	var req fireEventBody
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Event == "" {
		http.Error(w, "event is required", http.StatusBadRequest)
		return
	}
	if !srv.engine.Vocabulary().HasTrigger(req.Event) {
		http.Error(w, "unknown trigger event", http.StatusBadRequest)
		return
	}

	tc := engine.TriggerContext(req.Data)
	if tc == nil {
		tc = engine.TriggerContext{}
	}
	// Stamp the event name into the trigger data so action handlers (and
	// webhook consumers) can see which event fired without extra plumbing.
	if _, exists := tc["event"]; !exists {
		tc["event"] = req.Event
	}

	result, err := srv.engine.Fire(r.Context(), req.Event, tc, engine.Options{DryRun: req.DryRun})
	if err != nil {
		srv.log.ErrorContext(r.Context(), "fire event", "event", req.Event, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, result)
}
