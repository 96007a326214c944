// ABOUTME: HTTP handlers for rule management: list, get, dry-run test, bulk activation.
// ABOUTME: Rule editing is out of band; this surface serves admin listing and diagnostics.
package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/numzhq/automation/internal/engine"
	"github.com/numzhq/automation/internal/store"
)

// ruleResponseBody wraps a rule with its derived success rate.
type ruleResponseBody struct {
	engine.Rule
	SuccessRate float64 `json:"success_rate"`
}

func ruleResponse(r engine.Rule) ruleResponseBody {
	return ruleResponseBody{Rule: r, SuccessRate: r.SuccessRate()}
}

// listRulesHandler handles GET /api/v1/rules.
// Optional query params: trigger_event, is_active, limit.
func (srv *Server) listRulesHandler(w http.ResponseWriter, r *http.Request) {
	var p store.ListRulesParams
	if v := r.URL.Query().Get("trigger_event"); v != "" {
		p.TriggerEvent = &v
	}
	if v := r.URL.Query().Get("is_active"); v != "" {
		active, err := strconv.ParseBool(v)
		if err != nil {
			http.Error(w, "invalid is_active", http.StatusBadRequest)
			return
		}
		p.IsActive = &active
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		p.Limit = limit
	}

	rules, err := srv.store.ListRules(r.Context(), p)
	if err != nil {
		srv.log.ErrorContext(r.Context(), "list rules", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	out := make([]ruleResponseBody, 0, len(rules))
	for _, rule := range rules {
		out = append(out, ruleResponse(rule))
	}
	writeJSON(w, http.StatusOK, map[string]any{"rules": out})
}

// getRuleHandler handles GET /api/v1/rules/{rule_id}.
func (srv *Server) getRuleHandler(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "rule_id"))
	if err != nil {
		http.Error(w, "invalid rule id", http.StatusBadRequest)
		return
	}

	rule, err := srv.store.GetRule(r.Context(), id)
	if err != nil {
		srv.log.ErrorContext(r.Context(), "get rule", "rule_id", id, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if rule == nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, ruleResponse(*rule))
}

// testRuleBody is the JSON request body for POST /api/v1/rules/{rule_id}/test.
type testRuleBody struct {
	TestData map[string]any `json:"test_data"`
}

// testRuleResponseBody mirrors the admin surface's test-rule notification shape.
type testRuleResponseBody struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// testRuleHandler handles POST /api/v1/rules/{rule_id}/test.
// Evaluates the rule's conditions against free-form test data without
// executing actions or writing telemetry.
func (srv *Server) testRuleHandler(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "rule_id"))
	if err != nil {
		http.Error(w, "invalid rule id", http.StatusBadRequest)
		return
	}

	var req testRuleBody
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	rule, err := srv.store.GetRule(r.Context(), id)
	if err != nil {
		srv.log.ErrorContext(r.Context(), "test rule", "rule_id", id, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if rule == nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}

	ok, msg := srv.engine.TestRule(r.Context(), *rule, engine.TriggerContext(req.TestData))
	writeJSON(w, http.StatusOK, testRuleResponseBody{Success: ok, Message: msg})
}

// bulkActiveBody is the JSON request body for POST /api/v1/rules/bulk-active.
type bulkActiveBody struct {
	RuleIDs  []uuid.UUID `json:"rule_ids"`
	IsActive bool        `json:"is_active"`
}

// bulkActiveHandler handles POST /api/v1/rules/bulk-active.
// Toggles is_active on all named rules; the change affects the very next firing.
func (srv *Server) bulkActiveHandler(w http.ResponseWriter, r *http.Request) {
	var req bulkActiveBody
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if len(req.RuleIDs) == 0 {
		http.Error(w, "rule_ids is required", http.StatusBadRequest)
		return
	}

	n, err := srv.store.SetActiveBulk(r.Context(), req.RuleIDs, req.IsActive)
	if err != nil {
		srv.log.ErrorContext(r.Context(), "bulk active", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"updated": n})
}

// executionResponseBody is one execution log entry in API form.
type executionResponseBody struct {
	ID            uuid.UUID       `json:"id"`
	TriggerEvent  string          `json:"trigger_event"`
	TriggerData   json.RawMessage `json:"trigger_data"`
	ConditionsMet bool            `json:"conditions_met"`
	ActionsTaken  json.RawMessage `json:"actions_taken"`
	Success       bool            `json:"success"`
	ErrorMessage  *string         `json:"error_message,omitempty"`
	ExecutionTime *float64        `json:"execution_time,omitempty"`
	CreatedAt     string          `json:"created_at"`
}

// listExecutionsHandler handles GET /api/v1/rules/{rule_id}/executions.
func (srv *Server) listExecutionsHandler(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "rule_id"))
	if err != nil {
		http.Error(w, "invalid rule id", http.StatusBadRequest)
		return
	}

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		limit, err = strconv.Atoi(v)
		if err != nil || limit < 1 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
	}

	execs, err := srv.store.ListExecutions(r.Context(), id, limit)
	if err != nil {
		srv.log.ErrorContext(r.Context(), "list executions", "rule_id", id, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	out := make([]executionResponseBody, 0, len(execs))
	for _, e := range execs {
		out = append(out, executionResponseBody{
			ID:            e.ID,
			TriggerEvent:  e.TriggerEvent,
			TriggerData:   e.TriggerData,
			ConditionsMet: e.ConditionsMet,
			ActionsTaken:  e.ActionsTaken,
			Success:       e.Success,
			ErrorMessage:  e.ErrorMessage,
			ExecutionTime: e.ExecutionTime,
			CreatedAt:     e.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"executions": out})
}
