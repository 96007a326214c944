// ABOUTME: Core types for the automation engine: Rule, Condition, Action, TriggerContext, results.
// ABOUTME: These flow from the rule repository through evaluation into telemetry and the test-rule API.
package engine

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Rule is a single automation policy: when trigger_event fires and all
// conditions hold, execute the configured actions in order. The engine treats
// rules as read-only; creation and editing belong to the admin surface.
type Rule struct {
	ID           uuid.UUID   `json:"id"`
	Name         string      `json:"name"`
	Description  string      `json:"description"`
	TriggerEvent string      `json:"trigger_event"`
	IsActive     bool        `json:"is_active"`
	Priority     int         `json:"priority"`
	Conditions   []Condition `json:"conditions"`
	Actions      []Action    `json:"actions"`

	// Telemetry columns, derived by the engine. Never authoritative input.
	ExecutionCount int        `json:"execution_count"`
	SuccessCount   int        `json:"success_count"`
	LastExecutedAt *time.Time `json:"last_executed_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// SuccessRate returns the historical success percentage for the rule,
// rounded to two decimals. Zero executions yields 0.
func (r Rule) SuccessRate() float64 {
	if r.ExecutionCount == 0 {
		return 0
	}
	rate := float64(r.SuccessCount) / float64(r.ExecutionCount) * 100
	return float64(int(rate*100+0.5)) / 100
}

// Condition is a single (field, operator, value) predicate. Value is always
// stored as a string; coercion to a comparable form happens at evaluation time.
type Condition struct {
	Field    string `json:"field"`
	Operator string `json:"operator"`
	Value    string `json:"value"`
}

// Action is a named, parameterized side effect executed when a rule matches.
type Action struct {
	Type   string            `json:"type"`
	Params map[string]string `json:"params"`
}

// TriggerContext is the ephemeral field/value mapping describing the domain
// object that caused a trigger to fire. It lives for a single Fire call and
// is never persisted by the engine (the execution log stores a JSON copy).
type TriggerContext map[string]any

// Resolve looks up a dotted field path in the context. A literal key match is
// tried first so flat contexts with dots in key names (admin test data) keep
// working; otherwise each path segment descends into a nested map.
func (tc TriggerContext) Resolve(path string) (any, bool) {
	if v, ok := tc[path]; ok {
		return v, true
	}
	segs := strings.Split(path, ".")
	var cur any = map[string]any(tc)
	for _, seg := range segs {
		switch m := cur.(type) {
		case map[string]any:
			v, ok := m[seg]
			if !ok {
				return nil, false
			}
			cur = v
		case TriggerContext:
			v, ok := m[seg]
			if !ok {
				return nil, false
			}
			cur = v
		case map[string]string:
			v, ok := m[seg]
			if !ok {
				return nil, false
			}
			cur = v
		default:
			return nil, false
		}
	}
	return cur, true
}

// ActionResult is the outcome of dispatching one action.
type ActionResult struct {
	Type    string `json:"type"`
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// RuleResult is the per-rule outcome of one firing.
type RuleResult struct {
	RuleID   uuid.UUID      `json:"rule_id"`
	RuleName string         `json:"rule_name"`
	Matched  bool           `json:"matched"`
	Success  bool           `json:"success"`
	Actions  []ActionResult `json:"actions_executed,omitempty"`
	Warnings []string       `json:"warnings,omitempty"`
	Error    string         `json:"error,omitempty"`
}

// EngineResult is the aggregate outcome of one Fire call.
type EngineResult struct {
	TriggerEvent   string       `json:"trigger_event"`
	DryRun         bool         `json:"dry_run"`
	RulesEvaluated int          `json:"rules_evaluated"`
	RulesMatched   int          `json:"rules_matched"`
	RulesSucceeded int          `json:"rules_executed_successfully"`
	Rules          []RuleResult `json:"rules"`
}
