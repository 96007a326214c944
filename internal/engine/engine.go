// ABOUTME: Rule engine orchestrator: fetch candidate rules, match conditions, dispatch actions,
// ABOUTME: record telemetry. One synchronous pass per firing; only repository errors abort.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// RuleSource exposes the active rules for a trigger event, ordered by
// priority descending then creation order ascending. The engine depends only
// on this read contract, not on a specific store.
type RuleSource interface {
	ActiveRulesFor(ctx context.Context, triggerEvent string) ([]Rule, error)
}

// ExecutionRecord is the telemetry written after each evaluated rule on a
// live (non-dry-run) firing.
type ExecutionRecord struct {
	TriggerEvent  string
	TriggerData   TriggerContext
	ConditionsMet bool
	ActionsTaken  []ActionResult
	Success       bool
	ErrorMessage  string
	Duration      time.Duration
	FiredAt       time.Time
}

// Recorder persists execution telemetry: the per-rule counters and the
// execution log row. Implementations must tolerate concurrent firings
// (atomic counter increments).
type Recorder interface {
	RecordExecution(ctx context.Context, rule Rule, rec ExecutionRecord) error
}

// Options controls a single Fire call.
type Options struct {
	// DryRun evaluates conditions through the shared path but dispatches
	// through a recording stub registry and skips all telemetry writes.
	DryRun bool
}

// Engine evaluates automation rules for trigger events. It holds no mutable
// state across firings; concurrent Fire calls are independent.
type Engine struct {
	rules    RuleSource
	recorder Recorder
	registry *Registry
	vocab    Vocabulary
	log      *slog.Logger
}

// New creates an Engine. recorder may be nil when telemetry is not wanted
// (e.g. pure-evaluation tests); a nil registry means every action is unknown.
func New(rules RuleSource, recorder Recorder, registry *Registry, vocab Vocabulary, log *slog.Logger) *Engine {
	if registry == nil {
		registry = NewRegistry()
	}
	if log == nil {
		log = slog.Default()
	}
	return &Engine{rules: rules, recorder: recorder, registry: registry, vocab: vocab, log: log}
}

// Vocabulary returns the engine's trigger/action vocabulary for listing APIs.
func (e *Engine) Vocabulary() Vocabulary { return e.vocab }

// Fire evaluates all active rules for triggerEvent against tc. Rules run in
// priority order; within a rule, actions run in declaration order. Everything
// except a rule-repository failure is converted into the structured result —
// a handler error, an unknown operator, or an unknown action type never
// propagates out of Fire.
func (e *Engine) Fire(ctx context.Context, triggerEvent string, tc TriggerContext, opts Options) (*EngineResult, error) {
	result := &EngineResult{TriggerEvent: triggerEvent, DryRun: opts.DryRun}

	if !e.vocab.HasTrigger(triggerEvent) {
		// Configuration drift between caller and vocabulary. No rule can be
		// bound to an unregistered trigger, so the firing is a no-op.
		e.log.Warn("fire called with unregistered trigger", "trigger", triggerEvent)
	}

	rules, err := e.rules.ActiveRulesFor(ctx, triggerEvent)
	if err != nil {
		return nil, fmt.Errorf("fetch rules for %s: %w", triggerEvent, err)
	}
	if len(rules) == 0 {
		return result, nil
	}

	registry := e.registry
	if opts.DryRun {
		registry = DryRunRegistry(e.registry)
	}

	for i := range rules {
		rr := e.fireRule(ctx, &rules[i], tc, registry, opts.DryRun)
		result.RulesEvaluated++
		if rr.Matched {
			result.RulesMatched++
		}
		if rr.Matched && rr.Success {
			result.RulesSucceeded++
		}
		result.Rules = append(result.Rules, rr)
	}
	return result, nil
}

// fireRule evaluates and, on match, executes a single rule. Telemetry is
// recorded for every evaluated rule on live firings, matching or not, so the
// execution log explains why a rule did nothing.
func (e *Engine) fireRule(ctx context.Context, rule *Rule, tc TriggerContext, registry *Registry, dryRun bool) RuleResult {
	start := time.Now()
	rr := RuleResult{RuleID: rule.ID, RuleName: rule.Name}

	// A rule with no actions is inert: skipped, never an error.
	if len(rule.Actions) == 0 {
		rr.Warnings = append(rr.Warnings, "rule has no actions configured; skipped")
		return rr
	}

	matched, warnings := MatchConditions(rule.Conditions, tc)
	rr.Matched = matched
	rr.Warnings = warnings
	for _, w := range warnings {
		e.log.Warn("rule condition warning", "rule_id", rule.ID, "rule_name", rule.Name, "warning", w)
	}

	if matched {
		rr.Success = true
		for _, action := range rule.Actions {
			ar := registry.Dispatch(ctx, action, tc)
			rr.Actions = append(rr.Actions, ar)
			if !ar.Success {
				rr.Success = false
				e.log.Warn("action failed",
					"rule_id", rule.ID, "action_type", action.Type, "message", ar.Message)
			}
		}
	}

	if !dryRun && e.recorder != nil {
		rec := ExecutionRecord{
			TriggerEvent:  rule.TriggerEvent,
			TriggerData:   tc,
			ConditionsMet: matched,
			ActionsTaken:  rr.Actions,
			Success:       !matched || rr.Success,
			Duration:      time.Since(start),
			FiredAt:       start,
		}
		if matched && !rr.Success {
			rec.ErrorMessage = failureSummary(rr.Actions)
		}
		if err := e.recorder.RecordExecution(ctx, *rule, rec); err != nil {
			// Telemetry failure must not abort the firing or mask action outcomes.
			e.log.Error("record execution", "rule_id", rule.ID, "err", err)
		}
	}
	return rr
}

// failureSummary joins the messages of failed actions for the execution log.
func failureSummary(actions []ActionResult) string {
	msg := ""
	for _, a := range actions {
		if a.Success {
			continue
		}
		if msg != "" {
			msg += "; "
		}
		msg += a.Type + ": " + a.Message
	}
	return msg
}

// TestRule dry-runs a single rule against free-form test data and returns the
// {success, message} shape the admin "test rule" action displays.
func (e *Engine) TestRule(ctx context.Context, rule Rule, testData TriggerContext) (bool, string) {
	if len(rule.Actions) == 0 {
		return true, "Rule has no actions configured. Nothing would be executed."
	}
	matched, warnings := MatchConditions(rule.Conditions, testData)
	msg := "Conditions are not met. No actions would be executed."
	if matched {
		msg = "Conditions are met. Actions would be executed."
	}
	if len(warnings) > 0 {
		msg += " Warning: " + strings.Join(warnings, "; ") + "."
	}
	return true, msg
}
