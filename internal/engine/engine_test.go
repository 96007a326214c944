// ABOUTME: Unit tests for the engine orchestrator: ordering, partial failure, dry run,
// ABOUTME: repository errors, telemetry recording, and the test-rule message shape.
package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

// memorySource serves a fixed rule set, pre-sorted the way the repository
// contract requires (priority DESC, creation order ASC).
type memorySource struct {
	rules []Rule
	err   error
}

func (s *memorySource) ActiveRulesFor(_ context.Context, trigger string) ([]Rule, error) {
	if s.err != nil {
		return nil, s.err
	}
	var out []Rule
	for _, r := range s.rules {
		if r.TriggerEvent == trigger && r.IsActive {
			out = append(out, r)
		}
	}
	return out, nil
}

// memoryRecorder accumulates execution records in memory.
type memoryRecorder struct {
	records []ExecutionRecord
	names   []string
}

func (m *memoryRecorder) RecordExecution(_ context.Context, rule Rule, rec ExecutionRecord) error {
	m.records = append(m.records, rec)
	m.names = append(m.names, rule.Name)
	return nil
}

func testVocab() Vocabulary {
	return NewVocabulary(
		map[string]string{"invoice.overdue": "Invoice Overdue", "order.created": "Order Created"},
		map[string]string{"send_email": "Send Email", "change_status": "Update Status"},
	)
}

func mkRule(name, trigger string, priority int, created time.Time, conds []Condition, actions []Action) Rule {
	return Rule{
		ID:           uuid.New(),
		Name:         name,
		TriggerEvent: trigger,
		IsActive:     true,
		Priority:     priority,
		Conditions:   conds,
		Actions:      actions,
		CreatedAt:    created,
	}
}

func sendEmail() []Action {
	return []Action{{Type: "send_email", Params: map[string]string{"template": "overdue_reminder"}}}
}

func TestFire_EndToEnd(t *testing.T) {
	t.Parallel()
	src := &memorySource{rules: []Rule{
		mkRule("overdue reminder", "invoice.overdue", 5, time.Now(),
			[]Condition{{Field: "days_overdue", Operator: OpGreaterOrEqual, Value: "7"}},
			sendEmail()),
	}}
	rec := &memoryRecorder{}
	reg := NewRegistry()
	reg.Register("send_email", NoopHandler)

	e := New(src, rec, reg, testVocab(), nil)
	res, err := e.Fire(context.Background(), "invoice.overdue",
		TriggerContext{"days_overdue": 10, "amount": 250}, Options{})
	if err != nil {
		t.Fatalf("Fire: %v", err)
	}
	if res.RulesEvaluated != 1 || res.RulesMatched != 1 || res.RulesSucceeded != 1 {
		t.Errorf("counts = %d/%d/%d, want 1/1/1",
			res.RulesEvaluated, res.RulesMatched, res.RulesSucceeded)
	}
	if len(rec.records) != 1 || !rec.records[0].Success || !rec.records[0].ConditionsMet {
		t.Errorf("telemetry record = %+v, want one successful matched record", rec.records)
	}
}

func TestFire_NoRulesIsNormal(t *testing.T) {
	t.Parallel()
	e := New(&memorySource{}, &memoryRecorder{}, NewRegistry(), testVocab(), nil)
	res, err := e.Fire(context.Background(), "invoice.overdue", TriggerContext{}, Options{})
	if err != nil {
		t.Fatalf("no applicable rules must not be an error: %v", err)
	}
	if res.RulesEvaluated != 0 || len(res.Rules) != 0 {
		t.Errorf("expected empty result, got %+v", res)
	}
}

func TestFire_RepositoryErrorAborts(t *testing.T) {
	t.Parallel()
	e := New(&memorySource{err: errors.New("storage unavailable")}, nil, NewRegistry(), testVocab(), nil)
	_, err := e.Fire(context.Background(), "invoice.overdue", TriggerContext{}, Options{})
	if err == nil {
		t.Fatal("repository failure must abort the firing")
	}
}

func TestFire_OrderFollowsRepository(t *testing.T) {
	t.Parallel()
	base := time.Now()
	// Source order encodes priority 10, A@5, B@5, 1 — the repository contract.
	src := &memorySource{rules: []Rule{
		mkRule("p10", "order.created", 10, base, nil, sendEmail()),
		mkRule("A", "order.created", 5, base.Add(time.Second), nil, sendEmail()),
		mkRule("B", "order.created", 5, base.Add(2*time.Second), nil, sendEmail()),
		mkRule("p1", "order.created", 1, base, nil, sendEmail()),
	}}
	rec := &memoryRecorder{}
	reg := NewRegistry()
	reg.Register("send_email", NoopHandler)

	e := New(src, rec, reg, testVocab(), nil)
	res, err := e.Fire(context.Background(), "order.created", TriggerContext{}, Options{})
	if err != nil {
		t.Fatalf("Fire: %v", err)
	}
	want := []string{"p10", "A", "B", "p1"}
	for i, name := range want {
		if res.Rules[i].RuleName != name {
			t.Fatalf("rule order = %v, want %v", ruleNames(res), want)
		}
	}
	// Telemetry is written in the same order.
	for i, name := range want {
		if rec.names[i] != name {
			t.Fatalf("telemetry order = %v, want %v", rec.names, want)
		}
	}
}

func ruleNames(res *EngineResult) []string {
	out := make([]string, len(res.Rules))
	for i, r := range res.Rules {
		out[i] = r.RuleName
	}
	return out
}

func TestFire_PartialActionFailure(t *testing.T) {
	t.Parallel()
	src := &memorySource{rules: []Rule{
		mkRule("two actions", "order.created", 0, time.Now(), nil, []Action{
			{Type: "send_email"},
			{Type: "change_status"},
		}),
	}}
	rec := &memoryRecorder{}
	reg := NewRegistry()
	reg.Register("send_email", NoopHandler)
	reg.Register("change_status", func(context.Context, map[string]string, TriggerContext) error {
		return errors.New("db constraint violated")
	})

	e := New(src, rec, reg, testVocab(), nil)
	res, err := e.Fire(context.Background(), "order.created", TriggerContext{}, Options{})
	if err != nil {
		t.Fatalf("Fire: %v", err)
	}

	rr := res.Rules[0]
	if !rr.Matched || rr.Success {
		t.Errorf("matched=%v success=%v, want matched and overall failure", rr.Matched, rr.Success)
	}
	if len(rr.Actions) != 2 {
		t.Fatalf("actions executed = %d, want 2 (failure must not stop later actions)", len(rr.Actions))
	}
	if !rr.Actions[0].Success || rr.Actions[1].Success {
		t.Errorf("action outcomes = %+v, want [success, failure]", rr.Actions)
	}
	if res.RulesSucceeded != 0 {
		t.Errorf("RulesSucceeded = %d, want 0", res.RulesSucceeded)
	}
	if rec.records[0].Success {
		t.Error("telemetry must record the partial failure")
	}
	if rec.records[0].ErrorMessage == "" {
		t.Error("telemetry must carry the failure detail")
	}
}

func TestFire_UnknownActionTypeNeverThrows(t *testing.T) {
	t.Parallel()
	src := &memorySource{rules: []Rule{
		mkRule("bad action", "order.created", 5, time.Now(), nil,
			[]Action{{Type: "does_not_exist"}}),
		mkRule("good rule", "order.created", 1, time.Now(), nil, sendEmail()),
	}}
	reg := NewRegistry()
	reg.Register("send_email", NoopHandler)

	e := New(src, &memoryRecorder{}, reg, testVocab(), nil)
	res, err := e.Fire(context.Background(), "order.created", TriggerContext{}, Options{})
	if err != nil {
		t.Fatalf("Fire must complete normally: %v", err)
	}
	if res.Rules[0].Success {
		t.Error("rule with unknown action type must fail")
	}
	if !res.Rules[1].Success {
		t.Error("the other rule in the batch must still execute")
	}
}

func TestFire_UnknownOperatorNeverThrows(t *testing.T) {
	t.Parallel()
	src := &memorySource{rules: []Rule{
		mkRule("bad op", "order.created", 5, time.Now(),
			[]Condition{{Field: "amount", Operator: "frobnicate", Value: "1"}},
			sendEmail()),
	}}
	reg := NewRegistry()
	reg.Register("send_email", NoopHandler)

	e := New(src, &memoryRecorder{}, reg, testVocab(), nil)
	res, err := e.Fire(context.Background(), "order.created", TriggerContext{"amount": 1}, Options{})
	if err != nil {
		t.Fatalf("Fire must complete normally: %v", err)
	}
	if res.Rules[0].Matched {
		t.Error("unknown operator must evaluate false")
	}
	if len(res.Rules[0].Warnings) == 0 {
		t.Error("configuration warning must be surfaced in the result")
	}
}

func TestFire_ZeroActionRuleSkipped(t *testing.T) {
	t.Parallel()
	src := &memorySource{rules: []Rule{
		mkRule("inert", "order.created", 0, time.Now(), nil, nil),
	}}
	rec := &memoryRecorder{}
	e := New(src, rec, NewRegistry(), testVocab(), nil)
	res, err := e.Fire(context.Background(), "order.created", TriggerContext{}, Options{})
	if err != nil {
		t.Fatalf("Fire: %v", err)
	}
	if res.RulesEvaluated != 1 || res.RulesMatched != 0 {
		t.Errorf("inert rule should count as evaluated, not matched: %+v", res)
	}
	if len(rec.records) != 0 {
		t.Error("skipped rule must not write telemetry")
	}
}

func TestFire_HandlerPanicContained(t *testing.T) {
	t.Parallel()
	src := &memorySource{rules: []Rule{
		mkRule("panics", "order.created", 0, time.Now(), nil,
			[]Action{{Type: "send_email"}}),
	}}
	reg := NewRegistry()
	reg.Register("send_email", func(context.Context, map[string]string, TriggerContext) error {
		panic("smtp client is nil")
	})

	e := New(src, &memoryRecorder{}, reg, testVocab(), nil)
	res, err := e.Fire(context.Background(), "order.created", TriggerContext{}, Options{})
	if err != nil {
		t.Fatalf("panic must never propagate out of Fire: %v", err)
	}
	if res.Rules[0].Success {
		t.Error("panicking action must mark the rule failed")
	}
}

func TestFire_DryRunHasNoSideEffects(t *testing.T) {
	t.Parallel()
	invoked := false
	src := &memorySource{rules: []Rule{
		mkRule("live rule", "invoice.overdue", 0, time.Now(),
			[]Condition{{Field: "days_overdue", Operator: OpGreaterOrEqual, Value: "7"}},
			sendEmail()),
	}}
	rec := &memoryRecorder{}
	reg := NewRegistry()
	reg.Register("send_email", func(context.Context, map[string]string, TriggerContext) error {
		invoked = true
		return nil
	})

	e := New(src, rec, reg, testVocab(), nil)

	// Dry run is fully repeatable; run twice and expect identical results.
	for i := 0; i < 2; i++ {
		res, err := e.Fire(context.Background(), "invoice.overdue",
			TriggerContext{"days_overdue": 10}, Options{DryRun: true})
		if err != nil {
			t.Fatalf("Fire dry run %d: %v", i, err)
		}
		if !res.DryRun || res.RulesMatched != 1 || res.RulesSucceeded != 1 {
			t.Errorf("dry run %d result = %+v", i, res)
		}
	}
	if invoked {
		t.Error("dry run must not invoke real handlers")
	}
	if len(rec.records) != 0 {
		t.Error("dry run must not write telemetry")
	}
}

func TestFire_NonMatchingRuleRecordsTelemetry(t *testing.T) {
	t.Parallel()
	src := &memorySource{rules: []Rule{
		mkRule("strict", "invoice.overdue", 0, time.Now(),
			[]Condition{{Field: "days_overdue", Operator: OpGreaterOrEqual, Value: "30"}},
			sendEmail()),
	}}
	rec := &memoryRecorder{}
	e := New(src, rec, NewRegistry(), testVocab(), nil)
	if _, err := e.Fire(context.Background(), "invoice.overdue",
		TriggerContext{"days_overdue": 3}, Options{}); err != nil {
		t.Fatalf("Fire: %v", err)
	}
	if len(rec.records) != 1 {
		t.Fatalf("expected an execution log row for the non-matching rule")
	}
	if rec.records[0].ConditionsMet {
		t.Error("record should state conditions were not met")
	}
	if !rec.records[0].Success {
		t.Error("a clean non-match is not a failure")
	}
}

func TestTestRule_Messages(t *testing.T) {
	t.Parallel()
	e := New(&memorySource{}, nil, NewRegistry(), testVocab(), nil)
	rule := mkRule("r", "invoice.overdue", 0, time.Now(),
		[]Condition{{Field: "days_overdue", Operator: OpGreaterOrEqual, Value: "7"}},
		sendEmail())

	ok, msg := e.TestRule(context.Background(), rule, TriggerContext{"days_overdue": "10"})
	if !ok || msg != "Conditions are met. Actions would be executed." {
		t.Errorf("got (%v, %q)", ok, msg)
	}

	ok, msg = e.TestRule(context.Background(), rule, TriggerContext{"days_overdue": "2"})
	if !ok || msg != "Conditions are not met. No actions would be executed." {
		t.Errorf("got (%v, %q)", ok, msg)
	}
}
