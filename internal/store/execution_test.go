// ABOUTME: Integration tests for store/execution.go — telemetry counters, log rows, statistics.
// ABOUTME: Uses testutil.NewTestStore; each test runs in its own container (t.Parallel).
package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/numzhq/automation/internal/engine"
	"github.com/numzhq/automation/internal/store"
	"github.com/numzhq/automation/internal/testutil"
)

func recordExecution(t *testing.T, s *store.Store, ctx context.Context, rule engine.Rule, matched, success bool) {
	t.Helper()
	rec := engine.ExecutionRecord{
		TriggerEvent:  rule.TriggerEvent,
		TriggerData:   engine.TriggerContext{"amount": 42},
		ConditionsMet: matched,
		Success:       success,
		Duration:      12 * time.Millisecond,
		FiredAt:       time.Now().UTC(),
	}
	if matched {
		rec.ActionsTaken = []engine.ActionResult{{Type: "send_email", Success: success}}
	}
	if !success {
		rec.ErrorMessage = "send_email: smtp unreachable"
	}
	if err := s.RecordExecution(ctx, rule, rec); err != nil {
		t.Fatalf("RecordExecution: %v", err)
	}
}

func TestRecordExecution_MatchedSuccess(t *testing.T) {
	t.Parallel()
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	r := mustCreateRule(t, s, ctx, store.CreateRuleParams{
		Name: "counter", TriggerEvent: "payment.received",
		Actions: []engine.Action{{Type: "send_email"}}, IsActive: true,
	})

	recordExecution(t, s, ctx, *r, true, true)

	got, err := s.GetRule(ctx, r.ID)
	if err != nil {
		t.Fatalf("GetRule: %v", err)
	}
	if got.ExecutionCount != 1 || got.SuccessCount != 1 {
		t.Errorf("counters = %d/%d, want 1/1", got.ExecutionCount, got.SuccessCount)
	}
	if got.LastExecutedAt == nil {
		t.Error("last_executed_at not set after matched execution")
	}

	execs, err := s.ListExecutions(ctx, r.ID, 10)
	if err != nil {
		t.Fatalf("ListExecutions: %v", err)
	}
	if len(execs) != 1 {
		t.Fatalf("got %d log rows, want 1", len(execs))
	}
	e := execs[0]
	if !e.ConditionsMet || !e.Success {
		t.Errorf("log row = met:%v success:%v, want true/true", e.ConditionsMet, e.Success)
	}
	if e.TriggerEvent != "payment.received" {
		t.Errorf("trigger_event = %q", e.TriggerEvent)
	}
	if e.ErrorMessage != nil {
		t.Errorf("error_message = %q, want NULL", *e.ErrorMessage)
	}
	if e.ExecutionTime == nil || *e.ExecutionTime <= 0 {
		t.Errorf("execution_time = %v, want > 0", e.ExecutionTime)
	}
}

func TestRecordExecution_MatchedFailure(t *testing.T) {
	t.Parallel()
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	r := mustCreateRule(t, s, ctx, store.CreateRuleParams{
		Name: "failing", TriggerEvent: "payment.failed",
		Actions: []engine.Action{{Type: "send_email"}}, IsActive: true,
	})

	recordExecution(t, s, ctx, *r, true, false)

	got, err := s.GetRule(ctx, r.ID)
	if err != nil {
		t.Fatalf("GetRule: %v", err)
	}
	// A failed run still counts as executed; only success_count stays put.
	if got.ExecutionCount != 1 || got.SuccessCount != 0 {
		t.Errorf("counters = %d/%d, want 1/0", got.ExecutionCount, got.SuccessCount)
	}
	if got.LastExecutedAt == nil {
		t.Error("last_executed_at not set after failed execution")
	}

	execs, err := s.ListExecutions(ctx, r.ID, 10)
	if err != nil {
		t.Fatalf("ListExecutions: %v", err)
	}
	if len(execs) != 1 {
		t.Fatalf("got %d log rows, want 1", len(execs))
	}
	if execs[0].ErrorMessage == nil || *execs[0].ErrorMessage == "" {
		t.Error("failed execution missing error_message")
	}
}

func TestRecordExecution_NotMatched(t *testing.T) {
	t.Parallel()
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	r := mustCreateRule(t, s, ctx, store.CreateRuleParams{
		Name: "untouched", TriggerEvent: "ticket.replied",
		Actions: []engine.Action{{Type: "send_email"}}, IsActive: true,
	})

	// Non-matching evaluation logs a row but leaves the counters alone.
	recordExecution(t, s, ctx, *r, false, true)

	got, err := s.GetRule(ctx, r.ID)
	if err != nil {
		t.Fatalf("GetRule: %v", err)
	}
	if got.ExecutionCount != 0 || got.SuccessCount != 0 || got.LastExecutedAt != nil {
		t.Errorf("counters touched by non-matching evaluation: %d/%d last=%v",
			got.ExecutionCount, got.SuccessCount, got.LastExecutedAt)
	}

	execs, err := s.ListExecutions(ctx, r.ID, 10)
	if err != nil {
		t.Fatalf("ListExecutions: %v", err)
	}
	if len(execs) != 1 {
		t.Fatalf("got %d log rows, want 1", len(execs))
	}
	if execs[0].ConditionsMet {
		t.Error("log row claims conditions met")
	}
}

func TestRecordExecution_Accumulates(t *testing.T) {
	t.Parallel()
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	r := mustCreateRule(t, s, ctx, store.CreateRuleParams{
		Name: "busy", TriggerEvent: "service.created",
		Actions: []engine.Action{{Type: "send_email"}}, IsActive: true,
	})

	recordExecution(t, s, ctx, *r, true, true)
	recordExecution(t, s, ctx, *r, true, false)
	recordExecution(t, s, ctx, *r, true, true)
	recordExecution(t, s, ctx, *r, false, true)

	got, err := s.GetRule(ctx, r.ID)
	if err != nil {
		t.Fatalf("GetRule: %v", err)
	}
	if got.ExecutionCount != 3 || got.SuccessCount != 2 {
		t.Errorf("counters = %d/%d, want 3/2", got.ExecutionCount, got.SuccessCount)
	}
	if rate := got.SuccessRate(); rate != 66.67 {
		t.Errorf("SuccessRate() = %v, want 66.67", rate)
	}

	execs, err := s.ListExecutions(ctx, r.ID, 10)
	if err != nil {
		t.Fatalf("ListExecutions: %v", err)
	}
	if len(execs) != 4 {
		t.Errorf("got %d log rows, want 4", len(execs))
	}
}

func TestGetStatistics(t *testing.T) {
	t.Parallel()
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	r := mustCreateRule(t, s, ctx, store.CreateRuleParams{
		Name: "stats", TriggerEvent: "user.login",
		Actions: []engine.Action{{Type: "send_email"}}, IsActive: true,
	})

	recordExecution(t, s, ctx, *r, true, true)
	recordExecution(t, s, ctx, *r, true, true)
	recordExecution(t, s, ctx, *r, true, false)

	st, err := s.GetStatistics(ctx, nil, nil)
	if err != nil {
		t.Fatalf("GetStatistics: %v", err)
	}
	if st.TotalExecutions != 3 || st.SuccessfulExecutions != 2 || st.FailedExecutions != 1 {
		t.Errorf("totals = %d/%d/%d, want 3/2/1",
			st.TotalExecutions, st.SuccessfulExecutions, st.FailedExecutions)
	}
	if st.SuccessRate != 66.67 {
		t.Errorf("success_rate = %v, want 66.67", st.SuccessRate)
	}
	if st.AvgExecutionTime <= 0 {
		t.Errorf("avg_execution_time = %v, want > 0", st.AvgExecutionTime)
	}

	// A range in the future excludes everything.
	future := time.Now().Add(time.Hour)
	st, err = s.GetStatistics(ctx, &future, nil)
	if err != nil {
		t.Fatalf("GetStatistics(future): %v", err)
	}
	if st.TotalExecutions != 0 || st.SuccessRate != 0 {
		t.Errorf("future range: totals = %d, rate = %v, want 0/0", st.TotalExecutions, st.SuccessRate)
	}
}

func TestGetStatistics_Empty(t *testing.T) {
	t.Parallel()
	s := testutil.NewTestStore(t)

	st, err := s.GetStatistics(context.Background(), nil, nil)
	if err != nil {
		t.Fatalf("GetStatistics: %v", err)
	}
	if st.TotalExecutions != 0 || st.SuccessRate != 0 || st.AvgExecutionTime != 0 {
		t.Errorf("empty table stats = %+v, want zeros", st)
	}
}
