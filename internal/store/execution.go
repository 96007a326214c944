// ABOUTME: Execution telemetry: per-rule counters, the automation_executions log, and statistics.
// ABOUTME: RecordExecution is the engine's Recorder contract; counter updates are atomic SQL increments.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"github.com/numzhq/automation/internal/engine"
)

// ExecutionRow is one automation_executions log entry.
type ExecutionRow struct {
	ID            uuid.UUID
	RuleID        uuid.UUID
	TriggerEvent  string
	TriggerData   json.RawMessage
	ConditionsMet bool
	ActionsTaken  json.RawMessage
	Success       bool
	ErrorMessage  *string
	ExecutionTime *float64 // seconds
	CreatedAt     time.Time
}

// Statistics aggregates execution outcomes over an optional date range.
type Statistics struct {
	TotalExecutions      int64   `json:"total_executions"`
	SuccessfulExecutions int64   `json:"successful_executions"`
	FailedExecutions     int64   `json:"failed_executions"`
	SuccessRate          float64 `json:"success_rate"`
	AvgExecutionTime     float64 `json:"avg_execution_time"`
}

// RecordExecution persists the outcome of one evaluated rule: an execution
// log row always, plus counter updates on the rule row when it matched.
// Counter increments happen in SQL so concurrent firings never lose updates.
// execution_count and last_executed_at advance whenever the rule's actions
// ran, success_count only when all of them succeeded — a failed run still
// counts as "ran".
func (s *Store) RecordExecution(ctx context.Context, rule engine.Rule, rec engine.ExecutionRecord) error {
	triggerData, err := json.Marshal(rec.TriggerData)
	if err != nil {
		return fmt.Errorf("record execution: marshal trigger data: %w", err)
	}
	actionsTaken, err := json.Marshal(rec.ActionsTaken)
	if err != nil {
		return fmt.Errorf("record execution: marshal actions: %w", err)
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		var errMsg *string
		if rec.ErrorMessage != "" {
			errMsg = &rec.ErrorMessage
		}
		execSeconds := rec.Duration.Seconds()
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO automation_executions
				(rule_id, trigger_event, trigger_data, conditions_met,
				 actions_taken, success, error_message, execution_time)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`, rule.ID, rec.TriggerEvent, triggerData, rec.ConditionsMet,
			actionsTaken, rec.Success, errMsg, execSeconds); err != nil {
			return fmt.Errorf("insert execution: %w", err)
		}

		if !rec.ConditionsMet {
			return nil
		}

		succeeded := 0
		if rec.Success {
			succeeded = 1
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE automation_rules
			SET execution_count  = execution_count + 1,
			    success_count    = success_count + $1,
			    last_executed_at = $2,
			    updated_at       = now()
			WHERE id = $3
		`, succeeded, rec.FiredAt, rule.ID); err != nil {
			return fmt.Errorf("update rule counters: %w", err)
		}
		return nil
	})
}

// ListExecutions returns the most recent execution log rows for a rule.
func (s *Store) ListExecutions(ctx context.Context, ruleID uuid.UUID, limit int) ([]ExecutionRow, error) {
	if limit <= 0 {
		limit = 50
	}
	query, args, err := psql.
		Select("id, rule_id, trigger_event, trigger_data, conditions_met",
			"actions_taken, success, error_message, execution_time, created_at").
		From("automation_executions").
		Where(sq.Eq{"rule_id": ruleID}).
		OrderBy("created_at DESC", "id DESC").
		Limit(uint64(limit)). //nolint:gosec // G115: clamped above
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("list executions: build query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list executions: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var out []ExecutionRow
	for rows.Next() {
		var e ExecutionRow
		if err := rows.Scan(
			&e.ID, &e.RuleID, &e.TriggerEvent, &e.TriggerData, &e.ConditionsMet,
			&e.ActionsTaken, &e.Success, &e.ErrorMessage, &e.ExecutionTime, &e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan execution: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// GetStatistics aggregates execution outcomes between start and end (either
// may be nil for an open bound).
func (s *Store) GetStatistics(ctx context.Context, start, end *time.Time) (*Statistics, error) {
	sb := psql.
		Select(
			"COUNT(*)",
			"COUNT(*) FILTER (WHERE success)",
			"COUNT(*) FILTER (WHERE NOT success)",
			"COALESCE(AVG(execution_time), 0)",
		).
		From("automation_executions")
	if start != nil {
		sb = sb.Where(sq.GtOrEq{"created_at": *start})
	}
	if end != nil {
		sb = sb.Where(sq.LtOrEq{"created_at": *end})
	}
	query, args, err := sb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("statistics: build query: %w", err)
	}

	var st Statistics
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(
		&st.TotalExecutions, &st.SuccessfulExecutions, &st.FailedExecutions, &st.AvgExecutionTime,
	); err != nil {
		return nil, fmt.Errorf("statistics: %w", err)
	}
	if st.TotalExecutions > 0 {
		rate := float64(st.SuccessfulExecutions) / float64(st.TotalExecutions) * 100
		st.SuccessRate = float64(int(rate*100+0.5)) / 100
	}
	return &st, nil
}
