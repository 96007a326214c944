// ABOUTME: Store methods for automation rule management and candidate lookup.
// ABOUTME: ActiveRulesFor is the engine's repository contract: priority DESC, creation order ASC.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/numzhq/automation/internal/engine"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

const ruleColumns = `id, name, description, trigger_event, conditions, actions,
	is_active, priority, execution_count, success_count, last_executed_at, created_at`

// CreateRuleParams holds the fields for creating an automation rule.
// Rule editing normally happens through the admin surface; this method exists
// for seeding, tests, and programmatic provisioning.
type CreateRuleParams struct {
	Name         string
	Description  string
	TriggerEvent string
	Conditions   []engine.Condition
	Actions      []engine.Action
	IsActive     bool
	Priority     int
}

// ListRulesParams holds optional filters for listing rules.
type ListRulesParams struct {
	TriggerEvent *string
	IsActive     *bool
	Limit        int
}

// CreateRule inserts a new automation rule and returns it.
func (s *Store) CreateRule(ctx context.Context, p CreateRuleParams) (*engine.Rule, error) {
	conds, err := json.Marshal(orEmptyConditions(p.Conditions))
	if err != nil {
		return nil, fmt.Errorf("create rule: marshal conditions: %w", err)
	}
	acts, err := json.Marshal(orEmptyActions(p.Actions))
	if err != nil {
		return nil, fmt.Errorf("create rule: marshal actions: %w", err)
	}

	query, args, err := psql.
		Insert("automation_rules").
		Columns("name", "description", "trigger_event", "conditions", "actions", "is_active", "priority").
		Values(p.Name, p.Description, p.TriggerEvent, conds, acts, p.IsActive, p.Priority).
		Suffix("RETURNING " + ruleColumns).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("create rule: build query: %w", err)
	}

	rule, err := scanRule(s.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		return nil, fmt.Errorf("create rule: %w", err)
	}
	return rule, nil
}

// GetRule returns the rule with the given id, or (nil, nil) if not found.
func (s *Store) GetRule(ctx context.Context, id uuid.UUID) (*engine.Rule, error) {
	query, args, err := psql.
		Select(ruleColumns).
		From("automation_rules").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("get rule: build query: %w", err)
	}
	rule, err := scanRule(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get rule: %w", err)
	}
	return rule, nil
}

// DeleteRule removes a rule and, via cascade, its execution log. This is the
// only sanctioned way to reset a rule's telemetry.
func (s *Store) DeleteRule(ctx context.Context, id uuid.UUID) error {
	query, args, err := psql.Delete("automation_rules").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("delete rule: build query: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("delete rule: %w", err)
	}
	return nil
}

// ActiveRulesFor returns the active rules for a trigger event, ordered by
// priority descending, then creation order ascending for ties. The ordering
// is part of the engine contract — downstream action sequencing depends on it.
// Reads go straight to the table on every call; a deactivated rule disappears
// from the very next firing.
func (s *Store) ActiveRulesFor(ctx context.Context, triggerEvent string) ([]engine.Rule, error) {
	query, args, err := psql.
		Select(ruleColumns).
		From("automation_rules").
		Where(sq.Eq{"trigger_event": triggerEvent, "is_active": true}).
		OrderBy("priority DESC", "created_at ASC", "id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("active rules: build query: %w", err)
	}
	return s.queryRules(ctx, query, args)
}

// ListRules returns rules with optional trigger/active filters, newest first.
func (s *Store) ListRules(ctx context.Context, p ListRulesParams) ([]engine.Rule, error) {
	sb := psql.
		Select(ruleColumns).
		From("automation_rules").
		OrderBy("created_at DESC", "id DESC")
	if p.TriggerEvent != nil {
		sb = sb.Where(sq.Eq{"trigger_event": *p.TriggerEvent})
	}
	if p.IsActive != nil {
		sb = sb.Where(sq.Eq{"is_active": *p.IsActive})
	}
	if p.Limit > 0 {
		sb = sb.Limit(uint64(p.Limit)) //nolint:gosec // G115: limit validated by caller
	}
	query, args, err := sb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("list rules: build query: %w", err)
	}
	return s.queryRules(ctx, query, args)
}

// SetActiveBulk toggles is_active for all the given rule ids and returns the
// number of rules updated. The engine reads rules fresh on every firing, so
// the toggle takes effect on the next Fire call with no caching lag.
func (s *Store) SetActiveBulk(ctx context.Context, ids []uuid.UUID, active bool) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	idStrs := make([]string, len(ids))
	for i, id := range ids {
		idStrs[i] = id.String()
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE automation_rules
		SET is_active = $1, updated_at = now()
		WHERE id = ANY($2::uuid[])
	`, active, pq.Array(idStrs))
	if err != nil {
		return 0, fmt.Errorf("set active bulk: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("set active bulk: rows affected: %w", err)
	}
	return n, nil
}

// ── scanning helpers ──────────────────────────────────────────────────────────

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRule(row rowScanner) (*engine.Rule, error) {
	var (
		r          engine.Rule
		conds      []byte
		acts       []byte
		lastExec   sql.NullTime
		priority   int32
		execCount  int32
		succCount  int32
	)
	if err := row.Scan(
		&r.ID, &r.Name, &r.Description, &r.TriggerEvent, &conds, &acts,
		&r.IsActive, &priority, &execCount, &succCount, &lastExec, &r.CreatedAt,
	); err != nil {
		return nil, err
	}
	r.Priority = int(priority)
	r.ExecutionCount = int(execCount)
	r.SuccessCount = int(succCount)
	if lastExec.Valid {
		t := lastExec.Time
		r.LastExecutedAt = &t
	}
	if err := json.Unmarshal(conds, &r.Conditions); err != nil {
		return nil, fmt.Errorf("parse conditions: %w", err)
	}
	if err := json.Unmarshal(acts, &r.Actions); err != nil {
		return nil, fmt.Errorf("parse actions: %w", err)
	}
	return &r, nil
}

func (s *Store) queryRules(ctx context.Context, query string, args []any) ([]engine.Rule, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query rules: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var out []engine.Rule
	for rows.Next() {
		r, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("scan rule: %w", err)
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

func orEmptyConditions(c []engine.Condition) []engine.Condition {
	if c == nil {
		return []engine.Condition{}
	}
	return c
}

func orEmptyActions(a []engine.Action) []engine.Action {
	if a == nil {
		return []engine.Action{}
	}
	return a
}
