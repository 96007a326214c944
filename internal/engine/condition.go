// ABOUTME: Condition evaluator: closed operator set, flat AND semantics, short-circuit on first false.
// ABOUTME: A missing field or unknown operator evaluates false; neither aborts the rest of the firing.
package engine

import (
	"fmt"
	"strings"
)

// The closed operator vocabulary. Conditions referencing anything else
// evaluate false and surface a configuration warning in the rule result.
const (
	OpEquals         = "equals"
	OpNotEquals      = "not_equals"
	OpGreaterThan    = "greater_than"
	OpLessThan       = "less_than"
	OpGreaterOrEqual = "greater_or_equal"
	OpLessOrEqual    = "less_or_equal"
	OpContains       = "contains"
	OpNotContains    = "not_contains"
	OpIn             = "in"
	OpNotIn          = "not_in"
	OpStartsWith     = "starts_with"
	OpEndsWith       = "ends_with"
)

// operatorLabels maps each operator to the label the admin UI renders.
// Iteration goes through Operators() for stable ordering.
var operatorLabels = map[string]string{
	OpEquals:         "Equals",
	OpNotEquals:      "Not Equals",
	OpGreaterThan:    "Greater Than",
	OpLessThan:       "Less Than",
	OpGreaterOrEqual: "Greater Than or Equal",
	OpLessOrEqual:    "Less Than or Equal",
	OpContains:       "Contains",
	OpNotContains:    "Does Not Contain",
	OpIn:             "In List",
	OpNotIn:          "Not In List",
	OpStartsWith:     "Starts With",
	OpEndsWith:       "Ends With",
}

// EvaluateCondition evaluates one condition against the context. The returned
// warning is non-empty only for configuration problems (unknown operator,
// empty field); a field that simply is not present in the context evaluates
// false with no warning.
func EvaluateCondition(c Condition, tc TriggerContext) (bool, string) {
	if c.Field == "" {
		return false, "condition has no field"
	}
	if _, known := operatorLabels[c.Operator]; !known {
		return false, fmt.Sprintf("unknown operator %q", c.Operator)
	}

	raw, ok := tc.Resolve(c.Field)
	if !ok {
		return false, ""
	}

	switch c.Operator {
	case OpEquals:
		return valuesEqual(raw, c.Value), ""
	case OpNotEquals:
		return !valuesEqual(raw, c.Value), ""
	case OpGreaterThan:
		return compareValues(raw, c.Value) > 0, ""
	case OpLessThan:
		return compareValues(raw, c.Value) < 0, ""
	case OpGreaterOrEqual:
		return compareValues(raw, c.Value) >= 0, ""
	case OpLessOrEqual:
		return compareValues(raw, c.Value) <= 0, ""
	case OpContains:
		return containsMatch(raw, c.Value), ""
	case OpNotContains:
		return !containsMatch(raw, c.Value), ""
	case OpIn:
		return inMatch(raw, c.Value), ""
	case OpNotIn:
		return !inMatch(raw, c.Value), ""
	case OpStartsWith:
		return strings.HasPrefix(stringify(raw), c.Value), ""
	case OpEndsWith:
		return strings.HasSuffix(stringify(raw), c.Value), ""
	}
	return false, fmt.Sprintf("unknown operator %q", c.Operator)
}

// containsMatch implements the contains operator. A string field is probed for
// the rule value as a substring; a list field is probed for membership; any
// other scalar treats the rule value as a comma-separated set literal.
func containsMatch(raw any, rule string) bool {
	switch v := raw.(type) {
	case string:
		return strings.Contains(v, rule)
	case []any:
		for _, elem := range v {
			if valuesEqual(elem, rule) {
				return true
			}
		}
		return false
	case []string:
		for _, elem := range v {
			if elem == rule {
				return true
			}
		}
		return false
	default:
		return setContains(raw, rule)
	}
}

// inMatch implements the in operator: the field value must equal one element
// of the comma-separated set literal. A list field matches when any element does.
func inMatch(raw any, rule string) bool {
	switch v := raw.(type) {
	case []any:
		for _, elem := range v {
			if setContains(elem, rule) {
				return true
			}
		}
		return false
	case []string:
		for _, elem := range v {
			if setContains(elem, rule) {
				return true
			}
		}
		return false
	default:
		return setContains(raw, rule)
	}
}

// MatchConditions evaluates a rule's condition list with AND semantics,
// short-circuiting on the first false. An empty list always matches.
func MatchConditions(conditions []Condition, tc TriggerContext) (bool, []string) {
	var warnings []string
	for _, c := range conditions {
		ok, warn := EvaluateCondition(c, tc)
		if warn != "" {
			warnings = append(warnings, warn)
		}
		if !ok {
			return false, warnings
		}
	}
	return true, warnings
}
