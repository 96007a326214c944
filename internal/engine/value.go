// ABOUTME: Value coercion for condition evaluation: number, time, boolean, string, comma-set.
// ABOUTME: Both sides must parse for a typed comparison; anything else falls back to string compare.
package engine

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// timeLayouts are the accepted timestamp/date formats, tried in order.
var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// asNumber coerces a raw context value to float64. Numeric strings parse;
// booleans and times do not.
func asNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// asTime coerces a raw context value to a time instant.
func asTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case string:
		return parseTime(t)
	default:
		return time.Time{}, false
	}
}

func parseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// stringify renders a context value for string comparison. Booleans render as
// "true"/"false"; floats drop the trailing ".0" so 150.0 compares equal to "150".
func stringify(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case bool:
		return strconv.FormatBool(s)
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(s), 'f', -1, 32)
	case time.Time:
		return s.Format(time.RFC3339)
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

// valuesEqual reports whether a raw context value equals a rule-configured
// string value under the coercion rules: numeric if both sides parse as
// numbers, instant if both parse as times, boolean-aware otherwise, and
// finally case-sensitive string equality.
func valuesEqual(raw any, rule string) bool {
	if fa, ok := asNumber(raw); ok {
		if fb, err := strconv.ParseFloat(strings.TrimSpace(rule), 64); err == nil {
			return fa == fb
		}
	}
	if ta, ok := asTime(raw); ok {
		if tb, ok := parseTime(rule); ok {
			return ta.Equal(tb)
		}
	}
	if b, ok := raw.(bool); ok {
		if rb, ok := parseBool(rule); ok {
			return b == rb
		}
	}
	return stringify(raw) == rule
}

// parseBool accepts the textual boolean spellings rule values arrive in.
func parseBool(s string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes":
		return true, true
	case "0", "false", "no":
		return false, true
	default:
		return false, false
	}
}

// compareValues orders a raw context value against a rule value.
// Returns (-1, 0, 1) and true when an ordering exists: numeric when both
// sides parse as numbers, chronological when both parse as times, and
// lexicographic string order otherwise. Coercion never fails; the string
// fallback is silent.
func compareValues(raw any, rule string) int {
	if fa, ok := asNumber(raw); ok {
		if fb, err := strconv.ParseFloat(strings.TrimSpace(rule), 64); err == nil {
			switch {
			case fa < fb:
				return -1
			case fa > fb:
				return 1
			default:
				return 0
			}
		}
	}
	if ta, ok := asTime(raw); ok {
		if tb, ok := parseTime(rule); ok {
			return ta.Compare(tb)
		}
	}
	return strings.Compare(stringify(raw), rule)
}

// splitSet parses a rule value as a comma-separated set literal.
func splitSet(rule string) []string {
	parts := strings.Split(rule, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// setContains reports whether the raw value equals any element of the
// comma-separated set literal, using the same coercion as valuesEqual.
func setContains(raw any, rule string) bool {
	for _, elem := range splitSet(rule) {
		if valuesEqual(raw, elem) {
			return true
		}
	}
	return false
}
