// ABOUTME: Placeholder interpolation for action params: {{field.path}} against trigger data.
// ABOUTME: Unresolvable placeholders are left verbatim so misconfigurations stay visible.
package actions

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/numzhq/automation/internal/engine"
)

var placeholderRe = regexp.MustCompile(`\{\{\s*([\w.]+)\s*\}\}`)

// interpolate replaces {{field}} placeholders with values resolved from the
// trigger data. Dotted paths descend into nested objects the same way
// condition fields do.
func interpolate(s string, tc engine.TriggerContext) string {
	if s == "" || tc == nil {
		return s
	}
	return placeholderRe.ReplaceAllStringFunc(s, func(match string) string {
		field := placeholderRe.FindStringSubmatch(match)[1]
		v, ok := tc.Resolve(field)
		if !ok {
			return match
		}
		return formatValue(v)
	})
}

func formatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprintf("%v", t)
	}
}
