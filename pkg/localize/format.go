package localize

import (
	"fmt"
	"strings"
)

const (
	placeholder = "{}"
	nullValue   = "null"
)

// Format replaces each "{}" in template with the next argument. Missing and
// nil arguments render as "null". Extra arguments are ignored.
func Format(template string, args ...any) string {
	if !strings.Contains(template, placeholder) {
		return template
	}

	var sb strings.Builder
	sb.Grow(len(template))

	next := 0
	rest := template
	for {
		i := strings.Index(rest, placeholder)
		if i < 0 {
			sb.WriteString(rest)
			break
		}
		sb.WriteString(rest[:i])
		if next < len(args) && args[next] != nil {
			sb.WriteString(fmt.Sprint(args[next]))
		} else {
			sb.WriteString(nullValue)
		}
		next++
		rest = rest[i+len(placeholder):]
	}

	return sb.String()
}
