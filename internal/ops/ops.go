// Package ops implements lester's operations. The CLI, the HTTP API and the
// MCP server all call into this package; none of them talk to db directly.
package ops

import "strings"

// Pagination limits
const (
	DefaultListLimit = 50
	MaxListLimit     = 500
	DefaultJobLimit  = 20
)

// clampLimit applies the default for non-positive limits and caps at max.
func clampLimit(limit, def, max int) int {
	if limit <= 0 {
		return def
	}
	if limit > max {
		return max
	}
	return limit
}

// cleanOptionalString trims s and maps blank strings to nil.
func cleanOptionalString(s *string) *string {
	if s == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*s)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
