package store

import (
	"fmt"
	"strconv"
	"strings"
)

// CheckReadOnly rejects statements other than SELECT and WITH queries. Plot
// rows are derived from the stored document, so ad-hoc writes would drift
// from it.
func CheckReadOnly(query string) error {
	trimmed := strings.TrimSpace(query)
	for strings.HasPrefix(trimmed, "--") {
		_, rest, _ := strings.Cut(trimmed, "\n")
		trimmed = strings.TrimSpace(rest)
	}
	fields := strings.Fields(trimmed)
	if len(fields) == 0 {
		return fmt.Errorf("query must not be empty")
	}
	switch strings.ToUpper(fields[0]) {
	case "SELECT", "WITH", "EXPLAIN":
		return nil
	}
	return fmt.Errorf("only read-only queries are allowed, got %s", fields[0])
}

// PositionalArgs orders params keyed "1", "2", ... into driver arguments.
// Numbering stops at the first gap.
func PositionalArgs(params map[string]any) []any {
	args := make([]any, 0, len(params))
	for i := 1; i <= len(params); i++ {
		val, ok := params[strconv.Itoa(i)]
		if !ok {
			break
		}
		args = append(args, val)
	}
	return args
}
