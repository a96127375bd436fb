// Package compare judges whether a submission's captured output matches
// the expected answer. Comparison is exact after trimming surrounding
// whitespace from both sides; there is no numeric tolerance, reordering
// or partial credit.
package compare

import "strings"

func Equal(actual, expected string) bool {
	return strings.TrimSpace(actual) == strings.TrimSpace(expected)
}
