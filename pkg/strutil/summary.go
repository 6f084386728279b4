// Package strutil holds small text helpers shared by the terminal and web
// renderings of repository data.
package strutil

import (
	"strings"
)

// TableDescriptionLen is the description width used in terminal tables.
const TableDescriptionLen = 60

// PageDescriptionLen is the description width used on dashboard pages.
const PageDescriptionLen = 80

// minSummaryLen leaves room for one rune plus the ellipsis.
const minSummaryLen = 4

// Summary folds s onto one line and cuts it to at most max runes, marking
// a cut with "...". Repository descriptions on GitHub may contain newlines
// and runs of whitespace; both collapse to single spaces.
func Summary(s string, max int) string {
	if max < minSummaryLen {
		max = minSummaryLen
	}
	s = strings.Join(strings.Fields(s), " ")

	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return strings.TrimRight(string(runes[:max-3]), " ") + "..."
}

// Deref returns *s, or "" for nil. The backend sends null descriptions.
func Deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
