package common

import "strings"

// HasAny returns true if s contains any of the substrings (case-insensitive).
func HasAny(s string, subs ...string) bool {
	s = strings.ToLower(s)
	for _, sub := range subs {
		if strings.Contains(s, strings.ToLower(sub)) {
			return true
		}
	}
	return false
}

// Normalize turns a city query or cache identifier into its canonical key:
// lower-cased, with every run of whitespace collapsed into a single "_".
// Nothing else is folded; "Zürich" and "zurich" stay distinct.
func Normalize(identifier string) string {
	return strings.Join(strings.Fields(strings.ToLower(identifier)), "_")
}
