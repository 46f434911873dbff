package session

import "strings"

// CanonicalOrderNumber strips whitespace, surrounding brackets and quotes
// (a JSON-encoded ["A12"] becomes A12) and upper-cases the identifier.
func CanonicalOrderNumber(s string) string {
	s = strings.TrimSpace(s)
	for {
		trimmed := strings.TrimSpace(strings.Trim(s, `[]"'`))
		if trimmed == s {
			break
		}
		s = trimmed
	}
	return strings.ToUpper(s)
}

// matchOrderNumber compares an event identifier with the numbers known to the session.
func matchOrderNumber(event string, known ...string) bool {
	ev := CanonicalOrderNumber(event)
	if ev == "" {
		return false
	}
	for _, k := range known {
		if k != "" && CanonicalOrderNumber(k) == ev {
			return true
		}
	}
	return false
}
