package contacts

import "strings"

// NormalizePhone strips formatting so "+1 (619) 555-1234" and "+16195551234"
// compare equal. The result is the digits with a leading plus; input without
// any digits (e.g. "anonymous", "client:sp-1") is returned trimmed and unchanged.
func NormalizePhone(s string) string {
	s = strings.TrimSpace(s)
	var b strings.Builder
	b.Grow(len(s) + 1)
	b.WriteByte('+')
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	if b.Len() == 1 || strings.Contains(s, ":") {
		return s
	}
	return b.String()
}
