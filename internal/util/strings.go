package util

// Truncate shortens s to at most max runes, appending "..." when the input
// was longer. A max of zero or less returns the input unchanged.
func Truncate(s string, max int) string {
	if max <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}
