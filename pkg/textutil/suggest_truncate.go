// Package textutil holds small string helpers shared by the pipeline.
package textutil

// Truncate cuts s to at most max runes. Cutting on rune boundaries
// keeps multibyte text valid UTF-8.
func Truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}

// TruncateEllipsis cuts s to at most max runes, replacing the tail
// with "..." when anything was removed.
func TruncateEllipsis(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	if max <= 3 {
		return string(runes[:max])
	}
	return string(runes[:max-3]) + "..."
}
