// Package errtext implements the worker's error-text eliding rule: a long
// diagnostic string is middle-elided rather than hard-truncated, so both
// the start of the message (what failed) and its tail (the driver/DB
// detail) survive a fixed-width column.
package errtext

const (
	// DefaultLimit is applied to errors surfaced in logs and status text.
	DefaultLimit = 1024
	// DBLimit is the hard cap on ofcs.last_error.
	DBLimit = 255
)

const ellipsis = " ... "

// Elide shortens s to at most limit runes, keeping a prefix and suffix and
// replacing the middle with " ... ". Strings already within limit are
// returned unchanged.
func Elide(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit || limit <= len(ellipsis) {
		if len(r) <= limit {
			return s
		}
		return string(r[:limit])
	}
	keep := limit - len(ellipsis)
	prefix := keep/2 + keep%2
	suffix := keep / 2
	return string(r[:prefix]) + ellipsis + string(r[len(r)-suffix:])
}
