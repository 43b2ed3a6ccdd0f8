package scanner

import "strings"

// IsOpaqueID reports whether token looks like a vendor record id rather than
// an API name: 15 or 18 ASCII alphanumerics that either start with a digit or
// contain three consecutive digits.
func IsOpaqueID(token string) bool {
	if len(token) != 15 && len(token) != 18 {
		return false
	}
	run, longest := 0, 0
	for i := 0; i < len(token); i++ {
		c := token[i]
		switch {
		case c >= '0' && c <= '9':
			run++
			if run > longest {
				longest = run
			}
		case (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z'):
			run = 0
		default:
			return false
		}
	}
	return isDigit(token[0]) || longest >= 3
}

// IsReadableSource reports whether an action source may be emitted: it must
// read as an API name (underscore or space) and not be an opaque id.
func IsReadableSource(source string) bool {
	return strings.ContainsAny(source, "_ ") && !IsOpaqueID(source)
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
