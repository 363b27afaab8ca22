package observability

import (
	"strings"
	"unicode"
)

// sanitizeString drops control characters and caps the rune count so
// caller-supplied values cannot forge log lines.
func sanitizeString(value string, limit int) string {
	if limit <= 0 {
		limit = 256
	}
	var b strings.Builder
	n := 0
	for _, r := range value {
		if unicode.IsControl(r) {
			continue
		}
		if n == limit {
			break
		}
		b.WriteRune(r)
		n++
	}
	return b.String()
}

// SanitizeRoute cleans a route or path for logs and span names.
func SanitizeRoute(route string) string {
	if route = sanitizeString(route, 180); route == "" {
		return "/"
	}
	return route
}

// SanitizeMethod cleans an HTTP method for logs.
func SanitizeMethod(method string) string {
	return strings.ToUpper(sanitizeString(method, 10))
}
