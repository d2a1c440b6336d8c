package auth

import "strings"

// PublicEndpoints are reachable without a token. They serve probes and Prometheus.
var PublicEndpoints = []string{
	"/health",
	"/ready",
	"/live",
	"/metrics",
}

// IsPublicEndpoint reports whether path is one of PublicEndpoints.
//
// Matching logic:
//   - exact match, a trailing slash or a query string are accepted
//   - subpaths are not: /health/channels requires a token
//
// Example:
//
//	IsPublicEndpoint("/health")           // true
//	IsPublicEndpoint("/health?x=1")       // true
//	IsPublicEndpoint("/health/channels")  // false
//	IsPublicEndpoint("/internal/reminders/dispatch") // false
func IsPublicEndpoint(path string) bool {
	for _, endpoint := range PublicEndpoints {
		if path == endpoint || path == endpoint+"/" || strings.HasPrefix(path, endpoint+"?") {
			return true
		}
	}
	return false
}
