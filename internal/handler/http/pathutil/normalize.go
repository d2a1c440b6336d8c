// Package pathutil maps request paths to bounded metric labels.
package pathutil

import (
	"regexp"
	"strings"
)

// PathPattern represents a regex pattern and its corresponding normalized template.
type PathPattern struct {
	Pattern  *regexp.Regexp
	Template string
}

// Unmatched is the label for paths no route serves.
const Unmatched = "other"

// pathPatterns lists the routes with path variables, most specific first.
var pathPatterns = []*PathPattern{
	{Pattern: regexp.MustCompile(`^/internal/reminders/sessions/[^/]+/ledger$`), Template: "/internal/reminders/sessions/{sessionID}/ledger"},
}

// staticPaths are served as-is.
var staticPaths = map[string]struct{}{
	"/":                            {},
	"/health":                      {},
	"/health/channels":             {},
	"/ready":                       {},
	"/live":                        {},
	"/metrics":                     {},
	"/internal/reminders/dispatch": {},
}

// NormalizePath converts a request path into a metric label. Session IDs are
// replaced by the route variable and unknown paths collapse into Unmatched, so
// scanners probing random URLs cannot inflate label cardinality.
//
// Examples:
//
//	NormalizePath("/internal/reminders/sessions/s-42/ledger") // "/internal/reminders/sessions/{sessionID}/ledger"
//	NormalizePath("/health/")                                 // "/health"
//	NormalizePath("/metrics?x=1")                             // "/metrics"
//	NormalizePath("/wp-login.php")                            // "other"
func NormalizePath(path string) string {
	if idx := strings.IndexByte(path, '?'); idx != -1 {
		path = path[:idx]
	}
	if len(path) > 1 && path[len(path)-1] == '/' {
		path = path[:len(path)-1]
	}

	if _, ok := staticPaths[path]; ok {
		return path
	}
	for _, p := range pathPatterns {
		if p.Pattern.MatchString(path) {
			return p.Template
		}
	}
	return Unmatched
}

// GetExpectedCardinality returns the number of distinct labels NormalizePath can
// produce.
func GetExpectedCardinality() int {
	return len(staticPaths) + len(pathPatterns) + 1
}
