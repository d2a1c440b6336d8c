package auth

import "strings"

// Role constants carried in the "role" claim.
const (
	// RoleAdmin may call every endpoint
	RoleAdmin = "admin"
	// RoleScheduler is the periodic invoker: it may only trigger runs
	RoleScheduler = "scheduler"
	// RoleOperator has read access to the ledger and channel health
	RoleOperator = "operator"
)

// Permission lists the methods and paths a role may use.
type Permission struct {
	AllowedMethods []string
	// AllowedPaths supports a trailing "/*" for prefix matching
	AllowedPaths []string
}

// RolePermissions maps each role to its permission.
var RolePermissions = map[string]Permission{
	RoleAdmin: {
		AllowedMethods: []string{"GET", "POST"},
		AllowedPaths:   []string{"/*"},
	},
	RoleScheduler: {
		AllowedMethods: []string{"POST"},
		AllowedPaths:   []string{"/internal/reminders/dispatch"},
	},
	RoleOperator: {
		AllowedMethods: []string{"GET"},
		AllowedPaths: []string{
			"/internal/reminders/sessions/*",
			"/health/channels",
		},
	},
}

// checkRolePermission reports whether role may call method on path.
// Unknown and empty roles are denied.
//
// Example:
//
//	checkRolePermission("scheduler", "POST", "/internal/reminders/dispatch")            // true
//	checkRolePermission("scheduler", "GET", "/internal/reminders/sessions/s1/ledger")   // false
//	checkRolePermission("operator", "GET", "/internal/reminders/sessions/s1/ledger")    // true
//	checkRolePermission("operator", "POST", "/internal/reminders/dispatch")             // false
func checkRolePermission(role, method, path string) bool {
	perm, ok := RolePermissions[role]
	if !ok {
		return false
	}

	methodAllowed := false
	for _, m := range perm.AllowedMethods {
		if m == method {
			methodAllowed = true
			break
		}
	}
	if !methodAllowed {
		return false
	}
	return matchesPathPattern(path, perm.AllowedPaths)
}

// matchesPathPattern checks path against exact and "/*" prefix patterns.
// "/a/*" matches "/a" and every subpath of "/a/".
func matchesPathPattern(path string, patterns []string) bool {
	for _, pattern := range patterns {
		if pattern == "/*" {
			return true
		}
		if prefix, ok := strings.CutSuffix(pattern, "/*"); ok {
			if path == prefix || strings.HasPrefix(path, prefix+"/") {
				return true
			}
			continue
		}
		if path == pattern {
			return true
		}
	}
	return false
}
