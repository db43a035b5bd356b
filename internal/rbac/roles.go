package rbac

// Scope names. Keep these stable; they are part of the service token contract.
const (
	ScopeCallsRead   = "calls:read"
	ScopeCallsWrite  = "calls:write"
	ScopeRetryRead   = "retry:read"
	ScopeRetryWrite  = "retry:write"
	ScopeOrdersWrite = "orders:write"
	ScopeAdmin       = "admin"
)

// AllScopes lists every scope, admin last.
func AllScopes() []string {
	return []string{ScopeCallsRead, ScopeCallsWrite, ScopeRetryRead, ScopeRetryWrite, ScopeOrdersWrite, ScopeAdmin}
}

func IsAdmin(scope string) bool { return scope == ScopeAdmin }

// IsKnown reports whether scope is one of AllScopes.
func IsKnown(scope string) bool {
	for _, s := range AllScopes() {
		if s == scope {
			return true
		}
	}
	return false
}
