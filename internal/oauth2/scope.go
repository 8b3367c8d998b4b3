package oauth2

import "strings"

// ParseScope splits a space-delimited scope string into its tokens.
func ParseScope(scope string) []string {
	return strings.Fields(scope)
}

// IntersectScope keeps the requested tokens that appear in the registered set,
// preserving request order. Unknown tokens are dropped silently so clients
// requesting unsupported scopes degrade instead of failing the whole flow.
func IntersectScope(registered, requested string) string {
	allowed := make(map[string]bool)
	for _, tok := range ParseScope(registered) {
		allowed[tok] = true
	}
	var granted []string
	for _, tok := range ParseScope(requested) {
		if allowed[tok] {
			granted = append(granted, tok)
		}
	}
	return strings.Join(granted, " ")
}

// ScopeAllowed reports whether every required token is contained in granted.
func ScopeAllowed(granted string, required []string) bool {
	have := make(map[string]bool)
	for _, tok := range ParseScope(granted) {
		have[tok] = true
	}
	for _, tok := range required {
		if !have[tok] {
			return false
		}
	}
	return true
}

// HasScope reports whether a single token is present in the scope string.
func HasScope(scope, token string) bool {
	for _, tok := range ParseScope(scope) {
		if tok == token {
			return true
		}
	}
	return false
}
