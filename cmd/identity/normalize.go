package identity

import "strings"

// NormalizeUsername performs case-insensitive canonicalization.
// Note: for now we only trim + lower-case. Additional rules (unicode confusables)
// can be added later behind a versioned policy.
func NormalizeUsername(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// NormalizeEmail performs case-insensitive canonicalization.
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// NormalizeIdentifier canonicalizes the identifier of the given class: the
// email for shoppers, the username for administrators.
func NormalizeIdentifier(class Class, s string) string {
	if class == ClassAdmin {
		return NormalizeUsername(s)
	}
	return NormalizeEmail(s)
}
