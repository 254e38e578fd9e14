package password

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Validate checks password against the length policy (in runes) and, when
// enabled, the trivial-pattern rejection. It does not mutate input.
func (c Config) Validate(password string) error {
	n := utf8.RuneCountInString(password)

	if n < c.Policy.MinLength {
		return ErrPasswordTooShort
	}
	if n > c.Policy.MaxLength {
		return ErrPasswordTooLong
	}

	if c.Policy.RejectVeryWeak && looksVeryWeak(password) {
		return ErrWeakPassword
	}

	return nil
}

// MeetsGeneratedPolicy reports whether s has the shape of a provisioning
// password: exactly GeneratedLength characters with at least one character of
// each generator class.
func MeetsGeneratedPolicy(s string) bool {
	if len(s) != GeneratedLength {
		return false
	}
	var lower, upper, digit, symbol bool
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case strings.IndexByte(lowerChars, c) >= 0:
			lower = true
		case strings.IndexByte(upperChars, c) >= 0:
			upper = true
		case strings.IndexByte(digitChars, c) >= 0:
			digit = true
		case strings.IndexByte(symbolChars, c) >= 0:
			symbol = true
		default:
			return false
		}
	}
	return lower && upper && digit && symbol
}

// looksVeryWeak is a minimal, conservative check; not a strength estimator.
func looksVeryWeak(pw string) bool {
	s := strings.TrimSpace(pw)
	if s == "" {
		return true
	}

	first, _ := utf8.DecodeRuneInString(s)
	if strings.TrimLeft(s, string(first)) == "" {
		return true
	}

	onlyDigits := strings.IndexFunc(s, func(r rune) bool { return !unicode.IsDigit(r) }) < 0
	if onlyDigits && utf8.RuneCountInString(s) < 16 {
		return true
	}

	switch strings.ToLower(s) {
	case "password", "password123", "password1234", "123456789012", "qwertyuiop", "letmeinletmein":
		return true
	}

	return false
}
