package fingerprint

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"strings"
)

const (
	// HMACEnvKey is the env var name for the fingerprint HMAC secret.
	// #nosec G101 -- not a credential; it's an environment variable name.
	HMACEnvKey = "STOREFRONT_LOG_HMAC_KEY"

	// MinKeyBytes is the minimum key size accepted in enforced mode.
	MinKeyBytes = 32

	// Length is the number of hex characters in a fingerprint.
	Length = 16
)

// HashSHA256Hex returns a SHA-256 hex digest of s.
func HashSHA256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// HashHMACSHA256Hex returns an HMAC-SHA256 hex digest of s using key.
func HashHMACSHA256Hex(s string, key []byte) string {
	m := hmac.New(sha256.New, key)
	_, _ = m.Write([]byte(s))
	return hex.EncodeToString(m.Sum(nil))
}

// Fingerprinter maps identifiers to short hex fingerprints.
type Fingerprinter struct {
	key []byte
}

// New returns a Fingerprinter keyed with key; an empty key selects plain SHA-256.
func New(key []byte) Fingerprinter {
	if len(key) == 0 {
		return Fingerprinter{}
	}
	k := make([]byte, len(key))
	copy(k, key)
	return Fingerprinter{key: k}
}

// FromEnv builds a Fingerprinter from STOREFRONT_LOG_HMAC_KEY.
// With require set, a missing or short key is an error.
func FromEnv(require bool) (Fingerprinter, error) {
	key, err := HMACKeyFromEnv(MinKeyBytes)
	switch {
	case err == nil:
		return New(key), nil
	case require:
		return Fingerprinter{}, err
	default:
		// Short keys are still better than none outside enforced mode.
		return New([]byte(strings.TrimSpace(os.Getenv(HMACEnvKey)))), nil
	}
}

// Keyed reports whether the fingerprinter uses HMAC.
func (f Fingerprinter) Keyed() bool { return len(f.key) > 0 }

// Fingerprint returns the first Length hex characters of the (keyed) digest of s.
func (f Fingerprinter) Fingerprint(s string) string {
	var full string
	if f.Keyed() {
		full = HashHMACSHA256Hex(s, f.key)
	} else {
		full = HashSHA256Hex(s)
	}
	return full[:Length]
}

// HMACKeyFromEnv returns the configured HMAC key bytes (trimmed), enforcing a minimum byte length.
// If the env var is missing/blank -> ErrHMACKeyMissing.
// If too short -> ErrHMACKeyTooShort.
func HMACKeyFromEnv(minBytes int) ([]byte, error) {
	raw := strings.TrimSpace(os.Getenv(HMACEnvKey))
	if raw == "" {
		return nil, ErrHMACKeyMissing
	}
	b := []byte(raw)
	if minBytes > 0 && len(b) < minBytes {
		return nil, ErrHMACKeyTooShort
	}
	return b, nil
}

// HMACEnabled reports whether the env key is present (non-empty after trim).
// Note: This does not enforce minimum length. Use HMACKeyFromEnv for policy checks.
func HMACEnabled() bool {
	return strings.TrimSpace(os.Getenv(HMACEnvKey)) != ""
}
