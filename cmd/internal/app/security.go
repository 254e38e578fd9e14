package app

import (
	"errors"

	"storefront/cmd/security/fingerprint"
)

// ValidateSecurityConfig enforces the startup security policy and returns the
// fingerprinter used to redact identifiers in logs.
//
// With RequireLogHMAC set, a missing or short key is fatal; silently logging
// unkeyed SHA-256 of emails would make them dictionary-reversible.
func ValidateSecurityConfig(cfg Config) (fingerprint.Fingerprinter, error) {
	fp, err := fingerprint.FromEnv(cfg.RequireLogHMAC)
	if err != nil {
		switch {
		case errors.Is(err, fingerprint.ErrHMACKeyMissing):
			return fingerprint.Fingerprinter{}, errors.New("security policy: STOREFRONT_REQUIRE_LOG_HMAC=true but STOREFRONT_LOG_HMAC_KEY is missing")
		case errors.Is(err, fingerprint.ErrHMACKeyTooShort):
			return fingerprint.Fingerprinter{}, errors.New("security policy: STOREFRONT_REQUIRE_LOG_HMAC=true but STOREFRONT_LOG_HMAC_KEY is too short (min 32 bytes)")
		default:
			return fingerprint.Fingerprinter{}, err
		}
	}

	if cfg.RequireLogHMAC && !fp.Keyed() {
		return fingerprint.Fingerprinter{}, errors.New("security policy: STOREFRONT_REQUIRE_LOG_HMAC=true but fingerprinter is not in HMAC mode")
	}

	return fp, nil
}
