// Package fingerprint derives stable, non-reversible fingerprints of
// identifiers (emails, usernames) so logs can correlate attempts without
// recording the identifier itself.
//
// Modes:
//   - HMAC-SHA256(identifier, key) when STOREFRONT_LOG_HMAC_KEY is set.
//   - SHA-256(identifier) otherwise (dev only; guessable for known identifiers).
//
// Production deployments set STOREFRONT_REQUIRE_LOG_HMAC=true, which makes
// startup fail unless a key of at least MinKeyBytes is configured.
package fingerprint
