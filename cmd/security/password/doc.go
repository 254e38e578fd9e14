// Package password provides password hashing, policy and generation for the
// storefront identity core.
//
// It implements Argon2id hashing using a PHC-like encoded string format and includes:
//   - Configurable Argon2id parameters (via environment variables)
//   - Length policy validation for user-chosen (shopper) passwords
//   - Strict hash decoding with anti-DoS bounds, plus verification of legacy bcrypt hashes
//   - A crypto/rand backed generator for administrator provisioning passwords
package password
