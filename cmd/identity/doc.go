// Package identity implements the storefront's identity and authentication core.
//
// It covers the two principal classes (self-registering shoppers and
// out-of-band provisioned administrators): identifier normalization, the
// password policy, lockout evaluation, the credential store port with its
// in-memory and PostgreSQL implementations, and the Service that orchestrates
// sign-in, registration and provisioning.
//
// Session cookies and request throttling live outside this package; Service
// only exposes the parameters they must honor (see Service.SessionPolicy).
package identity
