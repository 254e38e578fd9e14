package identity

import "time"

// Class is the principal class of an identity.
type Class string

const (
	ClassShopper Class = "shopper"
	ClassAdmin   Class = "admin"
)

// Valid reports whether c is a known class.
func (c Class) Valid() bool { return c == ClassShopper || c == ClassAdmin }

func (c Class) String() string { return string(c) }

// Status is the account status. Administrators are always active.
type Status string

const (
	StatusActive    Status = "active"
	StatusSuspended Status = "suspended"
)

// ExternalAccount links a shopper to an external provider account.
// Provider and UID are set together or not at all.
type ExternalAccount struct {
	Provider string
	UID      string
}

// ShopperProfile holds the shopper-only attributes.
type ShopperProfile struct {
	Name          string
	EmailVerified bool
	External      *ExternalAccount
}

// Identity is an authenticatable principal as seen by callers.
// It never carries the credential hash.
type Identity struct {
	ID         string
	Class      Class
	Identifier string // normalized email (shopper) or username (admin)
	Status     Status

	FailedAttempts int
	LockedAt       *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time

	Shopper *ShopperProfile // nil for administrators
}

// Record is an Identity together with its stored credential hash.
// Records only flow between a CredentialStore and the Service.
type Record struct {
	Identity
	CredentialHash string
}

// Provisioned is the result of provisioning an administrator. Password is the
// one-time plaintext and is never stored or logged.
type Provisioned struct {
	Identity Identity
	Password string
}
