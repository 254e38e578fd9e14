package identity

import (
	"context"
	"strings"
	"time"
)

// CreateInput describes a new identity. Identifier and CredentialHash are
// stored as given; callers normalize and hash beforehand.
type CreateInput struct {
	Class          Class
	Identifier     string
	CredentialHash string
	Status         Status // defaults to StatusActive

	// Shopper is required for ClassShopper and must be nil for ClassAdmin.
	Shopper *ShopperProfile

	Now time.Time
}

// FailureInput describes one failed verification. Now is the instant the
// attempt started; a failure older than the last recorded success is dropped.
type FailureInput struct {
	Class   Class
	ID      string
	Now     time.Time
	Lockout LockoutPolicy
}

// FailureState is the post-write state returned by RecordFailure.
type FailureState struct {
	FailedAttempts int
	LockedAt       *time.Time

	// JustLocked is set on the single write that crossed the threshold.
	JustLocked bool

	// Stale is set when a newer success won; nothing was written.
	Stale bool
}

// CredentialStore is the persistence boundary of the identity core.
//
// Contract:
//   - Identifiers are looked up by their normalized form, unique per class.
//   - Create returns ConflictError when the identifier (or external account) is taken.
//   - RecordFailure is a single atomic read-modify-write: concurrent failures
//     never lose increments and the lock is stamped exactly once per window.
//   - RecordSuccess resets the counter, clears the lock and wins over any
//     concurrent failure that started before it.
//   - All methods honor ctx cancellation.
type CredentialStore interface {
	FindByIdentifier(ctx context.Context, class Class, normalized string) (Record, error)
	ExistsByIdentifier(ctx context.Context, class Class, normalized string) (bool, error)
	Create(ctx context.Context, in CreateInput) (Identity, error)
	RecordFailure(ctx context.Context, in FailureInput) (FailureState, error)
	RecordSuccess(ctx context.Context, class Class, id string, now time.Time) error
}

// validateCreate checks the store-level shape of in and returns a copy with
// defaults applied.
func validateCreate(op string, in CreateInput) (CreateInput, error) {
	if !in.Class.Valid() {
		return CreateInput{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: "unknown class"}
	}
	if strings.TrimSpace(in.Identifier) == "" {
		return CreateInput{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: "identifier is required"}
	}
	if in.CredentialHash == "" {
		return CreateInput{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: "credential hash is required"}
	}
	if in.Status == "" {
		in.Status = StatusActive
	}
	if in.Status != StatusActive && in.Status != StatusSuspended {
		return CreateInput{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: "unknown status"}
	}

	switch in.Class {
	case ClassAdmin:
		if in.Shopper != nil {
			return CreateInput{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: "admin identities have no shopper profile"}
		}
		if in.Status != StatusActive {
			return CreateInput{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: "admin identities are always active"}
		}
	case ClassShopper:
		var sp ShopperProfile
		if in.Shopper != nil {
			sp = *in.Shopper
		}
		in.Shopper = &sp
		if ext := in.Shopper.External; ext != nil {
			p, u := strings.TrimSpace(ext.Provider), strings.TrimSpace(ext.UID)
			if (p == "") != (u == "") {
				return CreateInput{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: "external provider and uid must be set together"}
			}
			if p == "" {
				in.Shopper.External = nil
			} else {
				in.Shopper.External = &ExternalAccount{Provider: p, UID: u}
			}
		}
	}

	if in.Now.IsZero() {
		in.Now = time.Now().UTC()
	}
	return in, nil
}
