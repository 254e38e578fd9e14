package identity

import (
	"fmt"
	"time"
)

// IsLocked reports whether an account locked at lockedAt is still inside its
// lockout window at now. A nil lockedAt is never locked.
func IsLocked(lockedAt *time.Time, now time.Time, d time.Duration) bool {
	if lockedAt == nil {
		return false
	}
	return now.Before(lockedAt.Add(d))
}

// LockoutPolicy holds the failure threshold and the lock duration.
type LockoutPolicy struct {
	MaxFailedAttempts int
	LockDuration      time.Duration
}

// DefaultLockoutPolicy returns 5 attempts / 1 hour.
func DefaultLockoutPolicy() LockoutPolicy {
	return LockoutPolicy{MaxFailedAttempts: 5, LockDuration: time.Hour}
}

// Validate rejects non-positive parameters.
func (p LockoutPolicy) Validate() error {
	if p.MaxFailedAttempts <= 0 {
		return fmt.Errorf("identity: max failed attempts must be positive, got %d", p.MaxFailedAttempts)
	}
	if p.LockDuration <= 0 {
		return fmt.Errorf("identity: lock duration must be positive, got %s", p.LockDuration)
	}
	return nil
}

// Locked is IsLocked under this policy's duration.
func (p LockoutPolicy) Locked(lockedAt *time.Time, now time.Time) bool {
	return IsLocked(lockedAt, now, p.LockDuration)
}

// LockedUntil returns the end of the lockout window, if any.
func (p LockoutPolicy) LockedUntil(lockedAt *time.Time) (time.Time, bool) {
	if lockedAt == nil {
		return time.Time{}, false
	}
	return lockedAt.Add(p.LockDuration), true
}

// Expired reports whether a lock was set but its window has passed.
func (p LockoutPolicy) Expired(lockedAt *time.Time, now time.Time) bool {
	return lockedAt != nil && !p.Locked(lockedAt, now)
}

// applyFailure computes the post-failure (attempts, lockedAt) pair. An expired
// lock restarts counting from zero. The lock is stamped only when the
// threshold is crossed while unlocked; justLocked reports that transition.
func (p LockoutPolicy) applyFailure(attempts int, lockedAt *time.Time, now time.Time) (int, *time.Time, bool) {
	if p.Expired(lockedAt, now) {
		attempts = 0
		lockedAt = nil
	}

	attempts++

	if lockedAt == nil && p.MaxFailedAttempts > 0 && attempts >= p.MaxFailedAttempts {
		t := now
		return attempts, &t, true
	}
	return attempts, lockedAt, false
}
