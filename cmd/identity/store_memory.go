package identity

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-process CredentialStore used in tests and when no
// database is configured. All methods serialize on a single mutex, which makes
// RecordFailure and RecordSuccess atomic with respect to each other.
type MemoryStore struct {
	mu       sync.Mutex
	byID     map[string]*memIdentity
	byIdent  map[memKey]string // (class, normalized identifier) -> id
	external map[ExternalAccount]string
}

type memKey struct {
	class      Class
	identifier string
}

type memIdentity struct {
	rec           Record
	lastSuccessAt *time.Time
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:     make(map[string]*memIdentity),
		byIdent:  make(map[memKey]string),
		external: make(map[ExternalAccount]string),
	}
}

// FindByIdentifier returns the record for the normalized identifier of class.
func (s *MemoryStore) FindByIdentifier(ctx context.Context, class Class, normalized string) (Record, error) {
	const op = "identity.FindByIdentifier"

	if err := ctx.Err(); err != nil {
		return Record{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byIdent[memKey{class: class, identifier: NormalizeIdentifier(class, normalized)}]
	if !ok {
		return Record{}, NotFoundError{Op: op, Resource: string(class)}
	}
	return cloneRecord(s.byID[id].rec), nil
}

// ExistsByIdentifier reports whether the normalized identifier of class is taken.
func (s *MemoryStore) ExistsByIdentifier(ctx context.Context, class Class, normalized string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.byIdent[memKey{class: class, identifier: NormalizeIdentifier(class, normalized)}]
	return ok, nil
}

// Create inserts a new identity.
func (s *MemoryStore) Create(ctx context.Context, in CreateInput) (Identity, error) {
	const op = "identity.Create"

	if err := ctx.Err(); err != nil {
		return Identity{}, err
	}
	in, err := validateCreate(op, in)
	if err != nil {
		return Identity{}, err
	}

	id, err := NewULID(in.Now)
	if err != nil {
		return Identity{}, internalErr(op, err)
	}

	key := memKey{class: in.Class, identifier: NormalizeIdentifier(in.Class, in.Identifier)}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.byIdent[key]; taken {
		return Identity{}, ConflictError{Op: op, Field: identifierField(in.Class)}
	}
	if in.Shopper != nil && in.Shopper.External != nil {
		if _, taken := s.external[*in.Shopper.External]; taken {
			return Identity{}, ConflictError{Op: op, Field: "external_account"}
		}
	}

	rec := Record{
		Identity: Identity{
			ID:         id,
			Class:      in.Class,
			Identifier: key.identifier,
			Status:     in.Status,
			CreatedAt:  in.Now,
			UpdatedAt:  in.Now,
			Shopper:    in.Shopper,
		},
		CredentialHash: in.CredentialHash,
	}

	s.byID[id] = &memIdentity{rec: rec}
	s.byIdent[key] = id
	if in.Shopper != nil && in.Shopper.External != nil {
		s.external[*in.Shopper.External] = id
	}

	return cloneRecord(rec).Identity, nil
}

// RecordFailure increments the failure counter and stamps the lock at the
// threshold crossing.
func (s *MemoryStore) RecordFailure(ctx context.Context, in FailureInput) (FailureState, error) {
	const op = "identity.RecordFailure"

	if err := ctx.Err(); err != nil {
		return FailureState{}, err
	}
	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.byID[in.ID]
	if !ok || m.rec.Class != in.Class {
		return FailureState{}, NotFoundError{Op: op, Resource: string(in.Class)}
	}

	if m.lastSuccessAt != nil && m.lastSuccessAt.After(now) {
		return FailureState{
			FailedAttempts: m.rec.FailedAttempts,
			LockedAt:       cloneTime(m.rec.LockedAt),
			Stale:          true,
		}, nil
	}

	attempts, lockedAt, justLocked := in.Lockout.applyFailure(m.rec.FailedAttempts, m.rec.LockedAt, now)
	m.rec.FailedAttempts = attempts
	m.rec.LockedAt = lockedAt
	m.rec.UpdatedAt = now

	return FailureState{
		FailedAttempts: attempts,
		LockedAt:       cloneTime(lockedAt),
		JustLocked:     justLocked,
	}, nil
}

// RecordSuccess resets the failure counter and clears the lock.
func (s *MemoryStore) RecordSuccess(ctx context.Context, class Class, id string, now time.Time) error {
	const op = "identity.RecordSuccess"

	if err := ctx.Err(); err != nil {
		return err
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.byID[id]
	if !ok || m.rec.Class != class {
		return NotFoundError{Op: op, Resource: string(class)}
	}

	m.rec.FailedAttempts = 0
	m.rec.LockedAt = nil
	m.rec.UpdatedAt = now
	if m.lastSuccessAt == nil || now.After(*m.lastSuccessAt) {
		t := now
		m.lastSuccessAt = &t
	}
	return nil
}

// SetStatus changes the status of a shopper. Administrators stay active.
func (s *MemoryStore) SetStatus(ctx context.Context, id string, status Status) error {
	const op = "identity.SetStatus"

	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if status != StatusActive && status != StatusSuspended {
		return OpError{Op: op, Kind: ErrInvalidInput, Msg: "unknown status"}
	}

	m, ok := s.byID[id]
	if !ok {
		return NotFoundError{Op: op, Resource: "identity"}
	}
	if m.rec.Class != ClassShopper {
		return OpError{Op: op, Kind: ErrInvalidInput, Msg: "only shoppers can change status"}
	}
	m.rec.Status = status
	m.rec.UpdatedAt = time.Now().UTC()
	return nil
}

func identifierField(class Class) string {
	if class == ClassAdmin {
		return "username"
	}
	return "email"
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

func cloneRecord(r Record) Record {
	r.LockedAt = cloneTime(r.LockedAt)
	if r.Shopper != nil {
		sp := *r.Shopper
		if sp.External != nil {
			ext := *sp.External
			sp.External = &ext
		}
		r.Shopper = &sp
	}
	return r
}
