package identity

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements CredentialStore over PostgreSQL.
//
// Design notes:
//   - The pgx pool is owned by the caller; this store must NOT close it.
//   - Schema/table identifiers are safely quoted to avoid SQL injection via identifiers.
//   - RecordFailure runs in one transaction holding the row lock (SELECT ... FOR UPDATE),
//     so concurrent failures and successes on the same identity serialize.
//   - Timestamps are truncated to microseconds to match timestamptz precision.
type PostgresStore struct {
	pool   *pgxpool.Pool
	schema string
}

// PostgresOption configures the store.
type PostgresOption func(*PostgresStore) error

var pgIdentRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// WithSchema sets the Postgres schema used by the identity store (default "identity").
// The schema name is validated to be a legal PostgreSQL identifier.
func WithSchema(schema string) PostgresOption {
	return func(s *PostgresStore) error {
		schema = strings.TrimSpace(schema)
		if schema == "" {
			return fmt.Errorf("identity: empty schema")
		}
		if !pgIdentIsValid(schema) {
			return fmt.Errorf("identity: invalid schema identifier")
		}
		s.schema = schema
		return nil
	}
}

// NewPostgresStore constructs a PostgresStore with secure defaults.
func NewPostgresStore(pool *pgxpool.Pool, opts ...PostgresOption) (*PostgresStore, error) {
	st := &PostgresStore{
		pool:   pool,
		schema: DefaultSchema,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(st); err != nil {
			return nil, err
		}
	}
	if st.pool == nil {
		return nil, fmt.Errorf("identity: nil pool")
	}
	return st, nil
}

// Schema returns the configured schema name.
func (s *PostgresStore) Schema() string { return s.schema }

// pgTable maps a class to its table and identifier column.
type pgTable struct {
	name   string
	column string
}

func pgTableFor(class Class) (pgTable, bool) {
	switch class {
	case ClassShopper:
		return pgTable{name: "shopper_identities", column: "email"}, true
	case ClassAdmin:
		return pgTable{name: "admin_identities", column: "username"}, true
	default:
		return pgTable{}, false
	}
}

// FindByIdentifier returns the record whose identifier matches normalized case-insensitively.
func (s *PostgresStore) FindByIdentifier(ctx context.Context, class Class, normalized string) (Record, error) {
	const op = "identity.FindByIdentifier"

	tbl, err := s.begin(ctx, op, class)
	if err != nil {
		return Record{}, err
	}
	ident := pgIdent(s.schema, tbl.name)
	normalized = NormalizeIdentifier(class, normalized)

	var (
		rec      Record
		lockedAt *time.Time
	)
	rec.Class = class

	switch class {
	case ClassShopper:
		var (
			sp       ShopperProfile
			provider *string
			uid      *string
		)
		err = s.pool.QueryRow(ctx,
			`SELECT id, email, status, failed_attempts, locked_at, created_at, updated_at,
			        encrypted_password, name, email_verified, provider, uid
			   FROM `+ident+`
			  WHERE lower(email) = $1`,
			normalized,
		).Scan(
			&rec.ID, &rec.Identifier, &rec.Status, &rec.FailedAttempts, &lockedAt,
			&rec.CreatedAt, &rec.UpdatedAt, &rec.CredentialHash,
			&sp.Name, &sp.EmailVerified, &provider, &uid,
		)
		if err == nil {
			if provider != nil && uid != nil {
				sp.External = &ExternalAccount{Provider: *provider, UID: *uid}
			}
			rec.Shopper = &sp
		}
	default:
		err = s.pool.QueryRow(ctx,
			`SELECT id, username, status, failed_attempts, locked_at, created_at, updated_at,
			        encrypted_password
			   FROM `+ident+`
			  WHERE lower(username) = $1`,
			normalized,
		).Scan(
			&rec.ID, &rec.Identifier, &rec.Status, &rec.FailedAttempts, &lockedAt,
			&rec.CreatedAt, &rec.UpdatedAt, &rec.CredentialHash,
		)
	}
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, NotFoundError{Op: op, Resource: string(class)}
		}
		return Record{}, err
	}

	rec.LockedAt = pgUTCPtr(lockedAt)
	rec.CreatedAt = rec.CreatedAt.UTC()
	rec.UpdatedAt = rec.UpdatedAt.UTC()
	return rec, nil
}

// ExistsByIdentifier reports whether normalized is taken within class.
func (s *PostgresStore) ExistsByIdentifier(ctx context.Context, class Class, normalized string) (bool, error) {
	const op = "identity.ExistsByIdentifier"

	tbl, err := s.begin(ctx, op, class)
	if err != nil {
		return false, err
	}

	var exists bool
	err = s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM `+pgIdent(s.schema, tbl.name)+` WHERE lower(`+tbl.column+`) = $1)`,
		NormalizeIdentifier(class, normalized),
	).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

// Create inserts a new identity row.
func (s *PostgresStore) Create(ctx context.Context, in CreateInput) (Identity, error) {
	const op = "identity.Create"

	if _, err := s.begin(ctx, op, in.Class); err != nil {
		return Identity{}, err
	}
	in, err := validateCreate(op, in)
	if err != nil {
		return Identity{}, err
	}

	now := pgNow(in.Now)
	identifier := NormalizeIdentifier(in.Class, in.Identifier)

	id, err := NewULID(now)
	if err != nil {
		return Identity{}, err
	}

	switch in.Class {
	case ClassShopper:
		var provider, uid *string
		if ext := in.Shopper.External; ext != nil {
			provider, uid = &ext.Provider, &ext.UID
		}
		_, err = s.pool.Exec(ctx,
			`INSERT INTO `+pgIdent(s.schema, "shopper_identities")+` (
			     id, email, email_verified, encrypted_password, name, provider, uid, status, created_at, updated_at
			   ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)`,
			id, identifier, in.Shopper.EmailVerified, in.CredentialHash, in.Shopper.Name,
			provider, uid, string(in.Status), now,
		)
	default:
		_, err = s.pool.Exec(ctx,
			`INSERT INTO `+pgIdent(s.schema, "admin_identities")+` (
			     id, username, encrypted_password, status, created_at, updated_at
			   ) VALUES ($1, $2, $3, $4, $5, $5)`,
			id, identifier, in.CredentialHash, string(in.Status), now,
		)
	}
	if err != nil {
		if field, ok := pgClassifyUniqueViolation(err); ok {
			return Identity{}, ConflictError{Op: op, Field: field}
		}
		return Identity{}, err
	}

	return Identity{
		ID:         id,
		Class:      in.Class,
		Identifier: identifier,
		Status:     in.Status,
		CreatedAt:  now,
		UpdatedAt:  now,
		Shopper:    in.Shopper,
	}, nil
}

// RecordFailure atomically applies one failed attempt.
func (s *PostgresStore) RecordFailure(ctx context.Context, in FailureInput) (FailureState, error) {
	const op = "identity.RecordFailure"

	tbl, err := s.begin(ctx, op, in.Class)
	if err != nil {
		return FailureState{}, err
	}
	if strings.TrimSpace(in.ID) == "" {
		return FailureState{}, pgInvalid(op, "missing id")
	}
	now := pgNow(in.Now)
	ident := pgIdent(s.schema, tbl.name)

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.ReadCommitted,
		AccessMode: pgx.ReadWrite,
	})
	if err != nil {
		return FailureState{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var (
		attempts      int
		lockedAt      *time.Time
		lastSuccessAt *time.Time
	)
	err = tx.QueryRow(ctx,
		`SELECT failed_attempts, locked_at, last_success_at
		   FROM `+ident+`
		  WHERE id = $1
		  FOR UPDATE`,
		in.ID,
	).Scan(&attempts, &lockedAt, &lastSuccessAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return FailureState{}, NotFoundError{Op: op, Resource: string(in.Class)}
		}
		return FailureState{}, err
	}
	lockedAt = pgUTCPtr(lockedAt)

	if lastSuccessAt != nil && lastSuccessAt.After(now) {
		return FailureState{FailedAttempts: attempts, LockedAt: lockedAt, Stale: true}, nil
	}

	next, nextLockedAt, justLocked := in.Lockout.applyFailure(attempts, lockedAt, now)

	if _, err := tx.Exec(ctx,
		`UPDATE `+ident+`
		    SET failed_attempts = $2,
		        locked_at = $3,
		        updated_at = $4
		  WHERE id = $1`,
		in.ID, next, nextLockedAt, now,
	); err != nil {
		return FailureState{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return FailureState{}, err
	}

	return FailureState{
		FailedAttempts: next,
		LockedAt:       nextLockedAt,
		JustLocked:     justLocked,
	}, nil
}

// RecordSuccess resets the failure counter, clears the lock and stamps last_success_at.
func (s *PostgresStore) RecordSuccess(ctx context.Context, class Class, id string, now time.Time) error {
	const op = "identity.RecordSuccess"

	tbl, err := s.begin(ctx, op, class)
	if err != nil {
		return err
	}
	if strings.TrimSpace(id) == "" {
		return pgInvalid(op, "missing id")
	}
	now = pgNow(now)

	ct, err := s.pool.Exec(ctx,
		`UPDATE `+pgIdent(s.schema, tbl.name)+`
		    SET failed_attempts = 0,
		        locked_at = NULL,
		        updated_at = $2,
		        last_success_at = GREATEST(COALESCE(last_success_at, $2), $2)
		  WHERE id = $1`,
		id, now,
	)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return NotFoundError{Op: op, Resource: string(class)}
	}
	return nil
}

// SetStatus changes the status of a shopper (e.g. suspension).
func (s *PostgresStore) SetStatus(ctx context.Context, id string, status Status) error {
	const op = "identity.SetStatus"

	if _, err := s.begin(ctx, op, ClassShopper); err != nil {
		return err
	}
	if status != StatusActive && status != StatusSuspended {
		return pgInvalid(op, "unknown status")
	}

	ct, err := s.pool.Exec(ctx,
		`UPDATE `+pgIdent(s.schema, "shopper_identities")+`
		    SET status = $2, updated_at = now()
		  WHERE id = $1`,
		id, string(status),
	)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return NotFoundError{Op: op, Resource: "shopper"}
	}
	return nil
}

// ---- helpers ----

// begin runs the common preconditions of every store method.
func (s *PostgresStore) begin(ctx context.Context, op string, class Class) (pgTable, error) {
	if s == nil || s.pool == nil {
		return pgTable{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: "nil store"}
	}
	if err := ctx.Err(); err != nil {
		return pgTable{}, err
	}
	tbl, ok := pgTableFor(class)
	if !ok {
		return pgTable{}, pgInvalid(op, "unknown class")
	}
	return tbl, nil
}

func pgNow(t time.Time) time.Time {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UTC().Truncate(time.Microsecond)
}

func pgUTCPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

// pgInvalid standardizes invalid input errors.
func pgInvalid(op, msg string) error {
	return OpError{Op: op, Kind: ErrInvalidInput, Msg: msg}
}

// pgIdentIsValid checks if a string is a safe Postgres identifier.
func pgIdentIsValid(s string) bool {
	return pgIdentRe.MatchString(s)
}

// pgIdent safely quotes a schema-qualified identifier: "schema"."name".
func pgIdent(schema, name string) string {
	return pgx.Identifier{schema, name}.Sanitize()
}

func pgClassifyUniqueViolation(err error) (field string, ok bool) {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return "", false
	}
	if pgErr.Code != "23505" { // unique_violation
		return "", false
	}

	// Prefer stable schema constraint names. Fall back to heuristic substring matching.
	c := strings.ToLower(strings.TrimSpace(pgErr.ConstraintName))

	switch c {
	case "idx_shopper_identities_email":
		return "email", true
	case "idx_admin_identities_username":
		return "username", true
	case "idx_shopper_identities_provider_uid":
		return "external_account", true
	default:
		switch {
		case strings.Contains(c, "provider"), strings.Contains(c, "uid"):
			return "external_account", true
		case strings.Contains(c, "username"):
			return "username", true
		case strings.Contains(c, "email"):
			return "email", true
		default:
			return "unique", true
		}
	}
}
