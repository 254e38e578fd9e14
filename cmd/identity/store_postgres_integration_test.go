package identity

import (
	"context"
	"errors"
	"net"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"golang.org/x/sync/errgroup"
)

// Integration tests are opt-in:
//   - STOREFRONT_TEST_DATABASE_URL points at an existing Postgres, or
//   - STOREFRONT_TEST_CONTAINERS=1 starts a throwaway Postgres through Docker.
// Otherwise (or when Postgres/Docker is unreachable) they are skipped.

var (
	pgOnce      sync.Once
	pgDSN       string
	pgSkip      string
	pgContainer *postgres.PostgresContainer
)

func TestMain(m *testing.M) {
	code := m.Run()
	if pgContainer != nil {
		_ = pgContainer.Terminate(context.Background())
	}
	os.Exit(code)
}

func testDSN(t *testing.T) string {
	t.Helper()

	pgOnce.Do(func() {
		if raw := strings.TrimSpace(os.Getenv("STOREFRONT_TEST_DATABASE_URL")); raw != "" {
			pgDSN = raw
			return
		}
		if os.Getenv("STOREFRONT_TEST_CONTAINERS") != "1" {
			pgSkip = "integration test skipped: set STOREFRONT_TEST_DATABASE_URL or STOREFRONT_TEST_CONTAINERS=1"
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()

		c, err := postgres.Run(ctx,
			"postgres:16-alpine",
			postgres.WithDatabase("storefront"),
			postgres.WithUsername("storefront"),
			postgres.WithPassword("storefront"),
			testcontainers.WithWaitStrategy(
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2).
					WithStartupTimeout(60*time.Second),
			),
		)
		if err != nil {
			pgSkip = "integration test skipped: cannot start Postgres container: " + err.Error()
			return
		}
		pgContainer = c

		dsn, err := c.ConnectionString(ctx, "sslmode=disable")
		if err != nil {
			pgSkip = "integration test skipped: container DSN: " + err.Error()
			return
		}
		pgDSN = dsn
	})

	if pgSkip != "" {
		t.Skip(pgSkip)
	}
	return pgDSN
}

func mustOpenTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	raw := testDSN(t)

	ctx, cancel := context.WithTimeout(context.Background(), 12*time.Second)
	defer cancel()

	cfg, err := pgxpool.ParseConfig(raw)
	if err != nil {
		t.Fatalf("parse database url: %v", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		t.Fatalf("connect postgres: %v", err)
	}

	// Validate acquire quickly (fast fail).
	pingCtx, pingCancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer pingCancel()

	c, err := pool.Acquire(pingCtx)
	if err != nil {
		pool.Close()
		if shouldSkipIntegration(err) {
			t.Skipf("integration test skipped: Postgres unreachable: %v", err)
		}
		t.Fatalf("acquire: %v", err)
	}
	c.Release()

	t.Cleanup(pool.Close)
	return pool
}

// mustMigratedStore returns a store over a fresh, migrated schema dropped at cleanup.
func mustMigratedStore(t *testing.T) (*PostgresStore, *pgxpool.Pool) {
	t.Helper()

	pool := mustOpenTestPool(t)

	id, err := NewULID(time.Now().UTC())
	require.NoError(t, err)
	schema := "storefront_it_" + strings.ToLower(id)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	require.NoError(t, Migrate(ctx, pool, schema))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_, _ = pool.Exec(ctx, `DROP SCHEMA IF EXISTS `+pgx.Identifier{schema}.Sanitize()+` CASCADE`)
	})

	s, err := NewPostgresStore(pool, WithSchema(schema))
	require.NoError(t, err)
	return s, pool
}

func shouldSkipIntegration(err error) bool {
	if os.Getenv("CI") != "" {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "no such host") ||
		strings.Contains(msg, "timeout")
}

func TestMigrate_Idempotent(t *testing.T) {
	t.Parallel()

	s, pool := mustMigratedStore(t)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	require.NoError(t, Migrate(ctx, pool, s.Schema()))
	require.Error(t, Migrate(ctx, pool, `bad"schema`))
}

func TestPostgresStore_CreateAndFind_CaseInsensitive(t *testing.T) {
	t.Parallel()

	s, _ := mustMigratedStore(t)
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	now := time.Now().UTC()
	created, err := s.Create(ctx, CreateInput{
		Class:          ClassShopper,
		Identifier:     "Test@Example.com",
		CredentialHash: "$argon2id$v=19$placeholder",
		Shopper: &ShopperProfile{
			Name:     "Test",
			External: &ExternalAccount{Provider: "google", UID: "42"},
		},
		Now: now,
	})
	require.NoError(t, err)
	assert.Equal(t, "test@example.com", created.Identifier)

	rec, err := s.FindByIdentifier(ctx, ClassShopper, "TEST@EXAMPLE.COM")
	require.NoError(t, err)
	assert.Equal(t, created.ID, rec.ID)
	assert.Equal(t, StatusActive, rec.Status)
	assert.Equal(t, "$argon2id$v=19$placeholder", rec.CredentialHash)
	require.NotNil(t, rec.Shopper)
	assert.Equal(t, "Test", rec.Shopper.Name)
	assert.False(t, rec.Shopper.EmailVerified)
	require.NotNil(t, rec.Shopper.External)
	assert.Equal(t, "google", rec.Shopper.External.Provider)

	exists, err := s.ExistsByIdentifier(ctx, ClassShopper, "test@example.com")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = s.ExistsByIdentifier(ctx, ClassAdmin, "test@example.com")
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = s.FindByIdentifier(ctx, ClassShopper, "nobody@example.com")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestPostgresStore_CreateConflicts(t *testing.T) {
	t.Parallel()

	s, _ := mustMigratedStore(t)
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	now := time.Now().UTC()

	_, err := s.Create(ctx, CreateInput{Class: ClassAdmin, Identifier: "Navid", CredentialHash: "h", Now: now})
	require.NoError(t, err)

	_, err = s.Create(ctx, CreateInput{Class: ClassAdmin, Identifier: "nAvId", CredentialHash: "h", Now: now})
	var ce ConflictError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "username", ce.Field)

	_, err = s.Create(ctx, CreateInput{
		Class: ClassShopper, Identifier: "a@example.com", CredentialHash: "h",
		Shopper: &ShopperProfile{Name: "A", External: &ExternalAccount{Provider: "github", UID: "7"}}, Now: now,
	})
	require.NoError(t, err)

	_, err = s.Create(ctx, CreateInput{
		Class: ClassShopper, Identifier: "A@EXAMPLE.COM", CredentialHash: "h",
		Shopper: &ShopperProfile{Name: "A2"}, Now: now,
	})
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "email", ce.Field)

	_, err = s.Create(ctx, CreateInput{
		Class: ClassShopper, Identifier: "b@example.com", CredentialHash: "h",
		Shopper: &ShopperProfile{Name: "B", External: &ExternalAccount{Provider: "github", UID: "7"}}, Now: now,
	})
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "external_account", ce.Field)
}

func TestPostgresStore_ConcurrentFailures(t *testing.T) {
	t.Parallel()

	s, _ := mustMigratedStore(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	now := time.Now().UTC().Truncate(time.Microsecond)
	id, err := s.Create(ctx, CreateInput{
		Class: ClassShopper, Identifier: "race@example.com", CredentialHash: "h",
		Shopper: &ShopperProfile{Name: "Race"}, Now: now,
	})
	require.NoError(t, err)

	const n = 24
	var justLocked atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < n; i++ {
		g.Go(func() error {
			st, err := s.RecordFailure(gctx, FailureInput{Class: ClassShopper, ID: id.ID, Now: now, Lockout: DefaultLockoutPolicy()})
			if err != nil {
				return err
			}
			if st.JustLocked {
				justLocked.Add(1)
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	rec, err := s.FindByIdentifier(ctx, ClassShopper, "race@example.com")
	require.NoError(t, err)
	assert.Equal(t, n, rec.FailedAttempts)
	assert.Equal(t, int64(1), justLocked.Load())
	require.NotNil(t, rec.LockedAt)
	assert.True(t, rec.LockedAt.Equal(now))
}

func TestPostgresStore_SuccessResetsAndWins(t *testing.T) {
	t.Parallel()

	s, _ := mustMigratedStore(t)
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	t0 := time.Now().UTC().Truncate(time.Microsecond)
	id, err := s.Create(ctx, CreateInput{Class: ClassAdmin, Identifier: "ops", CredentialHash: "h", Now: t0})
	require.NoError(t, err)

	lp := DefaultLockoutPolicy()
	for i := 0; i < 5; i++ {
		_, err := s.RecordFailure(ctx, FailureInput{Class: ClassAdmin, ID: id.ID, Now: t0, Lockout: lp})
		require.NoError(t, err)
	}

	require.NoError(t, s.RecordSuccess(ctx, ClassAdmin, id.ID, t0.Add(2*time.Second)))

	rec, err := s.FindByIdentifier(ctx, ClassAdmin, "ops")
	require.NoError(t, err)
	assert.Equal(t, 0, rec.FailedAttempts)
	assert.Nil(t, rec.LockedAt)

	st, err := s.RecordFailure(ctx, FailureInput{Class: ClassAdmin, ID: id.ID, Now: t0.Add(time.Second), Lockout: lp})
	require.NoError(t, err)
	assert.True(t, st.Stale)

	require.ErrorIs(t, s.RecordSuccess(ctx, ClassAdmin, "01HZZZZZZZZZZZZZZZZZZZZZZZ", t0), ErrNotFound)
	_, err = s.RecordFailure(ctx, FailureInput{Class: ClassShopper, ID: id.ID, Now: t0, Lockout: lp})
	require.ErrorIs(t, err, ErrNotFound, "ids do not cross classes")
}

func TestPostgresStore_ServiceScenario(t *testing.T) {
	t.Parallel()

	s, _ := mustMigratedStore(t)
	clock := newFakeClock()
	svc, err := NewService(s, testHasher(), DefaultConfig(), WithClock(clock))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	_, err = svc.RegisterShopper(ctx, RegisterShopperInput{
		Email:                "shopper@example.com",
		Password:             "securepassword123",
		PasswordConfirmation: "securepassword123",
		Name:                 "Jane Doe",
	})
	require.NoError(t, err)

	for i := 1; i <= 5; i++ {
		_, err = svc.SignInShopper(ctx, "shopper@example.com", "wrong-password-1")
		if i < 5 {
			require.ErrorIs(t, err, ErrInvalidCredentials)
		} else {
			require.ErrorIs(t, err, ErrAccountLocked)
		}
	}

	_, err = svc.SignInShopper(ctx, "shopper@example.com", "securepassword123")
	require.ErrorIs(t, err, ErrAccountLocked)

	clock.Advance(3601 * time.Second)
	id, err := svc.SignInShopper(ctx, "SHOPPER@example.com", "securepassword123")
	require.NoError(t, err)
	assert.Equal(t, 0, id.FailedAttempts)

	require.NoError(t, s.SetStatus(ctx, id.ID, StatusSuspended))
	_, err = svc.SignInShopper(ctx, "shopper@example.com", "securepassword123")
	require.ErrorIs(t, err, ErrAccountSuspended)

	p, err := svc.ProvisionAdmin(ctx, "Root")
	require.NoError(t, err)
	_, err = svc.SignInAdmin(ctx, "root", p.Password)
	require.NoError(t, err)
	_, err = svc.ProvisionAdmin(ctx, "ROOT")
	require.ErrorIs(t, err, ErrUsernameExists)
}
