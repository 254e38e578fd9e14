package identity

import (
	"bytes"
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"storefront/cmd/security/password"
)

// testHasher is the production hasher at the cheapest accepted cost.
func testHasher() password.Config {
	cfg := password.DefaultConfig()
	cfg.Params.MemoryKiB = 8 * 1024
	cfg.Params.Iterations = 1
	cfg.Params.Parallelism = 1
	return cfg
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// countingHasher counts Verify calls.
type countingHasher struct {
	PasswordHasher
	verifies atomic.Int64
}

func (h *countingHasher) Verify(encoded, plain string) (bool, error) {
	h.verifies.Add(1)
	return h.PasswordHasher.Verify(encoded, plain)
}

type fixture struct {
	svc   *Service
	store *MemoryStore
	clock *fakeClock
	logs  *bytes.Buffer
}

func newFixture(t *testing.T, opts ...ServiceOption) fixture {
	t.Helper()

	store := NewMemoryStore()
	clock := newFakeClock()
	logs := &bytes.Buffer{}
	logger := slog.New(slog.NewJSONHandler(&lockedWriter{w: logs}, &slog.HandlerOptions{Level: slog.LevelDebug}))

	all := append([]ServiceOption{WithClock(clock), WithLogger(logger)}, opts...)
	svc, err := NewService(store, testHasher(), DefaultConfig(), all...)
	require.NoError(t, err)

	return fixture{svc: svc, store: store, clock: clock, logs: logs}
}

func (f fixture) registerJane(t *testing.T) Identity {
	t.Helper()
	id, err := f.svc.RegisterShopper(context.Background(), RegisterShopperInput{
		Email:                "shopper@example.com",
		Password:             "securepassword123",
		PasswordConfirmation: "securepassword123",
		Name:                 "Jane Doe",
	})
	require.NoError(t, err)
	return id
}

type lockedWriter struct {
	mu sync.Mutex
	w  *bytes.Buffer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}
