package app

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// cheapArgon2 keeps password hashing fast for runtime tests.
func cheapArgon2(t *testing.T) {
	t.Helper()
	t.Setenv("STOREFRONT_ARGON2_MEMORY_KIB", "8192")
	t.Setenv("STOREFRONT_ARGON2_ITERATIONS", "1")
	t.Setenv("STOREFRONT_ARGON2_PARALLELISM", "1")
}

func newInMemoryApp(t *testing.T, cfg Config) *App {
	t.Helper()
	cheapArgon2(t)

	a, err := New(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = a.store.Close(context.Background()) })
	return a
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
	return rr
}

func TestApp_HealthAndReadiness(t *testing.T) {
	a := newInMemoryApp(t, Config{})
	h := a.Handler()

	if rr := get(t, h, "/healthz"); rr.Code != http.StatusOK {
		t.Fatalf("healthz status=%d", rr.Code)
	}
	if rr := get(t, h, "/readyz"); rr.Code != http.StatusOK {
		t.Fatalf("readyz status=%d", rr.Code)
	}
	if a.dbEnabled {
		t.Fatalf("empty DatabaseURL must select the in-memory store")
	}
}

func TestApp_ReadinessRequiresDB(t *testing.T) {
	a := newInMemoryApp(t, Config{ReadinessRequireDB: true})

	if rr := get(t, a.Handler(), "/readyz"); rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("readyz status=%d want 503", rr.Code)
	}
}

func TestApp_AuthRoutesAndMetrics(t *testing.T) {
	a := newInMemoryApp(t, Config{})
	h := a.Handler()

	body := `{"user":{"email":"jane@example.com","password":"correct horse battery","password_confirmation":"correct horse battery","name":"Jane"}}`
	req := httptest.NewRequest(http.MethodPost, "/v1/shoppers", strings.NewReader(body))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusCreated {
		t.Fatalf("register status=%d body=%s", rr.Code, rr.Body.String())
	}
	if got := rr.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Fatalf("security headers not applied: %q", got)
	}

	req = httptest.NewRequest(http.MethodPost, "/v1/shoppers/sign_in", strings.NewReader(`{"user":{"email":"jane@example.com","password":"wrong password!"}}`))
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("sign in status=%d", rr.Code)
	}

	metrics := get(t, h, "/metrics")
	if metrics.Code != http.StatusOK {
		t.Fatalf("metrics status=%d", metrics.Code)
	}
	out := metrics.Body.String()
	for _, want := range []string{
		`storefront_identity_registrations_total{outcome="success"} 1`,
		`storefront_identity_signin_total{class="shopper",outcome="invalid_credentials"} 1`,
		`storefront_http_requests_total{method="POST",route="POST /v1/shoppers",status="201"} 1`,
		"go_goroutines",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("metrics output missing %q", want)
		}
	}
}

func TestApp_RequireLogHMAC(t *testing.T) {
	cheapArgon2(t)
	t.Setenv("STOREFRONT_LOG_HMAC_KEY", "")

	_, err := New(Config{RequireLogHMAC: true}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err == nil || !strings.Contains(err.Error(), "STOREFRONT_LOG_HMAC_KEY is missing") {
		t.Fatalf("expected missing-key policy error, got %v", err)
	}
}

func TestApp_InvalidIdentityConfig(t *testing.T) {
	cheapArgon2(t)
	t.Setenv("STOREFRONT_MAX_FAILED_ATTEMPTS", "0")

	if _, err := New(Config{}, slog.New(slog.NewTextHandler(io.Discard, nil))); err == nil {
		t.Fatalf("expected identity config error")
	}
}
