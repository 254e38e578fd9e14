// Package app wires the storefront identity runtime: config, logging,
// credential storage, metrics and HTTP routes.
package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"storefront/cmd/identity"
	authapi "storefront/cmd/internal/auth/api"
	"storefront/cmd/security/fingerprint"
	"storefront/cmd/security/password"
)

// Store is a small app-level lifecycle abstraction.
// It exists to allow DB-backed resources to be closed gracefully.
type Store interface {
	Close(ctx context.Context) error
}

// nopStore is used for in-memory store mode.
type nopStore struct{}

func (nopStore) Close(_ context.Context) error { return nil }

type dbStore struct {
	pool *pgxpool.Pool
}

func (s dbStore) Close(_ context.Context) error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}

// App is the storefront server runtime: it owns HTTP server wiring and the
// identity service dependencies.
type App struct {
	cfg Config
	log Logger

	store Store

	dbPool    *pgxpool.Pool
	dbEnabled bool

	registry *prometheus.Registry
	http     *HTTPMetrics
	identity *identity.Service
	auth     *authapi.Handler
}

// New constructs a fully wired App instance from config and logger.
func New(cfg Config, log Logger) (*App, error) {
	if log == nil {
		log = NewLogger(cfg.LogLevel, cfg.LogFormat)
	}

	fp, err := ValidateSecurityConfig(cfg)
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	ctx := context.Background()
	st, creds, dbPool, dbEnabled, err := newStore(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	svc, err := NewIdentityService(creds, log, reg, fp)
	if err != nil {
		_ = st.Close(ctx)
		return nil, err
	}

	authHandler, err := authapi.NewHandler(log, svc, authapi.LoadConfigFromEnv())
	if err != nil {
		_ = st.Close(ctx)
		return nil, err
	}

	return &App{
		cfg:       cfg,
		log:       log,
		store:     st,
		dbPool:    dbPool,
		dbEnabled: dbEnabled,
		registry:  reg,
		http:      NewHTTPMetrics(reg),
		identity:  svc,
		auth:      authHandler,
	}, nil
}

// NewIdentityService builds the identity service from environment-driven
// password and lockout settings. reg may be nil to skip metrics.
func NewIdentityService(store identity.CredentialStore, log Logger, reg prometheus.Registerer, fp fingerprint.Fingerprinter) (*identity.Service, error) {
	hasher, err := password.FromEnv()
	if err != nil {
		return nil, err
	}
	idCfg, err := identity.ConfigFromEnv()
	if err != nil {
		return nil, err
	}

	opts := []identity.ServiceOption{
		identity.WithLogger(log),
		identity.WithFingerprinter(fp),
	}
	if reg != nil {
		opts = append(opts, identity.WithMetrics(identity.NewMetrics(reg)))
	}
	return identity.NewService(store, hasher, idCfg, opts...)
}

// Handler returns the fully wrapped HTTP handler served by Run.
func (a *App) Handler() http.Handler {
	mux := http.NewServeMux()
	registerHTTP(mux, a.log, a.cfg, a.dbPool, a.dbEnabled, a.registry, a.auth)

	var h http.Handler = mux
	h = WithHTTPMetrics(h, a.http)
	h = WithSecurityHeaders(h)
	h = WithRequestLogging(h, a.log)
	h = WithCORS(h, a.cfg, a.log)
	h = WithRequestID(h)
	return h
}

// Run starts the HTTP server and blocks until context cancellation or fatal server error.
func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           a.Handler(),
		ReadHeaderTimeout: nonZeroDuration(a.cfg.ReadHeaderTimeout, 5*time.Second),
		ReadTimeout:       nonZeroDuration(a.cfg.ReadTimeout, 15*time.Second),
		WriteTimeout:      nonZeroDuration(a.cfg.WriteTimeout, 15*time.Second),
		IdleTimeout:       nonZeroDuration(a.cfg.IdleTimeout, 60*time.Second),
		MaxHeaderBytes:    nonZeroInt(a.cfg.MaxHeaderBytes, 1<<20),
	}

	a.log.Info("server.start", "addr", a.cfg.HTTPAddr, "db_enabled", a.dbEnabled)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		a.log.Info("server.stop", "reason", "context_done")
	case err := <-errCh:
		a.log.Error("server.fail", "err", err)
		_ = a.store.Close(context.Background())
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.log.Error("server.shutdown.fail", "err", err)
		return err
	}

	if err := a.store.Close(shutdownCtx); err != nil {
		a.log.Error("store.close.fail", "err", err)
	}

	a.log.Info("server.stopped")
	return nil
}

func nonZeroDuration(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}

func nonZeroInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// newStore decides between the Postgres credential store and the in-memory dev store.
func newStore(ctx context.Context, cfg Config, log Logger) (Store, identity.CredentialStore, *pgxpool.Pool, bool, error) {
	if cfg.DatabaseURL == "" {
		log.Info("db.disabled.inmemory_store")
		return nopStore{}, identity.NewMemoryStore(), nil, false, nil
	}

	pool, creds, err := OpenPostgresStore(ctx, cfg, log)
	if err != nil {
		return nil, nil, nil, false, err
	}

	log.Info("db.enabled.postgres_store", "schema", creds.Schema())

	// Ownership model:
	// - app owns pool lifecycle
	// - PostgresStore never closes the pool
	return dbStore{pool: pool}, creds, pool, true, nil
}

// OpenPostgresStore connects, optionally migrates, and returns the Postgres
// credential store. The caller owns the returned pool.
func OpenPostgresStore(ctx context.Context, cfg Config, log Logger) (*pgxpool.Pool, *identity.PostgresStore, error) {
	pool, err := NewDBPool(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	if cfg.AutoMigrate {
		if err := identity.Migrate(ctx, pool, cfg.DBSchema); err != nil {
			pool.Close()
			return nil, nil, err
		}
		log.Info("db.migrate.ok", "schema", cfg.DBSchema)
	}

	creds, err := identity.NewPostgresStore(pool, identity.WithSchema(cfg.DBSchema))
	if err != nil {
		pool.Close()
		return nil, nil, err
	}
	return pool, creds, nil
}
