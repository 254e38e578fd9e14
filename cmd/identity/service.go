package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"

	"storefront/cmd/security/fingerprint"
	"storefront/cmd/security/password"
)

// PasswordHasher hashes and verifies credentials. password.Config satisfies it.
type PasswordHasher interface {
	Hash(plain string) (string, error)
	Verify(encoded, plain string) (bool, error)
}

// PasswordGenerator produces provisioning passwords. password.Generator satisfies it.
type PasswordGenerator interface {
	Generate() (string, error)
}

// Fingerprinter maps identifiers to log-safe fingerprints.
type Fingerprinter interface {
	Fingerprint(s string) string
}

// SessionPolicy is the set of parameters the external session layer honors
// for one principal class.
type SessionPolicy struct {
	MaxAge            time.Duration
	LockDuration      time.Duration
	MaxFailedAttempts int
}

// RegisterShopperInput is a shopper self-registration request.
type RegisterShopperInput struct {
	Email                string `json:"email" validate:"required,email,max=255"`
	Password             string `json:"password"`
	PasswordConfirmation string `json:"password_confirmation"`
	Name                 string `json:"name" validate:"required,max=100"`
}

const maxUsernameLength = 100

// dummyPassword is hashed once and verified against on unknown identifiers so
// that both branches pay for one hash verification. It is exactly
// password.GeneratedLength runes long, a length every accepted policy admits.
const dummyPassword = "storefront-timing-equal!"

// Service orchestrates sign-in, shopper registration and admin provisioning.
// It is safe for concurrent use.
type Service struct {
	store  CredentialStore
	hasher PasswordHasher
	cfg    Config

	clock    Clock
	log      *slog.Logger
	metrics  *Metrics
	gen      PasswordGenerator
	fp       Fingerprinter
	validate *validator.Validate

	dummyOnce sync.Once
	dummyHash string
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithClock overrides the wall clock.
func WithClock(c Clock) ServiceOption {
	return func(s *Service) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) ServiceOption {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

// WithMetrics enables outcome counters.
func WithMetrics(m *Metrics) ServiceOption {
	return func(s *Service) { s.metrics = m }
}

// WithGenerator overrides the provisioning password generator.
func WithGenerator(g PasswordGenerator) ServiceOption {
	return func(s *Service) {
		if g != nil {
			s.gen = g
		}
	}
}

// WithFingerprinter sets how identifiers appear in logs.
func WithFingerprinter(f Fingerprinter) ServiceOption {
	return func(s *Service) {
		if f != nil {
			s.fp = f
		}
	}
}

// NewService constructs a Service. The store and hasher are required.
func NewService(store CredentialStore, hasher PasswordHasher, cfg Config, opts ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, errors.New("identity: nil credential store")
	}
	if hasher == nil {
		return nil, errors.New("identity: nil password hasher")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})

	s := &Service{
		store:    store,
		hasher:   hasher,
		cfg:      cfg,
		clock:    SystemClock{},
		log:      slog.New(slog.DiscardHandler),
		gen:      password.NewGenerator(),
		fp:       fingerprint.New(nil),
		validate: v,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

// SessionPolicy returns the session-layer parameters of class.
func (s *Service) SessionPolicy(class Class) SessionPolicy {
	cc := s.cfg.For(class)
	return SessionPolicy{
		MaxAge:            cc.SessionMaxAge,
		LockDuration:      cc.LockDuration,
		MaxFailedAttempts: cc.MaxFailedAttempts,
	}
}

// SignInShopper authenticates a shopper by email.
func (s *Service) SignInShopper(ctx context.Context, email, plain string) (Identity, error) {
	return s.signIn(ctx, "identity.SignInShopper", ClassShopper, email, plain)
}

// SignInAdmin authenticates an administrator by username.
func (s *Service) SignInAdmin(ctx context.Context, username, plain string) (Identity, error) {
	return s.signIn(ctx, "identity.SignInAdmin", ClassAdmin, username, plain)
}

func (s *Service) signIn(ctx context.Context, op string, class Class, identifier, plain string) (Identity, error) {
	if err := ctx.Err(); err != nil {
		return Identity{}, internalErr(op, err)
	}

	now := s.clock.Now()
	lp := s.cfg.For(class).Lockout()
	norm := NormalizeIdentifier(class, identifier)
	log := s.log.With("op", op, "class", string(class), "identifier_fp", s.fp.Fingerprint(norm))

	if norm == "" {
		s.equalizeTiming(plain)
		return s.signInFailed(log, class, OpError{Op: op, Kind: ErrInvalidCredentials})
	}

	rec, err := s.store.FindByIdentifier(ctx, class, norm)
	if err != nil {
		if IsNotFound(err) {
			s.equalizeTiming(plain)
			return s.signInFailed(log, class, OpError{Op: op, Kind: ErrInvalidCredentials})
		}
		return s.signInFailed(log, class, internalErr(op, err))
	}
	log = log.With("identity_id", rec.ID)

	// Locked accounts are rejected before any hash work and are not counted.
	if lp.Locked(rec.LockedAt, now) {
		until, _ := lp.LockedUntil(rec.LockedAt)
		return s.signInFailed(log, class, OpError{Op: op, Kind: ErrAccountLocked, Msg: "locked until " + until.Format(time.RFC3339)})
	}
	if class == ClassShopper && rec.Status == StatusSuspended {
		return s.signInFailed(log, class, OpError{Op: op, Kind: ErrAccountSuspended})
	}

	ok, err := s.hasher.Verify(rec.CredentialHash, plain)
	if err != nil {
		return s.signInFailed(log, class, internalErr(op, err))
	}

	if ok {
		if rec.FailedAttempts > 0 || rec.LockedAt != nil {
			if err := s.store.RecordSuccess(ctx, class, rec.ID, now); err != nil {
				return s.signInFailed(log, class, internalErr(op, err))
			}
			rec.FailedAttempts = 0
			rec.LockedAt = nil
			rec.UpdatedAt = now
		}
		s.metrics.signIn(class, OutcomeSuccess)
		log.Info("identity.signin.ok")
		return rec.Identity, nil
	}

	st, err := s.store.RecordFailure(ctx, FailureInput{Class: class, ID: rec.ID, Now: now, Lockout: lp})
	if err != nil {
		return s.signInFailed(log, class, internalErr(op, err))
	}
	if st.JustLocked {
		s.metrics.lockout(class)
		log.Warn("identity.lockout", "failed_attempts", st.FailedAttempts)
	}
	if lp.Locked(st.LockedAt, now) {
		return s.signInFailed(log, class, OpError{Op: op, Kind: ErrAccountLocked})
	}
	return s.signInFailed(log, class, OpError{Op: op, Kind: ErrInvalidCredentials, Msg: fmt.Sprintf("failed_attempts=%d", st.FailedAttempts)})
}

func (s *Service) signInFailed(log *slog.Logger, class Class, err error) (Identity, error) {
	outcome := outcomeOf(err)
	s.metrics.signIn(class, outcome)
	if outcome == OutcomeError {
		log.Error("identity.signin.error", "err", err)
	} else {
		log.Info("identity.signin.fail", "reason", outcome)
	}
	return Identity{}, err
}

// equalizeTiming performs one throwaway verification.
func (s *Service) equalizeTiming(plain string) {
	s.dummyOnce.Do(func() {
		if h, err := s.hasher.Hash(dummyPassword); err == nil {
			s.dummyHash = h
		}
	})
	if s.dummyHash != "" {
		_, _ = s.hasher.Verify(s.dummyHash, plain)
	}
}

// RegisterShopper creates a shopper identity. All field problems are reported
// together as a *ValidationError; a taken email is reported on "email".
func (s *Service) RegisterShopper(ctx context.Context, in RegisterShopperInput) (Identity, error) {
	const op = "identity.RegisterShopper"

	if err := ctx.Err(); err != nil {
		return Identity{}, internalErr(op, err)
	}

	in.Email = NormalizeEmail(in.Email)
	in.Name = strings.TrimSpace(in.Name)
	log := s.log.With("op", op, "identifier_fp", s.fp.Fingerprint(in.Email))

	ve := &ValidationError{Op: op}
	s.validateStruct(ve, in)
	if in.PasswordConfirmation != in.Password {
		ve.Add("password_confirmation", msgConfirmationMismatch)
	}
	if err := validatePassword(s.cfg.Password, in.Password, ClassShopper); err != nil {
		if pve, ok := AsValidation(err); ok {
			for _, m := range pve.Fields["password"] {
				ve.Add("password", m)
			}
		}
	}
	if err := ve.errOrNil(); err != nil {
		return s.registerFailed(log, err)
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		if pve := passwordHashValidation(op, err); pve != nil {
			return s.registerFailed(log, pve)
		}
		return s.registerFailed(log, internalErr(op, err))
	}

	id, err := s.store.Create(ctx, CreateInput{
		Class:          ClassShopper,
		Identifier:     in.Email,
		CredentialHash: hash,
		Status:         StatusActive,
		Shopper:        &ShopperProfile{Name: in.Name},
		Now:            s.clock.Now(),
	})
	if err != nil {
		if IsConflict(err) {
			taken := &ValidationError{Op: op}
			taken.Add("email", msgTaken)
			return s.registerFailed(log, taken)
		}
		if IsInvalidInput(err) {
			return s.registerFailed(log, err)
		}
		return s.registerFailed(log, internalErr(op, err))
	}

	s.metrics.registration(OutcomeSuccess)
	log.Info("identity.register.ok", "identity_id", id.ID)
	return id, nil
}

func (s *Service) registerFailed(log *slog.Logger, err error) (Identity, error) {
	outcome := outcomeOf(err)
	s.metrics.registration(outcome)
	if outcome == OutcomeError {
		log.Error("identity.register.error", "err", err)
	} else {
		log.Info("identity.register.fail", "reason", outcome)
	}
	return Identity{}, err
}

// ProvisionAdmin creates an administrator with a generated password and
// returns that password exactly once.
func (s *Service) ProvisionAdmin(ctx context.Context, username string) (Provisioned, error) {
	const op = "identity.ProvisionAdmin"

	if err := ctx.Err(); err != nil {
		return Provisioned{}, internalErr(op, err)
	}

	norm := NormalizeUsername(username)
	log := s.log.With("op", op, "identifier_fp", s.fp.Fingerprint(norm))

	ve := &ValidationError{Op: op}
	switch {
	case norm == "":
		ve.Add("username", msgBlank)
	case utf8.RuneCountInString(norm) > maxUsernameLength:
		ve.Add("username", fmt.Sprintf("is too long (maximum is %d characters)", maxUsernameLength))
	}
	if err := ve.errOrNil(); err != nil {
		return s.provisionFailed(log, err)
	}

	exists, err := s.store.ExistsByIdentifier(ctx, ClassAdmin, norm)
	if err != nil {
		return s.provisionFailed(log, internalErr(op, err))
	}
	if exists {
		return s.provisionFailed(log, OpError{Op: op, Kind: ErrUsernameExists})
	}

	plain, err := s.gen.Generate()
	if err != nil {
		return s.provisionFailed(log, internalErr(op, err))
	}
	if !password.MeetsGeneratedPolicy(plain) {
		return s.provisionFailed(log, internalErr(op, errors.New("generated password does not meet policy")))
	}

	hash, err := s.hasher.Hash(plain)
	if err != nil {
		return s.provisionFailed(log, internalErr(op, err))
	}

	id, err := s.store.Create(ctx, CreateInput{
		Class:          ClassAdmin,
		Identifier:     norm,
		CredentialHash: hash,
		Status:         StatusActive,
		Now:            s.clock.Now(),
	})
	if err != nil {
		if IsConflict(err) {
			// Lost a race with a concurrent provision of the same username.
			return s.provisionFailed(log, OpError{Op: op, Kind: ErrUsernameExists})
		}
		return s.provisionFailed(log, internalErr(op, err))
	}

	s.metrics.provision(OutcomeSuccess)
	log.Info("identity.provision.ok", "identity_id", id.ID)
	return Provisioned{Identity: id, Password: plain}, nil
}

func (s *Service) provisionFailed(log *slog.Logger, err error) (Provisioned, error) {
	outcome := outcomeOf(err)
	s.metrics.provision(outcome)
	if outcome == OutcomeError {
		log.Error("identity.provision.error", "err", err)
	} else {
		log.Info("identity.provision.fail", "reason", outcome)
	}
	return Provisioned{}, err
}

// validateStruct runs the struct tags of in and adds one message per failing field.
func (s *Service) validateStruct(ve *ValidationError, in RegisterShopperInput) {
	err := s.validate.Struct(in)
	if err == nil {
		return
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		ve.Add("base", "is invalid")
		return
	}
	for _, fe := range verrs {
		ve.Add(fe.Field(), tagMessage(fe))
	}
}

func tagMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return msgBlank
	case "max":
		return fmt.Sprintf("is too long (maximum is %s characters)", fe.Param())
	default:
		return "is invalid"
	}
}

// passwordHashValidation converts a policy rejection from the hasher into a
// field error; it returns nil for any other failure.
func passwordHashValidation(op string, err error) error {
	switch {
	case errors.Is(err, password.ErrPasswordTooShort),
		errors.Is(err, password.ErrPasswordTooLong),
		errors.Is(err, password.ErrWeakPassword):
		ve := &ValidationError{Op: op}
		ve.Add("password", "is invalid")
		return ve
	default:
		return nil
	}
}
