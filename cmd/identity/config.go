package identity

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"storefront/cmd/security/password"
)

// ClassConfig holds the per-class authentication parameters.
type ClassConfig struct {
	MaxFailedAttempts int
	LockDuration      time.Duration

	// SessionMaxAge is the inactivity timeout enforced by the session layer.
	SessionMaxAge time.Duration
}

// Lockout returns the lockout policy of this class.
func (c ClassConfig) Lockout() LockoutPolicy {
	return LockoutPolicy{MaxFailedAttempts: c.MaxFailedAttempts, LockDuration: c.LockDuration}
}

// Config is the Service configuration.
type Config struct {
	Shopper ClassConfig
	Admin   ClassConfig

	// Password bounds user-chosen (shopper) passwords.
	Password password.Policy
}

// DefaultConfig returns the storefront defaults: both classes lock after 5
// failures for 1 hour; shopper sessions expire after 24h of inactivity and
// admin sessions after 30m.
func DefaultConfig() Config {
	lp := DefaultLockoutPolicy()
	return Config{
		Shopper: ClassConfig{
			MaxFailedAttempts: lp.MaxFailedAttempts,
			LockDuration:      lp.LockDuration,
			SessionMaxAge:     24 * time.Hour,
		},
		Admin: ClassConfig{
			MaxFailedAttempts: lp.MaxFailedAttempts,
			LockDuration:      lp.LockDuration,
			SessionMaxAge:     30 * time.Minute,
		},
		Password: password.DefaultConfig().Policy,
	}
}

// For returns the configuration of class.
func (c Config) For(class Class) ClassConfig {
	if class == ClassAdmin {
		return c.Admin
	}
	return c.Shopper
}

// Validate checks the configuration for obviously broken values.
func (c Config) Validate() error {
	for _, cls := range []Class{ClassShopper, ClassAdmin} {
		cc := c.For(cls)
		if err := cc.Lockout().Validate(); err != nil {
			return fmt.Errorf("%s: %w", cls, err)
		}
		if cc.SessionMaxAge <= 0 {
			return fmt.Errorf("identity: %s session max age must be positive", cls)
		}
	}
	if c.Password.MinLength <= 0 || c.Password.MinLength > c.Password.MaxLength {
		return fmt.Errorf("identity: invalid password bounds [%d..%d]", c.Password.MinLength, c.Password.MaxLength)
	}
	return nil
}

// ConfigFromEnv loads Config on top of DefaultConfig.
//
// Env surface:
//   - STOREFRONT_LOCK_DURATION (Go duration, both classes)
//   - STOREFRONT_MAX_FAILED_ATTEMPTS (both classes)
//   - STOREFRONT_SHOPPER_SESSION_MAX_AGE
//   - STOREFRONT_ADMIN_SESSION_MAX_AGE
//   - password policy via password.FromEnv
func ConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()

	pw, err := password.FromEnv()
	if err != nil {
		return Config{}, err
	}
	cfg.Password = pw.Policy

	if v, ok := lookupEnv("STOREFRONT_LOCK_DURATION"); ok {
		d, err := parsePositiveDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("STOREFRONT_LOCK_DURATION: %w", err)
		}
		cfg.Shopper.LockDuration = d
		cfg.Admin.LockDuration = d
	}

	if v, ok := lookupEnv("STOREFRONT_MAX_FAILED_ATTEMPTS"); ok {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 1000 {
			return Config{}, fmt.Errorf("STOREFRONT_MAX_FAILED_ATTEMPTS: out of range [1..1000]")
		}
		cfg.Shopper.MaxFailedAttempts = n
		cfg.Admin.MaxFailedAttempts = n
	}

	if v, ok := lookupEnv("STOREFRONT_SHOPPER_SESSION_MAX_AGE"); ok {
		d, err := parsePositiveDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("STOREFRONT_SHOPPER_SESSION_MAX_AGE: %w", err)
		}
		cfg.Shopper.SessionMaxAge = d
	}

	if v, ok := lookupEnv("STOREFRONT_ADMIN_SESSION_MAX_AGE"); ok {
		d, err := parsePositiveDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("STOREFRONT_ADMIN_SESSION_MAX_AGE: %w", err)
		}
		cfg.Admin.SessionMaxAge = d
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func lookupEnv(k string) (string, bool) {
	v, ok := os.LookupEnv(k)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}

func parsePositiveDuration(s string) (time.Duration, error) {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", s)
	}
	if d <= 0 {
		return 0, fmt.Errorf("must be positive")
	}
	return d, nil
}
