package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"storefront/cmd/identity"
)

// RunProvisionAdmin is the entrypoint of cmd/provision-admin. It creates one
// administrator in the configured database and prints the generated password
// to stdout exactly once. Logs go to stderr so stdout carries only the result.
func RunProvisionAdmin(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("provision-admin", flag.ContinueOnError)
	fs.SetOutput(stderr)
	username := fs.String("username", "", "administrator username (required)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *username == "" && fs.NArg() > 0 {
		*username = fs.Arg(0)
	}

	cfg := LoadConfig()
	log := newLogger(stderr, cfg.LogLevel, cfg.LogFormat)

	if cfg.DatabaseURL == "" {
		return errors.New("provision-admin: STOREFRONT_DATABASE_URL is required")
	}

	fp, err := ValidateSecurityConfig(cfg)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	pool, creds, err := OpenPostgresStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer pool.Close()

	svc, err := NewIdentityService(creds, log, nil, fp)
	if err != nil {
		return err
	}

	return ProvisionAdmin(ctx, svc, *username, stdout)
}

// ProvisionAdmin provisions username and writes the credentials to out.
// Validation failures are rendered as their full messages.
func ProvisionAdmin(ctx context.Context, svc *identity.Service, username string, out io.Writer) error {
	prov, err := svc.ProvisionAdmin(ctx, username)
	if err != nil {
		if ve, ok := identity.AsValidation(err); ok {
			return fmt.Errorf("provision-admin: %v", ve.FullMessages())
		}
		if errors.Is(err, identity.ErrUsernameExists) {
			return fmt.Errorf("provision-admin: username %q has already been taken", identity.NormalizeUsername(username))
		}
		return err
	}

	_, err = fmt.Fprintf(out,
		"Admin created.\nUsername: %s\nPassword: %s\nStore this password now; it will not be shown again.\n",
		prov.Identity.Identifier, prov.Password)
	return err
}
