package identity

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// DefaultSchema is the Postgres schema holding the identity tables.
const DefaultSchema = "identity"

// Migrate applies the embedded identity migrations to schema, creating it if
// needed. Goose bookkeeping lives in the same schema.
func Migrate(ctx context.Context, pool *pgxpool.Pool, schema string) error {
	const op = "identity.Migrate"

	if pool == nil {
		return OpError{Op: op, Kind: ErrInvalidInput, Msg: "nil pool"}
	}
	schema = strings.TrimSpace(schema)
	if schema == "" {
		schema = DefaultSchema
	}
	if !pgIdentIsValid(schema) {
		return OpError{Op: op, Kind: ErrInvalidInput, Msg: "invalid schema identifier"}
	}

	if _, err := pool.Exec(ctx, `CREATE SCHEMA IF NOT EXISTS `+pgx.Identifier{schema}.Sanitize()); err != nil {
		return fmt.Errorf("%s: create schema: %w", op, err)
	}

	// Unqualified names in the migrations resolve through search_path.
	cc := pool.Config().ConnConfig.Copy()
	if cc.RuntimeParams == nil {
		cc.RuntimeParams = make(map[string]string)
	}
	cc.RuntimeParams["search_path"] = schema

	db := stdlib.OpenDB(*cc)
	defer func() { _ = db.Close() }()

	fsys, err := fs.Sub(embedMigrations, "migrations")
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	provider, err := goose.NewProvider(goose.DialectPostgres, db, fsys)
	if err != nil {
		return fmt.Errorf("%s: goose: %w", op, err)
	}
	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("%s: up: %w", op, err)
	}
	return nil
}
