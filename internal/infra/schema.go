package infra

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schemaStatements creates the persisted-state surface: users, wallets and the
// two append-only audit tables. Statements are idempotent so startup can run
// them unconditionally.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id uuid PRIMARY KEY,
		username text NOT NULL UNIQUE,
		email text NOT NULL UNIQUE,
		created_at timestamptz NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS wallets (
		id uuid PRIMARY KEY,
		owner_id uuid NOT NULL REFERENCES users (id),
		name text NOT NULL,
		legacy_private_key text NOT NULL,
		legacy_public_key text NOT NULL,
		address text NOT NULL UNIQUE,
		pq_public_key text,
		pq_seed text,
		balance double precision NOT NULL CHECK (balance >= 0),
		is_migrated boolean NOT NULL DEFAULT false,
		migrated_at timestamptz,
		created_at timestamptz NOT NULL,
		CHECK ((pq_public_key IS NULL) = (pq_seed IS NULL)),
		CHECK (is_migrated = (pq_public_key IS NOT NULL))
	)`,
	`CREATE INDEX IF NOT EXISTS wallets_owner_idx ON wallets (owner_id)`,
	`CREATE INDEX IF NOT EXISTS wallets_migrated_idx ON wallets (is_migrated)`,
	`CREATE TABLE IF NOT EXISTS migration_logs (
		id uuid PRIMARY KEY,
		user_id uuid NOT NULL,
		wallet_id uuid NOT NULL,
		old_key_hash text NOT NULL,
		new_key_hash text NOT NULL,
		transferred_balance double precision NOT NULL,
		status text NOT NULL,
		scheduled_for timestamptz,
		plan text,
		created_at timestamptz NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS migration_logs_user_idx ON migration_logs (user_id)`,
	`CREATE INDEX IF NOT EXISTS migration_logs_wallet_idx ON migration_logs (wallet_id)`,
	`CREATE TABLE IF NOT EXISTS attack_logs (
		id uuid PRIMARY KEY,
		wallet_id uuid NOT NULL,
		attack_type text NOT NULL,
		vulnerable boolean NOT NULL,
		signature_broken boolean NOT NULL,
		estimated_break_seconds double precision NOT NULL,
		created_at timestamptz NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS attack_logs_wallet_idx ON attack_logs (wallet_id)`,
	`CREATE INDEX IF NOT EXISTS attack_logs_created_idx ON attack_logs (created_at)`,
}

// EnsureSchema applies the table definitions at startup.
func EnsureSchema(ctx context.Context, db *pgxpool.Pool) error {
	for _, stmt := range schemaStatements {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}
