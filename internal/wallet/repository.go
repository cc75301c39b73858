package wallet

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrNotFound indicates the wallet id or address does not resolve.
	ErrNotFound = errors.New("wallet not found")
	// ErrAlreadyMigrated indicates the one-way migration flag is already set.
	// Retries after a genuine success must observe this, never a second success.
	ErrAlreadyMigrated = errors.New("wallet already migrated")
)

// Repository persists wallets. Migrate is the only mutation of key material
// after creation; it is a compare-and-set on the migration flag so the flag
// stays monotonic under concurrent callers.
type Repository interface {
	Create(ctx context.Context, w Wallet) error
	Get(ctx context.Context, id string) (Wallet, error)
	GetByAddress(ctx context.Context, address string) (Wallet, error)
	ListByOwner(ctx context.Context, ownerID string) ([]Wallet, error)
	Counts(ctx context.Context) (Counts, error)
	Migrate(ctx context.Context, id, pqPublicKey, pqSeed string, at time.Time) (Wallet, error)
}

// PostgresRepository stores wallets in PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a repository backed by PostgreSQL.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const walletColumns = `id, owner_id, name, legacy_private_key, legacy_public_key, address,
        COALESCE(pq_public_key, ''), COALESCE(pq_seed, ''), balance, is_migrated, migrated_at, created_at`

// Create inserts a wallet record.
func (r *PostgresRepository) Create(ctx context.Context, w Wallet) error {
	walletID, err := uuid.Parse(w.ID)
	if err != nil {
		return err
	}
	ownerID, err := uuid.Parse(w.OwnerID)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx, `INSERT INTO wallets
        (id, owner_id, name, legacy_private_key, legacy_public_key, address, balance, is_migrated, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, false, $8)`,
		walletID, ownerID, w.Name, w.LegacyPrivateKey, w.LegacyPublicKey, w.Address, w.Balance, w.CreatedAt.UTC())
	return err
}

// Get fetches a wallet by identifier.
func (r *PostgresRepository) Get(ctx context.Context, id string) (Wallet, error) {
	walletID, err := uuid.Parse(id)
	if err != nil {
		return Wallet{}, ErrNotFound
	}
	row := r.db.QueryRow(ctx, `SELECT `+walletColumns+` FROM wallets WHERE id = $1`, walletID)
	return scanWallet(row)
}

// GetByAddress fetches a wallet by its derived legacy address.
func (r *PostgresRepository) GetByAddress(ctx context.Context, address string) (Wallet, error) {
	row := r.db.QueryRow(ctx, `SELECT `+walletColumns+` FROM wallets WHERE address = $1`, address)
	return scanWallet(row)
}

// ListByOwner returns all wallets belonging to a user.
func (r *PostgresRepository) ListByOwner(ctx context.Context, ownerID string) ([]Wallet, error) {
	owner, err := uuid.Parse(ownerID)
	if err != nil {
		return nil, ErrNotFound
	}
	rows, err := r.db.Query(ctx, `SELECT `+walletColumns+` FROM wallets WHERE owner_id = $1 ORDER BY created_at`, owner)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var wallets []Wallet
	for rows.Next() {
		w, err := scanWallet(rows)
		if err != nil {
			return nil, err
		}
		wallets = append(wallets, w)
	}
	return wallets, rows.Err()
}

// Counts aggregates the global migration posture.
func (r *PostgresRepository) Counts(ctx context.Context) (Counts, error) {
	var c Counts
	err := r.db.QueryRow(ctx, `SELECT COUNT(*), COUNT(*) FILTER (WHERE is_migrated) FROM wallets`).
		Scan(&c.Total, &c.Migrated)
	if err != nil {
		return Counts{}, err
	}
	c.Vulnerable = c.Total - c.Migrated
	return c, nil
}

// Migrate sets the post-quantum key material and the migration flag if and only
// if the flag is still false. Balance is untouched.
func (r *PostgresRepository) Migrate(ctx context.Context, id, pqPublicKey, pqSeed string, at time.Time) (Wallet, error) {
	walletID, err := uuid.Parse(id)
	if err != nil {
		return Wallet{}, ErrNotFound
	}
	cmd, err := r.db.Exec(ctx, `UPDATE wallets
        SET pq_public_key = $2, pq_seed = $3, is_migrated = true, migrated_at = $4
        WHERE id = $1 AND is_migrated = false`,
		walletID, pqPublicKey, pqSeed, at.UTC())
	if err != nil {
		return Wallet{}, err
	}
	if cmd.RowsAffected() == 0 {
		existing, getErr := r.Get(ctx, id)
		if getErr != nil {
			return Wallet{}, ErrNotFound
		}
		if existing.Migrated {
			return Wallet{}, ErrAlreadyMigrated
		}
		return Wallet{}, ErrNotFound
	}
	return r.Get(ctx, id)
}

func scanWallet(row pgx.Row) (Wallet, error) {
	var (
		id         uuid.UUID
		ownerID    uuid.UUID
		migratedAt *time.Time
		createdAt  time.Time
		w          Wallet
	)
	err := row.Scan(&id, &ownerID, &w.Name, &w.LegacyPrivateKey, &w.LegacyPublicKey, &w.Address,
		&w.PQPublicKey, &w.PQSeed, &w.Balance, &w.Migrated, &migratedAt, &createdAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Wallet{}, ErrNotFound
		}
		return Wallet{}, err
	}
	w.ID = id.String()
	w.OwnerID = ownerID.String()
	w.MigratedAt = migratedAt
	w.CreatedAt = createdAt.UTC()
	return w, nil
}
