package migration

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Commit carries everything the store needs to perform the atomic migration
// write: new key material for the wallet row plus the audit fields for the log
// row. The transferred balance is read inside the store's own transaction so
// it is authoritative by construction.
type Commit struct {
	WalletID    string
	PQPublicKey string
	PQSeed      string
	OldKeyHash  string
	NewKeyHash  string
	Plan        string
	At          time.Time
}

// Repository persists migration and attack audit state. Commit must serialize
// the check-flag-then-write sequence per wallet: of two racing commits exactly
// one succeeds and the loser observes ErrAlreadyMigrated.
type Repository interface {
	Commit(ctx context.Context, c Commit) (Log, error)
	ListByUser(ctx context.Context, userID string) ([]Log, error)
	ListByWallet(ctx context.Context, walletID string) ([]Log, error)
	ListScheduled(ctx context.Context, now time.Time) ([]Log, error)
	AppendAttack(ctx context.Context, a Attack) (Attack, error)
	AttacksByWallet(ctx context.Context, walletID string) ([]Attack, error)
	RecentAttacks(ctx context.Context, since time.Time) ([]Attack, error)
}

// PostgresRepository implements Repository on PostgreSQL. The commit brackets
// the wallet flag check, the wallet update and the log insert in one
// transaction behind a row lock, so a failure at any point leaves the wallet
// unmigrated and writes no log row.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a Postgres-backed migration repository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Commit executes the atomic migration write.
func (r *PostgresRepository) Commit(ctx context.Context, c Commit) (Log, error) {
	walletID, err := uuid.Parse(c.WalletID)
	if err != nil {
		return Log{}, ErrWalletNotFound
	}

	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Log{}, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	var (
		ownerID  uuid.UUID
		balance  float64
		migrated bool
	)
	err = tx.QueryRow(ctx, `SELECT owner_id, balance, is_migrated FROM wallets WHERE id = $1 FOR UPDATE`, walletID).
		Scan(&ownerID, &balance, &migrated)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Log{}, ErrWalletNotFound
		}
		return Log{}, err
	}
	if migrated {
		return Log{}, ErrAlreadyMigrated
	}

	if _, err := tx.Exec(ctx, `UPDATE wallets
        SET pq_public_key = $2, pq_seed = $3, is_migrated = true, migrated_at = $4
        WHERE id = $1`, walletID, c.PQPublicKey, c.PQSeed, c.At.UTC()); err != nil {
		return Log{}, err
	}

	entry := Log{
		ID:                 uuid.New().String(),
		UserID:             ownerID.String(),
		WalletID:           c.WalletID,
		OldKeyHash:         c.OldKeyHash,
		NewKeyHash:         c.NewKeyHash,
		TransferredBalance: balance,
		Status:             StatusCompleted,
		Plan:               c.Plan,
		CreatedAt:          c.At.UTC(),
	}

	if _, err := tx.Exec(ctx, `INSERT INTO migration_logs
        (id, user_id, wallet_id, old_key_hash, new_key_hash, transferred_balance, status, scheduled_for, plan, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		uuid.MustParse(entry.ID), ownerID, walletID, entry.OldKeyHash, entry.NewKeyHash,
		entry.TransferredBalance, entry.Status, entry.ScheduledFor, entry.Plan, entry.CreatedAt); err != nil {
		return Log{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Log{}, err
	}

	return entry, nil
}

// ListByUser returns migration logs for a user, newest first.
func (r *PostgresRepository) ListByUser(ctx context.Context, userID string) ([]Log, error) {
	id, err := uuid.Parse(userID)
	if err != nil {
		return nil, nil
	}
	return r.queryLogs(ctx, `SELECT `+logColumns+` FROM migration_logs WHERE user_id = $1 ORDER BY created_at DESC`, id)
}

// ListByWallet returns migration logs for a wallet, newest first.
func (r *PostgresRepository) ListByWallet(ctx context.Context, walletID string) ([]Log, error) {
	id, err := uuid.Parse(walletID)
	if err != nil {
		return nil, nil
	}
	return r.queryLogs(ctx, `SELECT `+logColumns+` FROM migration_logs WHERE wallet_id = $1 ORDER BY created_at DESC`, id)
}

// ListScheduled returns pending migrations whose advisory schedule lies in the
// future, soonest first.
func (r *PostgresRepository) ListScheduled(ctx context.Context, now time.Time) ([]Log, error) {
	return r.queryLogs(ctx, `SELECT `+logColumns+` FROM migration_logs
        WHERE scheduled_for > $1 AND status = $2 ORDER BY scheduled_for`, now.UTC(), StatusPending)
}

const logColumns = `id, user_id, wallet_id, old_key_hash, new_key_hash, transferred_balance, status, scheduled_for, plan, created_at`

func (r *PostgresRepository) queryLogs(ctx context.Context, query string, args ...any) ([]Log, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []Log
	for rows.Next() {
		var (
			id       uuid.UUID
			userID   uuid.UUID
			walletID uuid.UUID
			entry    Log
		)
		if err := rows.Scan(&id, &userID, &walletID, &entry.OldKeyHash, &entry.NewKeyHash,
			&entry.TransferredBalance, &entry.Status, &entry.ScheduledFor, &entry.Plan, &entry.CreatedAt); err != nil {
			return nil, err
		}
		entry.ID = id.String()
		entry.UserID = userID.String()
		entry.WalletID = walletID.String()
		logs = append(logs, entry)
	}
	return logs, rows.Err()
}

// AppendAttack inserts one attack simulation record.
func (r *PostgresRepository) AppendAttack(ctx context.Context, a Attack) (Attack, error) {
	walletID, err := uuid.Parse(a.WalletID)
	if err != nil {
		return Attack{}, ErrWalletNotFound
	}
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	_, err = r.db.Exec(ctx, `INSERT INTO attack_logs
        (id, wallet_id, attack_type, vulnerable, signature_broken, estimated_break_seconds, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		uuid.MustParse(a.ID), walletID, a.AttackType, a.Vulnerable, a.SignatureBroken, a.EstimatedBreakSeconds, a.CreatedAt.UTC())
	if err != nil {
		return Attack{}, err
	}
	return a, nil
}

// AttacksByWallet returns attack records for a wallet, newest first.
func (r *PostgresRepository) AttacksByWallet(ctx context.Context, walletID string) ([]Attack, error) {
	id, err := uuid.Parse(walletID)
	if err != nil {
		return nil, nil
	}
	return r.queryAttacks(ctx, `SELECT `+attackColumns+` FROM attack_logs WHERE wallet_id = $1 ORDER BY created_at DESC`, id)
}

// RecentAttacks returns attack records created at or after the cutoff.
func (r *PostgresRepository) RecentAttacks(ctx context.Context, since time.Time) ([]Attack, error) {
	return r.queryAttacks(ctx, `SELECT `+attackColumns+` FROM attack_logs WHERE created_at >= $1`, since.UTC())
}

const attackColumns = `id, wallet_id, attack_type, vulnerable, signature_broken, estimated_break_seconds, created_at`

func (r *PostgresRepository) queryAttacks(ctx context.Context, query string, args ...any) ([]Attack, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var attacks []Attack
	for rows.Next() {
		var (
			id       uuid.UUID
			walletID uuid.UUID
			a        Attack
		)
		if err := rows.Scan(&id, &walletID, &a.AttackType, &a.Vulnerable, &a.SignatureBroken,
			&a.EstimatedBreakSeconds, &a.CreatedAt); err != nil {
			return nil, err
		}
		a.ID = id.String()
		a.WalletID = walletID.String()
		attacks = append(attacks, a)
	}
	return attacks, rows.Err()
}
