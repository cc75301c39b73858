package migration

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/quantumshield/vault/internal/wallet"
)

type memoryRepository struct {
	mu      sync.Mutex
	wallets wallet.Repository
	logs    []Log
	attacks []Attack
}

// NewMemoryRepository builds an in-memory migration store for tests and dev
// mode. The atomic flag transition is delegated to the wallet repository's
// compare-and-set, so racing commits against one wallet resolve to exactly one
// winner.
func NewMemoryRepository(wallets wallet.Repository) Repository {
	return &memoryRepository{wallets: wallets}
}

func (r *memoryRepository) Commit(ctx context.Context, c Commit) (Log, error) {
	migrated, err := r.wallets.Migrate(ctx, c.WalletID, c.PQPublicKey, c.PQSeed, c.At)
	if err != nil {
		switch {
		case errors.Is(err, wallet.ErrNotFound):
			return Log{}, ErrWalletNotFound
		case errors.Is(err, wallet.ErrAlreadyMigrated):
			return Log{}, ErrAlreadyMigrated
		}
		return Log{}, err
	}

	entry := Log{
		ID:                 uuid.New().String(),
		UserID:             migrated.OwnerID,
		WalletID:           migrated.ID,
		OldKeyHash:         c.OldKeyHash,
		NewKeyHash:         c.NewKeyHash,
		TransferredBalance: migrated.Balance,
		Status:             StatusCompleted,
		Plan:               c.Plan,
		CreatedAt:          c.At.UTC(),
	}

	r.mu.Lock()
	r.logs = append(r.logs, entry)
	r.mu.Unlock()

	return entry, nil
}

func (r *memoryRepository) ListByUser(_ context.Context, userID string) ([]Log, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Log
	for i := len(r.logs) - 1; i >= 0; i-- {
		if r.logs[i].UserID == userID {
			out = append(out, r.logs[i])
		}
	}
	return out, nil
}

func (r *memoryRepository) ListByWallet(_ context.Context, walletID string) ([]Log, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Log
	for i := len(r.logs) - 1; i >= 0; i-- {
		if r.logs[i].WalletID == walletID {
			out = append(out, r.logs[i])
		}
	}
	return out, nil
}

func (r *memoryRepository) ListScheduled(_ context.Context, now time.Time) ([]Log, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Log
	for _, entry := range r.logs {
		if entry.Status == StatusPending && entry.ScheduledFor != nil && entry.ScheduledFor.After(now) {
			out = append(out, entry)
		}
	}
	return out, nil
}

func (r *memoryRepository) AppendAttack(_ context.Context, a Attack) (Attack, error) {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	r.mu.Lock()
	r.attacks = append(r.attacks, a)
	r.mu.Unlock()
	return a, nil
}

func (r *memoryRepository) AttacksByWallet(_ context.Context, walletID string) ([]Attack, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Attack
	for i := len(r.attacks) - 1; i >= 0; i-- {
		if r.attacks[i].WalletID == walletID {
			out = append(out, r.attacks[i])
		}
	}
	return out, nil
}

func (r *memoryRepository) RecentAttacks(_ context.Context, since time.Time) ([]Attack, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Attack
	for _, a := range r.attacks {
		if !a.CreatedAt.Before(since) {
			out = append(out, a)
		}
	}
	return out, nil
}
