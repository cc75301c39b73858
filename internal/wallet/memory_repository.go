package wallet

import (
	"context"
	"errors"
	"sync"
	"time"
)

type memoryRepository struct {
	mu      sync.RWMutex
	storage map[string]Wallet
	byAddr  map[string]string
}

// NewMemoryRepository constructs an in-memory repository for tests and dev mode.
func NewMemoryRepository() Repository {
	return &memoryRepository{
		storage: make(map[string]Wallet),
		byAddr:  make(map[string]string),
	}
}

func (r *memoryRepository) Create(_ context.Context, w Wallet) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.storage[w.ID]; exists {
		return errors.New("wallet exists")
	}
	if _, exists := r.byAddr[w.Address]; exists {
		return errors.New("address exists")
	}
	r.storage[w.ID] = w
	r.byAddr[w.Address] = w.ID
	return nil
}

func (r *memoryRepository) Get(_ context.Context, id string) (Wallet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	w, ok := r.storage[id]
	if !ok {
		return Wallet{}, ErrNotFound
	}
	return w, nil
}

func (r *memoryRepository) GetByAddress(_ context.Context, address string) (Wallet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byAddr[address]
	if !ok {
		return Wallet{}, ErrNotFound
	}
	return r.storage[id], nil
}

func (r *memoryRepository) ListByOwner(_ context.Context, ownerID string) ([]Wallet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var wallets []Wallet
	for _, w := range r.storage {
		if w.OwnerID == ownerID {
			wallets = append(wallets, w)
		}
	}
	return wallets, nil
}

func (r *memoryRepository) Counts(_ context.Context) (Counts, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var c Counts
	for _, w := range r.storage {
		c.Total++
		if w.Migrated {
			c.Migrated++
		} else {
			c.Vulnerable++
		}
	}
	return c, nil
}

// Migrate is the compare-and-set on the migration flag; the write happens under
// the repository lock so at most one of two racing callers can win.
func (r *memoryRepository) Migrate(_ context.Context, id, pqPublicKey, pqSeed string, at time.Time) (Wallet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.storage[id]
	if !ok {
		return Wallet{}, ErrNotFound
	}
	if w.Migrated {
		return Wallet{}, ErrAlreadyMigrated
	}
	migratedAt := at.UTC()
	w.PQPublicKey = pqPublicKey
	w.PQSeed = pqSeed
	w.Migrated = true
	w.MigratedAt = &migratedAt
	r.storage[id] = w
	return w, nil
}
