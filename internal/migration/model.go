package migration

import (
	"errors"
	"math"
	"time"
)

const (
	// StatusPending marks a log row for a migration that has not executed yet.
	StatusPending = "pending"
	// StatusCompleted marks a successfully executed migration.
	StatusCompleted = "completed"
	// StatusFailed marks a migration that reached execution and failed.
	StatusFailed = "failed"

	// AttackTypeShor is the only simulated attack against legacy keys.
	AttackTypeShor = "shor_algorithm"

	// LegacyBreakSeconds is the fixed simulated time to break an unmigrated
	// wallet's keys.
	LegacyBreakSeconds = 30.0
)

// BreakTimeUnbounded is the sentinel break time for migrated wallets; no
// simulated attack succeeds against the post-quantum scheme.
var BreakTimeUnbounded = math.Inf(1)

var (
	// ErrWalletNotFound indicates the wallet id does not resolve.
	ErrWalletNotFound = errors.New("wallet not found")
	// ErrAlreadyMigrated indicates the wallet completed its one-way migration
	// earlier; retries are rejected, never absorbed.
	ErrAlreadyMigrated = errors.New("wallet already migrated")
	// ErrConflict indicates the caller lost a race it cannot attribute to an
	// earlier success, e.g. a serialization failure surfaced by the store.
	ErrConflict = errors.New("concurrent migration conflict")
	// ErrKeyGeneration indicates the key-generation capability failed; nothing
	// was persisted.
	ErrKeyGeneration = errors.New("key generation failed")
)

// Log is one append-only audit row per migration that reached execution. Only
// key fingerprints are recorded, never raw key material.
type Log struct {
	ID       string
	UserID   string
	WalletID string

	OldKeyHash         string
	NewKeyHash         string
	TransferredBalance float64

	Status       string
	ScheduledFor *time.Time
	Plan         string

	CreatedAt time.Time
}

// Attack is one append-only record of a simulated attack against a wallet's
// current scheme. It never mutates wallet state.
type Attack struct {
	ID       string
	WalletID string

	AttackType            string
	Vulnerable            bool
	SignatureBroken       bool
	EstimatedBreakSeconds float64

	CreatedAt time.Time
}
