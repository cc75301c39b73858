package migration

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/quantumshield/vault/internal/keys"
	"github.com/quantumshield/vault/internal/wallet"
)

type fixture struct {
	wallets wallet.Repository
	walletS *wallet.Service
	repo    Repository
	engine  *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	wallets := wallet.NewMemoryRepository()
	legacy := keys.NewECDSA()
	pq := keys.NewDilithium()
	repo := NewMemoryRepository(wallets)
	return &fixture{
		wallets: wallets,
		walletS: wallet.NewService(wallets, legacy, pq),
		repo:    repo,
		engine:  NewService(wallets, repo, legacy, pq, nil),
	}
}

func (f *fixture) createWallet(t *testing.T) wallet.Wallet {
	t.Helper()
	w, err := f.walletS.Create(context.Background(), wallet.CreateInput{OwnerID: uuid.NewString(), Name: "demo"})
	if err != nil {
		t.Fatalf("create wallet: %v", err)
	}
	return w
}

// Full lifecycle: attack while vulnerable, migrate, retry rejected, attack
// while protected.
func TestMigrationLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	w := f.createWallet(t)

	before, err := f.engine.SimulateAttack(ctx, w.ID)
	if err != nil {
		t.Fatalf("simulate attack: %v", err)
	}
	if !before.Vulnerable || !before.SignatureBroken {
		t.Fatalf("unmigrated wallet must be vulnerable: %+v", before)
	}
	if before.EstimatedBreakSeconds != LegacyBreakSeconds {
		t.Fatalf("expected break time %v, got %v", LegacyBreakSeconds, before.EstimatedBreakSeconds)
	}

	result, err := f.engine.Migrate(ctx, w.ID)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if result.TransferredBalance != w.Balance {
		t.Fatalf("balance not conserved: %v -> %v", w.Balance, result.TransferredBalance)
	}

	migrated, err := f.wallets.Get(ctx, w.ID)
	if err != nil {
		t.Fatalf("get wallet: %v", err)
	}
	if !migrated.Migrated || migrated.MigratedAt == nil {
		t.Fatal("migration flag or timestamp not set")
	}
	if migrated.Balance != w.Balance {
		t.Fatalf("wallet balance changed: %v -> %v", w.Balance, migrated.Balance)
	}
	if migrated.PQPublicKey == "" || migrated.PQSeed == "" {
		t.Fatal("post-quantum material missing after migration")
	}
	if migrated.LegacyPublicKey != w.LegacyPublicKey || migrated.Address != w.Address {
		t.Fatal("legacy key material must be retained")
	}

	logs, err := f.engine.LogsForWallet(ctx, w.ID)
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	if len(logs) != 1 {
		t.Fatalf("expected exactly one migration log, got %d", len(logs))
	}
	if logs[0].Status != StatusCompleted {
		t.Fatalf("expected status %q, got %q", StatusCompleted, logs[0].Status)
	}
	if logs[0].ID != result.MigrationLogID {
		t.Fatal("result does not reference the created log row")
	}
	if logs[0].TransferredBalance != w.Balance {
		t.Fatalf("log balance %v, want %v", logs[0].TransferredBalance, w.Balance)
	}

	if _, err := f.engine.Migrate(ctx, w.ID); !errors.Is(err, ErrAlreadyMigrated) {
		t.Fatalf("second migrate: expected ErrAlreadyMigrated, got %v", err)
	}

	after, err := f.engine.SimulateAttack(ctx, w.ID)
	if err != nil {
		t.Fatalf("simulate attack after migration: %v", err)
	}
	if after.Vulnerable || after.SignatureBroken {
		t.Fatalf("migrated wallet must not be vulnerable: %+v", after)
	}
	if !math.IsInf(after.EstimatedBreakSeconds, 1) {
		t.Fatalf("expected unbounded break time, got %v", after.EstimatedBreakSeconds)
	}
}

func TestMigrateUnknownWallet(t *testing.T) {
	f := newFixture(t)
	if _, err := f.engine.Migrate(context.Background(), uuid.NewString()); !errors.Is(err, ErrWalletNotFound) {
		t.Fatalf("expected ErrWalletNotFound, got %v", err)
	}
}

func TestMigrationLogHoldsFingerprintsNotKeys(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	w := f.createWallet(t)

	result, err := f.engine.Migrate(ctx, w.ID)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}

	migrated, _ := f.wallets.Get(ctx, w.ID)
	logs, _ := f.engine.LogsForWallet(ctx, w.ID)
	entry := logs[0]

	if entry.OldKeyHash == w.LegacyPublicKey || entry.OldKeyHash == w.LegacyPrivateKey {
		t.Fatal("old key hash leaks raw key material")
	}
	if entry.NewKeyHash == migrated.PQPublicKey || entry.NewKeyHash == migrated.PQSeed {
		t.Fatal("new key hash leaks raw key material")
	}
	if entry.OldKeyHash == entry.NewKeyHash {
		t.Fatal("old and new fingerprints must differ")
	}
	if len(entry.OldKeyHash) != len(entry.NewKeyHash) {
		t.Fatal("fingerprints must be equal-length hash outputs")
	}
	if entry.OldKeyHash != result.OldKeyFingerprint || entry.NewKeyHash != result.NewKeyFingerprint {
		t.Fatal("result fingerprints must match the audit row")
	}
}

type failingScheme struct {
	keys.Dilithium
}

func (failingScheme) GenerateKeypair() (keys.Keypair, error) {
	return keys.Keypair{}, fmt.Errorf("entropy source unavailable")
}

func TestMigrateKeyGenerationFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	w := f.createWallet(t)

	engine := NewService(f.wallets, f.repo, keys.NewECDSA(), failingScheme{}, nil)
	if _, err := engine.Migrate(ctx, w.ID); !errors.Is(err, ErrKeyGeneration) {
		t.Fatalf("expected ErrKeyGeneration, got %v", err)
	}

	// Nothing may be persisted: wallet unchanged, no log row.
	unchanged, err := f.wallets.Get(ctx, w.ID)
	if err != nil {
		t.Fatalf("get wallet: %v", err)
	}
	if unchanged.Migrated || unchanged.PQPublicKey != "" || unchanged.PQSeed != "" {
		t.Fatal("failed migration left partial key material")
	}
	logs, _ := f.engine.LogsForWallet(ctx, w.ID)
	if len(logs) != 0 {
		t.Fatalf("failed migration wrote %d log rows", len(logs))
	}
}

func TestConcurrentMigrateSingleWinner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	w := f.createWallet(t)

	const racers = 8
	var wg sync.WaitGroup
	errs := make([]error, racers)

	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.engine.Migrate(ctx, w.ID)
		}(i)
	}
	wg.Wait()

	var successes, rejected int
	for _, err := range errs {
		switch {
		case err == nil:
			successes++
		case errors.Is(err, ErrAlreadyMigrated) || errors.Is(err, ErrConflict):
			rejected++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if successes != 1 {
		t.Fatalf("expected exactly one winner, got %d", successes)
	}
	if rejected != racers-1 {
		t.Fatalf("expected %d rejections, got %d", racers-1, rejected)
	}

	logs, err := f.engine.LogsForWallet(ctx, w.ID)
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	if len(logs) != 1 {
		t.Fatalf("expected exactly one completed log, got %d", len(logs))
	}
	if logs[0].Status != StatusCompleted {
		t.Fatalf("unexpected status %q", logs[0].Status)
	}
}

func TestPlanIsReadOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	w := f.createWallet(t)

	plan, err := f.engine.PlanMigration(ctx, w.ID, 0)
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if plan.Urgency != "immediate" {
		t.Fatalf("expected immediate urgency, got %q", plan.Urgency)
	}
	if len(plan.Phases) != 4 {
		t.Fatalf("expected 4 phases, got %d", len(plan.Phases))
	}

	scheduled, err := f.engine.PlanMigration(ctx, w.ID, 7)
	if err != nil {
		t.Fatalf("scheduled plan: %v", err)
	}
	if scheduled.Urgency != "scheduled" || scheduled.ScheduledFor == nil {
		t.Fatalf("expected scheduled plan, got %+v", scheduled)
	}

	// Planning must not create log rows or touch the wallet.
	logs, _ := f.engine.LogsForWallet(ctx, w.ID)
	if len(logs) != 0 {
		t.Fatalf("plan created %d log rows", len(logs))
	}
	unchanged, _ := f.wallets.Get(ctx, w.ID)
	if unchanged.Migrated {
		t.Fatal("plan mutated the wallet")
	}
}

func TestSimulateAttackAppendsRecords(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	w := f.createWallet(t)

	for i := 0; i < 3; i++ {
		if _, err := f.engine.SimulateAttack(ctx, w.ID); err != nil {
			t.Fatalf("attack %d: %v", i, err)
		}
	}

	attacks, err := f.engine.AttacksForWallet(ctx, w.ID)
	if err != nil {
		t.Fatalf("attacks: %v", err)
	}
	if len(attacks) != 3 {
		t.Fatalf("expected 3 attack records, got %d", len(attacks))
	}
	for _, a := range attacks {
		if a.AttackType != AttackTypeShor {
			t.Fatalf("unexpected attack type %q", a.AttackType)
		}
		if !a.Vulnerable || !a.SignatureBroken || a.EstimatedBreakSeconds != LegacyBreakSeconds {
			t.Fatalf("attack outcome must be deterministic: %+v", a)
		}
	}

	// The simulation must never mutate wallet state.
	unchanged, _ := f.wallets.Get(ctx, w.ID)
	if unchanged.Migrated {
		t.Fatal("attack simulation mutated the wallet")
	}
}
