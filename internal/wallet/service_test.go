package wallet

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/quantumshield/vault/internal/keys"
)

func newTestService() *Service {
	return NewService(NewMemoryRepository(), keys.NewECDSA(), keys.NewDilithium())
}

func TestServiceCreateAndGet(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	ownerID := uuid.NewString()

	w, err := svc.Create(ctx, CreateInput{OwnerID: ownerID, Name: "savings"})
	if err != nil {
		t.Fatalf("create wallet: %v", err)
	}
	if w.Balance != 1.0 {
		t.Fatalf("expected initial balance 1.0, got %v", w.Balance)
	}
	if !strings.HasPrefix(w.Address, "0x") {
		t.Fatalf("unexpected address %q", w.Address)
	}
	if w.Migrated || w.PQPublicKey != "" || w.PQSeed != "" {
		t.Fatal("new wallet must start unmigrated with no post-quantum material")
	}

	fetched, err := svc.Get(ctx, w.ID)
	if err != nil {
		t.Fatalf("get wallet: %v", err)
	}
	if fetched.ID != w.ID || fetched.OwnerID != ownerID {
		t.Fatalf("fetched wrong wallet: %+v", fetched)
	}
}

func TestServiceCreateRejectsBadOwner(t *testing.T) {
	svc := newTestService()
	if _, err := svc.Create(context.Background(), CreateInput{OwnerID: "not-a-uuid"}); err == nil {
		t.Fatal("expected error for invalid owner id")
	}
}

func TestServiceListByOwnerAndCounts(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	ownerID := uuid.NewString()

	for i := 0; i < 3; i++ {
		if _, err := svc.Create(ctx, CreateInput{OwnerID: ownerID}); err != nil {
			t.Fatalf("create wallet %d: %v", i, err)
		}
	}

	wallets, err := svc.ListByOwner(ctx, ownerID)
	if err != nil {
		t.Fatalf("list wallets: %v", err)
	}
	if len(wallets) != 3 {
		t.Fatalf("expected 3 wallets, got %d", len(wallets))
	}

	counts, err := svc.Counts(ctx)
	if err != nil {
		t.Fatalf("counts: %v", err)
	}
	if counts.Total != 3 || counts.Migrated != 0 || counts.Vulnerable != 3 {
		t.Fatalf("unexpected counts %+v", counts)
	}
}

func TestCryptoAuditUnmigrated(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	w, err := svc.Create(ctx, CreateInput{OwnerID: uuid.NewString()})
	if err != nil {
		t.Fatalf("create wallet: %v", err)
	}

	report, err := svc.CryptoAudit(ctx, w.ID)
	if err != nil {
		t.Fatalf("audit: %v", err)
	}
	if !report.LegacySignatureValid {
		t.Fatal("legacy signature round-trip failed")
	}
	if report.PQSignatureValid != nil {
		t.Fatal("unmigrated wallet must not report a post-quantum signature")
	}
	if report.CurrentAlgorithm != keys.NewECDSA().Name() {
		t.Fatalf("unexpected algorithm %q", report.CurrentAlgorithm)
	}
}

func TestRepositoryMigrateIsMonotonic(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	w, err := svc.Create(ctx, CreateInput{OwnerID: uuid.NewString()})
	if err != nil {
		t.Fatalf("create wallet: %v", err)
	}

	pair, err := keys.NewDilithium().GenerateKeypair()
	if err != nil {
		t.Fatalf("generate pq keypair: %v", err)
	}

	migrated, err := svc.repo.Migrate(ctx, w.ID, pair.PublicKey, pair.PrivateKey, w.CreatedAt)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if !migrated.Migrated || migrated.MigratedAt == nil {
		t.Fatal("migration flag or timestamp missing")
	}
	if migrated.Balance != w.Balance {
		t.Fatalf("balance changed: %v -> %v", w.Balance, migrated.Balance)
	}
	if migrated.LegacyPublicKey != w.LegacyPublicKey {
		t.Fatal("legacy key material must be retained")
	}

	if _, err := svc.repo.Migrate(ctx, w.ID, pair.PublicKey, pair.PrivateKey, w.CreatedAt); err != ErrAlreadyMigrated {
		t.Fatalf("expected ErrAlreadyMigrated, got %v", err)
	}
}
