package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/quantumshield/vault/internal/keys"
	"github.com/quantumshield/vault/internal/migration"
	"github.com/quantumshield/vault/internal/wallet"
)

func newToolset(t *testing.T) (*Toolset, *wallet.Service) {
	t.Helper()
	repo := wallet.NewMemoryRepository()
	legacy := keys.NewECDSA()
	pq := keys.NewDilithium()
	walletSvc := wallet.NewService(repo, legacy, pq)
	engine := migration.NewService(repo, migration.NewMemoryRepository(repo), legacy, pq, nil)
	return NewToolset(engine, walletSvc), walletSvc
}

func TestToolsMirrorEngineSemantics(t *testing.T) {
	tools, wallets := newToolset(t)
	ctx := context.Background()
	ownerID := uuid.NewString()

	w, err := wallets.Create(ctx, wallet.CreateInput{OwnerID: ownerID, Name: "agent-demo"})
	if err != nil {
		t.Fatalf("create wallet: %v", err)
	}

	plan, err := tools.PlanKeyMigration(ctx, w.ID, 0)
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if plan.Urgency != "immediate" {
		t.Fatalf("expected immediate urgency, got %q", plan.Urgency)
	}

	threat, err := tools.AnalyzeQuantumThreat(ctx, w.ID)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if !threat.Vulnerable {
		t.Fatal("unmigrated wallet must report vulnerable")
	}

	result, err := tools.ExecuteMigration(ctx, w.ID)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if result.TransferredBalance != w.Balance {
		t.Fatalf("balance not conserved: %v", result.TransferredBalance)
	}

	// Retrying through the tool surface hits the same business rejection.
	if _, err := tools.ExecuteMigration(ctx, w.ID); !errors.Is(err, migration.ErrAlreadyMigrated) {
		t.Fatalf("expected ErrAlreadyMigrated, got %v", err)
	}
}

func TestGetMigrationStatus(t *testing.T) {
	tools, wallets := newToolset(t)
	ctx := context.Background()
	ownerID := uuid.NewString()

	first, _ := wallets.Create(ctx, wallet.CreateInput{OwnerID: ownerID})
	if _, err := wallets.Create(ctx, wallet.CreateInput{OwnerID: ownerID}); err != nil {
		t.Fatalf("create wallet: %v", err)
	}
	if _, err := tools.ExecuteMigration(ctx, first.ID); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	status, err := tools.GetMigrationStatus(ctx, ownerID)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status.TotalWallets != 2 || status.MigratedWallets != 1 || status.VulnerableWallets != 1 {
		t.Fatalf("unexpected status %+v", status)
	}
}

func TestScheduleBatchMigrationSkipsMigrated(t *testing.T) {
	tools, wallets := newToolset(t)
	ctx := context.Background()
	ownerID := uuid.NewString()

	migratedWallet, _ := wallets.Create(ctx, wallet.CreateInput{OwnerID: ownerID})
	if _, err := wallets.Create(ctx, wallet.CreateInput{OwnerID: ownerID}); err != nil {
		t.Fatalf("create wallet: %v", err)
	}
	if _, err := tools.ExecuteMigration(ctx, migratedWallet.ID); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	schedule, err := tools.ScheduleBatchMigration(ctx, ownerID, 7)
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}
	if schedule.BatchSize != 1 || len(schedule.Plans) != 1 {
		t.Fatalf("expected one scheduled wallet, got %+v", schedule)
	}
	if schedule.Plans[0].Urgency != "scheduled" {
		t.Fatalf("expected scheduled urgency, got %q", schedule.Plans[0].Urgency)
	}
}
