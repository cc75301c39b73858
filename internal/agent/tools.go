// Package agent adapts the migration workflow engine for AI-agent tool
// invocation. Every tool is a thin pass-through: the engine remains the sole
// mutation point for migration and attack state, and no flag-check or audit
// logic is duplicated here.
package agent

import (
	"context"
	"time"

	"github.com/quantumshield/vault/internal/migration"
	"github.com/quantumshield/vault/internal/wallet"
)

// Toolset exposes the engine operations under agent-facing names.
type Toolset struct {
	engine  *migration.Service
	wallets *wallet.Service
}

// NewToolset builds the agent adapter.
func NewToolset(engine *migration.Service, wallets *wallet.Service) *Toolset {
	return &Toolset{engine: engine, wallets: wallets}
}

// PlanKeyMigration returns the advisory migration plan for a wallet.
func (t *Toolset) PlanKeyMigration(ctx context.Context, walletID string, scheduleDaysAhead int) (migration.Plan, error) {
	return t.engine.PlanMigration(ctx, walletID, scheduleDaysAhead)
}

// ExecuteMigration runs the one-way key migration.
func (t *Toolset) ExecuteMigration(ctx context.Context, walletID string) (migration.Result, error) {
	return t.engine.Migrate(ctx, walletID)
}

// AnalyzeQuantumThreat evaluates a wallet against the simulated attack.
func (t *Toolset) AnalyzeQuantumThreat(ctx context.Context, walletID string) (migration.AttackReport, error) {
	return t.engine.SimulateAttack(ctx, walletID)
}

// WalletStatus is one wallet's migration posture in a status summary.
type WalletStatus struct {
	WalletID   string
	Name       string
	Migrated   bool
	MigratedAt *time.Time
}

// MigrationStatus summarizes migration posture across a user's wallets.
type MigrationStatus struct {
	UserID            string
	TotalWallets      int
	MigratedWallets   int
	VulnerableWallets int
	Wallets           []WalletStatus
}

// GetMigrationStatus reports migration posture for all of a user's wallets.
func (t *Toolset) GetMigrationStatus(ctx context.Context, userID string) (MigrationStatus, error) {
	wallets, err := t.wallets.ListByOwner(ctx, userID)
	if err != nil {
		return MigrationStatus{}, err
	}

	status := MigrationStatus{UserID: userID}
	for _, w := range wallets {
		status.TotalWallets++
		if w.Migrated {
			status.MigratedWallets++
		} else {
			status.VulnerableWallets++
		}
		status.Wallets = append(status.Wallets, WalletStatus{
			WalletID:   w.ID,
			Name:       w.Name,
			Migrated:   w.Migrated,
			MigratedAt: w.MigratedAt,
		})
	}
	return status, nil
}

// BatchSchedule is an advisory staggered migration schedule for a user's
// vulnerable wallets. Nothing is persisted; execution stays with
// ExecuteMigration.
type BatchSchedule struct {
	UserID    string
	StartsAt  time.Time
	BatchSize int
	Plans     []migration.Plan
}

// ScheduleBatchMigration plans migration of every vulnerable wallet the user
// owns, staggered from daysAhead onward.
func (t *Toolset) ScheduleBatchMigration(ctx context.Context, userID string, daysAhead int) (BatchSchedule, error) {
	wallets, err := t.wallets.ListByOwner(ctx, userID)
	if err != nil {
		return BatchSchedule{}, err
	}

	schedule := BatchSchedule{
		UserID:   userID,
		StartsAt: time.Now().UTC().AddDate(0, 0, daysAhead),
	}
	for _, w := range wallets {
		if w.Migrated {
			continue
		}
		plan, err := t.engine.PlanMigration(ctx, w.ID, daysAhead)
		if err != nil {
			return BatchSchedule{}, err
		}
		schedule.Plans = append(schedule.Plans, plan)
		schedule.BatchSize++
	}
	return schedule, nil
}
