package migration

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/quantumshield/vault/internal/keys"
	"github.com/quantumshield/vault/internal/notification"
	"github.com/quantumshield/vault/internal/wallet"
)

// Phase is one step of the advisory migration plan. The phases are descriptive
// metadata only: Migrate performs a single atomic transition and never resumes
// from an intermediate phase.
type Phase struct {
	Name        string
	Description string
}

func planPhases() []Phase {
	return []Phase{
		{Name: "key_generation", Description: "Generate replacement post-quantum keypair"},
		{Name: "balance_verification", Description: "Verify the balance carries over unchanged"},
		{Name: "signature_verification", Description: "Verify a signature round-trip under the new keys"},
		{Name: "cleanup", Description: "Retain legacy keys for lookup and close out the plan"},
	}
}

func planText(phases []Phase) string {
	text := ""
	for i, p := range phases {
		if i > 0 {
			text += "; "
		}
		text += fmt.Sprintf("phase %d: %s", i+1, p.Name)
	}
	return text
}

// Service is the migration workflow engine: the sole mutation point for
// migration and attack state. Store handles are injected at construction; the
// engine keeps no ambient state.
type Service struct {
	wallets  wallet.Repository
	repo     Repository
	legacy   keys.Scheme
	pq       keys.Scheme
	notifier notification.Notifier
}

// NewService builds the workflow engine.
func NewService(wallets wallet.Repository, repo Repository, legacy, pq keys.Scheme, notifier notification.Notifier) *Service {
	return &Service{wallets: wallets, repo: repo, legacy: legacy, pq: pq, notifier: notifier}
}

// Result reports a completed migration back to the caller. Only fingerprints
// of the keys are exposed.
type Result struct {
	WalletID           string
	OldKeyFingerprint  string
	NewKeyFingerprint  string
	TransferredBalance float64
	MigrationLogID     string
	MigratedAt         time.Time
}

// Migrate transitions one wallet from legacy-keyed to migrated, exactly once.
// The new keypair is generated internally; the store serializes the
// check-then-write sequence so a racing call observes ErrAlreadyMigrated.
func (s *Service) Migrate(ctx context.Context, walletID string) (Result, error) {
	w, err := s.wallets.Get(ctx, walletID)
	if err != nil {
		if errors.Is(err, wallet.ErrNotFound) {
			return Result{}, ErrWalletNotFound
		}
		return Result{}, err
	}
	if w.Migrated {
		return Result{}, ErrAlreadyMigrated
	}

	pair, err := s.pq.GenerateKeypair()
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrKeyGeneration, err)
	}

	oldFingerprint := s.legacy.Fingerprint(w.LegacyPublicKey)
	newFingerprint := s.pq.Fingerprint(pair.PublicKey)
	now := time.Now().UTC()

	entry, err := s.repo.Commit(ctx, Commit{
		WalletID:    w.ID,
		PQPublicKey: pair.PublicKey,
		PQSeed:      pair.PrivateKey,
		OldKeyHash:  oldFingerprint,
		NewKeyHash:  newFingerprint,
		Plan:        planText(planPhases()),
		At:          now,
	})
	if err != nil {
		// The commit re-checks the flag under its own lock; a lost race
		// surfaces here even though the precheck above passed.
		return Result{}, err
	}

	if s.notifier != nil {
		_ = s.notifier.Send(ctx, notification.Message{
			Kind:        notification.KindMigrationCompleted,
			Destination: entry.UserID,
			Body:        fmt.Sprintf("Wallet %s migrated to %s", w.ID, s.pq.Name()),
		})
	}

	return Result{
		WalletID:           w.ID,
		OldKeyFingerprint:  oldFingerprint,
		NewKeyFingerprint:  newFingerprint,
		TransferredBalance: entry.TransferredBalance,
		MigrationLogID:     entry.ID,
		MigratedAt:         now,
	}, nil
}

// Plan describes the advisory migration plan for a wallet. It is read-only:
// no log row is created and no stored entity changes.
type Plan struct {
	WalletID                 string
	MigrationType            string
	Urgency                  string
	ScheduleDaysAhead        int
	ScheduledFor             *time.Time
	EstimatedDurationSeconds int
	Phases                   []Phase
	Recommendation           string
}

// PlanMigration computes the advisory plan and urgency classification.
// scheduleDaysAhead only shapes the returned metadata; no scheduler runs.
func (s *Service) PlanMigration(ctx context.Context, walletID string, scheduleDaysAhead int) (Plan, error) {
	w, err := s.wallets.Get(ctx, walletID)
	if err != nil {
		if errors.Is(err, wallet.ErrNotFound) {
			return Plan{}, ErrWalletNotFound
		}
		return Plan{}, err
	}

	plan := Plan{
		WalletID:                 w.ID,
		MigrationType:            fmt.Sprintf("%s_to_%s", s.legacy.Name(), s.pq.Name()),
		ScheduleDaysAhead:        scheduleDaysAhead,
		EstimatedDurationSeconds: 45,
		Phases:                   planPhases(),
	}

	switch {
	case w.Migrated:
		plan.Urgency = "none"
		plan.Recommendation = "wallet is already migrated"
	case scheduleDaysAhead > 0:
		plan.Urgency = "scheduled"
		at := time.Now().UTC().AddDate(0, 0, scheduleDaysAhead)
		plan.ScheduledFor = &at
		plan.Recommendation = fmt.Sprintf("migration advised within %d days", scheduleDaysAhead)
	default:
		plan.Urgency = "immediate"
		plan.Recommendation = "migrate immediately to remove quantum exposure"
	}

	return plan, nil
}

// AttackReport is the outcome of one simulated attack.
type AttackReport struct {
	WalletID              string
	AttackType            string
	Vulnerable            bool
	SignatureBroken       bool
	EstimatedBreakSeconds float64
	AttackLogID           string
	Message               string
	Recommendation        string
}

// SimulateAttack evaluates a wallet against the simulated attack. The outcome
// is a pure function of the migration flag; the only side effect is one
// appended attack record.
func (s *Service) SimulateAttack(ctx context.Context, walletID string) (AttackReport, error) {
	w, err := s.wallets.Get(ctx, walletID)
	if err != nil {
		if errors.Is(err, wallet.ErrNotFound) {
			return AttackReport{}, ErrWalletNotFound
		}
		return AttackReport{}, err
	}

	vulnerable := !w.Migrated
	breakSeconds := BreakTimeUnbounded
	if vulnerable {
		breakSeconds = LegacyBreakSeconds
	}

	record, err := s.repo.AppendAttack(ctx, Attack{
		WalletID:              w.ID,
		AttackType:            AttackTypeShor,
		Vulnerable:            vulnerable,
		SignatureBroken:       vulnerable,
		EstimatedBreakSeconds: breakSeconds,
	})
	if err != nil {
		return AttackReport{}, err
	}

	report := AttackReport{
		WalletID:              w.ID,
		AttackType:            AttackTypeShor,
		Vulnerable:            vulnerable,
		SignatureBroken:       vulnerable,
		EstimatedBreakSeconds: breakSeconds,
		AttackLogID:           record.ID,
	}
	if vulnerable {
		report.Message = fmt.Sprintf("VULNERABLE: simulated attack broke the legacy keys in ~%.0f seconds", LegacyBreakSeconds)
		report.Recommendation = fmt.Sprintf("migrate to %s immediately", s.pq.Name())
	} else {
		report.Message = fmt.Sprintf("PROTECTED: %s keys resisted the simulated attack", s.pq.Name())
		report.Recommendation = "keys are quantum-safe; continue monitoring"
	}

	return report, nil
}

// LogsForUser returns the migration history for a user.
func (s *Service) LogsForUser(ctx context.Context, userID string) ([]Log, error) {
	return s.repo.ListByUser(ctx, userID)
}

// LogsForWallet returns the migration history for a wallet.
func (s *Service) LogsForWallet(ctx context.Context, walletID string) ([]Log, error) {
	return s.repo.ListByWallet(ctx, walletID)
}

// ScheduledMigrations returns pending migrations whose advisory schedule lies
// in the future.
func (s *Service) ScheduledMigrations(ctx context.Context) ([]Log, error) {
	return s.repo.ListScheduled(ctx, time.Now().UTC())
}

// AttacksForWallet returns attack records for a wallet.
func (s *Service) AttacksForWallet(ctx context.Context, walletID string) ([]Attack, error) {
	return s.repo.AttacksByWallet(ctx, walletID)
}

// RecentAttacks returns attack records since the cutoff.
func (s *Service) RecentAttacks(ctx context.Context, since time.Time) ([]Attack, error) {
	return s.repo.RecentAttacks(ctx, since)
}
