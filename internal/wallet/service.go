package wallet

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/quantumshield/vault/internal/keys"
)

// initialBalance credits every new wallet with the demo amount the dashboard
// expects.
const initialBalance = 1.0

const auditMessage = "quantumshield-crypto-audit"

// Service exposes wallet operations. Legacy keys are generated internally at
// creation; callers never supply key material.
type Service struct {
	repo   Repository
	legacy keys.Scheme
	pq     keys.Scheme
}

// NewService builds a wallet service instance.
func NewService(repo Repository, legacy, pq keys.Scheme) *Service {
	return &Service{repo: repo, legacy: legacy, pq: pq}
}

// CreateInput captures data required to create a wallet.
type CreateInput struct {
	OwnerID string
	Name    string
}

// Create provisions a wallet with a freshly generated legacy keypair.
func (s *Service) Create(ctx context.Context, input CreateInput) (Wallet, error) {
	if _, err := uuid.Parse(input.OwnerID); err != nil {
		return Wallet{}, fmt.Errorf("invalid owner id: %w", err)
	}
	name := input.Name
	if name == "" {
		name = "wallet"
	}

	pair, err := s.legacy.GenerateKeypair()
	if err != nil {
		return Wallet{}, err
	}

	w := Wallet{
		ID:               uuid.New().String(),
		OwnerID:          input.OwnerID,
		Name:             name,
		LegacyPrivateKey: pair.PrivateKey,
		LegacyPublicKey:  pair.PublicKey,
		Address:          pair.Address,
		Balance:          initialBalance,
		CreatedAt:        time.Now().UTC(),
	}

	if err := s.repo.Create(ctx, w); err != nil {
		return Wallet{}, err
	}

	return w, nil
}

// Get retrieves a wallet by id.
func (s *Service) Get(ctx context.Context, id string) (Wallet, error) {
	return s.repo.Get(ctx, id)
}

// GetByAddress retrieves a wallet by its derived address.
func (s *Service) GetByAddress(ctx context.Context, address string) (Wallet, error) {
	return s.repo.GetByAddress(ctx, address)
}

// ListByOwner returns all wallets belonging to a user.
func (s *Service) ListByOwner(ctx context.Context, ownerID string) ([]Wallet, error) {
	return s.repo.ListByOwner(ctx, ownerID)
}

// Counts aggregates the global migration posture.
func (s *Service) Counts(ctx context.Context) (Counts, error) {
	return s.repo.Counts(ctx)
}

// AuditReport captures a live sign/verify round-trip for each scheme the
// wallet currently holds keys for.
type AuditReport struct {
	WalletID             string
	CurrentAlgorithm     string
	CurrentStatus        string
	PostQuantumAlgorithm string
	LegacySignatureValid bool
	PQSignatureValid     *bool
	ThreatStatus         string
	Recommendation       string
}

// CryptoAudit signs and verifies a test message with the wallet's keys and
// reports the wallet's scheme posture.
func (s *Service) CryptoAudit(ctx context.Context, id string) (AuditReport, error) {
	w, err := s.repo.Get(ctx, id)
	if err != nil {
		return AuditReport{}, err
	}

	report := AuditReport{
		WalletID:             w.ID,
		PostQuantumAlgorithm: s.pq.Name(),
	}

	sig, err := s.legacy.Sign(w.LegacyPrivateKey, auditMessage)
	if err == nil {
		report.LegacySignatureValid = s.legacy.Verify(w.LegacyPublicKey, auditMessage, sig)
	}

	if w.Migrated {
		report.CurrentAlgorithm = s.pq.Name()
		report.CurrentStatus = "quantum-resistant"
		report.ThreatStatus = "NONE"
		report.Recommendation = "already migrated"
		pqSig, err := s.pq.Sign(w.PQSeed, auditMessage)
		valid := err == nil && s.pq.Verify(w.PQPublicKey, auditMessage, pqSig)
		report.PQSignatureValid = &valid
	} else {
		report.CurrentAlgorithm = s.legacy.Name()
		report.CurrentStatus = "vulnerable to quantum attacks"
		report.ThreatStatus = "CRITICAL"
		report.Recommendation = "migrate immediately"
	}

	return report, nil
}
