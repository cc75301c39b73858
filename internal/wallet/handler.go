package wallet

import (
	"errors"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
)

// Handler exposes wallet HTTP endpoints.
type Handler struct {
	service *Service
}

// NewHandler builds a wallet HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type createRequest struct {
	OwnerID string `json:"owner_id"`
	Name    string `json:"name"`
}

// Response is the wire representation of a wallet. Private key material is
// deliberately absent.
type Response struct {
	ID         string     `json:"id"`
	OwnerID    string     `json:"owner_id"`
	Name       string     `json:"name"`
	Address    string     `json:"address"`
	PublicKey  string     `json:"public_key"`
	Balance    float64    `json:"balance"`
	Migrated   bool       `json:"is_migrated"`
	MigratedAt *time.Time `json:"migrated_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// ToResponse converts a wallet for the wire, dropping private material.
func ToResponse(w Wallet) Response {
	publicKey := w.LegacyPublicKey
	if w.Migrated {
		publicKey = w.PQPublicKey
	}
	return Response{
		ID:         w.ID,
		OwnerID:    w.OwnerID,
		Name:       w.Name,
		Address:    w.Address,
		PublicKey:  publicKey,
		Balance:    w.Balance,
		Migrated:   w.Migrated,
		MigratedAt: w.MigratedAt,
		CreatedAt:  w.CreatedAt,
	}
}

// Create provisions a wallet for an owner.
func (h *Handler) Create(c *fiber.Ctx) error {
	var req createRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	w, err := h.service.Create(c.UserContext(), CreateInput{OwnerID: req.OwnerID, Name: req.Name})
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	return c.Status(http.StatusCreated).JSON(ToResponse(w))
}

// Get returns wallet details.
func (h *Handler) Get(c *fiber.Ctx) error {
	w, err := h.service.Get(c.UserContext(), c.Params("walletId"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return fiber.NewError(http.StatusNotFound, "wallet not found")
		}
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return c.Status(http.StatusOK).JSON(ToResponse(w))
}

// GetByAddress resolves a wallet by its derived address. The address survives
// migration, so lookups keep working after the key swap.
func (h *Handler) GetByAddress(c *fiber.Ctx) error {
	w, err := h.service.GetByAddress(c.UserContext(), c.Params("address"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return fiber.NewError(http.StatusNotFound, "wallet not found")
		}
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return c.Status(http.StatusOK).JSON(ToResponse(w))
}

// Audit runs a crypto audit for the wallet.
func (h *Handler) Audit(c *fiber.Ctx) error {
	report, err := h.service.CryptoAudit(c.UserContext(), c.Params("walletId"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return fiber.NewError(http.StatusNotFound, "wallet not found")
		}
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	resp := fiber.Map{
		"wallet_id":              report.WalletID,
		"current_algorithm":      report.CurrentAlgorithm,
		"current_status":         report.CurrentStatus,
		"post_quantum_algorithm": report.PostQuantumAlgorithm,
		"signature_verification": fiber.Map{
			"legacy_signature":       report.LegacySignatureValid,
			"post_quantum_signature": report.PQSignatureValid,
		},
		"quantum_threat_status":    report.ThreatStatus,
		"migration_recommendation": report.Recommendation,
	}
	return c.Status(http.StatusOK).JSON(resp)
}
