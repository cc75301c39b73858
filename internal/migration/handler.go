package migration

import (
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
)

// Handler exposes migration workflow HTTP endpoints.
type Handler struct {
	service *Service
}

// NewHandler builds a migration HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func statusFromError(err error) *fiber.Error {
	switch {
	case errors.Is(err, ErrWalletNotFound):
		return fiber.NewError(http.StatusNotFound, "wallet not found")
	case errors.Is(err, ErrAlreadyMigrated):
		return fiber.NewError(http.StatusBadRequest, "wallet already migrated")
	case errors.Is(err, ErrConflict):
		return fiber.NewError(http.StatusConflict, "concurrent migration conflict")
	case errors.Is(err, ErrKeyGeneration):
		return fiber.NewError(http.StatusBadGateway, "key generation failed")
	}
	return fiber.NewError(http.StatusInternalServerError, err.Error())
}

// breakTime renders the break-time figure; JSON has no infinity literal so the
// unbounded sentinel goes out as a string.
func breakTime(seconds float64) any {
	if math.IsInf(seconds, 1) {
		return "unbounded"
	}
	return seconds
}

// Migrate executes the one-way key migration for a wallet.
func (h *Handler) Migrate(c *fiber.Ctx) error {
	result, err := h.service.Migrate(c.UserContext(), c.Params("walletId"))
	if err != nil {
		return statusFromError(err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"success":   true,
		"wallet_id": result.WalletID,
		"new_keys": fiber.Map{
			"public_key_fingerprint": result.NewKeyFingerprint,
			"quantum_resistant":      true,
		},
		"old_key_fingerprint":     result.OldKeyFingerprint,
		"old_balance_transferred": result.TransferredBalance,
		"migration_id":            result.MigrationLogID,
		"migrated_at":             result.MigratedAt,
	})
}

// Plan returns the advisory migration plan for a wallet.
func (h *Handler) Plan(c *fiber.Ctx) error {
	days, _ := strconv.Atoi(c.Query("schedule_days_ahead", "0"))
	plan, err := h.service.PlanMigration(c.UserContext(), c.Params("walletId"), days)
	if err != nil {
		return statusFromError(err)
	}
	phases := make([]fiber.Map, 0, len(plan.Phases))
	for _, p := range plan.Phases {
		phases = append(phases, fiber.Map{"name": p.Name, "description": p.Description})
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"wallet_id":                  plan.WalletID,
		"migration_type":             plan.MigrationType,
		"urgency":                    plan.Urgency,
		"schedule_days_ahead":        plan.ScheduleDaysAhead,
		"scheduled_for":              plan.ScheduledFor,
		"estimated_duration_seconds": plan.EstimatedDurationSeconds,
		"phases":                     phases,
		"recommendation":             plan.Recommendation,
	})
}

// SimulateAttack runs the deterministic attack simulation for a wallet.
func (h *Handler) SimulateAttack(c *fiber.Ctx) error {
	report, err := h.service.SimulateAttack(c.UserContext(), c.Params("walletId"))
	if err != nil {
		return statusFromError(err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"wallet_id":                    report.WalletID,
		"attack_type":                  report.AttackType,
		"attack_successful":            report.SignatureBroken,
		"quantum_vulnerable":           report.Vulnerable,
		"signature_broken":             report.SignatureBroken,
		"estimated_break_time_seconds": breakTime(report.EstimatedBreakSeconds),
		"message":                      report.Message,
		"recommendation":               report.Recommendation,
	})
}

// Scheduled returns pending migrations with a future advisory schedule.
func (h *Handler) Scheduled(c *fiber.Ctx) error {
	logs, err := h.service.ScheduledMigrations(c.UserContext())
	if err != nil {
		return statusFromError(err)
	}
	return c.Status(http.StatusOK).JSON(logsResponse(logs))
}

// UserMigrations returns the migration history for a user.
func (h *Handler) UserMigrations(c *fiber.Ctx) error {
	logs, err := h.service.LogsForUser(c.UserContext(), c.Params("userId"))
	if err != nil {
		return statusFromError(err)
	}
	return c.Status(http.StatusOK).JSON(logsResponse(logs))
}

// WalletAttacks returns attack history for a wallet.
func (h *Handler) WalletAttacks(c *fiber.Ctx) error {
	attacks, err := h.service.AttacksForWallet(c.UserContext(), c.Params("walletId"))
	if err != nil {
		return statusFromError(err)
	}
	out := make([]fiber.Map, 0, len(attacks))
	for _, a := range attacks {
		out = append(out, fiber.Map{
			"id":                           a.ID,
			"wallet_id":                    a.WalletID,
			"attack_type":                  a.AttackType,
			"vulnerable":                   a.Vulnerable,
			"signature_broken":             a.SignatureBroken,
			"estimated_break_time_seconds": breakTime(a.EstimatedBreakSeconds),
			"created_at":                   a.CreatedAt,
		})
	}
	return c.Status(http.StatusOK).JSON(out)
}

func logsResponse(logs []Log) []fiber.Map {
	out := make([]fiber.Map, 0, len(logs))
	for _, entry := range logs {
		out = append(out, fiber.Map{
			"id":                  entry.ID,
			"user_id":             entry.UserID,
			"wallet_id":           entry.WalletID,
			"old_key_hash":        entry.OldKeyHash,
			"new_key_hash":        entry.NewKeyHash,
			"transferred_balance": entry.TransferredBalance,
			"status":              entry.Status,
			"scheduled_for":       entry.ScheduledFor,
			"plan":                entry.Plan,
			"created_at":          entry.CreatedAt.Format(time.RFC3339Nano),
		})
	}
	return out
}
