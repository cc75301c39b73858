package routes

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/quantumshield/vault/internal/agent"
	"github.com/quantumshield/vault/internal/identity"
	"github.com/quantumshield/vault/internal/migration"
	"github.com/quantumshield/vault/internal/wallet"
)

// RegisterUserRoutes wires user endpoints plus the user-scoped migration views.
func RegisterUserRoutes(router fiber.Router, h *identity.Handler, users *identity.Service, wallets *wallet.Service, migrations *migration.Handler, tools *agent.Toolset) {
	group := router.Group("/users")

	group.Post("/", h.Create)
	group.Get("/:userId", h.Get)
	group.Get("/:userId/wallets", listUserWallets(users, wallets))
	group.Get("/:userId/migrations", migrations.UserMigrations)
	group.Get("/:userId/migration-status", migrationStatus(tools))
	group.Post("/:userId/schedule-migrations", scheduleMigrations(tools))
}

func listUserWallets(users *identity.Service, wallets *wallet.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Params("userId")
		if _, err := users.Get(c.UserContext(), userID); err != nil {
			if errors.Is(err, identity.ErrNotFound) {
				return fiber.NewError(http.StatusNotFound, "user not found")
			}
			return fiber.NewError(http.StatusInternalServerError, err.Error())
		}

		owned, err := wallets.ListByOwner(c.UserContext(), userID)
		if err != nil {
			return fiber.NewError(http.StatusInternalServerError, err.Error())
		}
		out := make([]wallet.Response, 0, len(owned))
		for _, w := range owned {
			out = append(out, wallet.ToResponse(w))
		}
		return c.Status(http.StatusOK).JSON(out)
	}
}

func migrationStatus(tools *agent.Toolset) fiber.Handler {
	return func(c *fiber.Ctx) error {
		status, err := tools.GetMigrationStatus(c.UserContext(), c.Params("userId"))
		if err != nil {
			return fiber.NewError(http.StatusInternalServerError, err.Error())
		}
		statuses := make([]fiber.Map, 0, len(status.Wallets))
		for _, w := range status.Wallets {
			statuses = append(statuses, fiber.Map{
				"wallet_id":   w.WalletID,
				"name":        w.Name,
				"is_migrated": w.Migrated,
				"migrated_at": w.MigratedAt,
			})
		}
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"user_id":            status.UserID,
			"total_wallets":      status.TotalWallets,
			"migrated_wallets":   status.MigratedWallets,
			"vulnerable_wallets": status.VulnerableWallets,
			"wallets":            statuses,
		})
	}
}

func scheduleMigrations(tools *agent.Toolset) fiber.Handler {
	return func(c *fiber.Ctx) error {
		days, err := strconv.Atoi(c.Query("days_ahead", "1"))
		if err != nil || days < 0 {
			return fiber.NewError(http.StatusBadRequest, "days_ahead must be a non-negative integer")
		}

		schedule, err := tools.ScheduleBatchMigration(c.UserContext(), c.Params("userId"), days)
		if err != nil {
			return fiber.NewError(http.StatusInternalServerError, err.Error())
		}
		plans := make([]fiber.Map, 0, len(schedule.Plans))
		for _, p := range schedule.Plans {
			plans = append(plans, fiber.Map{
				"wallet_id":      p.WalletID,
				"urgency":        p.Urgency,
				"scheduled_for":  p.ScheduledFor,
				"recommendation": p.Recommendation,
			})
		}
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"user_id":    schedule.UserID,
			"starts_at":  schedule.StartsAt.Format(time.RFC3339Nano),
			"batch_size": schedule.BatchSize,
			"plans":      plans,
		})
	}
}
