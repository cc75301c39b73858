package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/quantumshield/vault/internal/migration"
	"github.com/quantumshield/vault/internal/wallet"
)

// RegisterWalletRoutes wires wallet endpoints and the wallet-scoped migration
// workflow operations.
func RegisterWalletRoutes(router fiber.Router, h *wallet.Handler, migrations *migration.Handler) {
	group := router.Group("/wallets")

	group.Post("/", h.Create)
	group.Get("/address/:address", h.GetByAddress)
	group.Get("/:walletId", h.Get)
	group.Get("/:walletId/crypto-audit", h.Audit)
	group.Get("/:walletId/migration-plan", migrations.Plan)
	group.Post("/:walletId/migrate", migrations.Migrate)
	group.Post("/:walletId/simulate-attack", migrations.SimulateAttack)
	group.Get("/:walletId/attacks", migrations.WalletAttacks)

	router.Get("/migrations/scheduled", migrations.Scheduled)
}
