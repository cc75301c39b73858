package routes

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/quantumshield/vault/internal/identity"
	"github.com/quantumshield/vault/internal/migration"
	"github.com/quantumshield/vault/internal/wallet"
)

const (
	statsMigrationCacheKey = "stats:v1:migration"
	statsAttacksCacheKey   = "stats:v1:attacks"

	attackStatsWindow = 24 * time.Hour
)

// RegisterDashboardRoutes wires the aggregated dashboard view and the global
// stats endpoints. Stats are cached in Redis for a short TTL because they scan
// whole tables.
func RegisterDashboardRoutes(router fiber.Router, d Deps, users *identity.Service, wallets *wallet.Service, engine *migration.Service) {
	router.Get("/users/:userId/dashboard", userDashboard(users, wallets, engine))

	stats := router.Group("/stats")
	stats.Get("/migration", cachedJSON(d, statsMigrationCacheKey, migrationStats(wallets)))
	stats.Get("/attacks", cachedJSON(d, statsAttacksCacheKey, attackStats(engine)))
}

func userDashboard(users *identity.Service, wallets *wallet.Service, engine *migration.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Params("userId")
		user, err := users.Get(c.UserContext(), userID)
		if err != nil {
			if errors.Is(err, identity.ErrNotFound) {
				return fiber.NewError(http.StatusNotFound, "user not found")
			}
			return fiber.NewError(http.StatusInternalServerError, err.Error())
		}

		owned, err := wallets.ListByOwner(c.UserContext(), userID)
		if err != nil {
			return fiber.NewError(http.StatusInternalServerError, err.Error())
		}
		logs, err := engine.LogsForUser(c.UserContext(), userID)
		if err != nil {
			return fiber.NewError(http.StatusInternalServerError, err.Error())
		}

		walletViews := make([]wallet.Response, 0, len(owned))
		var totalBalance float64
		var migrated int
		for _, w := range owned {
			walletViews = append(walletViews, wallet.ToResponse(w))
			totalBalance += w.Balance
			if w.Migrated {
				migrated++
			}
		}

		migrations := make([]fiber.Map, 0, len(logs))
		for _, entry := range logs {
			migrations = append(migrations, fiber.Map{
				"id":                  entry.ID,
				"wallet_id":           entry.WalletID,
				"status":              entry.Status,
				"transferred_balance": entry.TransferredBalance,
				"created_at":          entry.CreatedAt.Format(time.RFC3339Nano),
			})
		}

		return c.Status(http.StatusOK).JSON(fiber.Map{
			"user": fiber.Map{
				"id":       user.ID,
				"username": user.Username,
				"email":    user.Email,
			},
			"wallets":    walletViews,
			"migrations": migrations,
			"summary": fiber.Map{
				"total_wallets":      len(owned),
				"migrated_wallets":   migrated,
				"vulnerable_wallets": len(owned) - migrated,
				"total_balance":      totalBalance,
			},
		})
	}
}

func migrationStats(wallets *wallet.Service) func(ctx context.Context) (fiber.Map, error) {
	return func(ctx context.Context) (fiber.Map, error) {
		counts, err := wallets.Counts(ctx)
		if err != nil {
			return nil, err
		}
		percentage := 0.0
		if counts.Total > 0 {
			percentage = float64(counts.Migrated) / float64(counts.Total) * 100
		}
		return fiber.Map{
			"total_wallets":        counts.Total,
			"migrated_wallets":     counts.Migrated,
			"vulnerable_wallets":   counts.Vulnerable,
			"migration_percentage": percentage,
		}, nil
	}
}

func attackStats(engine *migration.Service) func(ctx context.Context) (fiber.Map, error) {
	return func(ctx context.Context) (fiber.Map, error) {
		since := time.Now().UTC().Add(-attackStatsWindow)
		attacks, err := engine.RecentAttacks(ctx, since)
		if err != nil {
			return nil, err
		}

		var broken int
		vulnerableWallets := map[string]struct{}{}
		for _, a := range attacks {
			if a.SignatureBroken {
				broken++
			}
			if a.Vulnerable {
				vulnerableWallets[a.WalletID] = struct{}{}
			}
		}
		return fiber.Map{
			"window_hours":              int(attackStatsWindow.Hours()),
			"total_simulations":         len(attacks),
			"successful_attacks":        broken,
			"vulnerable_wallets_probed": len(vulnerableWallets),
			"since":                     since.Format(time.RFC3339Nano),
		}, nil
	}
}

// cachedJSON serves a computed JSON payload through a short-lived Redis cache.
// With no cache configured the payload is computed on every request.
func cachedJSON(d Deps, key string, compute func(ctx context.Context) (fiber.Map, error)) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if d.Cache != nil {
			cached, err := d.Cache.Get(c.UserContext(), key).Bytes()
			if err == nil {
				c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
				return c.Status(http.StatusOK).Send(cached)
			}
			if !errors.Is(err, redis.Nil) {
				d.Logger.Warn("stats cache lookup failed", slog.String("key", key), slog.Any("error", err))
			}
		}

		payload, err := compute(c.UserContext())
		if err != nil {
			return fiber.NewError(http.StatusInternalServerError, err.Error())
		}

		if d.Cache != nil {
			encoded, err := json.Marshal(payload)
			if err == nil {
				if err := d.Cache.Set(c.UserContext(), key, encoded, d.Cfg.StatsCacheTTL).Err(); err != nil {
					d.Logger.Warn("stats cache write failed", slog.String("key", key), slog.Any("error", err))
				}
			}
		}

		return c.Status(http.StatusOK).JSON(payload)
	}
}
