package routes_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/quantumshield/vault/internal/config"
	"github.com/quantumshield/vault/internal/logging"
	"github.com/quantumshield/vault/internal/routes"
	"github.com/quantumshield/vault/internal/server"
)

func newTestApp(t *testing.T) *fiber.App {
	t.Helper()

	mr := miniredis.RunT(t)
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { cache.Close() })

	cfg := config.Config{
		AppName:        "QuantumShield Vault",
		AppEnv:         "dev",
		Port:           "0",
		IdempotencyTTL: time.Minute,
		StatsCacheTTL:  time.Second,
	}
	logger := logging.Discard()

	srv := server.New(cfg, logger)
	if err := routes.Setup(srv.App(), routes.Deps{Cfg: cfg, Cache: cache, Logger: logger}); err != nil {
		t.Fatalf("setup: %v", err)
	}
	return srv.App()
}

func doJSON(t *testing.T, app *fiber.App, method, path string, body any) (int, map[string]any) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("encode body: %v", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	if method != http.MethodGet {
		req.Header.Set("Idempotency-Key", uuid.NewString())
	}

	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	var decoded map[string]any
	if len(raw) > 0 && raw[0] == '{' {
		if err := json.Unmarshal(raw, &decoded); err != nil {
			t.Fatalf("decode %s %s response: %v", method, path, err)
		}
	}
	return resp.StatusCode, decoded
}

func TestMigrationFlowOverHTTP(t *testing.T) {
	app := newTestApp(t)

	status, user := doJSON(t, app, http.MethodPost, "/api/v1/users", map[string]string{
		"username": "alice",
		"email":    "alice@example.com",
	})
	if status != http.StatusCreated {
		t.Fatalf("create user: status %d", status)
	}
	userID, _ := user["id"].(string)
	if userID == "" {
		t.Fatal("user id missing")
	}

	status, created := doJSON(t, app, http.MethodPost, "/api/v1/wallets", map[string]string{
		"owner_id": userID,
		"name":     "hot",
	})
	if status != http.StatusCreated {
		t.Fatalf("create wallet: status %d", status)
	}
	walletID, _ := created["id"].(string)
	if walletID == "" {
		t.Fatal("wallet id missing")
	}
	if _, exposed := created["legacy_private_key"]; exposed {
		t.Fatal("private key material on the wire")
	}

	status, attack := doJSON(t, app, http.MethodPost, "/api/v1/wallets/"+walletID+"/simulate-attack", nil)
	if status != http.StatusOK {
		t.Fatalf("simulate attack: status %d", status)
	}
	if vulnerable, _ := attack["quantum_vulnerable"].(bool); !vulnerable {
		t.Fatal("unmigrated wallet must be vulnerable")
	}

	status, migrated := doJSON(t, app, http.MethodPost, "/api/v1/wallets/"+walletID+"/migrate", nil)
	if status != http.StatusOK {
		t.Fatalf("migrate: status %d body %v", status, migrated)
	}
	if balance, _ := migrated["old_balance_transferred"].(float64); balance != 1.0 {
		t.Fatalf("balance not conserved: %v", migrated["old_balance_transferred"])
	}

	status, _ = doJSON(t, app, http.MethodPost, "/api/v1/wallets/"+walletID+"/migrate", nil)
	if status != http.StatusBadRequest {
		t.Fatalf("second migrate: expected 400, got %d", status)
	}

	status, attack = doJSON(t, app, http.MethodPost, "/api/v1/wallets/"+walletID+"/simulate-attack", nil)
	if status != http.StatusOK {
		t.Fatalf("post-migration attack: status %d", status)
	}
	if vulnerable, _ := attack["quantum_vulnerable"].(bool); vulnerable {
		t.Fatal("migrated wallet must not be vulnerable")
	}
	if attack["estimated_break_time_seconds"] != "unbounded" {
		t.Fatalf("expected unbounded break time, got %v", attack["estimated_break_time_seconds"])
	}

	status, dashboard := doJSON(t, app, http.MethodGet, "/api/v1/users/"+userID+"/dashboard", nil)
	if status != http.StatusOK {
		t.Fatalf("dashboard: status %d", status)
	}
	summary, _ := dashboard["summary"].(map[string]any)
	if summary == nil || summary["migrated_wallets"].(float64) != 1 {
		t.Fatalf("unexpected dashboard summary: %v", dashboard["summary"])
	}

	status, stats := doJSON(t, app, http.MethodGet, "/api/v1/stats/migration", nil)
	if status != http.StatusOK {
		t.Fatalf("migration stats: status %d", status)
	}
	if stats["migration_percentage"].(float64) != 100 {
		t.Fatalf("unexpected migration stats: %v", stats)
	}
}

func TestUnknownWalletReturns404(t *testing.T) {
	app := newTestApp(t)

	for _, path := range []string{
		fmt.Sprintf("/api/v1/wallets/%s/migrate", uuid.NewString()),
		fmt.Sprintf("/api/v1/wallets/%s/simulate-attack", uuid.NewString()),
	} {
		status, body := doJSON(t, app, http.MethodPost, path, nil)
		if status != http.StatusNotFound {
			t.Fatalf("%s: expected 404, got %d (%v)", path, status, body)
		}
	}

	status, _ := doJSON(t, app, http.MethodGet, "/api/v1/wallets/"+uuid.NewString(), nil)
	if status != http.StatusNotFound {
		t.Fatalf("wallet lookup: expected 404, got %d", status)
	}
}

func TestHealthEndpoints(t *testing.T) {
	app := newTestApp(t)

	status, body := doJSON(t, app, http.MethodGet, "/healthz", nil)
	if status != http.StatusOK || body["status"] != "ok" {
		t.Fatalf("healthz: status %d body %v", status, body)
	}

	status, body = doJSON(t, app, http.MethodGet, "/readyz", nil)
	if status != http.StatusOK {
		t.Fatalf("readyz: status %d body %v", status, body)
	}
}
