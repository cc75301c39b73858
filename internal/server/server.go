package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/quantumshield/vault/internal/config"
)

// Server wraps the Fiber application with lifecycle helpers.
type Server struct {
	app    *fiber.App
	cfg    config.Config
	logger *slog.Logger
}

// New constructs the HTTP server with shared error handling.
func New(cfg config.Config, logger *slog.Logger) *Server {
	app := fiber.New(fiber.Config{
		AppName:               cfg.AppName,
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler(logger),
	})

	return &Server{app: app, cfg: cfg, logger: logger}
}

// App exposes the underlying Fiber instance for route registration and tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen starts serving on the configured address and blocks until shutdown.
func (s *Server) Listen() error {
	addr := s.cfg.Address()
	s.logger.Info("http server listening", slog.String("addr", addr))
	return s.app.Listen(addr)
}

// Shutdown drains in-flight requests within the context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func errorHandler(logger *slog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := http.StatusInternalServerError
		message := "internal server error"

		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			code = fiberErr.Code
			message = fiberErr.Message
		}

		if code >= http.StatusInternalServerError {
			logger.Error("request failed", slog.String("path", c.Path()), slog.Any("error", err))
		}

		return c.Status(code).JSON(fiber.Map{"error": message})
	}
}
