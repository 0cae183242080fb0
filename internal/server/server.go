package server

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/pairvault/pairvault/internal/app"
	"github.com/pairvault/pairvault/internal/config"
	"github.com/pairvault/pairvault/internal/metrics"
	"github.com/pairvault/pairvault/internal/routes"
)

// bodyOverhead covers base64 expansion and the JSON envelope around a memory upload.
const bodyOverhead = 64 << 10

// Server wraps the Fiber application and shared dependencies.
type Server struct {
	app *fiber.App
	cfg config.Config
}

// New builds the services over the open backends and delegates route wiring to routes.Setup.
func New(cfg config.Config, backends *app.Backends, logger *slog.Logger) (*Server, error) {
	if backends == nil {
		return nil, errors.New("backends are required")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	recorder := metrics.NewCollector(registry)

	services, err := app.NewServices(backends, cfg, recorder, logger)
	if err != nil {
		return nil, err
	}

	fiberApp := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		BodyLimit:    cfg.MaxImageBytes*4/3 + bodyOverhead,
	})

	if err := routes.Setup(fiberApp, routes.Deps{
		Cfg:      cfg,
		Logger:   logger,
		Pairing:  services.Pairing,
		Vault:    services.Vault,
		Cache:    backends.Cache,
		Gatherer: registry,
		Checks:   backends.HealthChecks(),
	}); err != nil {
		return nil, err
	}

	return &Server{app: fiberApp, cfg: cfg}, nil
}

// Listen starts the HTTP server.
func (s *Server) Listen() error {
	return s.app.Listen(s.cfg.Address())
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}
