package routes

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/pairvault/pairvault/internal/config"
	"github.com/pairvault/pairvault/internal/middleware"
	"github.com/pairvault/pairvault/internal/pairing"
	"github.com/pairvault/pairvault/internal/vault"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg      config.Config
	Logger   *slog.Logger
	Pairing  *pairing.Service
	Vault    *vault.Service
	Cache    *redis.Client
	Gatherer prometheus.Gatherer
	Checks   map[string]func(context.Context) error
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) error {
	if d.Pairing == nil || d.Vault == nil {
		return fmt.Errorf("pairing and vault services are required")
	}
	if !d.Cfg.IsDev() && d.Cache == nil {
		d.Logger.Warn("redis not configured, memory uploads are not idempotent and scan limits are per instance")
	}

	// Middlewares
	app.Use(recover.New())
	app.Use(middleware.RequestID())
	// Plain text access log in desired format: [HH:MM:SS] 200 -  145ms METHOD /path
	app.Use(logger.New(logger.Config{
		Format:     "[${time}] ${status} -  ${latency} ${method} ${path}\n",
		TimeFormat: "15:04:05",
		TimeZone:   "Local",
	}))
	app.Use(middleware.Audit(d.Logger))

	RegisterHealthRoutes(app, d.Checks)
	if d.Gatherer != nil {
		RegisterMetricsRoute(app, d.Gatherer)
	}

	api := app.Group("/api/v1")
	api.Get("/ping", func(c *fiber.Ctx) error {
		reqID, _ := c.Locals("X-Request-ID").(string)
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": reqID,
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	scanLimit := middleware.ScanRateLimit(d.Cache, d.Cfg.ScanRateLimitPerMin)
	RegisterScanRoutes(api, pairing.NewHandler(d.Pairing), scanLimit)

	var uploadGuards []fiber.Handler
	if d.Cache != nil {
		uploadGuards = append(uploadGuards, middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger))
	}
	RegisterMemoryRoutes(api, vault.NewHandler(d.Vault), uploadGuards...)

	return nil
}
