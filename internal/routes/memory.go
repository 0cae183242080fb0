package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/pairvault/pairvault/internal/vault"
)

// RegisterMemoryRoutes wires sealed memory upload and download.
func RegisterMemoryRoutes(r fiber.Router, h *vault.Handler, uploadGuards ...fiber.Handler) {
	r.Get("/pairs/:pairId/memory", h.Fetch)
	r.Post("/pairs/:pairId/memory", append(uploadGuards, h.Store)...)
}
