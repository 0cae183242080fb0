package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/pairvault/pairvault/internal/pairing"
)

// RegisterScanRoutes wires the token scan endpoints. GET serves tag URLs of
// the form /scan?k=<token>.
func RegisterScanRoutes(r fiber.Router, h *pairing.Handler, limit fiber.Handler) {
	r.Post("/scan", limit, h.Scan)
	r.Get("/scan", limit, h.ScanQuery)
}
