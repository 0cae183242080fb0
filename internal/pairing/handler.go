package pairing

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"
)

// Handler exposes the scan endpoint to devices.
type Handler struct {
	service *Service
}

// NewHandler builds a pairing HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type scanRequest struct {
	Token string `json:"token"`
}

type scanResponse struct {
	PairID        string `json:"pair_id"`
	FirstScanned  bool   `json:"first_scanned"`
	SecondScanned bool   `json:"second_scanned"`
	Complete      bool   `json:"complete"`
	Progress      string `json:"progress"`
	Resolution    string `json:"resolution"`
}

// Scan resolves the token carried in the JSON body.
func (h *Handler) Scan(c *fiber.Ctx) error {
	var req scanRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	return h.scan(c, req.Token)
}

// ScanQuery resolves the token carried in the k query parameter, which is
// what tag URLs encode.
func (h *Handler) ScanQuery(c *fiber.Ctx) error {
	return h.scan(c, c.Query("k"))
}

func (h *Handler) scan(c *fiber.Ctx, token string) error {
	res, err := h.service.Scan(c.UserContext(), token)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidToken):
			return fiber.NewError(http.StatusBadRequest, err.Error())
		case errors.Is(err, ErrConflict):
			return fiber.NewError(http.StatusConflict, err.Error())
		default:
			return fiber.NewError(http.StatusInternalServerError, "scan failed")
		}
	}

	status := http.StatusOK
	if res.Resolution == JustOpened {
		status = http.StatusCreated
	}
	return c.Status(status).JSON(scanResponse{
		PairID:        res.PairID,
		FirstScanned:  res.FirstScanned,
		SecondScanned: res.SecondScanned,
		Complete:      res.Complete,
		Progress:      res.Progress,
		Resolution:    string(res.Resolution),
	})
}
