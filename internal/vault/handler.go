package vault

import (
	"errors"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/pairvault/pairvault/internal/crypto"
)

// Handler exposes sealed memories over HTTP. Byte fields travel as base64.
type Handler struct {
	service *Service
}

// NewHandler builds a vault HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type storeRequest struct {
	Nonce         []byte `json:"nonce"`
	Salt          []byte `json:"salt"`
	SchemaVersion int    `json:"schema_version"`
	Ciphertext    []byte `json:"ciphertext"`
}

type refResponse struct {
	RecordID      string    `json:"record_id"`
	PairID        string    `json:"pair_id"`
	BlobKey       string    `json:"blob_key"`
	SchemaVersion int       `json:"schema_version"`
	CreatedAt     time.Time `json:"created_at"`
}

type sealedResponse struct {
	RecordID      string    `json:"record_id"`
	PairID        string    `json:"pair_id"`
	BlobKey       string    `json:"blob_key"`
	Nonce         []byte    `json:"nonce"`
	Salt          []byte    `json:"salt,omitempty"`
	SchemaVersion int       `json:"schema_version"`
	CreatedAt     time.Time `json:"created_at"`
	Ciphertext    []byte    `json:"ciphertext"`
}

// Store persists a memory sealed on the device.
func (h *Handler) Store(c *fiber.Ctx) error {
	var req storeRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	ref, err := h.service.Store(c.UserContext(), Sealed{
		Record: Record{
			PairID:        c.Params("pairId"),
			Nonce:         req.Nonce,
			Salt:          req.Salt,
			SchemaVersion: req.SchemaVersion,
		},
		Ciphertext: req.Ciphertext,
	})
	if err != nil {
		return mapError(err)
	}
	return c.Status(http.StatusCreated).JSON(refResponse{
		RecordID:      ref.RecordID,
		PairID:        ref.PairID,
		BlobKey:       ref.BlobKey,
		SchemaVersion: ref.SchemaVersion,
		CreatedAt:     ref.CreatedAt,
	})
}

// Fetch returns the latest sealed memory for a pair.
func (h *Handler) Fetch(c *fiber.Ctx) error {
	sealed, err := h.service.Fetch(c.UserContext(), c.Params("pairId"))
	if err != nil {
		return mapError(err)
	}
	rec := sealed.Record
	return c.Status(http.StatusOK).JSON(sealedResponse{
		RecordID:      rec.ID,
		PairID:        rec.PairID,
		BlobKey:       rec.BlobKey,
		Nonce:         rec.Nonce,
		Salt:          rec.Salt,
		SchemaVersion: rec.SchemaVersion,
		CreatedAt:     rec.CreatedAt,
		Ciphertext:    sealed.Ciphertext,
	})
}

func mapError(err error) error {
	switch {
	case errors.Is(err, ErrNotPaired):
		return fiber.NewError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrNotFound):
		return fiber.NewError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrInvalidInput), errors.Is(err, crypto.ErrUnsupportedSchema):
		return fiber.NewError(http.StatusBadRequest, err.Error())
	default:
		return fiber.NewError(http.StatusInternalServerError, "memory store unavailable")
	}
}
