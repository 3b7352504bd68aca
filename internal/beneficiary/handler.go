package beneficiary

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"
)

// Handler exposes beneficiary endpoints.
type Handler struct {
	service *Service
}

// NewHandler constructs a beneficiary handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type createRequest struct {
	AccountID   string `json:"account_id"`
	Name        string `json:"name"`
	Destination string `json:"destination"`
}

// Create saves a new beneficiary.
func (h *Handler) Create(c *fiber.Ctx) error {
	var req createRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	b, err := h.service.Create(c.UserContext(), CreateInput{
		AccountID:   req.AccountID,
		Name:        req.Name,
		Destination: req.Destination,
	})
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"beneficiary_id": b.ID,
		"account_id":     b.AccountID,
		"name":           b.Name,
		"destination":    b.Destination,
		"active":         b.Active,
		"created_at":     b.CreatedAt,
	})
}

// List returns the beneficiaries saved by an account.
func (h *Handler) List(c *fiber.Ctx) error {
	items, err := h.service.List(c.UserContext(), c.Params("accountId"))
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}

	out := make([]fiber.Map, 0, len(items))
	for _, b := range items {
		out = append(out, fiber.Map{
			"beneficiary_id": b.ID,
			"name":           b.Name,
			"destination":    b.Destination,
			"active":         b.Active,
			"created_at":     b.CreatedAt,
		})
	}
	return c.JSON(fiber.Map{"beneficiaries": out})
}

// Deactivate disables a beneficiary.
func (h *Handler) Deactivate(c *fiber.Ctx) error {
	if err := h.service.Deactivate(c.UserContext(), c.Params("id")); err != nil {
		if errors.Is(err, ErrNotFound) {
			return fiber.NewError(http.StatusNotFound, "beneficiary not found")
		}
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return c.SendStatus(http.StatusNoContent)
}
