package account

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"
)

// Handler exposes account endpoints.
type Handler struct {
	service *Service
}

// NewHandler constructs an account handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type createRequest struct {
	OwnerName string `json:"owner_name"`
	Currency  string `json:"currency"`
}

// Create provisions a new account.
func (h *Handler) Create(c *fiber.Ctx) error {
	var req createRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	account, err := h.service.Create(c.UserContext(), CreateInput{OwnerName: req.OwnerName, Currency: req.Currency})
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"account_id":   account.ID,
		"account_code": account.AccountCode,
		"currency":     account.Currency,
		"status":       account.Status,
		"created_at":   account.CreatedAt,
	})
}

// Get returns account metadata.
func (h *Handler) Get(c *fiber.Ctx) error {
	account, err := h.service.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return fiber.NewError(http.StatusNotFound, "account not found")
		}
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(fiber.Map{
		"account_id": account.ID,
		"owner_name": account.OwnerName,
		"currency":   account.Currency,
		"status":     account.Status,
		"created_at": account.CreatedAt,
	})
}

// Balance returns the ledger balance for the account.
func (h *Handler) Balance(c *fiber.Ctx) error {
	balance, err := h.service.Balance(c.UserContext(), c.Params("id"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return fiber.NewError(http.StatusNotFound, "account not found")
		}
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(fiber.Map{
		"account_id": balance.AccountID,
		"balance":    balance.Amount,
		"as_of":      balance.AsOf,
	})
}
