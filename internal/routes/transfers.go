package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/sango-pay/sango_pay/internal/transfer"
)

// RegisterTransferRoutes wires money movement endpoints.
func RegisterTransferRoutes(r fiber.Router, h *transfer.Handler) {
	r.Post("/transfers", h.Transfer)
	r.Post("/receive", h.Receive)
	r.Get("/accounts/:id/transactions", h.History)
}
