package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/sango-pay/sango_pay/internal/beneficiary"
)

// RegisterBeneficiaryRoutes wires saved beneficiary endpoints.
func RegisterBeneficiaryRoutes(r fiber.Router, h *beneficiary.Handler) {
	r.Post("/beneficiaries", h.Create)
	r.Get("/accounts/:accountId/beneficiaries", h.List)
	r.Delete("/beneficiaries/:id", h.Deactivate)
}
