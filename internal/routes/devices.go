package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/sango-pay/sango_pay/internal/device"
)

// RegisterDeviceRoutes wires device trust endpoints. The code submission path
// carries the verification rate limit so codes cannot be brute forced.
func RegisterDeviceRoutes(r fiber.Router, h *device.Handler, verificationLimit fiber.Handler) {
	r.Post("/devices/observe", h.Observe)
	r.Get("/devices/:id", h.Get)
	r.Post("/devices/:id/verification", h.BeginVerification)
	r.Post("/devices/:id/trust", verificationLimit, h.Trust)
}
