package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/sango-pay/sango_pay/internal/device"
)

const (
	accountIDLocal    = "account_id"
	deviceIDLocal     = "device_id"
	sessionTokenLocal = "session_token"
)

// DeviceSession extracts a bearer step-up session token when present and, if it
// validates, exposes the bound account and device to downstream handlers. A
// missing or invalid token is not an error here: endpoints that need step-up
// decide for themselves.
func DeviceSession(manager *device.Manager) fiber.Handler {
	return func(c *fiber.Ctx) error {
		header := c.Get(fiber.HeaderAuthorization)
		if header == "" {
			return c.Next()
		}
		token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
		if token == "" {
			return c.Next()
		}

		deviceID, accountID, ok := manager.ValidateSession(token)
		if !ok {
			return c.Next()
		}

		c.Locals(accountIDLocal, accountID)
		c.Locals(deviceIDLocal, deviceID)
		c.Locals(sessionTokenLocal, token)
		return c.Next()
	}
}
