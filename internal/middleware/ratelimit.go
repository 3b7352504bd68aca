package middleware

import (
	"log/slog"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/sango-pay/sango_pay/internal/ratelimit"
)

// VerificationRateLimit guards the device verification endpoints against code
// guessing. Each failed response counts toward the device's attempt budget; a
// successful one clears it. Limiter errors fail open so a cache outage does
// not lock everyone out of step-up.
func VerificationRateLimit(limiter ratelimit.Limiter, maxAttempts int, logger *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req struct {
			DeviceID string `json:"device_id"`
		}
		_ = c.BodyParser(&req)
		id := req.DeviceID
		if id == "" {
			id = c.Params("id")
		}
		if id == "" {
			id = c.IP()
		}
		key := "verify:" + id

		allowed, err := limiter.CheckLimit(c.UserContext(), key, maxAttempts)
		if err != nil {
			logger.Warn("verification rate limit check failed open", slog.String("key", key), slog.Any("error", err))
			return c.Next()
		}
		if !allowed {
			return fiber.NewError(http.StatusTooManyRequests, "too many verification attempts, try again later")
		}

		handlerErr := c.Next()

		failed := handlerErr != nil || c.Response().StatusCode() >= http.StatusBadRequest
		if failed {
			if _, err := limiter.Increment(c.UserContext(), key); err != nil {
				logger.Warn("record verification attempt", slog.String("key", key), slog.Any("error", err))
			}
		} else if err := limiter.ResetLimit(c.UserContext(), key); err != nil {
			logger.Warn("reset verification attempts", slog.String("key", key), slog.Any("error", err))
		}

		return handlerErr
	}
}
