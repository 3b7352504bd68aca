package device

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/sango-pay/sango_pay/internal/notification"
)

// Handler exposes device trust endpoints.
type Handler struct {
	manager  *Manager
	notifier notification.Notifier
}

// NewHandler constructs a device handler.
func NewHandler(manager *Manager, notifier notification.Notifier) *Handler {
	return &Handler{manager: manager, notifier: notifier}
}

type observeRequest struct {
	DeviceID   string            `json:"device_id"`
	Components map[string]string `json:"components"`
	AccountID  string            `json:"account_id"`
	Location   string            `json:"location"`
}

type trustRequest struct {
	Code string `json:"code"`
}

// Observe registers a sighting of a device. Clients may send a precomputed
// device id or the raw fingerprint components.
func (h *Handler) Observe(c *fiber.Ctx) error {
	var req observeRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	deviceID := req.DeviceID
	if deviceID == "" && len(req.Components) > 0 {
		deviceID = Fingerprint(req.Components)
	}
	if deviceID == "" {
		return fiber.NewError(http.StatusBadRequest, "device_id or components required")
	}

	record, err := h.manager.Observe(c.UserContext(), deviceID, req.AccountID, c.IP(), req.Location)
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}

	return c.Status(http.StatusOK).JSON(fiber.Map{
		"device_id": record.DeviceID,
		"state":     record.State,
	})
}

// Get returns the current trust state of a device.
func (h *Handler) Get(c *fiber.Ctx) error {
	record, found, err := h.manager.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	if !found {
		return fiber.NewError(http.StatusNotFound, "device not found")
	}

	return c.JSON(fiber.Map{
		"device_id":    record.DeviceID,
		"state":        record.EffectiveState(time.Now().UTC()),
		"trust_expiry": record.TrustExpiry,
		"first_seen":   record.FirstSeen,
		"last_seen":    record.LastSeen,
	})
}

// BeginVerification issues a short-lived verification code for the device and
// hands it to the notifier for delivery. The code never appears in the HTTP
// response.
func (h *Handler) BeginVerification(c *fiber.Ctx) error {
	deviceID := c.Params("id")

	code, err := h.manager.BeginVerification(c.UserContext(), deviceID)
	if err != nil {
		if errors.Is(err, ErrDeviceNotFound) {
			return fiber.NewError(http.StatusNotFound, "device not found")
		}
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}

	record, _, err := h.manager.Get(c.UserContext(), deviceID)
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	if h.notifier != nil {
		_ = h.notifier.Send(c.UserContext(), notification.Event{
			Kind:      notification.KindDeviceVerification,
			AccountID: record.OwnerAccountID,
			Body:      fmt.Sprintf("Your verification code is %s", code),
		})
	}

	return c.SendStatus(http.StatusAccepted)
}

// Trust verifies the submitted code and returns a step-up session for the
// now-trusted device.
func (h *Handler) Trust(c *fiber.Ctx) error {
	var req trustRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	session, err := h.manager.Trust(c.UserContext(), c.Params("id"), req.Code)
	if err != nil {
		switch {
		case errors.Is(err, ErrDeviceNotFound):
			return fiber.NewError(http.StatusNotFound, "device not found")
		case errors.Is(err, ErrInvalidCode):
			return fiber.NewError(http.StatusUnauthorized, "invalid verification code")
		default:
			return fiber.NewError(http.StatusInternalServerError, err.Error())
		}
	}

	return c.JSON(fiber.Map{
		"session_token": session.Token,
		"device_id":     session.DeviceID,
		"expires_at":    session.ExpiresAt,
	})
}
