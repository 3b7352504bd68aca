package transfer

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/sango-pay/sango_pay/internal/account"
	"github.com/sango-pay/sango_pay/internal/beneficiary"
	"github.com/sango-pay/sango_pay/internal/ledger"
	"github.com/sango-pay/sango_pay/internal/limits"
)

// Handler exposes money movement endpoints.
type Handler struct {
	service *Service
}

// NewHandler constructs a transfer handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type transferRequest struct {
	AccountID     string `json:"account_id"`
	BeneficiaryID string `json:"beneficiary_id"`
	Amount        int64  `json:"amount"`
	ClientTxID    string `json:"client_tx_id"`
	DeviceID      string `json:"device_id"`
	Location      string `json:"location"`
}

type receiveRequest struct {
	AccountID  string `json:"account_id"`
	Amount     int64  `json:"amount"`
	Source     string `json:"source"`
	ClientTxID string `json:"client_tx_id"`
	DeviceID   string `json:"device_id"`
}

// Transfer processes an outbound transfer to a saved beneficiary.
func (h *Handler) Transfer(c *fiber.Ctx) error {
	var req transferRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	requestor, _ := c.Locals("account_id").(string)
	sessionToken, _ := c.Locals("session_token").(string)

	res, err := h.service.Transfer(c.UserContext(), TransferInput{
		AccountID:          req.AccountID,
		BeneficiaryID:      req.BeneficiaryID,
		Amount:             req.Amount,
		ClientTxID:         req.ClientTxID,
		DeviceID:           req.DeviceID,
		IP:                 c.IP(),
		Location:           req.Location,
		SessionToken:       sessionToken,
		RequestorAccountID: requestor,
	})
	if err != nil {
		return mapError(c, err)
	}

	status := http.StatusCreated
	if res.Replayed {
		status = http.StatusOK
	}
	return c.Status(status).JSON(postingResponse(res))
}

// Receive processes an externally funded credit.
func (h *Handler) Receive(c *fiber.Ctx) error {
	var req receiveRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	res, err := h.service.Receive(c.UserContext(), ReceiveInput{
		AccountID:  req.AccountID,
		Amount:     req.Amount,
		Source:     req.Source,
		ClientTxID: req.ClientTxID,
		DeviceID:   req.DeviceID,
	})
	if err != nil {
		return mapError(c, err)
	}

	status := http.StatusCreated
	if res.Replayed {
		status = http.StatusOK
	}
	return c.Status(status).JSON(postingResponse(res))
}

// History lists completed transactions for an account over the last 30 days.
func (h *Handler) History(c *fiber.Ctx) error {
	accountID := c.Params("id")
	since := time.Now().UTC().Add(-30 * 24 * time.Hour)

	txs, err := h.service.History(c.UserContext(), accountID, since)
	if err != nil {
		return mapError(c, err)
	}

	items := make([]fiber.Map, 0, len(txs))
	for _, tx := range txs {
		items = append(items, fiber.Map{
			"transaction_id": tx.ID,
			"kind":           tx.Kind,
			"status":         tx.Status,
			"amount":         tx.Amount,
			"gross":          tx.Gross,
			"fee":            tx.Fee,
			"counterparty":   tx.Counterparty,
			"created_at":     tx.CreatedAt,
		})
	}
	return c.JSON(fiber.Map{"transactions": items})
}

func postingResponse(res Result) fiber.Map {
	return fiber.Map{
		"transaction_id": res.Transaction.ID,
		"status":         res.Transaction.Status,
		"amount":         res.Transaction.Amount,
		"gross":          res.Transaction.Gross,
		"fee":            res.Transaction.Fee,
		"balance":        res.Balance,
		"replayed":       res.Replayed,
		"created_at":     res.Transaction.CreatedAt,
	}
}

func mapError(c *fiber.Ctx, err error) error {
	var rateLimited *RateLimitedError
	if errors.As(err, &rateLimited) {
		seconds := int64(time.Until(rateLimited.Until).Seconds()) + 1
		if seconds > 0 {
			c.Set(fiber.HeaderRetryAfter, strconv.FormatInt(seconds, 10))
		}
		return fiber.NewError(http.StatusTooManyRequests, err.Error())
	}

	switch {
	case errors.Is(err, ErrRateLimited):
		return fiber.NewError(http.StatusTooManyRequests, err.Error())
	case errors.Is(err, ErrFraudBlocked):
		return fiber.NewError(http.StatusForbidden, err.Error())
	case errors.Is(err, ErrVerificationRequired):
		return fiber.NewError(http.StatusPreconditionRequired, err.Error())
	case errors.Is(err, ErrNotOwner):
		return fiber.NewError(http.StatusForbidden, err.Error())
	case errors.Is(err, account.ErrNotFound), errors.Is(err, beneficiary.ErrNotFound):
		return fiber.NewError(http.StatusNotFound, err.Error())
	case errors.Is(err, beneficiary.ErrInactive):
		return fiber.NewError(http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, ledger.ErrInvalidAmount),
		errors.Is(err, limits.ErrBelowMinimum),
		errors.Is(err, limits.ErrAboveMaximum):
		return fiber.NewError(http.StatusBadRequest, err.Error())
	case errors.Is(err, limits.ErrDailyLimitExceeded),
		errors.Is(err, limits.ErrMonthlyLimitExceeded):
		return fiber.NewError(http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, ledger.ErrInsufficientFunds):
		return fiber.NewError(http.StatusBadRequest, err.Error())
	default:
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
}
