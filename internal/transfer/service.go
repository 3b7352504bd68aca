package transfer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/sango-pay/sango_pay/internal/account"
	"github.com/sango-pay/sango_pay/internal/beneficiary"
	"github.com/sango-pay/sango_pay/internal/device"
	"github.com/sango-pay/sango_pay/internal/ledger"
	"github.com/sango-pay/sango_pay/internal/limits"
	"github.com/sango-pay/sango_pay/internal/notification"
	"github.com/sango-pay/sango_pay/internal/ratelimit"
	"github.com/sango-pay/sango_pay/internal/risk"
	"github.com/sango-pay/sango_pay/internal/syncutil"
)

var (
	// ErrRateLimited indicates the account exhausted its attempt budget and is
	// locked out of the operation.
	ErrRateLimited = errors.New("too many attempts, try again later")

	// ErrFraudBlocked is the caller-facing refusal for a risk block. The message
	// is deliberately generic: scores and factors stay internal.
	ErrFraudBlocked = errors.New("transaction could not be completed")

	// ErrVerificationRequired indicates the attempt needs a valid step-up
	// session before it can proceed.
	ErrVerificationRequired = errors.New("additional verification required")

	// ErrNotOwner indicates the caller does not own the source account.
	ErrNotOwner = errors.New("not owner of source account")
)

// RateLimitedError carries the lockout expiry alongside ErrRateLimited so the
// transport layer can tell the caller when to retry.
type RateLimitedError struct {
	Until time.Time
}

func (e *RateLimitedError) Error() string {
	return ErrRateLimited.Error()
}

func (e *RateLimitedError) Is(target error) bool {
	return target == ErrRateLimited
}

// Config carries the orchestrator's tunables.
type Config struct {
	MaxAttempts  int
	TransferFees ledger.FeeSchedule
	ReceiveFees  ledger.FeeSchedule
}

// Service orchestrates the money movement pipeline: rate limit gate, limit
// checks, fraud scoring, and the atomic ledger posting, in that order. A
// per-account lock is held from the limit check through the posting so
// concurrent attempts against one account serialize.
type Service struct {
	cfg           Config
	ledger        ledger.Ledger
	limits        *limits.Checker
	risk          *risk.Engine
	devices       *device.Manager
	limiter       ratelimit.Limiter
	accounts      *account.Service
	beneficiaries *beneficiary.Service
	notifier      notification.Notifier
	locks         *syncutil.KeyedMutex
	logger        *slog.Logger
}

// NewService constructs the transfer orchestrator.
func NewService(
	cfg Config,
	l ledger.Ledger,
	checker *limits.Checker,
	engine *risk.Engine,
	devices *device.Manager,
	limiter ratelimit.Limiter,
	accounts *account.Service,
	beneficiaries *beneficiary.Service,
	notifier notification.Notifier,
	logger *slog.Logger,
) *Service {
	return &Service{
		cfg:           cfg,
		ledger:        l,
		limits:        checker,
		risk:          engine,
		devices:       devices,
		limiter:       limiter,
		accounts:      accounts,
		beneficiaries: beneficiaries,
		notifier:      notifier,
		locks:         syncutil.NewKeyedMutex(),
		logger:        logger,
	}
}

// TransferInput captures one outbound transfer attempt.
type TransferInput struct {
	AccountID     string
	BeneficiaryID string
	Amount        int64
	ClientTxID    string

	DeviceID     string
	IP           string
	Location     string
	SessionToken string

	// RequestorAccountID is the authenticated caller; when set it must match
	// the source account.
	RequestorAccountID string
}

// ReceiveInput captures one inbound credit attempt.
type ReceiveInput struct {
	AccountID  string
	Amount     int64
	Source     string
	ClientTxID string
	DeviceID   string
}

// Result describes a committed posting. Replayed is set when the client
// transaction id had already committed and the original record was returned.
type Result struct {
	Transaction ledger.Transaction
	Balance     int64
	Replayed    bool
}

// Transfer runs the full outbound pipeline. Any refusal before the ledger
// posting counts as a failed attempt against the account's rate limit key; a
// committed posting resets the counter.
func (s *Service) Transfer(ctx context.Context, input TransferInput) (Result, error) {
	start := time.Now()
	if input.Amount <= 0 {
		return Result{}, ledger.ErrInvalidAmount
	}
	if input.ClientTxID == "" {
		input.ClientTxID = uuid.New().String()
	}

	key := "transfer:" + input.AccountID
	if err := s.checkRateLimit(ctx, key); err != nil {
		operationsTotal.WithLabelValues("transfer", "rate_limited").Inc()
		return Result{}, err
	}

	src, err := s.accounts.Get(ctx, input.AccountID)
	if err != nil {
		return Result{}, err
	}
	if input.RequestorAccountID != "" && src.ID != input.RequestorAccountID {
		return Result{}, ErrNotOwner
	}

	ben, err := s.beneficiaries.Resolve(ctx, input.BeneficiaryID, src.ID)
	if err != nil {
		s.recordFailure(ctx, key)
		operationsTotal.WithLabelValues("transfer", "rejected").Inc()
		return Result{}, err
	}

	unlock, err := s.locks.Lock(ctx, src.AccountCode)
	if err != nil {
		return Result{}, err
	}
	defer unlock()

	if err := s.limits.Check(ctx, src.AccountCode, ledger.KindTransferOut, input.Amount); err != nil {
		s.recordFailure(ctx, key)
		operationsTotal.WithLabelValues("transfer", "limit_exceeded").Inc()
		return Result{}, err
	}

	assessment := s.risk.CheckTransaction(ctx, risk.Input{
		AccountCode: src.AccountCode,
		Amount:      input.Amount,
		Kind:        ledger.KindTransferOut,
		DeviceID:    input.DeviceID,
		IP:          input.IP,
		Location:    input.Location,
	})
	riskScores.Observe(float64(assessment.Score))
	if !assessment.Allowed {
		s.recordFailure(ctx, key)
		operationsTotal.WithLabelValues("transfer", "blocked").Inc()
		s.logger.Warn("transfer blocked",
			slog.String("account_id", src.ID),
			slog.Int("score", assessment.Score))
		return Result{}, ErrFraudBlocked
	}
	if assessment.RequiresVerification && !s.stepUpSatisfied(input, src.ID) {
		s.recordFailure(ctx, key)
		operationsTotal.WithLabelValues("transfer", "verification_required").Inc()
		return Result{}, ErrVerificationRequired
	}

	tx, err := s.ledger.ApplyTransfer(ctx, ledger.TransferPosting{
		AccountCode:  src.AccountCode,
		Counterparty: ben.Destination,
		ClientTxID:   input.ClientTxID,
		Amount:       input.Amount,
		Schedule:     s.cfg.TransferFees,
		RiskScore:    assessment.Score,
		RiskFactors:  assessment.FactorCodes(),
		DeviceID:     input.DeviceID,
	})
	if errors.Is(err, ledger.ErrDuplicateTransaction) {
		operationsTotal.WithLabelValues("transfer", "replayed").Inc()
		return s.finish(ctx, src.AccountCode, tx, true)
	}
	if err != nil {
		if errors.Is(err, ledger.ErrInsufficientFunds) {
			s.recordFailure(ctx, key)
			operationsTotal.WithLabelValues("transfer", "insufficient_funds").Inc()
		} else {
			operationsTotal.WithLabelValues("transfer", "error").Inc()
		}
		return Result{}, err
	}

	if err := s.limiter.ResetLimit(ctx, key); err != nil {
		s.logger.Warn("reset rate limit", slog.String("key", key), slog.Any("error", err))
	}

	operationsTotal.WithLabelValues("transfer", "completed").Inc()
	operationAmount.WithLabelValues("transfer").Observe(float64(input.Amount))
	operationDuration.WithLabelValues("transfer").Observe(time.Since(start).Seconds())

	s.notify(notification.Event{
		Kind:      notification.KindTransferCompleted,
		AccountID: src.ID,
		Amount:    tx.Gross,
		Fee:       tx.Fee,
		Status:    string(tx.Status),
		Body:      fmt.Sprintf("Sent %d to %s (fee %d)", tx.Gross, ben.Name, tx.Fee),
	})

	return s.finish(ctx, src.AccountCode, tx, false)
}

// Receive credits an externally funded amount to the account, net of the
// receive fee. Inbound credits skip fraud scoring but still honor per-kind
// limits and the receive rate budget.
func (s *Service) Receive(ctx context.Context, input ReceiveInput) (Result, error) {
	start := time.Now()
	if input.Amount <= 0 {
		return Result{}, ledger.ErrInvalidAmount
	}
	if input.ClientTxID == "" {
		input.ClientTxID = uuid.New().String()
	}

	key := "receive:" + input.AccountID
	if err := s.checkRateLimit(ctx, key); err != nil {
		operationsTotal.WithLabelValues("receive", "rate_limited").Inc()
		return Result{}, err
	}

	dst, err := s.accounts.Get(ctx, input.AccountID)
	if err != nil {
		return Result{}, err
	}

	unlock, err := s.locks.Lock(ctx, dst.AccountCode)
	if err != nil {
		return Result{}, err
	}
	defer unlock()

	if err := s.limits.Check(ctx, dst.AccountCode, ledger.KindReceive, input.Amount); err != nil {
		s.recordFailure(ctx, key)
		operationsTotal.WithLabelValues("receive", "limit_exceeded").Inc()
		return Result{}, err
	}

	tx, err := s.ledger.ApplyReceive(ctx, ledger.ReceivePosting{
		AccountCode:  dst.AccountCode,
		Counterparty: input.Source,
		ClientTxID:   input.ClientTxID,
		Amount:       input.Amount,
		Schedule:     s.cfg.ReceiveFees,
		DeviceID:     input.DeviceID,
	})
	if errors.Is(err, ledger.ErrDuplicateTransaction) {
		operationsTotal.WithLabelValues("receive", "replayed").Inc()
		return s.finish(ctx, dst.AccountCode, tx, true)
	}
	if err != nil {
		operationsTotal.WithLabelValues("receive", "error").Inc()
		return Result{}, err
	}

	if err := s.limiter.ResetLimit(ctx, key); err != nil {
		s.logger.Warn("reset rate limit", slog.String("key", key), slog.Any("error", err))
	}

	operationsTotal.WithLabelValues("receive", "completed").Inc()
	operationAmount.WithLabelValues("receive").Observe(float64(input.Amount))
	operationDuration.WithLabelValues("receive").Observe(time.Since(start).Seconds())

	s.notify(notification.Event{
		Kind:      notification.KindReceiveCompleted,
		AccountID: dst.ID,
		Amount:    tx.Gross,
		Fee:       tx.Fee,
		Status:    string(tx.Status),
		Body:      fmt.Sprintf("Received %d from %s (fee %d)", tx.Gross, input.Source, tx.Fee),
	})

	return s.finish(ctx, dst.AccountCode, tx, false)
}

// History lists completed transactions for the account since the cutoff.
func (s *Service) History(ctx context.Context, accountID string, since time.Time) ([]ledger.Transaction, error) {
	acct, err := s.accounts.Get(ctx, accountID)
	if err != nil {
		return nil, err
	}
	return s.ledger.RecentCompleted(ctx, acct.AccountCode, since)
}

// checkRateLimit gates on the attempt budget. Limiter errors fail open: the
// cache being down should not freeze money movement.
func (s *Service) checkRateLimit(ctx context.Context, key string) error {
	allowed, err := s.limiter.CheckLimit(ctx, key, s.cfg.MaxAttempts)
	if err != nil {
		s.logger.Warn("rate limit check failed open", slog.String("key", key), slog.Any("error", err))
		return nil
	}
	if !allowed {
		if until, err := s.limiter.GetLockoutTime(ctx, key); err == nil && until != nil {
			return &RateLimitedError{Until: *until}
		}
		return ErrRateLimited
	}
	return nil
}

func (s *Service) recordFailure(ctx context.Context, key string) {
	if _, err := s.limiter.Increment(ctx, key); err != nil {
		s.logger.Warn("record failed attempt", slog.String("key", key), slog.Any("error", err))
	}
}

// stepUpSatisfied reports whether the attempt carries a valid step-up session
// bound to both the presented device and the source account.
func (s *Service) stepUpSatisfied(input TransferInput, accountID string) bool {
	if input.SessionToken == "" {
		return false
	}
	deviceID, sessionAccountID, ok := s.devices.ValidateSession(input.SessionToken)
	if !ok {
		return false
	}
	return deviceID == input.DeviceID && sessionAccountID == accountID
}

func (s *Service) finish(ctx context.Context, accountCode string, tx ledger.Transaction, replayed bool) (Result, error) {
	balance, err := s.ledger.Balance(ctx, accountCode)
	if err != nil {
		return Result{}, err
	}
	return Result{Transaction: tx, Balance: balance, Replayed: replayed}, nil
}

// notify dispatches asynchronously. Delivery is best effort: the posting is
// already committed and is never rolled back for a lost notification.
func (s *Service) notify(event notification.Event) {
	if s.notifier == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.notifier.Send(ctx, event); err != nil {
			s.logger.Warn("send notification",
				slog.String("kind", event.Kind),
				slog.String("account_id", event.AccountID),
				slog.Any("error", err))
		}
	}()
}
