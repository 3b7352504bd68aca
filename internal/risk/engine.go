package risk

import (
	"context"
	"log/slog"
	"time"

	"github.com/sango-pay/sango_pay/internal/ledger"
)

// Factor codes embedded in transaction records for audit. Never surfaced to
// callers.
const (
	FactorHighAmount        = "high_amount"
	FactorAboveAverage      = "above_average"
	FactorUntrustedDevice   = "untrusted_device"
	FactorNewIP             = "new_ip"
	FactorNewLocation       = "new_location"
	FactorVelocity          = "velocity"
	FactorSuspiciousIP      = "suspicious_ip"
	FactorEngineUnavailable = "engine_unavailable"
)

// historyWindow bounds how far back the engine reads completed transactions
// for the trailing average.
const historyWindow = 30 * 24 * time.Hour

// Weights are the per-signal increments added to the 0-100 score.
type Weights struct {
	HighAmount      int
	AboveAverage    int
	UntrustedDevice int
	NewIP           int
	NewLocation     int
	Velocity        int
	SuspiciousIP    int
}

// DefaultWeights returns the production scoring weights.
func DefaultWeights() Weights {
	return Weights{
		HighAmount:      25,
		AboveAverage:    15,
		UntrustedDevice: 20,
		NewIP:           10,
		NewLocation:     10,
		Velocity:        15,
		SuspiciousIP:    40,
	}
}

// Config parameterizes scoring and the unavailability policy.
type Config struct {
	Weights           Weights
	HighRiskThreshold int64
	VerifyThreshold   int
	BlockThreshold    int
	VelocityWindow    time.Duration
	VelocityBaseline  int
	LookupTimeout     time.Duration
	// FailOpen controls the decision when a signal dependency is unreachable:
	// true allows the transaction unscored, false blocks it. Always an explicit
	// configuration choice, never a default guess at call sites.
	FailOpen bool
}

// Input is one prospective transaction to score.
type Input struct {
	AccountCode string
	Amount      int64
	Kind        ledger.Kind
	DeviceID    string
	IP          string
	Location    string
}

// Factor is one contributing signal in an assessment.
type Factor struct {
	Code   string
	Weight int
}

// Assessment is the ephemeral scoring outcome for one attempt. It is embedded
// in the transaction record for audit but never persisted as first-class state.
type Assessment struct {
	Score                int
	Factors              []Factor
	Allowed              bool
	RequiresVerification bool
}

// FactorCodes flattens the factor list for embedding in a transaction record.
func (a Assessment) FactorCodes() []string {
	codes := make([]string, 0, len(a.Factors))
	for _, f := range a.Factors {
		codes = append(codes, f.Code)
	}
	return codes
}

// TrustChecker reports device trust. Satisfied by device.Manager.
type TrustChecker interface {
	IsTrusted(ctx context.Context, deviceID string) (bool, error)
}

// History provides completed transactions for average and velocity signals.
// Satisfied by ledger.Ledger.
type History interface {
	RecentCompleted(ctx context.Context, code string, since time.Time) ([]ledger.Transaction, error)
}

// Engine scores prospective transactions by combining independent signals into
// a weighted 0-100 score and applying verify/block thresholds.
type Engine struct {
	cfg     Config
	store   SignalStore
	history History
	devices TrustChecker
	logger  *slog.Logger
	now     func() time.Time
}

// NewEngine builds a fraud risk engine.
func NewEngine(cfg Config, store SignalStore, history History, devices TrustChecker, logger *slog.Logger) *Engine {
	return &Engine{
		cfg:     cfg,
		store:   store,
		history: history,
		devices: devices,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// SetClock pins the engine's clock. Test helper.
func (e *Engine) SetClock(now func() time.Time) {
	e.now = now
}

// CheckTransaction scores the attempt. Signal reads run under the configured
// lookup budget; if any dependency is unreachable the configured
// fail-open/fail-closed policy decides instead of the score.
func (e *Engine) CheckTransaction(ctx context.Context, in Input) Assessment {
	if e.cfg.LookupTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.LookupTimeout)
		defer cancel()
	}

	var factors []Factor
	add := func(code string, weight int) {
		if weight > 0 {
			factors = append(factors, Factor{Code: code, Weight: weight})
		}
	}

	if e.cfg.HighRiskThreshold > 0 && in.Amount > e.cfg.HighRiskThreshold {
		add(FactorHighAmount, e.cfg.Weights.HighAmount)
	}

	now := e.now()
	history, err := e.history.RecentCompleted(ctx, in.AccountCode, now.Add(-historyWindow))
	if err != nil {
		return e.unavailable(in, err)
	}
	if avg := averageGross(history); avg > 0 && in.Amount > 3*avg {
		add(FactorAboveAverage, e.cfg.Weights.AboveAverage)
	}
	if e.cfg.VelocityBaseline > 0 && countSince(history, now.Add(-e.cfg.VelocityWindow)) > e.cfg.VelocityBaseline {
		add(FactorVelocity, e.cfg.Weights.Velocity)
	}

	trusted := false
	if in.DeviceID != "" {
		trusted, err = e.devices.IsTrusted(ctx, in.DeviceID)
		if err != nil {
			return e.unavailable(in, err)
		}
	}
	if !trusted {
		add(FactorUntrustedDevice, e.cfg.Weights.UntrustedDevice)
	}

	if in.IP != "" {
		known, err := e.store.IsKnownIP(ctx, in.AccountCode, in.IP)
		if err != nil {
			return e.unavailable(in, err)
		}
		if !known {
			add(FactorNewIP, e.cfg.Weights.NewIP)
		}
		suspicious, err := e.store.IsSuspiciousIP(ctx, in.IP)
		if err != nil {
			return e.unavailable(in, err)
		}
		if suspicious {
			add(FactorSuspiciousIP, e.cfg.Weights.SuspiciousIP)
		}
	}
	if in.Location != "" {
		known, err := e.store.IsKnownLocation(ctx, in.AccountCode, in.Location)
		if err != nil {
			return e.unavailable(in, err)
		}
		if !known {
			add(FactorNewLocation, e.cfg.Weights.NewLocation)
		}
	}

	score := 0
	for _, f := range factors {
		score += f.Weight
	}
	if score > 100 {
		score = 100
	}

	assessment := Assessment{
		Score:                score,
		Factors:              factors,
		Allowed:              score < e.cfg.BlockThreshold,
		RequiresVerification: score >= e.cfg.VerifyThreshold && score < e.cfg.BlockThreshold,
	}

	if assessment.Allowed {
		// Learn the sighting only on allowed attempts so blocked probes do not
		// whitelist their own origin.
		if err := e.store.RememberSighting(ctx, in.AccountCode, in.IP, in.Location); err != nil {
			e.logger.Warn("remember sighting", slog.Any("error", err))
		}
	}

	e.logger.Info("transaction scored",
		slog.String("account", in.AccountCode),
		slog.Int64("amount", in.Amount),
		slog.Int("score", assessment.Score),
		slog.Bool("allowed", assessment.Allowed),
		slog.Bool("requires_verification", assessment.RequiresVerification),
		slog.Any("factors", assessment.FactorCodes()))

	return assessment
}

func (e *Engine) unavailable(in Input, err error) Assessment {
	e.logger.Error("risk engine unavailable",
		slog.String("account", in.AccountCode),
		slog.Bool("fail_open", e.cfg.FailOpen),
		slog.Any("error", err))

	factors := []Factor{{Code: FactorEngineUnavailable}}
	if e.cfg.FailOpen {
		return Assessment{Factors: factors, Allowed: true}
	}
	return Assessment{Score: 100, Factors: factors, Allowed: false}
}

func averageGross(history []ledger.Transaction) int64 {
	if len(history) == 0 {
		return 0
	}
	var total int64
	for _, tx := range history {
		total += tx.Gross
	}
	return total / int64(len(history))
}

func countSince(history []ledger.Transaction, since time.Time) int {
	n := 0
	for _, tx := range history {
		if !tx.CreatedAt.Before(since) {
			n++
		}
	}
	return n
}
