package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultAppName        = "SangoPay"
	defaultAppEnv         = "development"
	defaultPort           = "8080"
	defaultLogLevel       = "info"
	defaultShutdownDelay  = 10 * time.Second
	defaultIdempotencyTTL = 24 * time.Hour

	defaultSessionTTL    = 15 * time.Minute
	defaultTrustDuration = 30 * 24 * time.Hour
	defaultCodeTTL       = 10 * time.Minute

	defaultRateLimitWindow = time.Minute
	defaultLockoutDuration = 15 * time.Minute
	defaultMaxAttempts     = 5

	defaultRiskVerifyThreshold = 40
	defaultRiskBlockThreshold  = 75
	defaultVelocityWindow      = 2 * time.Hour
	defaultVelocityBaseline    = 10
	defaultRiskLookupTimeout   = 200 * time.Millisecond

	// RiskPolicyFailClosed blocks transactions when the risk engine cannot score them.
	RiskPolicyFailClosed = "fail_closed"
	// RiskPolicyFailOpen allows transactions when the risk engine cannot score them.
	RiskPolicyFailOpen = "fail_open"
)

// FeeParams holds the base/rate/min/max parameters of one fee schedule.
type FeeParams struct {
	Base int64
	Rate float64
	Min  int64
	Max  int64
}

// LimitParams holds per-action-type spending thresholds.
type LimitParams struct {
	MinAmount         int64
	MaxAmount         int64
	DailyLimit        int64
	MonthlyLimit      int64
	HighRiskThreshold int64
}

// Config captures application runtime configuration loaded from environment variables.
type Config struct {
	AppName        string
	AppEnv         string
	Port           string
	LogLevel       string
	DatabaseURL    string
	RedisURL       string
	AMQPURL        string
	ShutdownPeriod time.Duration
	IdempotencyTTL time.Duration

	SessionSecret       string
	SessionTTL          time.Duration
	TrustDuration       time.Duration
	VerificationCodeTTL time.Duration

	RateLimitWindow     time.Duration
	LockoutDuration     time.Duration
	TransferMaxAttempts int

	TransferFees FeeParams
	ReceiveFees  FeeParams

	TransferLimits LimitParams
	ReceiveLimits  LimitParams

	RiskVerifyThreshold  int
	RiskBlockThreshold   int
	RiskVelocityWindow   time.Duration
	RiskVelocityBaseline int
	RiskLookupTimeout    time.Duration
	RiskPolicy           string
}

// Load reads configuration values from the environment and populates a Config instance.
func Load() (Config, error) {
	cfg := Config{
		AppName:       getEnv("APP_NAME", defaultAppName),
		AppEnv:        getEnv("APP_ENV", defaultAppEnv),
		Port:          getEnv("PORT", defaultPort),
		LogLevel:      strings.ToLower(getEnv("LOG_LEVEL", defaultLogLevel)),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		RedisURL:      os.Getenv("REDIS_URL"),
		AMQPURL:       os.Getenv("AMQP_URL"),
		SessionSecret: os.Getenv("SESSION_SECRET"),
	}

	var err error
	if cfg.ShutdownPeriod, err = getDuration("SHUTDOWN_TIMEOUT", defaultShutdownDelay); err != nil {
		return Config{}, err
	}
	if cfg.IdempotencyTTL, err = getDuration("IDEMPOTENCY_TTL", defaultIdempotencyTTL); err != nil {
		return Config{}, err
	}
	if cfg.SessionTTL, err = getDuration("SESSION_TTL", defaultSessionTTL); err != nil {
		return Config{}, err
	}
	if cfg.TrustDuration, err = getDuration("DEVICE_TRUST_DURATION", defaultTrustDuration); err != nil {
		return Config{}, err
	}
	if cfg.VerificationCodeTTL, err = getDuration("VERIFICATION_CODE_TTL", defaultCodeTTL); err != nil {
		return Config{}, err
	}
	if cfg.RateLimitWindow, err = getDuration("RATE_LIMIT_WINDOW", defaultRateLimitWindow); err != nil {
		return Config{}, err
	}
	if cfg.LockoutDuration, err = getDuration("RATE_LIMIT_LOCKOUT", defaultLockoutDuration); err != nil {
		return Config{}, err
	}
	if cfg.TransferMaxAttempts, err = getInt("TRANSFER_MAX_ATTEMPTS", defaultMaxAttempts); err != nil {
		return Config{}, err
	}

	if cfg.TransferFees, err = getFees("TRANSFER_FEE", FeeParams{Base: 0, Rate: 0.01, Min: 1, Max: 500}); err != nil {
		return Config{}, err
	}
	if cfg.ReceiveFees, err = getFees("RECEIVE_FEE", FeeParams{Base: 0, Rate: 0.005, Min: 0, Max: 250}); err != nil {
		return Config{}, err
	}

	if cfg.TransferLimits, err = getLimits("TRANSFER_LIMIT", LimitParams{
		MinAmount:         1,
		MaxAmount:         1_000_000,
		DailyLimit:        5_000_000,
		MonthlyLimit:      20_000_000,
		HighRiskThreshold: 500_000,
	}); err != nil {
		return Config{}, err
	}
	if cfg.ReceiveLimits, err = getLimits("RECEIVE_LIMIT", LimitParams{
		MinAmount:         1,
		MaxAmount:         2_000_000,
		DailyLimit:        10_000_000,
		MonthlyLimit:      40_000_000,
		HighRiskThreshold: 1_000_000,
	}); err != nil {
		return Config{}, err
	}

	if cfg.RiskVerifyThreshold, err = getInt("RISK_VERIFY_THRESHOLD", defaultRiskVerifyThreshold); err != nil {
		return Config{}, err
	}
	if cfg.RiskBlockThreshold, err = getInt("RISK_BLOCK_THRESHOLD", defaultRiskBlockThreshold); err != nil {
		return Config{}, err
	}
	if cfg.RiskVelocityWindow, err = getDuration("RISK_VELOCITY_WINDOW", defaultVelocityWindow); err != nil {
		return Config{}, err
	}
	if cfg.RiskVelocityBaseline, err = getInt("RISK_VELOCITY_BASELINE", defaultVelocityBaseline); err != nil {
		return Config{}, err
	}
	if cfg.RiskLookupTimeout, err = getDuration("RISK_LOOKUP_TIMEOUT", defaultRiskLookupTimeout); err != nil {
		return Config{}, err
	}

	cfg.RiskPolicy = strings.ToLower(getEnv("RISK_POLICY", RiskPolicyFailClosed))
	switch cfg.RiskPolicy {
	case RiskPolicyFailOpen, RiskPolicyFailClosed:
	default:
		return Config{}, fmt.Errorf("invalid RISK_POLICY %q: must be %s or %s", cfg.RiskPolicy, RiskPolicyFailOpen, RiskPolicyFailClosed)
	}

	if cfg.IsDev() {
		if cfg.SessionSecret == "" {
			cfg.SessionSecret = "dev-session-secret"
		}
		return cfg, nil
	}

	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("DATABASE_URL must be set")
	}
	if cfg.RedisURL == "" {
		return Config{}, fmt.Errorf("REDIS_URL must be set")
	}
	if cfg.SessionSecret == "" {
		return Config{}, fmt.Errorf("SESSION_SECRET must be set")
	}

	return cfg, nil
}

// IsDev reports whether the app is running in a development environment.
func (c Config) IsDev() bool {
	switch strings.ToLower(c.AppEnv) {
	case "dev", "development", "local":
		return true
	default:
		return false
	}
}

// Address returns the listen address in the format Fiber expects.
func (c Config) Address() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return fmt.Sprintf(":%s", c.Port)
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getInt64(key string, fallback int64) (int64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return f, nil
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	if v := os.Getenv(key + "_SECONDS"); v != "" {
		seconds, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("invalid %s_SECONDS: %w", key, err)
		}
		return time.Duration(seconds) * time.Second, nil
	}
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func getFees(prefix string, fallback FeeParams) (FeeParams, error) {
	var (
		p   FeeParams
		err error
	)
	if p.Base, err = getInt64(prefix+"_BASE", fallback.Base); err != nil {
		return FeeParams{}, err
	}
	if p.Rate, err = getFloat(prefix+"_RATE", fallback.Rate); err != nil {
		return FeeParams{}, err
	}
	if p.Min, err = getInt64(prefix+"_MIN", fallback.Min); err != nil {
		return FeeParams{}, err
	}
	if p.Max, err = getInt64(prefix+"_MAX", fallback.Max); err != nil {
		return FeeParams{}, err
	}
	return p, nil
}

func getLimits(prefix string, fallback LimitParams) (LimitParams, error) {
	var (
		p   LimitParams
		err error
	)
	if p.MinAmount, err = getInt64(prefix+"_MIN", fallback.MinAmount); err != nil {
		return LimitParams{}, err
	}
	if p.MaxAmount, err = getInt64(prefix+"_MAX", fallback.MaxAmount); err != nil {
		return LimitParams{}, err
	}
	if p.DailyLimit, err = getInt64(prefix+"_DAILY", fallback.DailyLimit); err != nil {
		return LimitParams{}, err
	}
	if p.MonthlyLimit, err = getInt64(prefix+"_MONTHLY", fallback.MonthlyLimit); err != nil {
		return LimitParams{}, err
	}
	if p.HighRiskThreshold, err = getInt64(prefix+"_HIGH_RISK", fallback.HighRiskThreshold); err != nil {
		return LimitParams{}, err
	}
	return p, nil
}
