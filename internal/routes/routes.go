package routes

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/sango-pay/sango_pay/internal/account"
	"github.com/sango-pay/sango_pay/internal/beneficiary"
	"github.com/sango-pay/sango_pay/internal/config"
	"github.com/sango-pay/sango_pay/internal/device"
	"github.com/sango-pay/sango_pay/internal/ledger"
	"github.com/sango-pay/sango_pay/internal/limits"
	"github.com/sango-pay/sango_pay/internal/middleware"
	"github.com/sango-pay/sango_pay/internal/notification"
	"github.com/sango-pay/sango_pay/internal/ratelimit"
	"github.com/sango-pay/sango_pay/internal/risk"
	"github.com/sango-pay/sango_pay/internal/transfer"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg      config.Config
	DB       *pgxpool.Pool
	Cache    *redis.Client
	Logger   *slog.Logger
	Notifier notification.Notifier
}

// Setup configures middlewares and all application routes. With no database or
// cache configured (dev mode) every backend falls back to its in-memory
// implementation.
func Setup(app *fiber.App, d Deps) error {
	if !d.Cfg.IsDev() {
		if d.DB == nil {
			return fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
		if d.Cache == nil {
			return fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
	}

	if d.Notifier == nil {
		d.Notifier = notification.NewLoggerNotifier(d.Logger)
	}

	// Backends
	var ledgerBackend ledger.Ledger
	if d.DB != nil {
		ledgerBackend = ledger.NewPostgresLedger(d.DB)
	} else {
		ledgerBackend = ledger.NewInMemory()
	}
	_ = ledgerBackend.EnsureAccount(context.Background(), ledger.FeeAccountCode)
	_ = ledgerBackend.EnsureAccount(context.Background(), ledger.SettlementAccountCode)

	var accountRepo account.Repository
	var beneficiaryRepo beneficiary.Repository
	var deviceStore device.Store
	var signalStore risk.SignalStore
	var limiter ratelimit.Limiter
	if d.DB != nil {
		accountRepo = account.NewPostgresRepository(d.DB)
		beneficiaryRepo = beneficiary.NewPostgresRepository(d.DB)
	} else {
		accountRepo = account.NewMemoryRepository()
		beneficiaryRepo = beneficiary.NewMemoryRepository()
	}
	rlConfig := ratelimit.Config{Window: d.Cfg.RateLimitWindow, LockoutDuration: d.Cfg.LockoutDuration}
	if d.Cache != nil {
		deviceStore = device.NewRedisStore(d.Cache)
		signalStore = risk.NewRedisSignalStore(d.Cache)
		limiter = ratelimit.NewRedisLimiter(d.Cache, rlConfig)
	} else {
		deviceStore = device.NewMemoryStore()
		signalStore = risk.NewMemorySignalStore()
		limiter = ratelimit.NewMemoryLimiter(rlConfig)
	}

	// Services
	accountSvc := account.NewService(accountRepo, ledgerBackend)
	beneficiarySvc := beneficiary.NewService(beneficiaryRepo)
	deviceManager := device.NewManager(deviceStore, device.Config{
		TrustDuration: d.Cfg.TrustDuration,
		CodeTTL:       d.Cfg.VerificationCodeTTL,
		SessionTTL:    d.Cfg.SessionTTL,
		SessionSecret: []byte(d.Cfg.SessionSecret),
	}, d.Logger)

	checker := limits.NewChecker(ledgerBackend, map[ledger.Kind]limits.Policy{
		ledger.KindTransferOut: limitPolicy(d.Cfg.TransferLimits),
		ledger.KindReceive:     limitPolicy(d.Cfg.ReceiveLimits),
	})

	engine := risk.NewEngine(risk.Config{
		Weights:           risk.DefaultWeights(),
		HighRiskThreshold: d.Cfg.TransferLimits.HighRiskThreshold,
		VerifyThreshold:   d.Cfg.RiskVerifyThreshold,
		BlockThreshold:    d.Cfg.RiskBlockThreshold,
		VelocityWindow:    d.Cfg.RiskVelocityWindow,
		VelocityBaseline:  d.Cfg.RiskVelocityBaseline,
		LookupTimeout:     d.Cfg.RiskLookupTimeout,
		FailOpen:          d.Cfg.RiskPolicy == config.RiskPolicyFailOpen,
	}, signalStore, ledgerBackend, deviceManager, d.Logger)

	transferSvc := transfer.NewService(transfer.Config{
		MaxAttempts:  d.Cfg.TransferMaxAttempts,
		TransferFees: feeSchedule(d.Cfg.TransferFees),
		ReceiveFees:  feeSchedule(d.Cfg.ReceiveFees),
	}, ledgerBackend, checker, engine, deviceManager, limiter, accountSvc, beneficiarySvc, d.Notifier, d.Logger)

	// Handlers
	accountHandler := account.NewHandler(accountSvc)
	beneficiaryHandler := beneficiary.NewHandler(beneficiarySvc)
	deviceHandler := device.NewHandler(deviceManager, d.Notifier)
	transferHandler := transfer.NewHandler(transferSvc)

	// Middlewares
	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(middleware.DeviceSession(deviceManager))
	app.Use(middleware.Audit(d.Logger))

	RegisterHealthRoutes(app, d)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	api := app.Group("/api/v1")
	api.Get("/ping", func(c *fiber.Ctx) error {
		reqID, _ := c.Locals("X-Request-ID").(string)
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": reqID,
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	RegisterAccountRoutes(api, accountHandler)
	RegisterBeneficiaryRoutes(api, beneficiaryHandler)
	RegisterDeviceRoutes(api, deviceHandler, middleware.VerificationRateLimit(limiter, d.Cfg.TransferMaxAttempts, d.Logger))

	// Money movement sits behind the idempotency layer when a cache is present.
	movement := api.Group("")
	if d.Cache != nil {
		movement = api.Group("", middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger))
	}
	RegisterTransferRoutes(movement, transferHandler)

	return nil
}

func limitPolicy(p config.LimitParams) limits.Policy {
	return limits.Policy{
		MinAmount:         p.MinAmount,
		MaxAmount:         p.MaxAmount,
		DailyLimit:        p.DailyLimit,
		MonthlyLimit:      p.MonthlyLimit,
		HighRiskThreshold: p.HighRiskThreshold,
	}
}

func feeSchedule(p config.FeeParams) ledger.FeeSchedule {
	return ledger.FeeSchedule{Base: p.Base, Rate: p.Rate, Min: p.Min, Max: p.Max}
}
