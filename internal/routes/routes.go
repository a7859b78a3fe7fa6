package routes

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/text-pay/text_pay/internal/account"
	"github.com/text-pay/text_pay/internal/config"
	"github.com/text-pay/text_pay/internal/ledger"
	"github.com/text-pay/text_pay/internal/middleware"
	"github.com/text-pay/text_pay/internal/notification"
	"github.com/text-pay/text_pay/internal/session"
	"github.com/text-pay/text_pay/internal/sms"
	"github.com/text-pay/text_pay/internal/transfer"
)

// smsRateLimitMax caps inbound webhook messages per phone per window.
const smsRateLimitMax = 10

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg    config.Config
	DB     *pgxpool.Pool
	Cache  *redis.Client
	Logger *slog.Logger
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) error {
	// Enforce DB/Redis presence outside of dev, even though main also checks.
	if !d.Cfg.IsDev() {
		if d.DB == nil {
			return fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
		if d.Cache == nil {
			return fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
	}

	// Middlewares
	app.Use(recover.New())
	app.Use(middleware.RequestID())
	// Plain text access log: [HH:MM:SS] 200 -  145ms METHOD /path
	app.Use(logger.New(logger.Config{
		Format:     "[${time}] ${status} -  ${latency} ${method} ${path}\n",
		TimeFormat: "15:04:05",
		TimeZone:   "Local",
	}))
	app.Use(middleware.Audit(d.Logger))

	// Health
	RegisterHealthRoutes(app, d)

	// Storage backends: Postgres when configured, in-memory in dev.
	var ledgerBackend ledger.Ledger
	if d.DB != nil {
		ledgerBackend = ledger.NewPostgresLedger(d.DB)
	} else {
		ledgerBackend = ledger.NewInMemory()
	}

	var accountRepo account.Repository
	if d.DB != nil {
		accountRepo = account.NewPostgresRepository(d.DB)
	} else {
		accountRepo = account.NewMemoryRepository()
	}

	// Outbound SMS goes through the gateway when credentials are present,
	// otherwise deliveries are logged so the dev loop works offline.
	var notifier notification.Notifier
	if d.Cfg.SMSAccountSID != "" {
		notifier = notification.NewSMSGateway(d.Cfg)
	} else {
		notifier = notification.NewLoggerNotifier(d.Logger)
	}

	accountSvc := account.NewService(accountRepo, ledgerBackend)
	sessionSvc := session.NewService(accountRepo, d.Cfg)
	transferSvc := transfer.NewService(ledgerBackend, accountRepo, notifier, d.Logger)
	dispatcher := sms.NewDispatcher(accountRepo, accountSvc, sessionSvc, transferSvc, notifier, d.Logger)

	accountHandler := account.NewHandler(accountSvc, accountRepo)
	sessionHandler := session.NewHandler(sessionSvc, accountSvc, notifier, d.Logger)
	transferHandler := transfer.NewHandler(transferSvc, accountRepo)

	// Inbound SMS webhook. Rate limited per sender phone; the handler always
	// answers 200 so the gateway does not retry command messages.
	app.Post("/webhook/sms", middleware.SMSRateLimit(d.Cache, smsRateLimitMax), SMSWebhook(dispatcher))

	// API routes
	api := app.Group("/api/v1")
	api.Get("/ping", func(c *fiber.Ctx) error {
		reqID, _ := c.Locals("X-Request-ID").(string)
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": reqID,
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	// Public routes
	api.Post("/register", accountHandler.Register)
	api.Post("/app/login", sessionHandler.Login)
	api.Post("/app/verify", sessionHandler.Verify)

	// Protected routes
	protected := api.Group("", middleware.JWTAuth(d.Cfg))
	protected.Get("/me", accountHandler.Me)
	protected.Get("/balance", accountHandler.Balance)
	if d.Cache != nil {
		protected.Post("/transfers", middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger), transferHandler.Create)
	} else {
		protected.Post("/transfers", transferHandler.Create)
	}

	return nil
}
