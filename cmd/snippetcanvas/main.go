package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ManuelReschke/SnippetCanvas/app/controllers"
	"github.com/ManuelReschke/SnippetCanvas/app/repository"
	"github.com/ManuelReschke/SnippetCanvas/internal/pkg/billing"
	"github.com/ManuelReschke/SnippetCanvas/internal/pkg/cache"
	"github.com/ManuelReschke/SnippetCanvas/internal/pkg/config"
	"github.com/ManuelReschke/SnippetCanvas/internal/pkg/constants"
	"github.com/ManuelReschke/SnippetCanvas/internal/pkg/database"
	"github.com/ManuelReschke/SnippetCanvas/internal/pkg/entitlements"
	"github.com/ManuelReschke/SnippetCanvas/internal/pkg/logging"
	"github.com/ManuelReschke/SnippetCanvas/internal/pkg/middleware"
	"github.com/ManuelReschke/SnippetCanvas/internal/pkg/router"
	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/basicauth"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

func main() {
	cfg := config.Load()
	log := logging.New(cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.New(cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("database setup failed")
	}
	rdb := cache.New(ctx, cfg.Cache, log)
	defer rdb.Close()

	app := NewApplication(cfg, log, db, rdb)

	go func() {
		<-ctx.Done()
		log.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.WebhookTimeout+5*time.Second)
		defer cancel()
		if err := app.ShutdownWithContext(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("graceful shutdown failed")
		}
	}()

	log.Info().Str("addr", cfg.Server.Addr()).Str("env", cfg.Server.Env).Msg("starting server")
	if err := app.Listen(cfg.Server.Addr()); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}

// NewApplication wires the billing services into a fiber app.
func NewApplication(cfg config.Config, log zerolog.Logger, db *gorm.DB, rdb *cache.Client) *fiber.App {
	catalog := billing.NewCatalogFromConfig(cfg.Stripe)
	repos := repository.NewFactory(db)
	billingRepo := billing.NewRepository(db)

	entitlementSvc := entitlements.NewService(repos.Entitlements(), rdb, cfg.Cache.TTL, log)
	ledger := billing.NewLedger(billingRepo, catalog, log,
		billing.WithInvalidator(entitlementSvc),
		billing.WithMaxAttempts(cfg.Billing.LedgerMaxAttempts),
	)
	webhookSvc := billing.NewService(billingRepo, billing.NewVerifier(cfg.Stripe.WebhookSecret), billing.NewDispatcher(ledger, log), log)
	checkout := billing.NewCheckoutInitiator(billingRepo, billing.NewStripeGateway(cfg.Stripe.SecretKey), catalog, billing.CheckoutConfig{
		PublicSiteURL:       cfg.Billing.PublicSiteURL,
		LegacySubscriptions: cfg.Billing.LegacySubscriptions,
	}, log)

	app := fiber.New(fiber.Config{
		AppName:   "SnippetCanvas",
		BodyLimit: 4 * 1024 * 1024,
	})

	// recovery and logging
	app.Use(recover.New(), requestid.New(requestid.Config{Generator: uuid.NewString}), logger.New(logger.Config{
		Format: "${time} ${locals:requestid} ${status} - ${latency} ${method} ${path}\n",
	}))

	// prometheus metrics, only exposed with credentials configured
	if cfg.Server.MetricsPass != "" {
		app.Get(constants.MetricsRoute, basicauth.New(basicauth.Config{
			Users: map[string]string{
				cfg.Server.MetricsUser: cfg.Server.MetricsPass,
			},
		}), adaptor.HTTPHandler(promhttp.Handler()))
	} else {
		log.Warn().Msg("METRICS_PASSWORD not set, /metrics disabled")
	}

	// SWAGGER / OPENAPI
	app.Use(swagger.New(swagger.Config{
		BasePath: constants.DocsBasePath,
		FilePath: "public/docs/v1/openapi.yml",
		Path:     "v1",
	}))

	router.InstallRouter(app, router.Dependencies{
		Billing:       controllers.NewBillingController(checkout, webhookSvc, catalog, cfg.Server.WebhookTimeout, log),
		Entitlements:  controllers.NewEntitlementsController(entitlementSvc, log),
		AdminInvoices: controllers.NewAdminInvoicesController(repos.GetRepositories().Invoice, log),
		Health: controllers.NewHealthController(map[string]controllers.Pinger{
			"database": controllers.PingFunc(func(ctx context.Context) error { return database.Ping(ctx, db) }),
			"cache":    rdb,
		}, log),
		Auth: middleware.JWTAuth(middleware.JWTConfig{
			Secret:   cfg.Auth.JWTSecret,
			Issuer:   cfg.Auth.Issuer,
			Profiles: repos.GetRepositories().Profile,
			Log:      log,
		}),
		LimiterStorage: cache.NewLimiterStorage(cfg.Cache),
		CheckoutLimit:  cfg.Billing.CheckoutRateLimit,
		CheckoutWindow: cfg.Billing.CheckoutRateWindow,
	})

	return app
}
