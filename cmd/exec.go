package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"time"

	"festival-backend/config"
	"festival-backend/internal/handlers"
	"festival-backend/internal/services"
	"festival-backend/internal/services/gateway"
	"festival-backend/internal/services/identity"
	"festival-backend/internal/store"
	_ "festival-backend/migrations"
	"festival-backend/monitoring"
	"festival-backend/security"
	"festival-backend/utils"

	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/plugins/migratecmd"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	pubnub "github.com/pubnub/go/v7"
	"github.com/redis/go-redis/v9"
)

func Start() error {
	app := pocketbase.New()

	// Load configuration
	cfg := config.LoadConfig()

	// Enable migrations
	migratecmd.MustRegister(app, app.RootCmd, migratecmd.Config{
		Automigrate: cfg.IsDevelopment(),
	})

	app.RootCmd.AddCommand(newCatalogCommand(app))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app.OnServe().BindFunc(func(e *core.ServeEvent) error {
		logger := app.Logger()

		s, err := openStore(app)
		if err != nil {
			return err
		}

		// Initialize Redis
		redisClient, err := utils.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return err
		}

		// Initialize services
		processor := gateway.NewStripe(cfg.StripeSecretKey, cfg.StripeWebhookSecret)
		guarded := gateway.NewGuarded(processor, utils.NewCircuitBreaker("stripe", utils.DefaultBreakerSettings()), cfg.GatewayTimeout)

		catalogService := services.NewCatalogService(s, logger)
		checkoutService := services.NewCheckoutService(s, catalogService, guarded, cfg.FrontendURL, cfg.DefaultEventName, logger)
		paymentService := services.NewPaymentService(s, guarded, logger)
		ticketService := services.NewTicketService(s, cfg.IsDevelopment(), logger)
		fulfillmentService := services.NewFulfillmentService(
			s,
			processor,
			services.NewRedisEventLedger(redisClient, cfg.WebhookDedupTTL),
			newNotifier(app, cfg, logger),
			logger,
		)

		verifier := identity.NewVerifier(cfg.FirebaseProjectID, identity.NewCertSource(identity.GoogleCertsURL, nil))
		limiter := security.NewRateLimiter(redisClient, cfg.CheckoutRateLimit, cfg.CheckoutRateWindow, logger)

		// Initialize handlers
		checkoutHandler := handlers.NewCheckoutHandler(checkoutService)
		webhookHandler := handlers.NewWebhookHandler(fulfillmentService)
		paymentHandler := handlers.NewPaymentHandler(paymentService)
		ticketHandler := handlers.NewTicketHandler(ticketService)
		productHandler := handlers.NewProductHandler(catalogService)
		healthHandler := handlers.NewHealthHandler(s, redisClient)

		// Start background tasks
		go monitoring.NewMonitor(s, 30*time.Second, logger).Run(ctx)

		app.OnTerminate().BindFunc(func(te *core.TerminateEvent) error {
			cancel()
			fulfillmentService.Wait()
			if err := redisClient.Close(); err != nil && !errors.Is(err, redis.ErrClosed) {
				logger.Warn("Failed to close redis", "error", err)
			}
			return te.Next()
		})

		api := e.Router.Group("/api/v1")

		// Public endpoints
		api.GET("/products", productHandler.ListProducts)
		api.POST("/webhooks/stripe", webhookHandler.HandleStripe)

		// Authenticated endpoints
		authed := api.Group("")
		authed.BindFunc(handlers.RequireIdentity(verifier))

		authed.POST("/payment/checkout-session", checkoutHandler.CreateCheckoutSession).
			BindFunc(limiter.AntiBotMiddleware(), limiter.Middleware("checkout", handlers.CallerKey))
		authed.GET("/payment/verify-session", paymentHandler.VerifySession)
		authed.GET("/payment/{paymentId}", paymentHandler.GetPayment)

		authed.GET("/tickets/me", ticketHandler.ListMyTickets)
		authed.GET("/tickets/{code}/qr", ticketHandler.GetTicketQR)

		// Test endpoint for ticket redemption
		if cfg.IsDevelopment() {
			authed.POST("/tickets/{code}/redeem", ticketHandler.RedeemTicket)
		}

		// Health check
		e.Router.GET("/health", healthHandler.Health)

		if cfg.EnableMetrics {
			e.Router.GET("/metrics", apis.WrapStdHandler(promhttp.Handler()))
		}

		logger.Info("Server routes registered", "environment", cfg.Environment)

		return e.Next()
	})

	// Start server
	return app.Start()
}

// openStore binds the store to the app's single-writer connection so that
// fulfillment transactions are serialized.
func openStore(app core.App) (*store.Store, error) {
	db, ok := app.NonconcurrentDB().(*dbx.DB)
	if !ok {
		return nil, fmt.Errorf("unexpected database handle %T", app.NonconcurrentDB())
	}
	return store.New(db), nil
}

func newNotifier(app core.App, cfg *config.Config, logger *slog.Logger) services.Notifier {
	notifiers := services.MultiNotifier{
		services.NewMailNotifier(app.NewMailClient(), mail.Address{
			Name:    cfg.MailFromName,
			Address: app.Settings().Meta.SenderAddress,
		}, logger),
	}

	// Initialize PubNub
	if cfg.PubNubPublishKey != "" && cfg.PubNubSubscribeKey != "" {
		pnConfig := pubnub.NewConfigWithUserId(pubnub.UserId(cfg.PubNubUserID))
		pnConfig.PublishKey = cfg.PubNubPublishKey
		pnConfig.SubscribeKey = cfg.PubNubSubscribeKey
		pnConfig.SecretKey = cfg.PubNubSecretKey

		pn := pubnub.NewPubNub(pnConfig)
		notifiers = append(notifiers, services.NewRealtimeNotifier(services.NewPubNubPublisher(pn)))
	} else {
		logger.Warn("PubNub keys not configured, realtime notifications disabled")
	}

	return notifiers
}
