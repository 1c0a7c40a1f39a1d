package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/mdelarosa/tallypos-backend/api/routes"
	"github.com/mdelarosa/tallypos-backend/internal/auth"
	"github.com/mdelarosa/tallypos-backend/internal/enforcement"
	"github.com/mdelarosa/tallypos-backend/internal/events"
	"github.com/mdelarosa/tallypos-backend/internal/inventory"
	"github.com/mdelarosa/tallypos-backend/internal/orders"
	"github.com/mdelarosa/tallypos-backend/internal/plans"
	"github.com/mdelarosa/tallypos-backend/internal/sessions"
	"github.com/mdelarosa/tallypos-backend/internal/staging"
	"github.com/mdelarosa/tallypos-backend/internal/subscriptions"
	"github.com/mdelarosa/tallypos-backend/internal/users"
	stripewebhook "github.com/mdelarosa/tallypos-backend/internal/webhooks/stripe"
	"github.com/mdelarosa/tallypos-backend/pkg/auth/session"
	"github.com/mdelarosa/tallypos-backend/pkg/config"
	"github.com/mdelarosa/tallypos-backend/pkg/db"
	"github.com/mdelarosa/tallypos-backend/pkg/logger"
	"github.com/mdelarosa/tallypos-backend/pkg/migrate"
	"github.com/mdelarosa/tallypos-backend/pkg/outbox"
	"github.com/mdelarosa/tallypos-backend/pkg/redis"
	"github.com/mdelarosa/tallypos-backend/pkg/square"
	"github.com/mdelarosa/tallypos-backend/pkg/storage/gcs"
	pkgstripe "github.com/mdelarosa/tallypos-backend/pkg/stripe"
)

const stripeWebhookDedupTTL = 48 * time.Hour

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	sessionManager, err := session.NewManager(redisClient, cfg.JWT)
	if err != nil {
		logg.Error(context.Background(), "failed to create session manager", err)
		os.Exit(1)
	}

	gcsClient, err := gcs.NewClient(context.Background(), cfg.GCS, cfg.GCP, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap gcs", err)
		os.Exit(1)
	}
	defer func() {
		if err := gcsClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing gcs client", err)
		}
	}()

	outboxService := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)

	planService, err := plans.NewService(plans.ServiceParams{
		Repo:   plans.NewRepository(dbClient.DB()),
		Cache:  plans.NewRedisCache(redisClient, cfg.Plans.CacheTTL),
		Config: cfg.Plans,
		Logger: logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create plans service", err)
		os.Exit(1)
	}

	authService, err := auth.NewService(auth.ServiceParams{
		VendorRepo:     users.NewRepository(dbClient.DB()),
		SessionManager: sessionManager,
		Plans:          planService,
		JWTConfig:      cfg.JWT,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create auth service", err)
		os.Exit(1)
	}

	registerService, err := auth.NewRegisterService(auth.RegisterServiceParams{
		DB:             dbClient,
		PasswordConfig: cfg.Password,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create register service", err)
		os.Exit(1)
	}

	deviceStore := sessions.NewRedisDeviceStore(redisClient, cfg.Sessions.DeviceRecordTTL)

	resolver, err := sessions.NewResolver(deviceStore, planService)
	if err != nil {
		logg.Error(context.Background(), "failed to create scope resolver", err)
		os.Exit(1)
	}

	sessionService, err := sessions.NewService(sessions.ServiceParams{
		Repo:     sessions.NewRepository(dbClient.DB()),
		Devices:  deviceStore,
		Plans:    planService,
		Tx:       dbClient,
		Outbox:   outboxService,
		Config:   cfg.Sessions,
		Password: cfg.Password,
		Logger:   logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create sessions service", err)
		os.Exit(1)
	}

	inventoryService, err := inventory.NewService(inventory.ServiceParams{
		Repo:   inventory.NewRepository(dbClient.DB()),
		Tx:     dbClient,
		Outbox: outboxService,
		Plans:  planService,
		Signer: gcsClient,
		Config: cfg.GCS,
		Logger: logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create inventory service", err)
		os.Exit(1)
	}

	eventService, err := events.NewService(events.ServiceParams{
		Repo: events.NewRepository(dbClient.DB()),
		Tx:   dbClient,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create events service", err)
		os.Exit(1)
	}

	stagingService, err := staging.NewService(staging.ServiceParams{
		Repo:   staging.NewRepository(dbClient.DB()),
		Tx:     dbClient,
		Outbox: outboxService,
		Plans:  planService,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create staging service", err)
		os.Exit(1)
	}

	var charger *orders.SquareCharger
	if cfg.Square.AccessToken != "" {
		squareClient, err := square.NewClient(context.Background(), cfg.Square, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to bootstrap square", err)
			os.Exit(1)
		}
		charger, err = orders.NewSquareCharger(squareClient)
		if err != nil {
			logg.Error(context.Background(), "failed to create square charger", err)
			os.Exit(1)
		}
	} else {
		logg.Warn(context.Background(), "square not configured, card tenders disabled")
	}

	orderParams := orders.ServiceParams{
		Repo:   orders.NewRepository(dbClient.DB()),
		Tx:     dbClient,
		Outbox: outboxService,
		Logger: logg,
	}
	if charger != nil {
		orderParams.Charger = charger
	}
	orderService, err := orders.NewService(orderParams)
	if err != nil {
		logg.Error(context.Background(), "failed to create orders service", err)
		os.Exit(1)
	}

	enforcer, err := enforcement.NewService(enforcement.ServiceParams{
		Repo:   enforcement.NewRepository(dbClient.DB()),
		Tx:     dbClient,
		Outbox: outboxService,
		Logger: logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create enforcement service", err)
		os.Exit(1)
	}

	var stripeClient *pkgstripe.Client
	if cfg.Stripe.APIKey != "" {
		stripeClient, err = pkgstripe.NewClient(context.Background(), cfg.Stripe, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to bootstrap stripe", err)
			os.Exit(1)
		}
	} else {
		logg.Warn(context.Background(), "stripe not configured, billing disabled")
	}

	subscriptionService, err := subscriptions.NewService(subscriptions.ServiceParams{
		Repo:     subscriptions.NewRepository(dbClient.DB()),
		Stripe:   subscriptions.NewStripeClient(stripeClient),
		Tx:       dbClient,
		Outbox:   outboxService,
		Plans:    planService,
		Enforcer: enforcer,
		Config:   cfg.Stripe,
		Logger:   logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create subscriptions service", err)
		os.Exit(1)
	}

	var webhookService *stripewebhook.Service
	var webhookGuard *stripewebhook.IdempotencyGuard
	if stripeClient != nil {
		webhookService, err = stripewebhook.NewService(stripewebhook.ServiceParams{
			Subscriptions: subscriptionService,
			StripeClient:  subscriptions.NewStripeClient(stripeClient),
		})
		if err != nil {
			logg.Error(context.Background(), "failed to create stripe webhook service", err)
			os.Exit(1)
		}
		webhookGuard, err = stripewebhook.NewIdempotencyGuard(redisClient, stripeWebhookDedupTTL, "stripe-webhook")
		if err != nil {
			logg.Error(context.Background(), "failed to create stripe webhook guard", err)
			os.Exit(1)
		}
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	id := os.Getenv("DYNO")
	if id == "" {
		id = "local"
	}
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": id,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.RouterParams{
			Config:         cfg,
			Logger:         logg,
			DB:             dbClient,
			Redis:          redisClient,
			SessionManager: sessionManager,
			AuthService:    authService,
			Register:       registerService,
			Resolver:       resolver,
			Sessions:       sessionService,
			Inventory:      inventoryService,
			Events:         eventService,
			Staging:        stagingService,
			Orders:         orderService,
			Plans:          planService,
			Subscriptions:  subscriptionService,
			StripeClient:   stripeClient,
			StripeWebhook:  webhookService,
			WebhookGuard:   webhookGuard,
		}),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
