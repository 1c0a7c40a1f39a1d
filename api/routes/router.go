package routes

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mdelarosa/tallypos-backend/api/controllers"
	webhookcontrollers "github.com/mdelarosa/tallypos-backend/api/controllers/webhooks"
	"github.com/mdelarosa/tallypos-backend/api/middleware"
	"github.com/mdelarosa/tallypos-backend/internal/auth"
	"github.com/mdelarosa/tallypos-backend/internal/events"
	"github.com/mdelarosa/tallypos-backend/internal/inventory"
	"github.com/mdelarosa/tallypos-backend/internal/orders"
	"github.com/mdelarosa/tallypos-backend/internal/plans"
	"github.com/mdelarosa/tallypos-backend/internal/sessions"
	"github.com/mdelarosa/tallypos-backend/internal/staging"
	subscriptionsvc "github.com/mdelarosa/tallypos-backend/internal/subscriptions"
	stripewebhook "github.com/mdelarosa/tallypos-backend/internal/webhooks/stripe"
	"github.com/mdelarosa/tallypos-backend/pkg/auth/session"
	"github.com/mdelarosa/tallypos-backend/pkg/config"
	"github.com/mdelarosa/tallypos-backend/pkg/db"
	"github.com/mdelarosa/tallypos-backend/pkg/logger"
	"github.com/mdelarosa/tallypos-backend/pkg/redis"
	"github.com/mdelarosa/tallypos-backend/pkg/stripe"
)

type sessionManager interface {
	session.AccessSessionChecker
	Rotate(context.Context, string, string) (string, string, error)
	Revoke(context.Context, string) error
}

// RouterParams carries everything the HTTP surface needs.
type RouterParams struct {
	Config         *config.Config
	Logger         *logger.Logger
	DB             db.Pinger
	Redis          *redis.Client
	SessionManager sessionManager
	AuthService    auth.Service
	Register       auth.RegisterService
	Resolver       *sessions.Resolver
	Sessions       *sessions.Service
	Inventory      inventory.Service
	Events         events.Service
	Staging        staging.Service
	Orders         orders.Service
	Plans          *plans.Service
	Subscriptions  subscriptionsvc.Service
	StripeClient   *stripe.Client
	StripeWebhook  *stripewebhook.Service
	WebhookGuard   *stripewebhook.IdempotencyGuard
}

func NewRouter(p RouterParams) http.Handler {
	cfg := p.Config
	logg := p.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	loginPolicy := middleware.NewAuthRateLimitPolicy(
		"login",
		cfg.AuthRateLimit.LoginWindow,
		cfg.AuthRateLimit.LoginIPLimit,
		cfg.AuthRateLimit.LoginEmailLimit,
	)
	registerPolicy := middleware.NewAuthRateLimitPolicy(
		"register",
		cfg.AuthRateLimit.RegisterWindow,
		cfg.AuthRateLimit.RegisterIPLimit,
		cfg.AuthRateLimit.RegisterEmailLimit,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, p.DB, p.Redis))
	})

	// Typed-nil pointers must not reach the handler's interface checks, so
	// the route only gets real dependencies when all three exist.
	stripeHandler := webhookcontrollers.StripeWebhook(nil, nil, nil, logg)
	if p.StripeWebhook != nil && p.StripeClient != nil && p.WebhookGuard != nil {
		stripeHandler = webhookcontrollers.StripeWebhook(p.StripeWebhook, p.StripeClient, p.WebhookGuard, logg)
	}
	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/stripe", stripeHandler)
	})

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.With(middleware.AuthRateLimit(loginPolicy, p.Redis, logg)).Post("/login", controllers.AuthLogin(p.AuthService, logg))
		r.With(middleware.AuthRateLimit(registerPolicy, p.Redis, logg)).Post("/register", controllers.AuthRegister(p.Register, p.AuthService, logg))
		r.Post("/logout", controllers.AuthLogout(p.SessionManager, cfg.JWT, logg))
		r.Post("/refresh", controllers.AuthRefresh(p.SessionManager, cfg.JWT, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, p.SessionManager, logg))
		r.Use(middleware.Idempotency(p.Redis, logg))

		r.Route("/inventory", func(r chi.Router) {
			r.Get("/", controllers.InventoryList(p.Inventory, p.Resolver, logg))
			r.Post("/", controllers.InventoryCreate(p.Inventory, p.Resolver, logg))
			r.Get("/low-stock", controllers.InventoryLowStock(p.Inventory, p.Resolver, logg))
			r.Post("/images/presign", controllers.InventoryImagePresign(p.Inventory, p.Resolver, logg))
			r.Get("/{itemId}", controllers.InventoryGet(p.Inventory, p.Resolver, logg))
			r.Patch("/{itemId}", controllers.InventoryUpdate(p.Inventory, p.Resolver, logg))
			r.Delete("/{itemId}", controllers.InventoryDelete(p.Inventory, p.Resolver, logg))
			r.Post("/{itemId}/adjust", controllers.InventoryAdjust(p.Inventory, p.Resolver, logg))
		})

		r.Route("/events", func(r chi.Router) {
			r.Get("/", controllers.EventList(p.Events, p.Resolver, logg))
			r.Post("/", controllers.EventCreate(p.Events, p.Resolver, logg))
			r.Get("/{eventId}", controllers.EventGet(p.Events, p.Resolver, logg))
			r.Patch("/{eventId}", controllers.EventUpdate(p.Events, p.Resolver, logg))
			r.Delete("/{eventId}", controllers.EventDelete(p.Events, p.Resolver, logg))
			r.Route("/{eventId}/staged", func(r chi.Router) {
				r.Get("/", controllers.StagedList(p.Staging, p.Resolver, logg))
				r.Post("/", controllers.StagedCreate(p.Staging, p.Resolver, logg))
				r.Post("/{stagedId}/release", controllers.StagedRelease(p.Staging, p.Resolver, logg))
				r.Post("/{stagedId}/convert", controllers.StagedConvert(p.Staging, p.Resolver, logg))
				r.Delete("/{stagedId}", controllers.StagedDelete(p.Staging, p.Resolver, logg))
			})
		})

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", controllers.OrderList(p.Orders, p.Resolver, logg))
			r.Post("/", controllers.OrderCreate(p.Orders, p.Resolver, logg))
			r.Get("/{orderId}", controllers.OrderGet(p.Orders, p.Resolver, logg))
			r.Post("/{orderId}/cancel", controllers.OrderCancel(p.Orders, p.Resolver, logg))
		})

		r.Route("/sessions", func(r chi.Router) {
			r.Post("/", controllers.SessionCreate(p.Sessions, logg))
			r.Post("/join", controllers.SessionJoin(p.Sessions, logg))
			r.Post("/decide", controllers.SessionDecide(p.Sessions, logg))
			r.Post("/end", controllers.SessionEnd(p.Sessions, logg))
			r.Post("/refresh", controllers.SessionRefresh(p.Sessions, logg))
			r.Get("/current", controllers.SessionCurrent(p.Resolver, logg))
		})

		r.Route("/subscriptions", func(r chi.Router) {
			r.Get("/", controllers.SubscriptionFetch(p.Subscriptions, logg))
			r.Post("/checkout", controllers.SubscriptionCheckout(p.Subscriptions, logg))
			r.Post("/pause", controllers.SubscriptionPause(p.Subscriptions, logg))
			r.Post("/resume", controllers.SubscriptionResume(p.Subscriptions, logg))
		})

		r.Get("/billing/plans", controllers.BillingPlans(p.Plans, logg))
	})

	return r
}
