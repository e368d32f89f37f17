package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/zazmarga/online-cinema/api/controllers"
	cartcontrollers "github.com/zazmarga/online-cinema/api/controllers/cart"
	ordercontrollers "github.com/zazmarga/online-cinema/api/controllers/orders"
	paymentcontrollers "github.com/zazmarga/online-cinema/api/controllers/payments"
	webhookcontrollers "github.com/zazmarga/online-cinema/api/controllers/webhooks"
	"github.com/zazmarga/online-cinema/api/middleware"
	"github.com/zazmarga/online-cinema/internal/cart"
	checkoutsvc "github.com/zazmarga/online-cinema/internal/checkout"
	"github.com/zazmarga/online-cinema/internal/ledger"
	"github.com/zazmarga/online-cinema/internal/orders"
	"github.com/zazmarga/online-cinema/internal/payments"
	"github.com/zazmarga/online-cinema/pkg/config"
	"github.com/zazmarga/online-cinema/pkg/db"
	"github.com/zazmarga/online-cinema/pkg/enums"
	"github.com/zazmarga/online-cinema/pkg/logger"
	pkgredis "github.com/zazmarga/online-cinema/pkg/redis"
)

// Deps carries everything the router wires into handlers. Redis-backed
// members are optional and must be left as nil interfaces when redis is off.
type Deps struct {
	Config *config.Config
	Logger *logger.Logger

	DB    db.Pinger
	Redis controllers.Pinger

	IdempotencyStore pkgredis.IdempotencyStore
	RateLimiter      pkgredis.RateLimiter

	Cart          cart.Service
	Orders        orders.Service
	Checkout      checkoutsvc.Service
	Payments      payments.Service
	Ledger        ledger.Service
	StripeWebhook webhookcontrollers.StripeWebhookService

	// Gatherer backs /metrics; nil uses the default registry.
	Gatherer prometheus.Gatherer
}

func NewRouter(deps Deps) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	cartAddPolicy := middleware.NewRateLimitPolicy("cart-add", time.Minute, cfg.FeatureFlags.CartAddPerMinute)
	idempotent := middleware.Idempotency(deps.IdempotencyStore, logg)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.DB, deps.Redis))
	})
	r.Handle("/metrics", metricsHandler(deps.Gatherer))

	r.Post("/api/v1/webhooks/stripe", webhookcontrollers.StripeWebhook(deps.StripeWebhook, logg))
	r.Get("/api/v1/payments/success", paymentcontrollers.Success())
	r.Get("/api/v1/payments/cancel", paymentcontrollers.Cancel())

	r.Group(func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))

		r.Get("/api/v1/cart", cartcontrollers.CartList(deps.Cart, logg))
		r.With(middleware.RateLimit(cartAddPolicy, deps.RateLimiter, logg)).Post("/api/v1/cart/items", cartcontrollers.CartAdd(deps.Cart, logg))
		r.Delete("/api/v1/cart/items/{movieId}", cartcontrollers.CartRemove(deps.Cart, logg))
		r.Delete("/api/v1/cart/items", cartcontrollers.CartClear(deps.Cart, logg))

		r.With(idempotent).Post("/api/v1/orders", ordercontrollers.Create(deps.Orders, logg))
		r.Get("/api/v1/orders", ordercontrollers.List(deps.Orders, logg))
		r.Get("/api/v1/orders/{orderId}", ordercontrollers.Detail(deps.Orders, logg))
		r.With(idempotent).Post("/api/v1/orders/{orderId}/cancel", ordercontrollers.Cancel(deps.Orders, logg))
		r.With(idempotent).Post("/api/v1/orders/{orderId}/checkout", ordercontrollers.Checkout(deps.Checkout, logg))

		r.Get("/api/v1/payments", paymentcontrollers.List(deps.Payments, logg))
		r.Get("/api/v1/me/movies", controllers.OwnedMovies(deps.Ledger, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRole(enums.RoleAdmin, logg))
			r.Get("/api/v1/admin/orders", ordercontrollers.AdminList(deps.Orders, logg))
			r.Get("/api/v1/admin/payments", paymentcontrollers.AdminList(deps.Payments, logg))
		})
	})

	return r
}

func metricsHandler(gatherer prometheus.Gatherer) http.Handler {
	if gatherer == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
