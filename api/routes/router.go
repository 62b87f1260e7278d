package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/technoshop/technoshop-backend/api/controllers"
	authcontrollers "github.com/technoshop/technoshop-backend/api/controllers/auth"
	cartcontrollers "github.com/technoshop/technoshop-backend/api/controllers/cart"
	ordercontrollers "github.com/technoshop/technoshop-backend/api/controllers/orders"
	"github.com/technoshop/technoshop-backend/api/middleware"
	"github.com/technoshop/technoshop-backend/internal/address"
	"github.com/technoshop/technoshop-backend/internal/auth"
	"github.com/technoshop/technoshop-backend/internal/cart"
	"github.com/technoshop/technoshop-backend/internal/catalog"
	"github.com/technoshop/technoshop-backend/internal/discounts"
	"github.com/technoshop/technoshop-backend/internal/offers"
	"github.com/technoshop/technoshop-backend/internal/orders"
	product "github.com/technoshop/technoshop-backend/internal/products"
	"github.com/technoshop/technoshop-backend/pkg/auth/session"
	"github.com/technoshop/technoshop-backend/pkg/config"
	"github.com/technoshop/technoshop-backend/pkg/db"
	"github.com/technoshop/technoshop-backend/pkg/enums"
	"github.com/technoshop/technoshop-backend/pkg/logger"
	"github.com/technoshop/technoshop-backend/pkg/metrics"
	"github.com/technoshop/technoshop-backend/pkg/redis"
)

type sessionManager interface {
	session.AccessSessionChecker
	Rotate(context.Context, string, string) (string, string, error)
	Revoke(context.Context, string) error
}

// redisStore is the subset of *redis.Client the request guards rely on.
type redisStore interface {
	Get(context.Context, string) (string, error)
	SetNX(context.Context, string, any, time.Duration) (bool, error)
	Set(context.Context, string, any, time.Duration) error
	Del(context.Context, ...string) error
	CompareAndDelete(ctx context.Context, key, value string) (bool, error)
	CountInWindow(context.Context, string, time.Duration) (int64, error)
	IdempotencyKey(scope, id string) string
	RateLimitKey(scope string) string
	InFlightKey(scope, userID string) string
}

// Services groups the domain services mounted by the router.
type Services struct {
	Auth      auth.Service
	Register  auth.RegisterService
	Catalog   catalog.Service
	Products  product.Service
	Offers    offers.Service
	Discounts discounts.Service
	Cart      cart.Service
	Addresses address.Service
	Orders    orders.Service
}

// Infra carries the shared clients behind middleware and health checks.
// Redis may be nil, which disables the redis backed guards.
type Infra struct {
	DB       db.Pinger
	Redis    *redis.Client
	Sessions sessionManager
	Metrics  *metrics.HTTPMetrics
	Gatherer prometheus.Gatherer
}

func NewRouter(cfg *config.Config, logg *logger.Logger, infra Infra, svc Services) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.Metrics(infra.Metrics),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	var store redisStore
	readiness := map[string]controllers.Pinger{}
	if infra.DB != nil {
		readiness["db"] = infra.DB
	}
	if infra.Redis != nil {
		store = infra.Redis
		readiness["redis"] = infra.Redis
	}

	idempotent := middleware.Idempotency(store, 0, logg)
	idempotentCheckout := middleware.Idempotency(store, cfg.Checkout.IdempotencyTTL, logg)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive())
		r.Get("/ready", controllers.HealthReady(logg, readiness))
	})
	if infra.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(infra.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/public", func(r chi.Router) {
		r.Get("/products", controllers.ProductList(svc.Products, logg))
		r.Get("/products/{productId}", controllers.ProductDetail(svc.Products, logg))
		r.Get("/offers/amazing", controllers.AmazingOffers(svc.Products, logg))
		r.Get("/categories", controllers.CategoryList(svc.Catalog, logg))
		r.Get("/brands", controllers.BrandList(svc.Catalog, logg))
	})

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.With(middleware.RateLimit(middleware.LoginRateLimit(cfg.AuthRateLimit), store, logg)).Post("/login", authcontrollers.AuthLogin(svc.Auth, logg))
		r.With(middleware.RateLimit(middleware.RegisterRateLimit(cfg.AuthRateLimit), store, logg), idempotent).Post("/register", authcontrollers.AuthRegister(svc.Register, logg))
		r.Post("/refresh", authcontrollers.AuthRefresh(infra.Sessions, cfg.JWT, logg))
		r.Post("/logout", authcontrollers.AuthLogout(infra.Sessions, cfg.JWT, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, infra.Sessions, logg))

		r.Get("/me", cartcontrollers.Me(svc.Cart, svc.Addresses, logg))

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", cartcontrollers.CartFetch(svc.Cart, logg))
			r.Delete("/", cartcontrollers.CartEmpty(svc.Cart, logg))
			r.With(idempotent).Post("/items", cartcontrollers.CartAddItem(svc.Cart, logg))
			r.Patch("/items/{itemId}", cartcontrollers.CartSetQuantity(svc.Cart, logg))
			r.Delete("/items/{itemId}", cartcontrollers.CartRemoveItem(svc.Cart, logg))
		})

		r.Route("/addresses", func(r chi.Router) {
			r.Get("/", controllers.AddressList(svc.Addresses, logg))
			r.With(idempotent).Post("/", controllers.AddressCreate(svc.Addresses, logg))
			r.Delete("/{addressId}", controllers.AddressDelete(svc.Addresses, logg))
		})

		r.With(middleware.InFlight("discount", store, cfg.Checkout.InFlightLockTTL, logg)).
			Post("/discount-codes/use", controllers.DiscountUse(svc.Discounts, logg))

		r.Route("/orders", func(r chi.Router) {
			// the lock sits outside the replay cache so its rejection is never stored
			r.With(middleware.InFlight("order", store, cfg.Checkout.InFlightLockTTL, logg), idempotentCheckout).
				Post("/", ordercontrollers.Submit(svc.Orders, logg))
			r.Get("/", ordercontrollers.List(svc.Orders, logg))
			r.Get("/{orderId}", ordercontrollers.Detail(svc.Orders, logg))
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.RequireRole(logg, enums.UserRoleAdmin))

			r.Route("/products", func(r chi.Router) {
				r.With(idempotent).Post("/", controllers.AdminCreateProduct(svc.Products, logg))
				r.Patch("/{productId}", controllers.AdminUpdateProduct(svc.Products, logg))
				r.Delete("/{productId}", controllers.AdminDeleteProduct(svc.Products, logg))
			})
			r.Route("/offers", func(r chi.Router) {
				r.Get("/", controllers.AdminListOffers(svc.Offers, logg))
				r.With(idempotent).Post("/", controllers.AdminCreateOffer(svc.Offers, logg))
				r.Get("/{offerId}", controllers.AdminGetOffer(svc.Offers, logg))
				r.Patch("/{offerId}", controllers.AdminUpdateOffer(svc.Offers, logg))
				r.Delete("/{offerId}", controllers.AdminDeleteOffer(svc.Offers, logg))
			})
			r.Route("/discount-codes", func(r chi.Router) {
				r.Get("/", controllers.AdminListDiscounts(svc.Discounts, logg))
				r.With(idempotent).Post("/", controllers.AdminCreateDiscount(svc.Discounts, logg))
				r.Delete("/{discountId}", controllers.AdminDeleteDiscount(svc.Discounts, logg))
			})
			r.Route("/categories", func(r chi.Router) {
				r.With(idempotent).Post("/", controllers.CategoryCreate(svc.Catalog, logg))
				r.Delete("/{categoryId}", controllers.CategoryDelete(svc.Catalog, logg))
			})
			r.Route("/brands", func(r chi.Router) {
				r.With(idempotent).Post("/", controllers.BrandCreate(svc.Catalog, logg))
				r.Delete("/{brandId}", controllers.BrandDelete(svc.Catalog, logg))
			})
			r.Route("/orders", func(r chi.Router) {
				r.Get("/", ordercontrollers.AdminList(svc.Orders, logg))
				r.With(idempotent).Patch("/{orderId}/status", ordercontrollers.AdminSetStatus(svc.Orders, logg))
			})
		})
	})

	return r
}
