package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/souqly/souqly-backend/api/controllers"
	webhookcontrollers "github.com/souqly/souqly-backend/api/controllers/webhooks"
	"github.com/souqly/souqly-backend/api/middleware"
	"github.com/souqly/souqly-backend/internal/callbacks"
	checkoutsvc "github.com/souqly/souqly-backend/internal/checkout"
	salessvc "github.com/souqly/souqly-backend/internal/sales"
	"github.com/souqly/souqly-backend/pkg/config"
	"github.com/souqly/souqly-backend/pkg/db"
	"github.com/souqly/souqly-backend/pkg/enums"
	"github.com/souqly/souqly-backend/pkg/logger"
	"github.com/souqly/souqly-backend/pkg/redis"
)

// NewRouter assembles the HTTP surface: health probes, the gateway webhook,
// and the authenticated sale endpoints.
func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	checkoutService checkoutsvc.Service,
	salesService salessvc.Service,
	callbackService callbacks.Service,
) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisClient))
	})

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/paymob", webhookcontrollers.PaymobWebhook(callbackService, logg))
	})

	idempotency := middleware.Idempotency(redisClient, logg)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))

		// Only shoppers have carts; vendors and admins go through the sale
		// endpoints below.
		r.With(middleware.RequireRole(string(enums.UserRoleCustomer), logg), idempotency).
			Post("/checkout", controllers.Checkout(checkoutService, logg))
		r.Route("/sales/{saleId}", func(r chi.Router) {
			r.Get("/", controllers.SaleDetail(salesService, logg))
			r.With(idempotency).Post("/cancel", controllers.SaleCancel(salesService, logg))
		})
	})

	return r
}
