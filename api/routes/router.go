package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dgarciab/entregalo-backend/api/controllers"
	"github.com/dgarciab/entregalo-backend/api/middleware"
	"github.com/dgarciab/entregalo-backend/internal/dispatch"
	"github.com/dgarciab/entregalo-backend/internal/events"
	"github.com/dgarciab/entregalo-backend/internal/orders"
	"github.com/dgarciab/entregalo-backend/internal/rejections"
	"github.com/dgarciab/entregalo-backend/pkg/config"
	"github.com/dgarciab/entregalo-backend/pkg/db"
	"github.com/dgarciab/entregalo-backend/pkg/enums"
	"github.com/dgarciab/entregalo-backend/pkg/logger"
	"github.com/dgarciab/entregalo-backend/pkg/metrics"
	"github.com/dgarciab/entregalo-backend/pkg/redis"
)

// Deps bundles everything the HTTP surface needs.
type Deps struct {
	Config          *config.Config
	Logger          *logger.Logger
	DBPinger        db.Pinger
	RedisClient     *redis.Client
	Bus             events.Bus
	Metrics         *metrics.DispatchMetrics
	Registry        *prometheus.Registry
	OrdersRepo      orders.Repository
	RejectionsRepo  rejections.Repository
	OrdersService   orders.Service
	DispatchService dispatch.Service
}

func NewRouter(deps Deps) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, deps.DBPinger, deps.RedisClient, logg))
	})

	if deps.Registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.Idempotency(deps.RedisClient, logg))

		r.Route("/orders", func(r chi.Router) {
			r.Post("/", controllers.CreateOrder(deps.OrdersService, logg))
			r.Get("/", controllers.CustomerOrders(deps.OrdersRepo, logg))
			r.Get("/{orderId}", controllers.CustomerOrderDetail(deps.OrdersRepo, logg))
			r.Get("/{orderId}/events", controllers.OrderEvents(deps.OrdersRepo, deps.Bus, cfg.Stream, deps.Metrics, logg))
		})

		r.Route("/courier/orders", func(r chi.Router) {
			r.Use(middleware.RequireRole(string(enums.RoleCourier), logg))
			r.Get("/", controllers.CourierAssignedOrders(deps.OrdersRepo, logg))
			r.Get("/available", controllers.CourierAvailableOrders(deps.OrdersRepo, logg))
			r.Get("/history", controllers.CourierDeliveredOrders(deps.OrdersRepo, logg))
			r.Get("/refused", controllers.CourierRefusedOrders(deps.OrdersRepo, logg))
			r.Get("/events", controllers.AvailabilityEvents(deps.Bus, cfg.Stream, deps.Metrics, logg))
			r.Get("/{orderId}", controllers.CourierOrderDetail(deps.OrdersRepo, deps.RejectionsRepo, logg))
			r.Post("/{orderId}/accept", controllers.CourierAcceptOrder(deps.DispatchService, logg))
			r.Post("/{orderId}/refuse", controllers.CourierRefuseOrder(deps.DispatchService, logg))
			r.Post("/{orderId}/status", controllers.CourierAdvanceOrder(deps.DispatchService, logg))
		})
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireRole(string(enums.RoleAdmin), logg))
		r.Use(middleware.Idempotency(deps.RedisClient, logg))

		r.Patch("/orders/{orderId}", controllers.AdminUpdateOrder(deps.DispatchService, logg))
	})

	return r
}
