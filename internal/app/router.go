package app

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/linemk/peckup-shop/internal/app/handlers"
	"github.com/linemk/peckup-shop/internal/cache"
	"github.com/linemk/peckup-shop/internal/events"
	"github.com/linemk/peckup-shop/internal/jwt-new/jwtmiddleware"
	"github.com/linemk/peckup-shop/internal/lib/identifier"
	"github.com/linemk/peckup-shop/internal/lib/logger/handlers/urllog"
	"github.com/linemk/peckup-shop/internal/lib/metrics"
	"github.com/linemk/peckup-shop/internal/receipt"
	"github.com/linemk/peckup-shop/internal/service"
	"github.com/linemk/peckup-shop/internal/storage"
)

// Router собирает репозитории, сервисы и маршруты поверх подключений приложения
func (a *App) Router() http.Handler {
	cfg := a.Config
	log := a.Logger

	// реализация слоев по работе с БД по каждому направлению
	userRepo := storage.NewUserRepository(a.DB)
	orderRepo := storage.NewOrderRepository(a.DB)
	repos := service.Repositories{
		Users:       userRepo,
		Products:    storage.NewProductRepository(a.DB),
		Addresses:   storage.NewAddressRepository(a.DB),
		Orders:      orderRepo,
		Idempotency: storage.NewIdempotencyRepository(a.DB),
	}

	var publisher events.Publisher = events.NopPublisher{}
	if a.Kafka != nil {
		publisher = events.NewKafkaPublisher(a.Kafka)
	}
	var (
		receiptCache cache.ReceiptCache = cache.Nop{}
		cachePinger  handlers.CachePinger
	)
	if a.Redis != nil {
		redisCache := cache.NewRedisReceiptCache(a.Redis, "receipt", cfg.Redis.ReceiptTTL)
		receiptCache = redisCache
		cachePinger = redisCache
	}

	serverMetrics := metrics.NewServerMetrics(a.Registry)
	orderMetrics := metrics.NewOrderMetrics(a.Registry)

	renderer := receipt.NewRenderer(receipt.Branding{
		CompanyName:  cfg.Receipt.CompanyName,
		Tagline:      cfg.Receipt.Tagline,
		SupportEmail: cfg.Receipt.SupportEmail,
	})

	authService := service.NewAuthService(log, userRepo, cfg.JWT.Secret, time.Duration(cfg.JWT.TokenTTL)*time.Minute)
	orderService := service.NewOrderService(log, a.DB, repos, identifier.NewGenerator(), publisher, orderMetrics, cfg.Orders)
	adminService := service.NewAdminService(log, orderRepo, publisher, orderMetrics)
	receiptService := service.NewReceiptService(log, orderRepo, renderer, receiptCache, orderMetrics)

	router := chi.NewRouter()
	// настройка middleware
	router.Use(middleware.RequestID)
	router.Use(urllog.CustomLoggerMiddleware(log))
	router.Use(serverMetrics.Middleware)
	router.Use(middleware.Recoverer)

	router.Get("/health", handlers.HealthHandler(log, a.DB, cachePinger))
	router.Method(http.MethodGet, "/metrics", metrics.Handler(a.Registry))

	router.Route("/api", func(r chi.Router) {
		r.Post("/auth/register", handlers.RegisterHandler(log, authService))
		r.Post("/auth", handlers.AuthHandler(log, authService))

		r.Group(func(r chi.Router) {
			r.Use(jwtmiddleware.NewJWTMiddleware(cfg.JWT.Secret))

			r.Get("/orders", handlers.ListOrdersHandler(log, orderService))
			r.Post("/orders", handlers.CreateOrderHandler(log, orderService))
			r.Get("/orders/{id}", handlers.GetOrderHandler(log, orderService))
			r.Post("/orders/{id}/cancel", handlers.CancelOrderHandler(log, orderService))
			r.Get("/orders/{id}/receipt", handlers.ReceiptHandler(log, receiptService))

			// эндпоинты поддержки, только для роли admin
			r.Group(func(r chi.Router) {
				r.Use(jwtmiddleware.RequireAdmin)
				r.Get("/admin/orders/stats", handlers.AdminOrderStatsHandler(log, adminService))
				r.Get("/admin/orders/{id}", handlers.AdminGetOrderHandler(log, adminService))
				r.Put("/admin/orders/{id}/status", handlers.AdminUpdateStatusHandler(log, adminService))
				r.Delete("/admin/orders/{id}", handlers.AdminDeleteOrderHandler(log, adminService))
				r.Get("/admin/orders/{id}/receipt", handlers.AdminReceiptHandler(log, receiptService))
			})
		})
	})

	return router
}
