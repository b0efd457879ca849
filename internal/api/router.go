package api

import (
	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/hugh/brokerdesk/internal/agreement"
	"github.com/hugh/brokerdesk/internal/api/handlers"
	"github.com/hugh/brokerdesk/internal/api/middleware"
	"github.com/hugh/brokerdesk/internal/auth"
	"github.com/hugh/brokerdesk/internal/company"
	"github.com/hugh/brokerdesk/internal/customs"
	"github.com/hugh/brokerdesk/internal/quota"
	"github.com/hugh/brokerdesk/internal/subscription"
	"github.com/hugh/brokerdesk/internal/user"
	"github.com/hugh/brokerdesk/pkg/crypto"
	"github.com/hugh/brokerdesk/pkg/metrics"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Router struct {
	chi.Router
}

type RouterConfig struct {
	DB             *gorm.DB
	Redis          *redis.Client
	Logger         *slog.Logger
	JWTService     *auth.JWTService
	AuthService    *auth.Service
	Sealer         *crypto.Sealer
	Queue          handlers.Enqueuer      // nil disables manual reconciliation
	Inspector      handlers.TaskInspector // nil disables task status lookups
	RateLimiter    *middleware.RateLimiter // per client IP, all routes
	UserLimiter    *middleware.RateLimiter // per principal, authenticated routes
	AllowedOrigins []string
}

func NewRouter(cfg RouterConfig) *Router {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.Logging(cfg.Logger))
	r.Use(metrics.Middleware)

	if cfg.RateLimiter != nil {
		r.Use(middleware.RateLimit(cfg.RateLimiter))
	}

	allowedOrigins := cfg.AllowedOrigins
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"http://localhost:3000", "http://localhost:8080"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Auth-Token"},
		ExposedHeaders:   []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Services
	tracker := quota.NewTracker(cfg.DB, cfg.Logger)
	agreementService := agreement.NewService(cfg.DB, cfg.Logger)
	companyService := company.NewService(cfg.DB, tracker, cfg.Sealer, cfg.Logger)
	userService := user.NewService(cfg.DB, tracker, cfg.Logger)
	subscriptionService := subscription.NewService(cfg.DB, cfg.Logger)
	customsService := customs.NewService(cfg.DB, agreementService, cfg.Logger)

	// Handlers
	healthHandler := handlers.NewHealthHandler(cfg.DB, cfg.Redis)
	authHandler := handlers.NewAuthHandler(cfg.AuthService, cfg.Logger)
	companyHandler := handlers.NewCompanyHandler(companyService, cfg.Logger)
	userHandler := handlers.NewUserHandler(userService, cfg.Logger)
	subscriptionHandler := handlers.NewSubscriptionHandler(subscriptionService, cfg.Logger)
	quotaHandler := handlers.NewQuotaHandler(tracker, cfg.Queue, cfg.Inspector, cfg.Logger)
	agreementHandler := handlers.NewAgreementHandler(agreementService, cfg.Logger)
	transactionHandler := handlers.NewTransactionHandler(customsService, cfg.Logger)

	// Probes and metrics (no auth required)
	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/login", authHandler.Login)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWTService, cfg.AuthService))
			if cfg.UserLimiter != nil {
				r.Use(middleware.RateLimitByUser(cfg.UserLimiter))
			}

			r.Get("/me", authHandler.Me)

			r.Route("/companies", func(r chi.Router) {
				r.Get("/", companyHandler.List)
				r.Post("/", companyHandler.Create)
				r.Get("/{id}", companyHandler.Get)
				r.Put("/{id}", companyHandler.Update)
				r.Delete("/{id}", companyHandler.Delete)
				r.Get("/{id}/tax-id", companyHandler.TaxID)
			})

			r.Route("/users", func(r chi.Router) {
				r.Get("/", userHandler.List)
				r.Post("/", userHandler.Create)
				r.Get("/{id}", userHandler.Get)
				r.Put("/{id}", userHandler.Update)
				r.Delete("/{id}", userHandler.Delete)
			})

			r.Route("/plans", func(r chi.Router) {
				r.Get("/", subscriptionHandler.ListPlans)
				r.Post("/", subscriptionHandler.CreatePlan)
				r.Put("/{id}", subscriptionHandler.UpdatePlan)
			})

			r.Post("/subscriptions/{id}/cancel", subscriptionHandler.Cancel)

			r.Route("/brokers/{id}", func(r chi.Router) {
				r.Get("/subscription", subscriptionHandler.Current)
				r.Get("/subscriptions", subscriptionHandler.History)
				r.Post("/subscriptions", subscriptionHandler.Subscribe)
				r.Get("/quota", quotaHandler.Get)
				r.Post("/quota/reconcile", quotaHandler.Reconcile)
				r.Get("/quota/reconcile/{taskID}", quotaHandler.ReconcileStatus)
			})

			r.Route("/agreements", func(r chi.Router) {
				r.Get("/", agreementHandler.List)
				r.Post("/", agreementHandler.Create)
				r.Get("/{id}", agreementHandler.Get)
				r.Post("/{id}/suspend", agreementHandler.Suspend)
				r.Post("/{id}/reactivate", agreementHandler.Reactivate)
				r.Post("/{id}/terminate", agreementHandler.Terminate)
			})

			r.Route("/transactions", func(r chi.Router) {
				r.Get("/", transactionHandler.List)
				r.Post("/", transactionHandler.Create)
				r.Get("/{id}", transactionHandler.Get)
				r.Put("/{id}", transactionHandler.Update)
				r.Delete("/{id}", transactionHandler.Delete)
				r.Put("/{id}/status", transactionHandler.ChangeStatus)
				r.Post("/{id}/complete", transactionHandler.Complete)
				r.Post("/{id}/cancel", transactionHandler.Cancel)
			})
		})
	})

	return &Router{r}
}
