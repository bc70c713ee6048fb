package router

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/middleware/stdlib"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	"go.uber.org/zap"

	"fraud-risk-engine/internal/infrastructure/metrics"
	"fraud-risk-engine/internal/interfaces/http/handler"
)

// Options configures the router
type Options struct {
	// RateLimit is a limiter formatted rate such as "100-S". Empty disables it.
	RateLimit string
	// RateStore backs the limiter. Nil means a per-process memory store.
	RateStore limiter.Store

	MetricsPath string
	Gatherer    prometheus.Gatherer
	Metrics     *metrics.Collectors
	Logger      *zap.Logger
}

// Router holds all HTTP handlers
type Router struct {
	mux                *chi.Mux
	transactionHandler *handler.TransactionHandler
	healthHandler      *handler.HealthHandler
	opts               Options
}

// NewRouter creates a new router with all routes configured
func NewRouter(
	transactionHandler *handler.TransactionHandler,
	healthHandler *handler.HealthHandler,
	opts Options,
) (*Router, error) {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	r := &Router{
		mux:                chi.NewRouter(),
		transactionHandler: transactionHandler,
		healthHandler:      healthHandler,
		opts:               opts,
	}
	if err := r.setupRoutes(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Router) setupRoutes() error {
	r.mux.Use(middleware.RequestID)
	r.mux.Use(middleware.RealIP)
	r.mux.Use(requestLogger(r.opts.Logger))
	r.mux.Use(middleware.Recoverer)
	r.mux.Use(instrument(r.opts.Metrics))
	r.mux.Use(cors)

	// Health endpoints
	r.mux.Get("/health", r.healthHandler.Health)
	r.mux.Get("/ready", r.healthHandler.Ready)
	r.mux.Get("/live", r.healthHandler.Live)

	if r.opts.MetricsPath != "" {
		r.mux.Handle(r.opts.MetricsPath, handler.MetricsHandler(r.opts.Gatherer))
	}

	rateLimit, err := r.rateLimiter()
	if err != nil {
		return err
	}

	// Transaction scoring endpoints
	r.mux.Route("/api/v1/transactions", func(api chi.Router) {
		if rateLimit != nil {
			api.Use(rateLimit)
		}

		api.Post("/", r.transactionHandler.CreateTransaction)
		api.Get("/", r.transactionHandler.ListTransactions)

		api.Route("/{id}", func(tx chi.Router) {
			tx.Get("/", r.transactionHandler.GetTransaction)
			tx.Post("/merchant", r.transactionHandler.SubmitMerchant)
			tx.Post("/device", r.transactionHandler.SubmitDevice)
			tx.Post("/otp", r.transactionHandler.VerifyOTP)

			// Audit trail
			tx.Get("/events", r.transactionHandler.ListEvents)
			tx.Get("/audit", r.transactionHandler.VerifyAuditTrail)
		})
	})
	return nil
}

func (r *Router) rateLimiter() (func(http.Handler) http.Handler, error) {
	if r.opts.RateLimit == "" {
		return nil, nil
	}
	rate, err := limiter.NewRateFromFormatted(r.opts.RateLimit)
	if err != nil {
		return nil, fmt.Errorf("invalid rate limit %q: %w", r.opts.RateLimit, err)
	}
	store := r.opts.RateStore
	if store == nil {
		store = memory.NewStore()
	}
	return stdlib.NewMiddleware(limiter.New(store, rate)).Handler, nil
}

// ServeHTTP implements http.Handler
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// Handler returns the http.Handler
func (r *Router) Handler() http.Handler {
	return r
}
