package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/suiflow/suiflow_service/internal/api/handlers"
	"github.com/suiflow/suiflow_service/internal/api/middleware"
	"github.com/suiflow/suiflow_service/pkg/idempotency"
	"github.com/suiflow/suiflow_service/pkg/logger"
	"github.com/suiflow/suiflow_service/pkg/metrics"
)

// Options configures the router
type Options struct {
	AllowedOrigins []string
	AdminJWTSecret string
	// SubmitLimiter guards the transaction-submitting endpoints when set
	SubmitLimiter *middleware.IPRateLimiter
	// IdempotencyStore enables Idempotency-Key replay on submissions when set
	IdempotencyStore idempotency.Store
}

// Handlers groups the API handlers. Reconciliation may be nil.
type Handlers struct {
	Payment        *handlers.PaymentHandler
	Health         *handlers.HealthHandler
	Reconciliation *handlers.ReconciliationHandler
}

// SetupRoutes configures all application routes
func SetupRoutes(h Handlers, opts Options, log *logger.Logger) *gin.Engine {
	router := gin.New()

	// Global middleware - order matters
	router.Use(middleware.RequestID())
	router.Use(middleware.Metrics())
	router.Use(middleware.RequestSizeLimit())
	router.Use(middleware.Logger(log))
	router.Use(middleware.Recovery(log))
	router.Use(middleware.CORS(opts.AllowedOrigins))

	router.GET("/health", h.Health.Health)
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	var limit, replay []gin.HandlerFunc
	if opts.SubmitLimiter != nil {
		limit = append(limit, opts.SubmitLimiter.Limit())
	}
	if opts.IdempotencyStore != nil {
		replay = append(replay, idempotency.Middleware(opts.IdempotencyStore, log.Zap()))
	}

	api := router.Group("/api")
	{
		api.GET("/stats", h.Payment.GetStats)
		api.GET("/payments", h.Payment.GetPayments)
		api.GET("/admin-fees", h.Payment.GetAdminFees)
		api.GET("/coins/:address", h.Payment.GetCoins)

		api.POST("/process-payment", chain(limit, replay,
			[]gin.HandlerFunc{h.Payment.ProcessPayment})...)
		api.POST("/withdraw-fees", chain(limit,
			[]gin.HandlerFunc{middleware.AdminAuth(opts.AdminJWTSecret, log)},
			replay,
			[]gin.HandlerFunc{h.Payment.WithdrawFees})...)

		if h.Reconciliation != nil {
			api.GET("/reconciliation/latest", h.Reconciliation.GetLatest)
		}
	}

	return router
}

// chain concatenates middleware groups in order.
func chain(groups ...[]gin.HandlerFunc) []gin.HandlerFunc {
	var out []gin.HandlerFunc
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}
