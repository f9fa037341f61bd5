package handler

import (
	"net/http"

	"fiat-token-bridge/internal/adapter/http/middleware"
	redisStore "fiat-token-bridge/internal/adapter/storage/redis"
	"fiat-token-bridge/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

const maxBodyBytes = 1 << 20

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	Settlement     ports.SettlementService
	Onboarding     ports.OnboardingService
	Reconcile      ports.ReconcileService
	Auth           ports.AuthService
	Reporting      ports.ReportingService
	TokenSvc       ports.TokenService
	RateLimitStore *redisStore.RateLimitStore // nil = rate limiting disabled
	AuditSvc       ports.AuditService         // nil = audit logging disabled
	Metrics        http.Handler               // nil = /metrics not served
	HealthCheckers []ports.HealthChecker
	Logger         zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.MaxBodySize(maxBodyBytes))
	if deps.AuditSvc != nil {
		r.Use(middleware.AuditLog(deps.AuditSvc))
	}

	r.GET("/health", HealthCheck(deps.HealthCheckers...))
	if deps.Metrics != nil {
		r.GET("/metrics", gin.WrapH(deps.Metrics))
	}
	swagger := r.Group("/swagger")
	{
		swagger.GET("", SwaggerUI)
		swagger.GET("/spec", SwaggerSpec)
	}

	rules := middleware.DefaultRateLimitRules()
	rl := func(group string) gin.HandlerFunc {
		rule, ok := rules[group]
		if deps.RateLimitStore == nil || !ok {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RateLimiter(deps.RateLimitStore, group, rule, deps.Logger)
	}

	onboarding := NewOnboardingHandler(deps.Onboarding)
	r.POST("/onboarding/start", rl("onboarding"), onboarding.Start)
	r.GET("/onboarding/complete", rl("onboarding"), onboarding.Complete)
	r.GET("/onboarding/refresh", rl("onboarding"), onboarding.Refresh)
	r.POST("/checkout/session", rl("checkout"), onboarding.Checkout)
	r.GET("/checkout/session/:id", rl("checkout"), onboarding.Session)
	r.GET("/accounts/:id/balance", rl("checkout"), onboarding.Balance)
	r.GET("/success", Success)
	r.GET("/cancel", Cancel)

	settlement := NewSettlementHandler(deps.Settlement)
	// Provider-signed; not rate limited.
	r.POST("/webhook", settlement.Webhook)
	r.POST("/redeem", rl("redeem"), settlement.Redeem)
	r.GET("/balance/:address", settlement.Balance)
	r.GET("/total-supply", settlement.TotalSupply)

	admin := NewAdminHandler(deps.Auth, deps.Settlement, deps.Reconcile, deps.Reporting)
	r.POST("/admin/login", rl("admin_login"), admin.Login)

	ops := r.Group("/admin", middleware.JWTAuth(deps.TokenSvc, deps.Logger), rl("admin"))
	{
		ops.GET("/settlements", admin.ListSettlements)
		ops.GET("/settlements/:key", admin.GetSettlement)
		ops.POST("/settlements/:key/retry-payout", admin.RetryPayout)
		ops.POST("/settlements/:key/retry-mint", admin.RetryMint)
		ops.POST("/settlements/:key/resolve", admin.Resolve)
		ops.POST("/reconcile", admin.Reconcile)
		ops.GET("/stats", admin.Stats)
	}

	return r
}
