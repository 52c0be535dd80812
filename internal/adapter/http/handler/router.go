package handler

import (
	"engagement-rewards/internal/adapter/http/middleware"
	"engagement-rewards/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

// maxBodyBytes bounds every request body; screenshots arrive as URLs.
const maxBodyBytes = 1 << 20

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	SubmissionSvc  ports.SubmissionService
	WithdrawalSvc  ports.WithdrawalService
	ReportingSvc   ports.ReportingService
	TokenSvc       ports.TokenService
	Realtime       RealtimeServer      // nil = websocket endpoint disabled
	RateLimitStore middleware.Throttle // nil = rate limiting disabled
	HealthCheckers []ports.HealthChecker
	Metrics        prometheus.Gatherer // nil = /metrics disabled
	OpenAPISpec    []byte              // empty = /swagger disabled
	Mode           string
	Logger         zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	if deps.Mode != "" {
		gin.SetMode(deps.Mode)
	}
	r := gin.New()

	// Global middleware
	r.Use(middleware.RequestID())
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.MaxBodySize(maxBodyBytes))
	r.Use(middleware.AuditContext())

	// Deep health check over every configured store
	r.GET("/health", HealthCheck(deps.HealthCheckers...))
	if deps.Metrics != nil {
		r.GET("/metrics", Metrics(deps.Metrics))
	}

	// Swagger documentation
	if docs := NewAPIDocs(deps.OpenAPISpec); docs != nil {
		r.GET("/swagger", docs.UI)
		r.GET("/swagger/spec", docs.Spec)
	}

	rules := middleware.DefaultRateLimitRules()

	// Helper: return rate limiter middleware if store is available, else noop.
	rl := func(group string) gin.HandlerFunc {
		if deps.RateLimitStore == nil {
			return func(c *gin.Context) { c.Next() }
		}
		rule, ok := rules[group]
		if !ok {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RateLimiter(deps.RateLimitStore, group, rule, deps.Logger)
	}

	v1 := r.Group("/api/v1")

	// Websocket clients authenticate inside the handler.
	if deps.Realtime != nil {
		realtimeHandler := NewRealtimeHandler(deps.Realtime, deps.TokenSvc, deps.Logger)
		v1.GET("/ws", rl("ws"), realtimeHandler.Connect)
	}

	// --- JWT-authenticated user routes ---
	jwtAuth := middleware.JWTAuth(deps.TokenSvc, deps.Logger)
	submissionHandler := NewSubmissionHandler(deps.SubmissionSvc, deps.ReportingSvc)
	earningsHandler := NewEarningsHandler(deps.ReportingSvc)
	withdrawalHandler := NewWithdrawalHandler(deps.WithdrawalSvc, deps.ReportingSvc)

	user := v1.Group("", jwtAuth)
	{
		user.POST("/submissions", rl("submissions"), submissionHandler.Create)
		user.GET("/submissions", rl("read"), submissionHandler.List)
		user.POST("/videos/:video_id/complete", rl("videos"), submissionHandler.CompleteVideo)
		user.GET("/earnings", rl("read"), earningsHandler.Get)
		user.POST("/withdrawals", rl("withdrawals"), withdrawalHandler.Request)
		user.GET("/withdrawals", rl("read"), withdrawalHandler.List)
	}

	// --- Admin routes ---
	adminHandler := NewAdminHandler(deps.SubmissionSvc, deps.WithdrawalSvc, deps.ReportingSvc)
	admin := v1.Group("/admin", jwtAuth, middleware.RequireRole(ports.RoleAdmin), rl("admin"))
	{
		admin.GET("/submissions", adminHandler.ListSubmissions)
		admin.POST("/submissions/:id/approve", adminHandler.ApproveSubmission)
		admin.POST("/submissions/:id/reject", adminHandler.RejectSubmission)
		admin.GET("/withdrawals", adminHandler.ListWithdrawals)
		admin.POST("/withdrawals/:id/approve", adminHandler.ApproveWithdrawal)
		admin.POST("/withdrawals/:id/reject", adminHandler.RejectWithdrawal)
	}

	return r
}
