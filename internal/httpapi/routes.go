package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/Andres1439/verify-cod-orders/internal/rbac"

	"github.com/gin-gonic/gin"
)

// Middleware are the per-group handlers injected by the process.
// Nil entries are skipped. RateLimit applies to /v1 only.
type Middleware struct {
	Auth      gin.HandlerFunc
	RateLimit gin.HandlerFunc
}

// HealthFunc reports whether backing stores are reachable.
type HealthFunc func(ctx context.Context) error

// Register wires HTTP routes to handlers.
// Keep this file free of business logic.
func Register(r *gin.Engine, h Handlers, health HealthFunc, mw Middleware) {
	r.GET("/healthz", func(c *gin.Context) {
		if health != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := health(ctx); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "message": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Provider webhooks (public). They always answer 200, so no limiter:
	// every callback arrives from the provider's few egress addresses.
	hooks := r.Group("/api")
	{
		hooks.GET("/vonage-answer", h.VonageAnswer)
		hooks.POST("/vonage-answer", h.VonageAnswer)
		hooks.GET("/vonage-dtmf", h.VonageDTMF)
		hooks.POST("/vonage-dtmf", h.VonageDTMF)
		hooks.POST("/vonage-events", h.VonageEvents)
	}

	// protected API group
	v1 := r.Group("/v1")
	use(v1, mw.RateLimit, mw.Auth)
	{
		callsGroup := v1.Group("/calls")
		callsGroup.POST("/initiate", rbac.RequireScope(rbac.ScopeCallsWrite), h.InitiateCall)
		callsGroup.GET("/pending", rbac.RequireScope(rbac.ScopeCallsRead), h.PendingCalls)

		retryGroup := v1.Group("/retry")
		retryGroup.GET("/candidates", rbac.RequireScope(rbac.ScopeRetryRead), h.RetryCandidates)
		retryGroup.POST("/actions", rbac.RequireScope(rbac.ScopeRetryWrite), h.RetryAction)

		v1.POST("/orders", rbac.RequireScope(rbac.ScopeOrdersWrite), h.CreateOrder)
		v1.GET("/reports/confirmations", rbac.RequireScope(rbac.ScopeCallsRead), h.Confirmations)
	}
}

func use(g *gin.RouterGroup, mws ...gin.HandlerFunc) {
	for _, m := range mws {
		if m != nil {
			g.Use(m)
		}
	}
}
