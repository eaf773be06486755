package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"mailclassifier/pkg/otel"
)

// ReadinessCheck reports whether a dependency is usable.
type ReadinessCheck func(ctx context.Context) error

type Router struct {
	Engine *gin.Engine
}

func NewRouter(emailHandler *EmailHandler, checks map[string]ReadinessCheck, logger *zap.Logger) *Router {
	r := gin.Default()
	r.Use(CORS())
	r.Use(TraceID())
	r.Use(otel.GinMiddleware())

	// Health endpoints
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.HEAD("/healthz", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	r.GET("/readyz", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 1*time.Second)
		defer cancel()

		for name, check := range checks {
			if err := check(ctx); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": name + "_not_ready", "error": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.POST("/classify-email", ClassificationRecovery(logger), emailHandler.ClassifyEmail)

	emails := r.Group("/emails")
	{
		emails.POST("", emailHandler.CreateEmail)
		emails.GET("", emailHandler.ListEmails)
		emails.GET("/stats", emailHandler.Stats)
		emails.PATCH("/:id", emailHandler.UpdateCategory)
		emails.DELETE("/:id", emailHandler.DeleteEmail)
	}

	return &Router{Engine: r}
}
