package api

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"mailclassifier/internal/classifier"
	"mailclassifier/pkg/logger"
	"mailclassifier/pkg/trace"
)

// AllowedHeaders are the request headers browsers may send cross-origin.
var AllowedHeaders = []string{"authorization", "x-client-info", "apikey", "content-type"}

// CORS answers pre-flight requests and allows any origin.
func CORS() gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:    AllowedHeaders,
		ExposeHeaders:   []string{trace.HeaderName()},
		MaxAge:          12 * time.Hour,
	})
}

// TraceID 从请求头读取 trace_id，没有则生成，并写回响应头
func TraceID() gin.HandlerFunc {
	return func(c *gin.Context) {
		traceID := c.GetHeader(trace.HeaderName())
		if traceID == "" {
			traceID = trace.GenerateTraceID()
		}
		c.Request = c.Request.WithContext(trace.WithContext(c.Request.Context(), traceID))
		c.Header(trace.HeaderName(), traceID)
		c.Next()
	}
}

const classificationErrorReason = "Error occurred during classification"

// classificationErrorBody is the safe default returned when classification cannot be served.
func classificationErrorBody(msg string) gin.H {
	return gin.H{
		"error":      msg,
		"category":   classifier.FallbackCategory,
		"confidence": classifier.FallbackConfidence,
		"reason":     classificationErrorReason,
	}
}

// ClassificationRecovery turns any panic below it into a 500 carrying the safe default verdict.
func ClassificationRecovery(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				logger.WithTrace(c.Request.Context(), log).Error("Panic during classification", zap.Any("panic", r))
				c.AbortWithStatusJSON(http.StatusInternalServerError, classificationErrorBody("internal error"))
			}
		}()
		c.Next()
	}
}
