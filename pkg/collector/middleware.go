package collector

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// loggingMiddleware logs one line per request through the diagnostics logger
func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		s.log.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}

// recoveryMiddleware turns panics into a 500 with the usual error body
func (s *Server) recoveryMiddleware() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		s.log.Error("panic recovered", zap.Any("panic", recovered), zap.Stack("stack"))
		abortWithError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "An internal server error occurred", nil)
	})
}

func (s *Server) metricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		if s.metrics == nil {
			return
		}
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())
		s.metrics.RequestsTotal.WithLabelValues(route, c.Request.Method, status).Inc()
		s.metrics.RequestDurationSec.WithLabelValues(route, c.Request.Method, status).Observe(time.Since(start).Seconds())
	}
}

// rateLimitMiddleware limits requests per client IP. Health checks and
// metrics scrapes are never limited.
func (s *Server) rateLimitMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.limiter == nil || c.Request.URL.Path == "/health" || c.Request.URL.Path == "/metrics" {
			c.Next()
			return
		}

		if !s.limiter.Allow(c.ClientIP()) {
			if s.metrics != nil {
				s.metrics.RateLimitDropped.Inc()
			}
			c.Header("Retry-After", "60")
			abortWithError(c, http.StatusTooManyRequests, "RATE_LIMIT_EXCEEDED", "Rate limit exceeded", "Too many requests from this IP address")
			return
		}

		c.Next()
	}
}

// bodyLimitMiddleware caps request bodies at the configured size
func (s *Server) bodyLimitMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > s.config.Server.MaxBodyBytes {
			abortWithError(c, http.StatusRequestEntityTooLarge, "REQUEST_TOO_LARGE", "Request body too large", nil)
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.config.Server.MaxBodyBytes)
		c.Next()
	}
}

func abortWithError(c *gin.Context, status int, code, message string, details interface{}) {
	body := gin.H{
		"code":    code,
		"message": message,
	}
	if details != nil {
		body["details"] = details
	}
	c.AbortWithStatusJSON(status, gin.H{"error": body})
}
