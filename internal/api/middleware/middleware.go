package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/not-nullexception/team-classifier/internal/logger"
)

// Logger logs one line per request through the request's contextual logger
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		if raw := c.Request.URL.RawQuery; raw != "" {
			path = path + "?" + raw
		}

		c.Next()

		statusCode := c.Writer.Status()
		reqLogger := logger.FromContext(c.Request.Context()).With().
			Str("method", c.Request.Method).
			Str("path", path).
			Int("status", statusCode).
			Str("ip", c.ClientIP()).
			Dur("latency", time.Since(start)).
			Logger()

		switch errorMessage := c.Errors.ByType(gin.ErrorTypePrivate).String(); {
		case statusCode >= http.StatusInternalServerError:
			reqLogger.Error().Str("error", errorMessage).Msg("Server error")
		case statusCode >= http.StatusBadRequest:
			reqLogger.Warn().Str("error", errorMessage).Msg("Client error")
		default:
			reqLogger.Debug().Msg("Request processed")
		}
	}
}

// CORS allows browser uploads from any origin
func CORS() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With, traceparent")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
