package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/not-nullexception/team-classifier/internal/logger"
)

// ContextualLogger injects a request logger, tagged with trace and span ids when tracing
// is active, into the request context. The component is derived from the route.
func ContextualLogger(defaultComponent string) gin.HandlerFunc {
	return func(c *gin.Context) {
		component := defaultComponent
		if routePath := c.FullPath(); routePath != "" {
			component = strings.Trim(strings.ReplaceAll(routePath, "/", "-"), "-")
			if component == "" {
				component = "root"
			}
		}

		requestLogger := logger.GetLoggerWithContext(c.Request.Context(), component)
		c.Request = c.Request.WithContext(logger.ToContext(c.Request.Context(), requestLogger))

		c.Next()
	}
}
