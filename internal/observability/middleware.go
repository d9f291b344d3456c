package observability

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RequestLogger logs one line per request. WebSocket upgrades are logged
// when the handler hands the connection off.
func RequestLogger(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := responseStatus(c)
		event := logger.Debug()
		switch {
		case status >= 500:
			event = logger.Error()
		case status >= 400:
			event = logger.Warn()
		}

		msg := "http_request"
		if status == http.StatusSwitchingProtocols {
			msg = "ws_upgrade"
		}
		event.
			Str("method", c.Request.Method).
			Str("path", routePath(c, c.Request.URL.Path)).
			Int("status", status).
			Dur("duration", time.Since(start)).
			Str("client_ip", c.ClientIP()).
			Str("origin", c.GetHeader("Origin")).
			Msg(msg)
	}
}

func RequestMetricsMiddleware(service string) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		RecordHTTPRequest(service, c.Request.Method, routePath(c, "unmatched"), responseStatus(c), time.Since(start))
	}
}

// responseStatus reports 101 for a hijacked WebSocket upgrade, which gin
// records as 200.
func responseStatus(c *gin.Context) int {
	status := c.Writer.Status()
	if status == http.StatusOK && c.IsWebsocket() {
		return http.StatusSwitchingProtocols
	}
	return status
}

func routePath(c *gin.Context, fallback string) string {
	if path := c.FullPath(); path != "" {
		return path
	}
	return fallback
}
