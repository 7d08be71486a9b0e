package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"architect/internal/logging"
	id "architect/internal/utils/id"
)

// HeaderLogID carries the request log id in both directions.
const HeaderLogID = "X-Log-ID"

const deviceCookieMaxAge = 400 * 24 * 60 * 60

// LogIDMiddleware tags every request with a log id, reusing the caller's when present.
func LogIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		logID := strings.TrimSpace(c.GetHeader(HeaderLogID))
		if logID == "" || len(logID) > 64 {
			logID = id.NewLogID()
		}
		c.Header(HeaderLogID, logID)
		c.Request = c.Request.WithContext(id.WithLogID(c.Request.Context(), logID))
		c.Next()
	}
}

// CookieConfig describes a cookie the server issues.
type CookieConfig struct {
	Name   string
	Secure bool
}

// DeviceMiddleware identifies the browser by a long-lived cookie, issuing one on first
// contact. The device id scopes everything the funnel keeps for anonymous visitors.
func DeviceMiddleware(cfg CookieConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		device, err := c.Cookie(cfg.Name)
		if err != nil || !validDeviceID(device) {
			device = id.NewDeviceID()
			c.SetSameSite(http.SameSiteLaxMode)
			c.SetCookie(cfg.Name, device, deviceCookieMaxAge, "/", "", cfg.Secure, true)
		}
		c.Request = c.Request.WithContext(id.WithDeviceID(c.Request.Context(), device))
		c.Next()
	}
}

// DeviceID returns the device bound by DeviceMiddleware.
func DeviceID(c *gin.Context) string {
	return id.DeviceIDFromContext(c.Request.Context())
}

func validDeviceID(value string) bool {
	if !strings.HasPrefix(value, "device-") || len(value) > 80 {
		return false
	}
	for _, r := range value {
		if !(r == '-' || r >= '0' && r <= '9' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z') {
			return false
		}
	}
	return true
}

// AccessLogMiddleware logs one line per request.
func AccessLogMiddleware(logger logging.Logger) gin.HandlerFunc {
	logger = logging.OrNop(logger)
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		logging.FromContext(c.Request.Context(), logger).Info(
			"route=%s method=%s status=%d latency_ms=%.2f bytes=%d",
			route,
			c.Request.Method,
			c.Writer.Status(),
			float64(time.Since(start).Microseconds())/1000.0,
			c.Writer.Size(),
		)
	}
}
