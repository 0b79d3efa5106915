package http

import (
	nethttp "net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/marmos91/svnconnector/internal/logger"
	"github.com/marmos91/svnconnector/pkg/connector"
)

// observe records request counts, durations and the in-flight gauge for op.
func (a *HTTPAdapter) observe(op string) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		a.metrics.RecordRequestStart(op)
		defer a.metrics.RecordRequestEnd(op)

		c.Next()

		duration := time.Since(start)
		a.metrics.RecordRequest(op, duration, c.Writer.Status())
		logger.Debug("HTTP %s %s -> %d (%s, %v)",
			c.Request.Method, c.Request.URL.Path, c.Writer.Status(), op, duration)
	}
}

// throttle rejects requests above the configured rate with 429. When a limit
// is configured, X-RateLimit-Remaining reports the tokens left in the bucket.
func (a *HTTPAdapter) throttle() gin.HandlerFunc {
	return func(c *gin.Context) {
		allowed := a.limiter.Allow()
		if a.limiter != nil {
			c.Header("X-RateLimit-Remaining", strconv.Itoa(max(0, int(a.limiter.Tokens()))))
		}
		if !allowed {
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(nethttp.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}

// guard applies the traits declared for op.
//
// Secured operations run under the caller's Basic credentials, or under the
// configured credentials for anonymous callers when AllowAnonymous is set.
// The identity gate keeps requests bound to different credentials from
// overlapping. Operations that are not threadsafe run one at a time.
func (a *HTTPAdapter) guard(op string) gin.HandlerFunc {
	traits := connector.Operations[op]

	return func(c *gin.Context) {
		if traits.Secured {
			id, ok := a.identity(c)
			if !ok {
				c.Header("WWW-Authenticate", `Basic realm="svnconnector"`)
				c.AbortWithStatusJSON(nethttp.StatusUnauthorized, gin.H{"error": "authentication required"})
				return
			}
			a.gate.acquire(id, a.connector.Login)
			defer a.gate.release()
		}

		if !traits.Threadsafe {
			a.serial.Lock()
			defer a.serial.Unlock()
		}

		c.Next()
	}
}

// identity returns the credentials a request runs with.
func (a *HTTPAdapter) identity(c *gin.Context) (credentials, bool) {
	if username, password, ok := c.Request.BasicAuth(); ok {
		return credentials{username: username, password: password}, true
	}
	if a.config.AllowAnonymous {
		return credentials{username: a.config.Username, password: a.config.Password}, true
	}
	return credentials{}, false
}
