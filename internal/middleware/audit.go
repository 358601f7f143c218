package middleware

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/huangang/secwatch/internal/services"
)

// rateLimitAuditWindow bounds how often a single client's 429s reach system_logs.
const rateLimitAuditWindow = time.Minute

// AuditRejected records requests that end in 401, 403 or 429 to system_logs,
// so repeated probing of the dashboard API is visible to operators. Only the
// first 429 per client IP within rateLimitAuditWindow is written.
func AuditRejected() gin.HandlerFunc {
	throttle := newAuditThrottle(rateLimitAuditWindow)
	return func(c *gin.Context) {
		c.Next()

		status := c.Writer.Status()
		action, ok := rejectionAction(status)
		if !ok {
			return
		}
		if status == http.StatusTooManyRequests && !throttle.allow(c.ClientIP(), time.Now()) {
			return
		}

		var uid *uint
		if id := GetUserID(c); id > 0 {
			uid = &id
		}

		services.LogWarning(auditModule(c.FullPath()), action, formatAuditMessage(c.Request.Method, c.Request.URL.Path, status), services.LogMeta{
			RequestID: GetRequestID(c),
			UserID:    uid,
			IP:        c.ClientIP(),
			UserAgent: c.Request.UserAgent(),
			Extra: map[string]interface{}{
				"method": c.Request.Method,
				"path":   c.Request.URL.Path,
				"status": status,
			},
		})
	}
}

func rejectionAction(status int) (string, bool) {
	switch status {
	case http.StatusUnauthorized:
		return "unauthorized", true
	case http.StatusForbidden:
		return "forbidden", true
	case http.StatusTooManyRequests:
		return "rate_limited", true
	}
	return "", false
}

// auditModule maps "/api/dashboard/stats" to "dashboard".
func auditModule(fullPath string) string {
	path := strings.TrimPrefix(fullPath, "/api/")
	module, _, _ := strings.Cut(path, "/")
	if module == "" {
		return "unknown"
	}
	return module
}

func formatAuditMessage(method, path string, status int) string {
	var b strings.Builder
	b.WriteString("[Audit] ")
	b.WriteString(method)
	b.WriteString(" ")
	b.WriteString(path)
	b.WriteString(" rejected: ")
	b.WriteString(http.StatusText(status))
	return b.String()
}

// auditThrottle remembers when each key was last written.
type auditThrottle struct {
	mu     sync.Mutex
	window time.Duration
	last   map[string]time.Time
}

func newAuditThrottle(window time.Duration) *auditThrottle {
	return &auditThrottle{window: window, last: make(map[string]time.Time)}
}

func (t *auditThrottle) allow(key string, now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if seen, ok := t.last[key]; ok && now.Sub(seen) < t.window {
		return false
	}
	t.last[key] = now

	// drop expired keys once the map grows, so one-off clients do not pile up
	if len(t.last) > 1024 {
		for k, seen := range t.last {
			if now.Sub(seen) >= t.window {
				delete(t.last, k)
			}
		}
	}
	return true
}
