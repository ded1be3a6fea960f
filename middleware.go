package main

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"cashadvance/models"
	"cashadvance/pkg/apperr"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

const (
	ctxUserKey      = "user"
	ctxRequestIDKey = "request_id"
	requestIDHeader = "X-Request-ID"
)

// authMiddleware resolves the bearer token to an existing user and stores it
// in the context. Malformed, expired and orphaned tokens all get the same answer.
func (s *server) authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			writeError(c, s.log, apperr.Auth("authentication required"))
			return
		}
		if len(authHeader) < 8 || !strings.EqualFold(authHeader[:7], "Bearer ") {
			writeError(c, s.log, apperr.Auth("invalid or expired token"))
			return
		}
		user, err := s.auth.CurrentUser(c.Request.Context(), strings.TrimSpace(authHeader[7:]))
		if err != nil {
			writeError(c, s.log, err)
			return
		}
		c.Set(ctxUserKey, user)
		c.Next()
	}
}

// adminOnly hides admin routes from everyone else behind a 404.
func (s *server) adminOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := currentUser(c)
		if !ok || !user.IsAdmin {
			writeError(c, s.log, apperr.NotFound("not found"))
			return
		}
		c.Next()
	}
}

// currentUser fetches the user set by authMiddleware.
func currentUser(c *gin.Context) (*models.User, bool) {
	v, ok := c.Get(ctxUserKey)
	if !ok {
		return nil, false
	}
	u, ok := v.(*models.User)
	return u, ok && u != nil
}

func (s *server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		reqID := c.GetHeader(requestIDHeader)
		if reqID == "" || len(reqID) > 64 {
			reqID = uuid.NewString()
		}
		c.Set(ctxRequestIDKey, reqID)
		c.Header(requestIDHeader, reqID)

		c.Next()

		attrs := []any{
			"request_id", reqID,
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
			"client_ip", c.ClientIP(),
		}
		if u, ok := currentUser(c); ok {
			attrs = append(attrs, "user_id", u.ID)
		}
		switch {
		case c.Writer.Status() >= 500:
			s.log.ErrorContext(c.Request.Context(), "request", attrs...)
		case c.Writer.Status() >= 400:
			s.log.WarnContext(c.Request.Context(), "request", attrs...)
		default:
			s.log.InfoContext(c.Request.Context(), "request", attrs...)
		}
	}
}

func (s *server) metricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.metrics.ObserveHTTP(c.Request.Method, c.FullPath(), c.Writer.Status(), time.Since(start))
	}
}

func (s *server) recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, rec any) {
		s.log.ErrorContext(c.Request.Context(), "panic recovered", "panic", rec, "path", c.Request.URL.Path)
		c.AbortWithStatusJSON(http.StatusInternalServerError, errorBody("internal server error"))
	})
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	allowAll := false
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		if o == "*" {
			allowAll = true
		}
		allowed[strings.TrimRight(o, "/")] = true
	}
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin != "" && (allowAll || allowed[origin]) {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Vary", "Origin")
			c.Header("Access-Control-Allow-Methods", "GET, POST, PATCH, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization, "+requestIDHeader)
			c.Header("Access-Control-Expose-Headers", requestIDHeader)
			c.Header("Access-Control-Max-Age", "3600")
		}
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// ipRateLimiter keeps one token bucket per client IP.
type ipRateLimiter struct {
	mu        sync.Mutex
	limiters  map[string]*limiterEntry
	rate      rate.Limit
	burst     int
	lastSweep time.Time
}

type limiterEntry struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

func newIPRateLimiter(perSecond float64, burst int) *ipRateLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &ipRateLimiter{
		limiters:  make(map[string]*limiterEntry),
		rate:      rate.Limit(perSecond),
		burst:     burst,
		lastSweep: time.Now(),
	}
}

func (l *ipRateLimiter) allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := time.Now()
	if now.Sub(l.lastSweep) > time.Minute {
		for k, e := range l.limiters {
			if now.Sub(e.lastSeen) > 10*time.Minute {
				delete(l.limiters, k)
			}
		}
		l.lastSweep = now
	}
	e, ok := l.limiters[key]
	if !ok {
		e = &limiterEntry{lim: rate.NewLimiter(l.rate, l.burst)}
		l.limiters[key] = e
	}
	e.lastSeen = now
	return e.lim.Allow()
}

// rateLimit is applied to the unauthenticated auth endpoints. A nil limiter disables it.
func (s *server) rateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.limiter == nil {
			c.Next()
			return
		}
		key := c.ClientIP()
		if host, _, err := net.SplitHostPort(key); err == nil {
			key = host
		}
		if !s.limiter.allow(key) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, errorBody("too many requests"))
			return
		}
		c.Next()
	}
}
