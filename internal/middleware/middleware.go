// Package middleware holds the gin middleware shared by every route.
package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"productradar/internal/logger"
)

func isInfraPath(p string) bool {
	return p == "/healthz" || p == "/readyz" || p == "/metrics"
}

func isReadMethod(m string) bool {
	return m == http.MethodGet || m == http.MethodHead || m == http.MethodOptions
}

// RequireToken guards write requests under /api/ with a static bearer token.
// An empty token disables the check.
func RequireToken(token string) gin.HandlerFunc {
	token = strings.TrimSpace(token)
	return func(c *gin.Context) {
		p := c.Request.URL.Path
		if token == "" || isInfraPath(p) || !strings.HasPrefix(p, "/api/") || isReadMethod(c.Request.Method) {
			c.Next()
			return
		}
		auth := strings.TrimSpace(c.GetHeader("Authorization"))
		got, ok := strings.CutPrefix(auth, "Bearer ")
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"code": http.StatusUnauthorized, "message": "missing bearer token"})
			return
		}
		if subtle.ConstantTimeCompare([]byte(strings.TrimSpace(got)), []byte(token)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"code": http.StatusUnauthorized, "message": "invalid bearer token"})
			return
		}
		c.Next()
	}
}

// WriteAudit logs every non-read API request once it completes.
func WriteAudit(log *zap.Logger) gin.HandlerFunc {
	log = logger.OrNop(log)
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.Request.URL.Path
		method := strings.ToUpper(c.Request.Method)
		if !strings.HasPrefix(path, "/api/") || isReadMethod(method) {
			return
		}
		status := c.Writer.Status()
		fields := []zap.Field{
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", status),
			zap.Duration("duration", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		}
		switch {
		case status >= 500:
			log.Error("api write", fields...)
		case status >= 400:
			log.Warn("api write", fields...)
		default:
			log.Info("api write", fields...)
		}
	}
}

func CORS() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// RegisterDocs serves a short route overview at /docs.
func RegisterDocs(r *gin.Engine) {
	r.GET("/docs", func(c *gin.Context) {
		c.Header("Content-Type", "text/markdown; charset=utf-8")
		c.String(http.StatusOK, `# productradar

Collects product signals from social, search and marketplace sources, resolves
them to canonical products and scores each product's trend on a 0-100 scale.

## Auth

Write routes under /api/ require "Authorization: Bearer <server.api_token>" when
a token is configured. Reads and infra endpoints are public.

## Routes

- GET /healthz, GET /readyz, GET /metrics
- GET /swagger/index.html
- POST /api/v1/events
- GET /api/v1/signals, GET /api/v1/signals/sources
- GET /api/v1/products, GET /api/v1/products/:id
- GET /api/v1/products/:id/signals, GET /api/v1/products/:id/history
- POST /api/v1/cycles/scoring, POST /api/v1/cycles/collect[/:source]
- GET /api/v1/cycles/running, GET /api/v1/runs
- GET /api/v1/recommendations
- GET /api/v1/settings/switches, PUT /api/v1/settings/switches/:name
- GET /api/v1/stream (websocket)
`)
	})
}
