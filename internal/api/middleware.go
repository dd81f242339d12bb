package api

import (
	"net/http"
	"strings"
	"time"

	"travelbook/internal/logging"
	"travelbook/internal/metrics"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	ctxRequestID = "request_id"
	ctxUserID    = "user_id"
	ctxSessionID = "session_id"
)

func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(ctxRequestID, id)
		c.Request = c.Request.WithContext(logging.WithRequestID(c.Request.Context(), id))
		c.Header("X-Request-ID", id)
		c.Next()
	}
}

func requestLogger(logger *zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		metrics.IncHTTP(route, status)

		event := logger.Info()
		if status >= 500 {
			event = logger.Error()
		} else if status >= 400 {
			event = logger.Warn()
		}
		if len(c.Errors) > 0 {
			event = event.Str("error", c.Errors.Last().Error())
		}
		event.
			Str("request_id", c.GetString(ctxRequestID)).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Str("route", route).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Str("client_ip", c.ClientIP()).
			Str("user_id", c.GetString(ctxUserID)).
			Msg("http request")
	}
}

// bearerAuth resolves the Authorization header to a principal and stores its
// user and session IDs on the context.
func bearerAuth(auth Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		scheme, token, ok := strings.Cut(header, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
			abortWithError(c, http.StatusUnauthorized, "unauthorized", "missing bearer token")
			return
		}
		p, err := auth.Authenticate(c.Request.Context(), strings.TrimSpace(token))
		if err != nil {
			respondError(c, err)
			c.Abort()
			return
		}
		c.Set(ctxUserID, p.UserID)
		c.Set(ctxSessionID, p.SessionID)
		c.Next()
	}
}
