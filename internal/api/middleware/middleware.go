// Package middleware provides the gin middleware chain of the public API.
package middleware

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/osu-guessr/guessr-stats/internal/metrics"
	"github.com/osu-guessr/guessr-stats/pkg/logger"
)

// Header names.
const (
	HeaderRequestID = "X-Request-ID"
	HeaderAPIKey    = "X-API-Key"
)

// RequestIDKey is the gin context key holding the request id.
const RequestIDKey = "request_id"

// KeyValidator checks API keys.
type KeyValidator interface {
	Validate(ctx context.Context, key string) (bool, error)
}

// RequestID propagates X-Request-ID, generating one when the client sent none.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(HeaderRequestID)
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		c.Set(RequestIDKey, id)
		c.Header(HeaderRequestID, id)
		c.Next()
	}
}

// Logger writes one structured line per request and records HTTP metrics.
func Logger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		duration := time.Since(start)

		metrics.RecordHTTPRequest(c.Request.Method, route, strconv.Itoa(status), duration.Seconds())

		event := log.Info()
		switch {
		case status >= http.StatusInternalServerError:
			event = log.Error()
		case status >= http.StatusBadRequest:
			event = log.Warn()
		}
		event.
			Str("request_id", c.GetString(RequestIDKey)).
			Str("method", c.Request.Method).
			Str("route", route).
			Str("path", c.Request.URL.Path).
			Int("status", status).
			Dur("duration", duration).
			Str("client_ip", c.ClientIP()).
			Msg("HTTP request")
	}
}

// Recovery turns panics into a 500 envelope.
func Recovery(log *logger.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		log.Error().
			Str("request_id", c.GetString(RequestIDKey)).
			Interface("panic", recovered).
			Str("path", c.Request.URL.Path).
			Msg("Recovered from panic")
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "Internal server error",
		})
	})
}

// APIKey rejects requests without a valid X-API-Key with 403.
func APIKey(validator KeyValidator, log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader(HeaderAPIKey)
		if key == "" {
			metrics.RecordAPIKeyRejection("missing")
			forbidden(c)
			return
		}

		ok, err := validator.Validate(c.Request.Context(), key)
		if err != nil {
			metrics.RecordAPIKeyRejection("error")
			log.Error().Err(err).Str("request_id", c.GetString(RequestIDKey)).Msg("Failed to validate API key")
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"success": false,
				"error":   "Internal server error",
			})
			return
		}
		if !ok {
			metrics.RecordAPIKeyRejection("invalid")
			forbidden(c)
			return
		}

		c.Next()
	}
}

func forbidden(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
		"success": false,
		"error":   "Invalid API key",
	})
}
