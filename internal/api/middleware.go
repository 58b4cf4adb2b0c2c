package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/celerix-dev/intern-connect/pkg/schema"
)

const (
	// RequestIDHeader is the header key for request ID
	RequestIDHeader = "X-Request-ID"
	// SessionCookie carries the token for cookie-based clients
	SessionCookie = "session"

	ctxRequestID = "request_id"
	ctxAccount   = "account"
)

// RequestID echoes the client's request id, or assigns one.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Set(ctxRequestID, requestID)
		c.Header(RequestIDHeader, requestID)
		c.Next()
	}
}

// Logger logs one line per request
func Logger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("request_id", c.GetString(ctxRequestID)),
			zap.Int("status", c.Writer.Status()),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Duration("latency", time.Since(start)),
			zap.Int("body_size", c.Writer.Size()),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}

		status := c.Writer.Status()
		switch {
		case status >= 500:
			log.Error("Server error", fields...)
		case status >= 400:
			log.Warn("Client error", fields...)
		default:
			log.Info("Request completed", fields...)
		}
	}
}

// bearer extracts the token from the Authorization header or the session cookie.
func bearer(c *gin.Context) string {
	if h := c.GetHeader("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	if cookie, err := c.Cookie(SessionCookie); err == nil {
		return cookie
	}
	return ""
}

// RequireAuth rejects requests without a valid token for an approved account.
func (h *Handler) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := bearer(c)
		if raw == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
			return
		}

		claims, err := h.Tokens.Verify(raw)
		if err != nil {
			msg := "Invalid or expired session"
			if errors.Is(err, ErrTokenExpired) {
				msg = "Session expired, please log in again"
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": msg})
			return
		}

		acct, err := h.Dir.Get(claims.Subject)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Account no longer exists"})
			return
		}
		if acct.Status != schema.StatusApproved {
			c.AbortWithStatusJSON(http.StatusForbidden, statusBody(acct.Status))
			return
		}

		c.Set(ctxAccount, acct)
		c.Next()
	}
}

func account(c *gin.Context) *Account {
	return c.MustGet(ctxAccount).(*Account)
}

// statusBody is the 403 body for accounts that may not sign in yet.
func statusBody(status string) gin.H {
	switch status {
	case schema.StatusPending:
		return gin.H{"error": "Your account is pending admin approval", "status": status}
	case schema.StatusRejected:
		return gin.H{"error": "Your registration has been rejected", "status": status}
	}
	return gin.H{"error": "Account is not active", "status": status}
}
