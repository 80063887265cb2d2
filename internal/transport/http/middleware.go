package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/akarpov/murmur-server/internal/identity"
	"github.com/akarpov/murmur-server/internal/store"
)

// ContextKeyUser is the gin context key holding the resolved identity.
const ContextKeyUser = "user"

// ErrorResponse represents an error response body.
type ErrorResponse struct {
	Error string `json:"error"`
}

// AuthMiddleware resolves the bearer credential on each request and
// rejects the request when no identity could be attached. This is the
// strict per-request path; the websocket handshake uses the same resolver
// leniently.
func AuthMiddleware(resolver *identity.Resolver, logger *zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		cred := identity.CredentialFromRequest(c.Request)
		user, err := resolver.Resolve(c.Request.Context(), cred)
		if err != nil {
			// A resolution failure that is not a credential problem is an
			// infrastructure fault and must not read as one.
			if !errors.Is(err, identity.ErrUnauthenticated) {
				logger.Error().Err(err).Msg("identity resolution failed")
				c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
				c.Abort()
				return
			}
			logger.Debug().Err(err).Msg("credential rejected")
		}
		if user == nil {
			c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthenticated"})
			c.Abort()
			return
		}

		c.Set(ContextKeyUser, user)
		c.Next()
	}
}

// currentUser returns the identity attached by AuthMiddleware.
func currentUser(c *gin.Context) (*store.User, bool) {
	v, exists := c.Get(ContextKeyUser)
	if !exists {
		return nil, false
	}
	user, ok := v.(*store.User)
	return user, ok
}

// LoggerMiddleware logs each HTTP request after it completes.
func LoggerMiddleware(logger *zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		logger.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Msg("http request")
	}
}
