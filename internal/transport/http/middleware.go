package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/rentwire/rentwire-server/internal/auth"
	"github.com/rentwire/rentwire-server/internal/core"
	"github.com/rentwire/rentwire-server/internal/store"
)

// ContextKeyIdentity is the gin context key the authenticated identity is
// stored under for the remainder of the request or connection.
const ContextKeyIdentity = "identity"

// ErrorResponse represents an error response body.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// AuthMiddleware validates the bearer credential on every inbound request
// or connection attempt and rejects it before any downstream handler runs.
// Websocket clients may pass the token as a query parameter since browsers
// cannot set headers on upgrade requests.
func AuthMiddleware(authService *auth.Service, logger *zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, tokenErr := bearerToken(c)
		if tokenErr != nil {
			logger.Debug().Err(tokenErr).Msg("credential rejected")
			c.JSON(http.StatusUnauthorized, ErrorResponse{Error: tokenErr.Error(), Code: authErrorCode(tokenErr)})
			c.Abort()
			return
		}

		claims, err := authService.VerifyToken(token)
		if err != nil {
			logger.Debug().Err(err).Msg("credential rejected")
			c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "invalid token", Code: authErrorCode(err)})
			c.Abort()
			return
		}

		// Role and room come only from the verified claims.
		c.Set(ContextKeyIdentity, core.Identity{
			UserID: claims.UserID,
			Email:  claims.Email,
			Role:   claims.Role,
			RoomID: claims.RoomID,
		})

		c.Next()
	}
}

// RequireRole gates an operation behind an explicit role allow-list.
func RequireRole(roles ...store.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := identityFrom(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized", Code: core.ErrCodeUnauthorized})
			c.Abort()
			return
		}
		for _, role := range roles {
			if identity.Role == role {
				c.Next()
				return
			}
		}
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "insufficient role", Code: core.ErrCodeForbidden})
		c.Abort()
	}
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

func bearerToken(c *gin.Context) (string, error) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		if token := c.Query("token"); token != "" {
			return token, nil
		}
		return "", auth.ErrTokenMissing
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", auth.ErrTokenMalformed
	}
	return parts[1], nil
}

func authErrorCode(err error) string {
	switch {
	case errors.Is(err, auth.ErrTokenMissing):
		return "token_missing"
	case errors.Is(err, auth.ErrTokenExpired):
		return "token_expired"
	case errors.Is(err, auth.ErrTokenSignature):
		return "token_signature_invalid"
	default:
		return "token_malformed"
	}
}

func identityFrom(c *gin.Context) (core.Identity, bool) {
	value, exists := c.Get(ContextKeyIdentity)
	if !exists {
		return core.Identity{}, false
	}
	identity, ok := value.(core.Identity)
	return identity, ok
}
