package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/carelink/shift-portal/internal/models"
	"github.com/carelink/shift-portal/internal/services"
	"github.com/carelink/shift-portal/pkg/jwt"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// IdentityContextKey is the key used to store the signed-in identity in Gin context
const IdentityContextKey = "identity"

// SessionValidator resolves the live identity behind a session id. It
// returns services.ErrUnauthenticated when the session is no longer live.
type SessionValidator interface {
	ValidateSession(ctx context.Context, sessionID uuid.UUID) (*models.Identity, error)
}

func abort(c *gin.Context, status int, errKey, message, code string) {
	c.AbortWithStatusJSON(status, gin.H{
		"error":   errKey,
		"message": message,
		"code":    code,
	})
}

// AuthMiddleware validates the bearer access token and checks that its
// session is still live. The identity stored in the context comes from the
// session row, so a rename or sign-out takes effect on the next request.
func AuthMiddleware(jwtService *jwt.Service, sessions SessionValidator, logger logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		log := logger.WithFields(logrus.Fields{
			"path": c.Request.URL.Path,
			"ip":   c.ClientIP(),
		})

		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			log.Debug("Auth failed: missing authorization header")
			abort(c, http.StatusUnauthorized, "unauthorized", "Authorization header is required", "MISSING_AUTH_HEADER")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" || strings.TrimSpace(parts[1]) == "" {
			log.Debug("Auth failed: invalid authorization format")
			abort(c, http.StatusUnauthorized, "unauthorized", "Invalid authorization header format. Expected: Bearer <token>", "INVALID_AUTH_FORMAT")
			return
		}
		tokenString := strings.TrimSpace(parts[1])

		claims, err := jwtService.ValidateAccessToken(tokenString)
		if err != nil {
			if jwtService.IsTokenExpired(tokenString) {
				log.Debug("Auth failed: token expired")
				abort(c, http.StatusUnauthorized, "token_expired", "Access token has expired. Please refresh your token.", "TOKEN_EXPIRED")
			} else {
				log.WithError(err).Info("Auth failed: invalid token")
				abort(c, http.StatusUnauthorized, "invalid_token", "Invalid access token", "INVALID_TOKEN")
			}
			return
		}

		identity, err := sessions.ValidateSession(c.Request.Context(), claims.SessionID)
		if err != nil || identity == nil {
			if err != nil && !errors.Is(err, services.ErrUnauthenticated) {
				log.WithError(err).Error("Session lookup failed")
				abort(c, http.StatusInternalServerError, "internal_error", "Could not verify session", "SESSION_LOOKUP_FAILED")
				return
			}
			abort(c, http.StatusUnauthorized, "session_ended", "Your session has ended. Please sign in again.", "SESSION_ENDED")
			return
		}

		c.Set(IdentityContextKey, *identity)
		c.Next()
	}
}

// RequireRole rejects identities whose role is not one of roles
func RequireRole(roles ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, exists := GetIdentity(c)
		if !exists {
			abort(c, http.StatusUnauthorized, "unauthorized", "Identity not found. Auth middleware may not be applied.", "MISSING_USER_CONTEXT")
			return
		}

		for _, role := range roles {
			if identity.Role == role {
				c.Next()
				return
			}
		}

		abort(c, http.StatusForbidden, "forbidden", "You don't have permission to access this resource", "INSUFFICIENT_PERMISSIONS")
	}
}

// GetIdentity retrieves the signed-in identity from Gin context
func GetIdentity(c *gin.Context) (models.Identity, bool) {
	value, exists := c.Get(IdentityContextKey)
	if !exists {
		return models.Identity{}, false
	}

	identity, ok := value.(models.Identity)
	if !ok {
		return models.Identity{}, false
	}

	return identity, true
}
