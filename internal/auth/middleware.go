package auth

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	authorizationHeader = "Authorization"
	bearerPrefix        = "Bearer "

	// ServiceKeyHeader carries the privileged service-role key.
	ServiceKeyHeader = "X-Service-Key"

	// RoleService is the role assigned to callers presenting the service key.
	RoleService = "service"
)

// Authenticate accepts either the privileged service key or a user access token
// and injects the identity into the request context. m may be nil when user
// tokens are not configured; serviceKey may be empty to disable the key.
// It does not perform RBAC checks; those belong to internal/rbac.
func Authenticate(m *Manager, serviceKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if key := c.GetHeader(ServiceKeyHeader); key != "" {
			if serviceKey == "" || subtle.ConstantTimeCompare([]byte(key), []byte(serviceKey)) != 1 {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid service key"})
				return
			}
			setIdentity(c, "", RoleService)
			c.Next()
			return
		}

		raw := strings.TrimSpace(c.GetHeader(authorizationHeader))
		if raw == "" || !strings.HasPrefix(raw, bearerPrefix) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		if m == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "auth not configured"})
			return
		}

		claims, err := m.Verify(strings.TrimPrefix(raw, bearerPrefix), TokenTypeAccess, time.Now())
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		setIdentity(c, claims.UserID, claims.Role)
		c.Next()
	}
}

func setIdentity(c *gin.Context, userID, role string) {
	c.Request = c.Request.WithContext(WithIdentity(c.Request.Context(), userID, role))

	// Also store on gin context for handler convenience.
	c.Set("user_id", userID)
	c.Set("role", role)
}
