package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const claimsKey = "claims"

// Middleware enforces bearer JWT tokens signed with HS256 and stashes the
// claims on the request context.
func Middleware(signingKey, issuer string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authz := c.GetHeader("Authorization")
		if authz == "" || !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		tokenStr := strings.TrimSpace(authz[len("bearer "):])
		claims, err := Parse(tokenStr, signingKey, issuer)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Set(claimsKey, claims)
		c.Next()
	}
}

// RequireRole aborts with 403 unless the caller holds one of the roles.
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := FromContext(c)
		for _, role := range roles {
			if claims.Role == role {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "insufficient role"})
	}
}

// FromContext returns the verified claims stashed by Middleware. Zero
// claims when the route skipped authentication.
func FromContext(c *gin.Context) Claims {
	if v, ok := c.Get(claimsKey); ok {
		if claims, ok := v.(Claims); ok {
			return claims
		}
	}
	return Claims{}
}

// CanReadStudent reports whether the caller may read a student's stats:
// faculty and admin read anyone, a student only themselves.
func CanReadStudent(claims Claims, studentID string) bool {
	switch claims.Role {
	case RoleFaculty, RoleAdmin:
		return true
	case RoleStudent:
		return claims.Subject == studentID
	default:
		return false
	}
}
