package rbac

import (
	"net/http"

	"voice-auth-ivr/internal/auth"

	"github.com/gin-gonic/gin"
)

// RequireAnyRole allows access if the caller has any of the provided roles.
// Rules:
// - admin bypasses the check (use RequireExactRole where it must not)
// - unknown roles are denied
func RequireAnyRole(allowed ...string) gin.HandlerFunc {
	return requireRole(false, allowed...)
}

// RequireExactRole is RequireAnyRole without the admin bypass.
func RequireExactRole(allowed ...string) gin.HandlerFunc {
	return requireRole(true, allowed...)
}

func requireRole(strict bool, allowed ...string) gin.HandlerFunc {
	allowedSet := make(map[string]struct{}, len(allowed))
	for _, r := range allowed {
		allowedSet[r] = struct{}{}
	}

	return func(c *gin.Context) {
		role, err := auth.Role(c.Request.Context())
		if err != nil || role == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "role required"})
			return
		}
		if !IsKnownRole(role) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}

		if !strict && IsAdmin(role) {
			c.Next()
			return
		}

		if _, ok := allowedSet[role]; !ok {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}
		c.Next()
	}
}
