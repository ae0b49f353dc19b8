package rbac

import (
	"net/http"
	"slices"

	"edu-crm/internal/auth"

	"github.com/gin-gonic/gin"
)

// RequireAnyRole allows access if the caller has any of the provided roles.
// admin bypasses all checks.
func RequireAnyRole(allowed ...string) gin.HandlerFunc {
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
		if IsAdmin(role) {
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

// CanAccessProspect reports whether the identity may see records of a prospect.
// Admins see everything; salespeople only what the session granted.
func CanAccessProspect(id auth.Identity, prospectID string) bool {
	if IsAdmin(id.Role) {
		return true
	}
	if prospectID == "" {
		return false
	}
	return slices.Contains(id.ProspectAccess, prospectID)
}

// CanAccessCall reports whether the identity may see a call owned by
// ownerUserID about prospectID. A salesperson sees their own calls and calls
// about prospects granted to them; a call with neither owner nor prospect
// recorded is visible to admins only.
func CanAccessCall(id auth.Identity, ownerUserID, prospectID string) bool {
	if IsAdmin(id.Role) {
		return true
	}
	if ownerUserID != "" && ownerUserID == id.UserID {
		return true
	}
	return CanAccessProspect(id, prospectID)
}
