package middleware

import (
	"net/http"
	"strings"

	"github.com/emberforge/socialcore/identity"
	"github.com/gin-gonic/gin"
)

const AccountIDKey = "account_id"
const DisplayNameKey = "display_name"

// Auth resolves the Bearer credential through the identity provider and
// stores the account id and display name on the request context.
func Auth(provider identity.Provider) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		header := ctx.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
			return
		}
		credential := strings.TrimPrefix(header, "Bearer ")

		id, err := provider.ResolveAccount(ctx.Request.Context(), credential)
		if err != nil {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		ctx.Set(AccountIDKey, id.AccountID)
		ctx.Set(DisplayNameKey, id.DisplayName)
		ctx.Next()
	}
}

// GetAccountID retrieves the authenticated account ID from the Gin context.
func GetAccountID(c *gin.Context) string {
	if v, exists := c.Get(AccountIDKey); exists {
		return v.(string)
	}
	return ""
}

// GetDisplayName retrieves the authenticated display name from the Gin context.
func GetDisplayName(c *gin.Context) string {
	if v, exists := c.Get(DisplayNameKey); exists {
		return v.(string)
	}
	return ""
}
