package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/agroadvisor/community/utils"
)

const (
	// ContextUserIDKey is the key used to store the authenticated user ID in Gin context.
	ContextUserIDKey = "user_id"
	// ContextUsernameKey stores the username inside Gin context.
	ContextUsernameKey = "username"
	// ContextTokenKey stores the raw bearer token so logout can revoke it.
	ContextTokenKey = "token"
	// ContextClaimsKey stores the parsed claims.
	ContextClaimsKey = "claims"
)

// AuthRequired rejects the request with 401 unless it carries a valid, unrevoked bearer token.
func AuthRequired() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		authHeader := ctx.GetHeader("Authorization")
		if authHeader == "" {
			utils.AbortWithError(ctx, http.StatusUnauthorized, 40101, "Authorization header missing")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			utils.AbortWithError(ctx, http.StatusUnauthorized, 40102, "Invalid authorization header format")
			return
		}

		token := strings.TrimSpace(parts[1])
		if token == "" {
			utils.AbortWithError(ctx, http.StatusUnauthorized, 40103, "Empty bearer token")
			return
		}

		claims, err := utils.ParseToken(token)
		if err != nil {
			utils.AbortWithError(ctx, http.StatusUnauthorized, 40105, "Invalid or expired token")
			return
		}

		if utils.IsTokenBlacklisted(ctx.Request.Context(), token) {
			utils.AbortWithError(ctx, http.StatusUnauthorized, 40104, "Token revoked")
			return
		}

		ctx.Set(ContextUserIDKey, claims.UserID)
		ctx.Set(ContextUsernameKey, claims.Username)
		ctx.Set(ContextTokenKey, token)
		ctx.Set(ContextClaimsKey, claims)
		ctx.Next()
	}
}

// CurrentUserID returns the authenticated user ID set by AuthRequired.
func CurrentUserID(ctx *gin.Context) (uint, bool) {
	v, ok := ctx.Get(ContextUserIDKey)
	if !ok {
		return 0, false
	}
	id, ok := v.(uint)
	return id, ok && id != 0
}
