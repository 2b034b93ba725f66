package middlewares

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/hrcrm_backend/config"
	"github.com/mmdatafocus/hrcrm_backend/models"
	"github.com/mmdatafocus/hrcrm_backend/utils"
)

func unauthorized(c *gin.Context, msg string) {
	c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": msg})
	c.Abort()
}

// AuthMiddleware reads a bearer token, checks it is still a live session and
// puts the caller into the request context. Requests without a token pass through;
// RequireAuth rejects them on protected routes.
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.Request.Header.Get("Authorization")
		if auth == "" {
			c.Next()
			return
		}

		token := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
		claims, err := utils.ClaimsFromToken(token)
		if err != nil {
			unauthorized(c, "unauthorized")
			return
		}

		sessionUser, alive, err := models.SessionUserId(token)
		if err != nil {
			config.LogError(config.GetLogger(), "middlewares", "AuthMiddleware", "session lookup", claims.ID, err)
			unauthorized(c, "unauthorized")
			return
		}
		if !alive || (sessionUser != "" && sessionUser != strconv.Itoa(claims.ID)) {
			unauthorized(c, "session expired")
			return
		}

		ctx := c.Request.Context()
		ctx = utils.SetTokenInContext(ctx, token)
		ctx = utils.SetUserIdInContext(ctx, claims.ID)
		ctx = utils.SetUserEmailInContext(ctx, claims.Email)
		ctx = utils.SetUserTypeIdInContext(ctx, claims.UserTypeId)

		isAdmin, err := models.IsAdminUserType(ctx, claims.UserTypeId)
		if err != nil {
			config.LogError(config.GetLogger(), "middlewares", "AuthMiddleware", "user type lookup", claims.UserTypeId, err)
		}
		ctx = utils.SetIsAdminInContext(ctx, isAdmin)

		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// RequireAuth rejects requests AuthMiddleware did not authenticate.
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if id, ok := utils.GetUserIdFromContext(c.Request.Context()); !ok || id == 0 {
			unauthorized(c, "unauthorized")
			return
		}
		c.Next()
	}
}

// RequireAdmin only lets ADMIN_USER_TYPES through.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if isAdmin, _ := utils.GetIsAdminFromContext(c.Request.Context()); !isAdmin {
			c.JSON(http.StatusForbidden, gin.H{"success": false, "error": "admin only"})
			c.Abort()
			return
		}
		c.Next()
	}
}
