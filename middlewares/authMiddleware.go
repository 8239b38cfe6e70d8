package middlewares

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/venturelab/accelerator_backend/models"
	"github.com/venturelab/accelerator_backend/utils"
)

// AuthMiddleware validates the bearer token when one is present and loads the
// account identity into the request context. Requests without a token pass
// through; RequireRole is what actually gates protected routes.
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		correlationId := strings.TrimSpace(c.GetHeader("X-Correlation-Id"))
		if correlationId == "" {
			correlationId = uuid.NewString()
		}
		ctx = utils.SetCorrelationIdInContext(ctx, correlationId)
		c.Header("X-Correlation-Id", correlationId)

		auth := c.GetHeader("Authorization")
		if auth == "" {
			c.Request = c.Request.WithContext(ctx)
			c.Next()
			return
		}

		const bearer = "Bearer "
		if !strings.HasPrefix(auth, bearer) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}

		token := auth[len(bearer):]
		claims, err := models.ParseAccountToken(token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}
		if models.SessionRevoked(token) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}

		account, err := models.GetAccount(ctx, claims.AccountId)
		if err != nil || account.IsActive == nil || !*account.IsActive {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}

		ctx = utils.SetTokenInContext(ctx, token)
		ctx = utils.SetAccountIdInContext(ctx, account.ID)
		ctx = utils.SetAccountNameInContext(ctx, account.Name)
		ctx = utils.SetRoleInContext(ctx, string(account.Role))
		ctx = utils.SetIsAdminInContext(ctx, account.Role == models.RoleAdmin)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// RequireRole rejects requests whose account is missing or whose role is not
// in the allow list. ADMIN passes everywhere.
func RequireRole(roles ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		role, ok := utils.GetRoleFromContext(ctx)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			c.Abort()
			return
		}
		if role == string(models.RoleAdmin) {
			c.Next()
			return
		}
		for _, allowed := range roles {
			if role == string(allowed) {
				c.Next()
				return
			}
		}
		c.JSON(http.StatusForbidden, gin.H{"error": "insufficient role"})
		c.Abort()
	}
}
