package middlewares

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/catalog_backend/utils"
)

// SessionMiddleware reads the signed token from the "token" header and puts
// its business and user into the request context. Requests without a token
// pass through; handlers reject them when they need a business.
func SessionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Request.Header.Get("token")
		if token == "" {
			c.Next()
			return
		}
		claim, err := utils.JwtValidate(token)
		if err != nil || claim.BusinessId == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}

		ctx := utils.SetBusinessIdInContext(c.Request.Context(), claim.BusinessId)
		ctx = utils.SetUserIdInContext(ctx, claim.ID)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// BearerTokenShim copies an Authorization bearer token into the "token"
// header when the client did not send one.
func BearerTokenShim() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetHeader("token") == "" {
			auth := c.GetHeader("Authorization")
			if len(auth) > 7 && (auth[:7] == "Bearer " || auth[:7] == "bearer ") {
				c.Request.Header.Set("token", auth[7:])
			}
		}
		c.Next()
	}
}
