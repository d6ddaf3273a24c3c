package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/flicky/storefront-api/internal/model"
)

const AdminCookie = "admin_token"

type TokenVerifier interface {
	Verify(token string) (*model.AdminClaims, error)
}

// AdminAuth rejects requests without a valid admin session cookie.
func AdminAuth(verifier TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie(AdminCookie)
		if err != nil || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": "No token found"})
			return
		}

		claims, err := verifier.Verify(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": "Invalid token"})
			return
		}

		c.Set("adminID", claims.ID)
		c.Next()
	}
}

func GetAdminID(c *gin.Context) uuid.UUID {
	id, _ := c.Get("adminID")
	aid, _ := id.(uuid.UUID)
	return aid
}

