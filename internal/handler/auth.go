package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/flicky/storefront-api/internal/dto"
	"github.com/flicky/storefront-api/internal/middleware"
	"github.com/flicky/storefront-api/internal/service"
)

type AuthHandler struct {
	auth   *service.AuthService
	secure bool
}

func NewAuthHandler(auth *service.AuthService, secureCookies bool) *AuthHandler {
	return &AuthHandler{auth: auth, secure: secureCookies}
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Username and password are required")
		return
	}

	admin, token, err := h.auth.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "Invalid credentials"})
			return
		}
		respondError(c, err)
		return
	}

	setCookie(c, middleware.AdminCookie, token, int(h.auth.Expiry().Seconds()), h.secure)
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"user":    dto.AdminResponse{ID: admin.ID, Username: admin.Username, Role: admin.Role},
	})
}

func (h *AuthHandler) Logout(c *gin.Context) {
	setCookie(c, middleware.AdminCookie, "", -1, h.secure)
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Logged out successfully"})
}

// Me reports the admin bound to the session cookie.
func (h *AuthHandler) Me(c *gin.Context) {
	token, _ := c.Cookie(middleware.AdminCookie)
	admin, err := h.auth.Session(c.Request.Context(), token)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNoToken):
			c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "No token found"})
		case errors.Is(err, service.ErrInvalidToken):
			c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "Invalid token"})
		default:
			respondError(c, err)
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"user":    dto.AdminResponse{ID: admin.ID, Username: admin.Username, Role: admin.Role},
	})
}

func setCookie(c *gin.Context, name, value string, maxAge int, secure bool) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(name, value, maxAge, "/", "", secure, true)
}
