package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/flicky/storefront-api/internal/dto"
	"github.com/flicky/storefront-api/internal/model"
	"github.com/flicky/storefront-api/internal/service"
)

const CartCookie = "cart"

type CartHandler struct {
	svc    *service.CartService
	ttl    time.Duration
	secure bool
}

func NewCartHandler(svc *service.CartService, ttl time.Duration, secureCookies bool) *CartHandler {
	return &CartHandler{svc: svc, ttl: ttl, secure: secureCookies}
}

func (h *CartHandler) GetCart(c *gin.Context) {
	items, err := h.svc.Items(c.Request.Context(), h.token(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (h *CartHandler) AddItem(c *gin.Context) {
	var req dto.AddCartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	token := h.token(c)
	if token == "" {
		token = uuid.NewString()
	}
	items, err := h.svc.AddItem(c.Request.Context(), token, req.ID, req.Quantity)
	if err != nil {
		respondError(c, err)
		return
	}
	h.respond(c, token, items)
}

func (h *CartHandler) UpdateItem(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		badRequest(c, "invalid id")
		return
	}
	var req dto.UpdateCartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "quantity is required")
		return
	}

	token := h.token(c)
	items, err := h.svc.UpdateQuantity(c.Request.Context(), token, id, *req.Quantity)
	if err != nil {
		respondError(c, err)
		return
	}
	h.respond(c, token, items)
}

func (h *CartHandler) RemoveItem(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		badRequest(c, "invalid id")
		return
	}

	token := h.token(c)
	items, err := h.svc.RemoveItem(c.Request.Context(), token, id)
	if err != nil {
		respondError(c, err)
		return
	}
	h.respond(c, token, items)
}

// token returns the cart session token from the cookie. Anything that is not a uuid is
// treated as no cart.
func (h *CartHandler) token(c *gin.Context) string {
	raw, err := c.Cookie(CartCookie)
	if err != nil {
		return ""
	}
	if _, err := uuid.Parse(raw); err != nil {
		return ""
	}
	return raw
}

// respond refreshes the cookie so it lives as long as the stored cart.
func (h *CartHandler) respond(c *gin.Context, token string, items []model.CartItem) {
	if token != "" {
		setCookie(c, CartCookie, token, int(h.ttl.Seconds()), h.secure)
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "items": items})
}

func (h *CartHandler) clearCookie(c *gin.Context) {
	setCookie(c, CartCookie, "", -1, h.secure)
}
