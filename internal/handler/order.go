package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/flicky/storefront-api/internal/dto"
	"github.com/flicky/storefront-api/internal/middleware"
	"github.com/flicky/storefront-api/internal/service"
)

type OrderHandler struct {
	orderService *service.OrderService
	cart         *CartHandler
}

func NewOrderHandler(orderService *service.OrderService, cart *CartHandler) *OrderHandler {
	return &OrderHandler{orderService: orderService, cart: cart}
}

func (h *OrderHandler) Checkout(c *gin.Context) {
	// An unreadable body is treated as no customer info; the service checks the cart first.
	var req dto.CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		req = dto.CheckoutRequest{}
	}

	order, err := h.orderService.Checkout(c.Request.Context(), h.cart.token(c), req)
	if err != nil {
		if errors.Is(err, service.ErrCheckoutFailed) {
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
			return
		}
		respondError(c, err)
		return
	}

	h.cart.clearCookie(c)
	c.JSON(http.StatusCreated, gin.H{"success": true, "orderId": order.ID, "reference": order.Reference})
}

func (h *OrderHandler) List(c *gin.Context) {
	var req dto.ListOrdersRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	resp, err := h.orderService.List(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *OrderHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		badRequest(c, "invalid order ID")
		return
	}
	order, err := h.orderService.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": service.ToOrderResponse(order)})
}

func (h *OrderHandler) UpdateStatus(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		badRequest(c, "invalid order ID")
		return
	}
	var req dto.UpdateOrderStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	order, err := h.orderService.UpdateStatus(c.Request.Context(), id, req.Status, middleware.GetAdminID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "order": service.ToOrderResponse(order)})
}
