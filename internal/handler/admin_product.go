package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/flicky/storefront-api/internal/dto"
	"github.com/flicky/storefront-api/internal/middleware"
	"github.com/flicky/storefront-api/internal/service"
)

type AdminProductHandler struct {
	productService   *service.ProductService
	inventoryService *service.InventoryService
}

func NewAdminProductHandler(productService *service.ProductService, inventoryService *service.InventoryService) *AdminProductHandler {
	return &AdminProductHandler{productService: productService, inventoryService: inventoryService}
}

func (h *AdminProductHandler) List(c *gin.Context) {
	var req dto.AdminListProductsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	resp, err := h.productService.AdminList(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *AdminProductHandler) Get(c *gin.Context) {
	id, ok := productID(c)
	if !ok {
		return
	}
	resp, err := h.productService.AdminGet(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"product": resp})
}

func (h *AdminProductHandler) Create(c *gin.Context) {
	var req dto.ProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	resp, err := h.productService.Create(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "product": resp})
}

func (h *AdminProductHandler) Update(c *gin.Context) {
	id, ok := productID(c)
	if !ok {
		return
	}
	var req dto.ProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	resp, err := h.productService.Update(c.Request.Context(), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "product": resp})
}

func (h *AdminProductHandler) Delete(c *gin.Context) {
	id, ok := productID(c)
	if !ok {
		return
	}
	if err := h.productService.Delete(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *AdminProductHandler) CheckSKU(c *gin.Context) {
	var req dto.CheckSKURequest
	if err := c.ShouldBindQuery(&req); err != nil {
		badRequest(c, "sku is required")
		return
	}

	var exclude *uuid.UUID
	if req.ProductID != "" {
		id, err := uuid.Parse(req.ProductID)
		if err != nil {
			badRequest(c, "invalid product ID")
			return
		}
		exclude = &id
	}

	unique, err := h.productService.IsSKUUnique(c.Request.Context(), req.SKU, exclude)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"isUnique": unique})
}

func (h *AdminProductHandler) AdjustInventory(c *gin.Context) {
	id, ok := productID(c)
	if !ok {
		return
	}
	var req dto.AdjustInventoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	qty, err := h.inventoryService.Adjust(c.Request.Context(), id, req, middleware.GetAdminID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "quantity": qty})
}

func (h *AdminProductHandler) InventoryLogs(c *gin.Context) {
	id, ok := productID(c)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	logs, err := h.inventoryService.Logs(c.Request.Context(), id, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"logs": logs})
}

func productID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		badRequest(c, "invalid product ID")
		return uuid.Nil, false
	}
	return id, true
}
