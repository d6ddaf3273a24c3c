package handler

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/flicky/storefront-api/internal/dto"
	"github.com/flicky/storefront-api/internal/service"
)

type ProductHandler struct {
	productService *service.ProductService
	log            *slog.Logger
}

func NewProductHandler(productService *service.ProductService, log *slog.Logger) *ProductHandler {
	return &ProductHandler{productService: productService, log: log}
}

// List serves the customer catalog. With ?id it returns that single product instead.
// Backend failures degrade to an empty page.
func (h *ProductHandler) List(c *gin.Context) {
	var req dto.ListProductsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	if req.ID != "" {
		id, err := uuid.Parse(req.ID)
		if err != nil {
			badRequest(c, "invalid product ID")
			return
		}
		h.get(c, id)
		return
	}

	resp, err := h.productService.List(c.Request.Context(), req)
	if err != nil {
		h.log.Error("list products", "error", err)
		resp = &dto.ProductListResponse{
			Products:   []dto.ProductResponse{},
			Pagination: dto.NewPagination(req.Page, req.Limit, 0),
		}
	}
	c.JSON(http.StatusOK, resp)
}

func (h *ProductHandler) GetByID(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		badRequest(c, "invalid product ID")
		return
	}
	h.get(c, id)
}

func (h *ProductHandler) get(c *gin.Context, id uuid.UUID) {
	resp, err := h.productService.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"product": resp})
}
