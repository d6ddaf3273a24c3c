package dto

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/flicky/storefront-api/internal/model"
)

// --- Auth ---

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type AdminResponse struct {
	ID       uuid.UUID `json:"id"`
	Username string    `json:"username"`
	Role     string    `json:"role"`
}

// --- Product ---

type InventoryRequest struct {
	Quantity          int                   `json:"quantity" binding:"min=0"`
	LowStockThreshold int                   `json:"lowStockThreshold" binding:"min=0"`
	Status            model.InventoryStatus `json:"status" binding:"omitempty,oneof=in_stock low_stock out_of_stock discontinued"`
	Managed           *bool                 `json:"managed"`
}

type VariantRequest struct {
	ID         *uuid.UUID       `json:"id"`
	Name       string           `json:"name" binding:"required"`
	SKU        string           `json:"sku" binding:"required,sku"`
	Price      *decimal.Decimal `json:"price"`
	Inventory  InventoryRequest `json:"inventory"`
	Attributes map[string]any   `json:"attributes"`
}

type ProductRequest struct {
	Name           string           `json:"name" binding:"required"`
	Description    string           `json:"description"`
	Price          decimal.Decimal  `json:"price"`
	CompareAtPrice *decimal.Decimal `json:"compareAtPrice"`
	Images         []string         `json:"images"`
	Category       string           `json:"category"`
	Subcategory    string           `json:"subcategory"`
	Tags           []string         `json:"tags"`
	SKU            string           `json:"sku" binding:"required,sku"`
	Featured       bool             `json:"featured"`
	Inventory      InventoryRequest `json:"inventory"`
	Attributes     map[string]any   `json:"attributes"`
	Variants       []VariantRequest `json:"variants" binding:"dive"`
}

type ListProductsRequest struct {
	Page     int    `form:"page,default=1" binding:"min=1"`
	Limit    int    `form:"limit,default=12" binding:"min=1,max=100"`
	Category string `form:"category"`
	Search   string `form:"search"`
	Featured bool   `form:"featured"`
	ID       string `form:"id"`
}

type AdminListProductsRequest struct {
	Page   int                   `form:"page,default=1" binding:"min=1"`
	Limit  int                   `form:"limit,default=20" binding:"min=1,max=100"`
	Status model.InventoryStatus `form:"status" binding:"omitempty,oneof=in_stock low_stock out_of_stock discontinued"`
	Search string                `form:"search"`
}

type CheckSKURequest struct {
	SKU       string `form:"sku" binding:"required"`
	ProductID string `form:"productId"`
}

type InventoryResponse struct {
	Quantity          int                   `json:"quantity"`
	LowStockThreshold int                   `json:"lowStockThreshold"`
	Status            model.InventoryStatus `json:"status"`
	Managed           bool                  `json:"managed"`
}

type VariantResponse struct {
	ID         uuid.UUID         `json:"id"`
	Name       string            `json:"name"`
	SKU        string            `json:"sku"`
	Price      decimal.Decimal   `json:"price"`
	Inventory  InventoryResponse `json:"inventory"`
	Attributes map[string]any    `json:"attributes"`
}

type ProductResponse struct {
	ID             uuid.UUID         `json:"id"`
	Name           string            `json:"name"`
	Description    string            `json:"description"`
	Price          decimal.Decimal   `json:"price"`
	CompareAtPrice *decimal.Decimal  `json:"compareAtPrice,omitempty"`
	Images         []string          `json:"images"`
	Category       string            `json:"category"`
	Subcategory    string            `json:"subcategory,omitempty"`
	Tags           []string          `json:"tags"`
	SKU            string            `json:"sku"`
	Featured       bool              `json:"featured"`
	Inventory      InventoryResponse `json:"inventory"`
	Attributes     map[string]any    `json:"attributes"`
	Variants       []VariantResponse `json:"variants"`
	CreatedAt      time.Time         `json:"createdAt"`
	UpdatedAt      time.Time         `json:"updatedAt"`
}

type Pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

func NewPagination(page, limit, total int) Pagination {
	pages := 0
	if limit > 0 {
		pages = (total + limit - 1) / limit
	}
	return Pagination{Page: page, Limit: limit, Total: total, TotalPages: pages}
}

type ProductListResponse struct {
	Products   []ProductResponse `json:"products"`
	Pagination Pagination        `json:"pagination"`
}

// --- Inventory ---

type AdjustInventoryRequest struct {
	Delta     int        `json:"delta" binding:"required"`
	Reason    string     `json:"reason" binding:"required,max=200"`
	VariantID *uuid.UUID `json:"variantId"`
}

type InventoryLogResponse struct {
	ID        uuid.UUID  `json:"id"`
	ProductID uuid.UUID  `json:"productId"`
	VariantID *uuid.UUID `json:"variantId,omitempty"`
	Delta     int        `json:"delta"`
	Reason    string     `json:"reason"`
	OrderID   *uuid.UUID `json:"orderId,omitempty"`
	AdminID   *uuid.UUID `json:"adminId,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
}

// --- Cart ---

type AddCartItemRequest struct {
	ID       uuid.UUID `json:"id" binding:"required"`
	Quantity int       `json:"quantity" binding:"required,min=1"`
}

type UpdateCartItemRequest struct {
	Quantity *int `json:"quantity" binding:"required"`
}

// --- Order ---

type CheckoutRequest struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Address string `json:"address"`
}

type ListOrdersRequest struct {
	Page   int               `form:"page,default=1" binding:"min=1"`
	Limit  int               `form:"limit,default=20" binding:"min=1,max=100"`
	Status model.OrderStatus `form:"status" binding:"omitempty,oneof=pending processing completed cancelled refunded"`
}

type UpdateOrderStatusRequest struct {
	Status model.OrderStatus `json:"status" binding:"required,oneof=pending processing completed cancelled refunded"`
}

type CustomerInfoResponse struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Address string `json:"address"`
}

type OrderResponse struct {
	ID               uuid.UUID            `json:"id"`
	Reference        string               `json:"reference"`
	Status           model.OrderStatus    `json:"status"`
	Total            decimal.Decimal      `json:"total"`
	Customer         CustomerInfoResponse `json:"customerInfo"`
	InventoryUpdated bool                 `json:"inventoryUpdated"`
	Items            []OrderItemResponse  `json:"items"`
	CreatedAt        time.Time            `json:"createdAt"`
	UpdatedAt        time.Time            `json:"updatedAt"`
}

type OrderItemResponse struct {
	ID        uuid.UUID       `json:"id"`
	ProductID *uuid.UUID      `json:"productId,omitempty"`
	VariantID *uuid.UUID      `json:"variantId,omitempty"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
}

type OrderListResponse struct {
	Orders     []OrderResponse `json:"orders"`
	Pagination Pagination      `json:"pagination"`
}

// --- Misc ---

type RevalidateRequest struct {
	Tag string `json:"tag"`
}

type PromoBannerResponse struct {
	model.PromoBanner
	Active bool `json:"active"`
}
