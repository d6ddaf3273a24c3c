package model

import (
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type InventoryStatus string

const (
	InventoryInStock      InventoryStatus = "in_stock"
	InventoryLowStock     InventoryStatus = "low_stock"
	InventoryOutOfStock   InventoryStatus = "out_of_stock"
	InventoryDiscontinued InventoryStatus = "discontinued"
)

func (s InventoryStatus) Valid() bool {
	switch s {
	case InventoryInStock, InventoryLowStock, InventoryOutOfStock, InventoryDiscontinued:
		return true
	}
	return false
}

type Inventory struct {
	Quantity          int
	LowStockThreshold int
	Status            InventoryStatus
	Managed           bool
}

// DeriveStatus recomputes Status from Quantity for managed inventory.
// Discontinued is never left implicitly.
func (inv *Inventory) DeriveStatus() {
	if !inv.Managed || inv.Status == InventoryDiscontinued {
		if inv.Status == "" {
			inv.Status = InventoryInStock
		}
		return
	}
	switch {
	case inv.Quantity <= 0:
		inv.Status = InventoryOutOfStock
	case inv.Quantity <= inv.LowStockThreshold:
		inv.Status = InventoryLowStock
	default:
		inv.Status = InventoryInStock
	}
}

// Purchasable reports whether a customer may add the item to a cart.
func (inv Inventory) Purchasable() bool {
	return inv.Status != InventoryDiscontinued && inv.Status != InventoryOutOfStock
}

type Product struct {
	ID             uuid.UUID
	Name           string
	Description    string
	Price          decimal.Decimal
	CompareAtPrice *decimal.Decimal
	Images         []string
	Category       string
	Subcategory    string
	Tags           []string
	SKU            string
	Featured       bool
	Inventory      Inventory
	Attributes     map[string]any
	Variants       []ProductVariant
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type ProductVariant struct {
	ID         uuid.UUID
	ProductID  uuid.UUID
	Name       string
	SKU        string
	Price      *decimal.Decimal
	Inventory  Inventory
	Attributes map[string]any
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// EffectivePrice falls back to the parent product price when the variant has no override.
func (v ProductVariant) EffectivePrice(parent decimal.Decimal) decimal.Decimal {
	if v.Price != nil {
		return *v.Price
	}
	return parent
}

// ProductFilter narrows catalog queries. A nil Statuses slice means "customer visible".
type ProductFilter struct {
	Category     string
	Search       string
	FeaturedOnly bool
	Statuses     []InventoryStatus
	Limit        int
	Offset       int
}

// SKUOwner identifies the product or variant holding a sku.
type SKUOwner struct {
	ProductID uuid.UUID
	VariantID *uuid.UUID
}

type CartItem struct {
	ID        uuid.UUID       `json:"id"`
	ProductID uuid.UUID       `json:"productId"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Image     string          `json:"image,omitempty"`
	Quantity  int             `json:"quantity"`
}

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusCompleted  OrderStatus = "completed"
	OrderStatusCancelled  OrderStatus = "cancelled"
	OrderStatusRefunded   OrderStatus = "refunded"
)

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:    {OrderStatusProcessing, OrderStatusCancelled},
	OrderStatusProcessing: {OrderStatusCompleted, OrderStatusCancelled, OrderStatusRefunded},
	OrderStatusCompleted:  {OrderStatusRefunded},
}

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusProcessing, OrderStatusCompleted, OrderStatusCancelled, OrderStatusRefunded:
		return true
	}
	return false
}

func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Fulfils reports whether entering this status consumes stock.
func (s OrderStatus) Fulfils() bool {
	return s == OrderStatusProcessing || s == OrderStatusCompleted
}

type CustomerInfo struct {
	Name    string
	Email   string
	Address string
}

type Order struct {
	ID               uuid.UUID
	Reference        string
	Status           OrderStatus
	Total            decimal.Decimal
	Customer         CustomerInfo
	InventoryUpdated bool
	Items            []OrderItem
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

type OrderItem struct {
	ID        uuid.UUID
	OrderID   uuid.UUID
	ProductID *uuid.UUID
	VariantID *uuid.UUID
	Name      string
	Price     decimal.Decimal
	Quantity  int
}

func (i OrderItem) LineTotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

type Admin struct {
	ID           uuid.UUID
	Username     string
	PasswordHash string
	Role         string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type AdminClaims struct {
	ID       uuid.UUID
	Username string
	Role     string
}

type InventoryUpdateLog struct {
	ID        uuid.UUID
	ProductID uuid.UUID
	VariantID *uuid.UUID
	Delta     int
	Reason    string
	OrderID   *uuid.UUID
	AdminID   *uuid.UUID
	CreatedAt time.Time
}

type PromoBanner struct {
	Enabled         bool       `json:"enabled"`
	Text            string     `json:"text"`
	BackgroundColor string     `json:"backgroundColor"`
	TextColor       string     `json:"textColor"`
	Link            string     `json:"link,omitempty"`
	StartsAt        *time.Time `json:"startsAt,omitempty"`
	EndsAt          *time.Time `json:"endsAt,omitempty"`
}

// ActiveAt reports whether the banner should be rendered at t.
func (b PromoBanner) ActiveAt(t time.Time) bool {
	if !b.Enabled {
		return false
	}
	if b.StartsAt != nil && t.Before(*b.StartsAt) {
		return false
	}
	if b.EndsAt != nil && !t.Before(*b.EndsAt) {
		return false
	}
	return true
}

type InventoryMessage struct {
	OrderID uuid.UUID  `json:"order_id"`
	AdminID *uuid.UUID `json:"admin_id,omitempty"`
}

var skuPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]{1,63}$`)

// ValidSKU reports whether s is an acceptable stock-keeping unit code.
func ValidSKU(s string) bool {
	return skuPattern.MatchString(s)
}
