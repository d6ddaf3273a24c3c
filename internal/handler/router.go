package handler

import (
	"log/slog"

	"github.com/gin-gonic/gin"

	"github.com/flicky/storefront-api/internal/middleware"
)

type Handlers struct {
	Auth         *AuthHandler
	Cart         *CartHandler
	Product      *ProductHandler
	AdminProduct *AdminProductHandler
	Order        *OrderHandler
	Settings     *SettingsHandler
	Health       *HealthHandler
}

// NewRouter wires every route. loginLimit may be nil to disable login rate limiting.
func NewRouter(log *slog.Logger, verifier middleware.TokenVerifier, loginLimit gin.HandlerFunc, h Handlers) (*gin.Engine, error) {
	if err := RegisterValidators(); err != nil {
		return nil, err
	}

	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestLogger(log))

	if h.Health != nil {
		router.GET("/healthz", h.Health.Healthz)
		router.GET("/readyz", h.Health.Readyz)
	}

	login := []gin.HandlerFunc{h.Auth.Login}
	if loginLimit != nil {
		login = append([]gin.HandlerFunc{loginLimit}, login...)
	}
	router.POST("/auth", login...)
	router.DELETE("/auth", h.Auth.Logout)
	router.GET("/auth", h.Auth.Me)

	router.GET("/products", h.Product.List)
	router.GET("/products/:id", h.Product.GetByID)

	router.GET("/cart", h.Cart.GetCart)
	router.POST("/cart", h.Cart.AddItem)
	router.PATCH("/cart/:id", h.Cart.UpdateItem)
	router.DELETE("/cart/:id", h.Cart.RemoveItem)

	router.POST("/checkout", h.Order.Checkout)
	router.GET("/settings/promo-banner", h.Settings.PromoBanner)

	admin := router.Group("", middleware.AdminAuth(verifier))
	{
		admin.POST("/revalidate", h.Settings.Revalidate)
		admin.PUT("/admin/settings/promo-banner", h.Settings.UpdatePromoBanner)

		orders := admin.Group("/admin/orders")
		orders.GET("", h.Order.List)
		orders.GET("/:id", h.Order.Get)
		orders.PATCH("/:id/status", h.Order.UpdateStatus)

		products := admin.Group("/admin/products")
		products.GET("", h.AdminProduct.List)
		products.POST("", h.AdminProduct.Create)
		products.GET("/check-sku", h.AdminProduct.CheckSKU)
		products.GET("/:id", h.AdminProduct.Get)
		products.PUT("/:id", h.AdminProduct.Update)
		products.DELETE("/:id", h.AdminProduct.Delete)
		products.POST("/:id/inventory", h.AdminProduct.AdjustInventory)
		products.GET("/:id/inventory", h.AdminProduct.InventoryLogs)
	}

	return router, nil
}
