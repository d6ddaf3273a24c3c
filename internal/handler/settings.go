package handler

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/flicky/storefront-api/internal/cache"
	"github.com/flicky/storefront-api/internal/dto"
	"github.com/flicky/storefront-api/internal/model"
	"github.com/flicky/storefront-api/internal/service"
)

type SettingsHandler struct {
	settings *service.SettingsService
	cache    *cache.TagCache
}

func NewSettingsHandler(settings *service.SettingsService, tagCache *cache.TagCache) *SettingsHandler {
	return &SettingsHandler{settings: settings, cache: tagCache}
}

func (h *SettingsHandler) PromoBanner(c *gin.Context) {
	banner, err := h.settings.PromoBanner(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"banner": banner})
}

func (h *SettingsHandler) UpdatePromoBanner(c *gin.Context) {
	var req model.PromoBanner
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	banner, err := h.settings.UpdatePromoBanner(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "banner": banner})
}

// Revalidate drops every cached response under the requested tag. An empty body targets
// the product catalog.
func (h *SettingsHandler) Revalidate(c *gin.Context) {
	var req dto.RevalidateRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		badRequest(c, err.Error())
		return
	}
	tag := strings.TrimSpace(req.Tag)
	if tag == "" {
		tag = cache.TagProducts
	}

	if _, err := h.cache.Revalidate(c.Request.Context(), tag); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"revalidated": true, "now": time.Now().UnixMilli(), "cache": tag})
}
