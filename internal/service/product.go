package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/flicky/storefront-api/internal/cache"
	"github.com/flicky/storefront-api/internal/dto"
	"github.com/flicky/storefront-api/internal/model"
	"github.com/flicky/storefront-api/internal/repository"
)

var (
	ErrProductNotFound = errors.New("product not found")
	ErrDuplicateSKU    = errors.New("sku already in use")
)

type ProductService struct {
	productRepo repository.ProductRepository
	cache       *cache.TagCache
	log         *slog.Logger
}

func NewProductService(productRepo repository.ProductRepository, tagCache *cache.TagCache, log *slog.Logger) *ProductService {
	return &ProductService{productRepo: productRepo, cache: tagCache, log: log}
}

// List returns the customer-facing catalog page. Discontinued and out-of-stock products
// are never included.
func (s *ProductService) List(ctx context.Context, req dto.ListProductsRequest) (*dto.ProductListResponse, error) {
	cacheKey := fmt.Sprintf("list:p=%d:l=%d:c=%s:f=%t:s=%s",
		req.Page, req.Limit, req.Category, req.Featured, strings.ToLower(strings.TrimSpace(req.Search)))

	var cached dto.ProductListResponse
	if s.cache.Get(ctx, cache.TagProducts, cacheKey, &cached) {
		return &cached, nil
	}

	products, total, err := s.productRepo.List(ctx, model.ProductFilter{
		Category:     req.Category,
		Search:       req.Search,
		FeaturedOnly: req.Featured,
		Limit:        req.Limit,
		Offset:       (req.Page - 1) * req.Limit,
	})
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}

	resp := &dto.ProductListResponse{
		Products:   toProductResponses(products),
		Pagination: dto.NewPagination(req.Page, req.Limit, total),
	}
	_ = s.cache.Set(ctx, cache.TagProducts, cacheKey, resp)
	return resp, nil
}

// Get returns a single customer-visible product. Discontinued products are reported as not
// found; out-of-stock products stay visible so their page can render as sold out.
func (s *ProductService) Get(ctx context.Context, id uuid.UUID) (*dto.ProductResponse, error) {
	cacheKey := "product:" + id.String()

	var cached dto.ProductResponse
	if s.cache.Get(ctx, cache.TagProducts, cacheKey, &cached) {
		return &cached, nil
	}

	product, err := s.productRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get product: %w", err)
	}
	if product == nil || product.Inventory.Status == model.InventoryDiscontinued {
		return nil, ErrProductNotFound
	}

	resp := toProductResponse(product)
	_ = s.cache.Set(ctx, cache.TagProducts, cacheKey, resp)
	return &resp, nil
}

func (s *ProductService) AdminList(ctx context.Context, req dto.AdminListProductsRequest) (*dto.ProductListResponse, error) {
	statuses := []model.InventoryStatus{}
	if req.Status != "" {
		statuses = append(statuses, req.Status)
	}
	products, total, err := s.productRepo.List(ctx, model.ProductFilter{
		Search:   req.Search,
		Statuses: statuses,
		Limit:    req.Limit,
		Offset:   (req.Page - 1) * req.Limit,
	})
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return &dto.ProductListResponse{
		Products:   toProductResponses(products),
		Pagination: dto.NewPagination(req.Page, req.Limit, total),
	}, nil
}

func (s *ProductService) AdminGet(ctx context.Context, id uuid.UUID) (*dto.ProductResponse, error) {
	product, err := s.productRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get product: %w", err)
	}
	if product == nil {
		return nil, ErrProductNotFound
	}
	resp := toProductResponse(product)
	return &resp, nil
}

func (s *ProductService) Create(ctx context.Context, req dto.ProductRequest) (*dto.ProductResponse, error) {
	product, err := s.fromRequest(ctx, nil, req)
	if err != nil {
		return nil, err
	}
	if err := s.productRepo.Create(ctx, product); err != nil {
		return nil, fmt.Errorf("create product: %w", err)
	}
	s.revalidate(ctx)
	resp := toProductResponse(product)
	return &resp, nil
}

func (s *ProductService) Update(ctx context.Context, id uuid.UUID, req dto.ProductRequest) (*dto.ProductResponse, error) {
	existing, err := s.productRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get product: %w", err)
	}
	if existing == nil {
		return nil, ErrProductNotFound
	}

	product, err := s.fromRequest(ctx, existing, req)
	if err != nil {
		return nil, err
	}
	if err := s.productRepo.Update(ctx, product); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("update product: %w", err)
	}
	s.revalidate(ctx)
	resp := toProductResponse(product)
	return &resp, nil
}

func (s *ProductService) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.productRepo.Delete(ctx, id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrProductNotFound
		}
		return fmt.Errorf("delete product: %w", err)
	}
	s.revalidate(ctx)
	return nil
}

// IsSKUUnique reports whether no product or variant outside excludeProductID holds sku.
// Lifecycle state is ignored: discontinued products keep their sku reserved.
func (s *ProductService) IsSKUUnique(ctx context.Context, sku string, excludeProductID *uuid.UUID) (bool, error) {
	owners, err := s.productRepo.FindSKUOwners(ctx, strings.TrimSpace(sku))
	if err != nil {
		return false, fmt.Errorf("check sku: %w", err)
	}
	for _, owner := range owners {
		if excludeProductID == nil || owner.ProductID != *excludeProductID {
			return false, nil
		}
	}
	return true, nil
}

func (s *ProductService) revalidate(ctx context.Context) {
	if _, err := s.cache.Revalidate(ctx, cache.TagProducts); err != nil {
		s.log.Warn("revalidate products", "error", err)
	}
}

// fromRequest validates req and builds the product to persist. existing is nil on create.
func (s *ProductService) fromRequest(ctx context.Context, existing *model.Product, req dto.ProductRequest) (*model.Product, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrValidation)
	}
	if req.Price.IsNegative() {
		return nil, fmt.Errorf("%w: price must not be negative", ErrValidation)
	}
	if req.CompareAtPrice != nil && req.CompareAtPrice.IsNegative() {
		return nil, fmt.Errorf("%w: compareAtPrice must not be negative", ErrValidation)
	}

	var excludeID *uuid.UUID
	product := &model.Product{}
	if existing != nil {
		product.ID = existing.ID
		product.CreatedAt = existing.CreatedAt
		excludeID = &existing.ID
	}

	skus := map[string]bool{}
	checkSKU := func(sku string) error {
		if !model.ValidSKU(sku) {
			return fmt.Errorf("%w: invalid sku %q", ErrValidation, sku)
		}
		if skus[sku] {
			return fmt.Errorf("%w: %s", ErrDuplicateSKU, sku)
		}
		skus[sku] = true
		unique, err := s.IsSKUUnique(ctx, sku, excludeID)
		if err != nil {
			return err
		}
		if !unique {
			return fmt.Errorf("%w: %s", ErrDuplicateSKU, sku)
		}
		return nil
	}

	sku := strings.TrimSpace(req.SKU)
	if err := checkSKU(sku); err != nil {
		return nil, err
	}

	product.Name = name
	product.Description = strings.TrimSpace(req.Description)
	product.Price = req.Price.Round(2)
	if req.CompareAtPrice != nil {
		cmp := req.CompareAtPrice.Round(2)
		product.CompareAtPrice = &cmp
	}
	product.Images = cleanList(req.Images, false)
	product.Category = strings.TrimSpace(req.Category)
	product.Subcategory = strings.TrimSpace(req.Subcategory)
	product.Tags = cleanList(req.Tags, true)
	product.SKU = sku
	product.Featured = req.Featured
	product.Inventory = toInventory(req.Inventory)
	product.Attributes = req.Attributes

	for _, vr := range req.Variants {
		vsku := strings.TrimSpace(vr.SKU)
		if err := checkSKU(vsku); err != nil {
			return nil, err
		}
		if strings.TrimSpace(vr.Name) == "" {
			return nil, fmt.Errorf("%w: variant name is required", ErrValidation)
		}
		if vr.Price != nil && vr.Price.IsNegative() {
			return nil, fmt.Errorf("%w: variant price must not be negative", ErrValidation)
		}
		v := model.ProductVariant{
			Name:       strings.TrimSpace(vr.Name),
			SKU:        vsku,
			Inventory:  toInventory(vr.Inventory),
			Attributes: vr.Attributes,
		}
		if vr.Price != nil {
			p := vr.Price.Round(2)
			v.Price = &p
		}
		if vr.ID != nil && existing != nil {
			v.ID = *vr.ID
		}
		product.Variants = append(product.Variants, v)
	}
	return product, nil
}

func toInventory(req dto.InventoryRequest) model.Inventory {
	inv := model.Inventory{
		Quantity:          req.Quantity,
		LowStockThreshold: req.LowStockThreshold,
		Status:            req.Status,
		Managed:           true,
	}
	if req.Managed != nil {
		inv.Managed = *req.Managed
	}
	inv.DeriveStatus()
	return inv
}

// cleanList trims entries and drops blanks. With dedupe, repeated entries are dropped
// case-insensitively, keeping the first spelling.
func cleanList(in []string, dedupe bool) []string {
	out := make([]string, 0, len(in))
	seen := map[string]bool{}
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if dedupe {
			key := strings.ToLower(v)
			if seen[key] {
				continue
			}
			seen[key] = true
		}
		out = append(out, v)
	}
	return out
}

func toProductResponses(products []model.Product) []dto.ProductResponse {
	items := make([]dto.ProductResponse, 0, len(products))
	for i := range products {
		items = append(items, toProductResponse(&products[i]))
	}
	return items
}

func toProductResponse(p *model.Product) dto.ProductResponse {
	variants := make([]dto.VariantResponse, 0, len(p.Variants))
	for _, v := range p.Variants {
		variants = append(variants, dto.VariantResponse{
			ID:         v.ID,
			Name:       v.Name,
			SKU:        v.SKU,
			Price:      v.EffectivePrice(p.Price),
			Inventory:  toInventoryResponse(v.Inventory),
			Attributes: nonNilAttributes(v.Attributes),
		})
	}
	return dto.ProductResponse{
		ID:             p.ID,
		Name:           p.Name,
		Description:    p.Description,
		Price:          p.Price,
		CompareAtPrice: p.CompareAtPrice,
		Images:         nonNilStrings(p.Images),
		Category:       p.Category,
		Subcategory:    p.Subcategory,
		Tags:           nonNilStrings(p.Tags),
		SKU:            p.SKU,
		Featured:       p.Featured,
		Inventory:      toInventoryResponse(p.Inventory),
		Attributes:     nonNilAttributes(p.Attributes),
		Variants:       variants,
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
	}
}

func toInventoryResponse(inv model.Inventory) dto.InventoryResponse {
	return dto.InventoryResponse{
		Quantity:          inv.Quantity,
		LowStockThreshold: inv.LowStockThreshold,
		Status:            inv.Status,
		Managed:           inv.Managed,
	}
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func nonNilAttributes(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}
