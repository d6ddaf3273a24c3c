package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/flicky/storefront-api/internal/model"
	"github.com/flicky/storefront-api/internal/repository"
)

var (
	ErrCartItemNotFound   = errors.New("item not found")
	ErrInvalidCartData    = errors.New("invalid cart data")
	ErrInvalidQuantity    = errors.New("invalid quantity")
	ErrProductUnavailable = errors.New("product unavailable")
)

type CartService struct {
	cartRepo    repository.CartRepository
	productRepo repository.ProductRepository
}

func NewCartService(cartRepo repository.CartRepository, productRepo repository.ProductRepository) *CartService {
	return &CartService{cartRepo: cartRepo, productRepo: productRepo}
}

// Items returns the cart bound to token. An unknown token is an empty cart.
func (s *CartService) Items(ctx context.Context, token string) ([]model.CartItem, error) {
	if token == "" {
		return []model.CartItem{}, nil
	}
	items, err := s.cartRepo.Load(ctx, token)
	if err != nil {
		if errors.Is(err, repository.ErrMalformedCart) {
			return nil, ErrInvalidCartData
		}
		return nil, fmt.Errorf("load cart: %w", err)
	}
	if items == nil {
		items = []model.CartItem{}
	}
	return items, nil
}

// AddItem snapshots the product or variant identified by id into the cart, merging with an
// existing line for the same id.
func (s *CartService) AddItem(ctx context.Context, token string, id uuid.UUID, quantity int) ([]model.CartItem, error) {
	if quantity < 1 {
		return nil, ErrInvalidQuantity
	}
	items, err := s.Items(ctx, token)
	if err != nil {
		return nil, err
	}

	for i := range items {
		if items[i].ID == id {
			items[i].Quantity += quantity
			return items, s.save(ctx, token, items)
		}
	}

	item, err := s.snapshot(ctx, id)
	if err != nil {
		return nil, err
	}
	item.Quantity = quantity
	items = append(items, *item)
	return items, s.save(ctx, token, items)
}

// UpdateQuantity overwrites the quantity of a line; zero removes it.
func (s *CartService) UpdateQuantity(ctx context.Context, token string, id uuid.UUID, quantity int) ([]model.CartItem, error) {
	if quantity < 0 {
		return nil, ErrInvalidQuantity
	}
	items, err := s.Items(ctx, token)
	if err != nil {
		return nil, err
	}

	idx := -1
	for i := range items {
		if items[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, ErrCartItemNotFound
	}

	if quantity == 0 {
		items = append(items[:idx], items[idx+1:]...)
	} else {
		items[idx].Quantity = quantity
	}
	return items, s.save(ctx, token, items)
}

// RemoveItem drops the line for id. Removing an absent id leaves the cart unchanged.
func (s *CartService) RemoveItem(ctx context.Context, token string, id uuid.UUID) ([]model.CartItem, error) {
	items, err := s.Items(ctx, token)
	if err != nil {
		return nil, err
	}
	kept := make([]model.CartItem, 0, len(items))
	for _, item := range items {
		if item.ID != id {
			kept = append(kept, item)
		}
	}
	return kept, s.save(ctx, token, kept)
}

func (s *CartService) Clear(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return s.cartRepo.Delete(ctx, token)
}

func (s *CartService) save(ctx context.Context, token string, items []model.CartItem) error {
	if token == "" {
		return nil
	}
	if err := s.cartRepo.Save(ctx, token, items); err != nil {
		return fmt.Errorf("save cart: %w", err)
	}
	return nil
}

func (s *CartService) snapshot(ctx context.Context, id uuid.UUID) (*model.CartItem, error) {
	product, err := s.productRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get product: %w", err)
	}
	if product != nil {
		if !product.Inventory.Purchasable() {
			return nil, ErrProductUnavailable
		}
		return &model.CartItem{
			ID: product.ID, ProductID: product.ID, Name: product.Name,
			Price: product.Price, Image: firstImage(product.Images),
		}, nil
	}

	variant, err := s.productRepo.GetVariant(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get variant: %w", err)
	}
	if variant == nil {
		return nil, ErrProductNotFound
	}
	parent, err := s.productRepo.GetByID(ctx, variant.ProductID)
	if err != nil {
		return nil, fmt.Errorf("get product: %w", err)
	}
	if parent == nil {
		return nil, ErrProductNotFound
	}
	if !parent.Inventory.Purchasable() || !variant.Inventory.Purchasable() {
		return nil, ErrProductUnavailable
	}
	return &model.CartItem{
		ID: variant.ID, ProductID: parent.ID, Name: parent.Name + " - " + variant.Name,
		Price: variant.EffectivePrice(parent.Price), Image: firstImage(parent.Images),
	}, nil
}

func firstImage(images []string) string {
	if len(images) == 0 {
		return ""
	}
	return images[0]
}
