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

var ErrInsufficientStock = errors.New("insufficient stock")

const maxInventoryLogs = 100

type InventoryService struct {
	inventoryRepo repository.InventoryRepository
	cache         *cache.TagCache
	log           *slog.Logger
}

func NewInventoryService(inventoryRepo repository.InventoryRepository, tagCache *cache.TagCache, log *slog.Logger) *InventoryService {
	return &InventoryService{inventoryRepo: inventoryRepo, cache: tagCache, log: log}
}

// ApplyOrder decrements stock for every line of the order. It reports false when the order
// had already been applied, which makes redelivered messages harmless.
func (s *InventoryService) ApplyOrder(ctx context.Context, orderID uuid.UUID, adminID *uuid.UUID) (bool, error) {
	applied, err := s.inventoryRepo.ApplyOrder(ctx, orderID, adminID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, ErrOrderNotFound
		}
		return false, fmt.Errorf("apply order inventory: %w", err)
	}
	if applied {
		s.revalidate(ctx)
		s.log.Info("inventory applied", "order_id", orderID)
	}
	return applied, nil
}

// Adjust records a manual stock change and returns the resulting quantity.
func (s *InventoryService) Adjust(ctx context.Context, productID uuid.UUID, req dto.AdjustInventoryRequest, adminID uuid.UUID) (int, error) {
	reason := strings.TrimSpace(req.Reason)
	if req.Delta == 0 || reason == "" {
		return 0, fmt.Errorf("%w: delta must be non-zero and reason is required", ErrValidation)
	}

	qty, err := s.inventoryRepo.Adjust(ctx, &model.InventoryUpdateLog{
		ProductID: productID,
		VariantID: req.VariantID,
		Delta:     req.Delta,
		Reason:    reason,
		AdminID:   &adminID,
	})
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrInsufficientStock):
			return 0, ErrInsufficientStock
		case errors.Is(err, pgx.ErrNoRows):
			return 0, ErrProductNotFound
		}
		return 0, fmt.Errorf("adjust inventory: %w", err)
	}
	s.revalidate(ctx)
	return qty, nil
}

func (s *InventoryService) Logs(ctx context.Context, productID uuid.UUID, limit int) ([]dto.InventoryLogResponse, error) {
	if limit <= 0 || limit > maxInventoryLogs {
		limit = maxInventoryLogs
	}
	logs, err := s.inventoryRepo.ListLogs(ctx, productID, limit)
	if err != nil {
		return nil, fmt.Errorf("list inventory logs: %w", err)
	}
	resp := make([]dto.InventoryLogResponse, 0, len(logs))
	for _, l := range logs {
		resp = append(resp, dto.InventoryLogResponse{
			ID:        l.ID,
			ProductID: l.ProductID,
			VariantID: l.VariantID,
			Delta:     l.Delta,
			Reason:    l.Reason,
			OrderID:   l.OrderID,
			AdminID:   l.AdminID,
			CreatedAt: l.CreatedAt,
		})
	}
	return resp, nil
}

func (s *InventoryService) revalidate(ctx context.Context) {
	if _, err := s.cache.Revalidate(ctx, cache.TagProducts); err != nil {
		s.log.Warn("revalidate products", "error", err)
	}
}
