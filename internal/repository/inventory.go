package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/flicky/storefront-api/internal/model"
)

var ErrInsufficientStock = errors.New("insufficient stock")

const ReasonOrderFulfilled = "order_fulfilled"

type InventoryRepository interface {
	// ApplyOrder decrements stock for every line item of the order and latches
	// inventory_updated. applied is false when the order was already applied.
	ApplyOrder(ctx context.Context, orderID uuid.UUID, adminID *uuid.UUID) (applied bool, err error)
	Adjust(ctx context.Context, entry *model.InventoryUpdateLog) (quantity int, err error)
	ListLogs(ctx context.Context, productID uuid.UUID, limit int) ([]model.InventoryUpdateLog, error)
}

type pgInventoryRepo struct{ pool *pgxpool.Pool }

func NewInventoryRepository(pool *pgxpool.Pool) InventoryRepository {
	return &pgInventoryRepo{pool: pool}
}

// statusCase re-derives inventory_status from the new quantity expression. Discontinued and
// unmanaged rows keep their status.
func statusCase(qty string) string {
	return fmt.Sprintf(`CASE
		WHEN NOT inventory_managed OR inventory_status = 'discontinued' THEN inventory_status
		WHEN %[1]s <= 0 THEN 'out_of_stock'
		WHEN %[1]s <= low_stock_threshold THEN 'low_stock'
		ELSE 'in_stock' END`, qty)
}

var (
	decrementProductSQL = `UPDATE products SET inventory_quantity = GREATEST(inventory_quantity - $2, 0),
		inventory_status = ` + statusCase("GREATEST(inventory_quantity - $2, 0)") + `, updated_at = NOW()
		WHERE id = $1 AND inventory_managed RETURNING id`
	decrementVariantSQL = `UPDATE product_variants SET inventory_quantity = GREATEST(inventory_quantity - $2, 0),
		inventory_status = ` + statusCase("GREATEST(inventory_quantity - $2, 0)") + `, updated_at = NOW()
		WHERE id = $1 AND inventory_managed RETURNING product_id`
	adjustProductSQL = `UPDATE products SET inventory_quantity = inventory_quantity + $2,
		inventory_status = ` + statusCase("inventory_quantity + $2") + `, updated_at = NOW()
		WHERE id = $1 AND inventory_quantity + $2 >= 0 RETURNING inventory_quantity`
	adjustVariantSQL = `UPDATE product_variants SET inventory_quantity = inventory_quantity + $3,
		inventory_status = ` + statusCase("inventory_quantity + $3") + `, updated_at = NOW()
		WHERE id = $1 AND product_id = $2 AND inventory_quantity + $3 >= 0 RETURNING inventory_quantity`
)

func (r *pgInventoryRepo) ApplyOrder(ctx context.Context, orderID uuid.UUID, adminID *uuid.UUID) (bool, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var updated bool
	err = tx.QueryRow(ctx, `SELECT inventory_updated FROM orders WHERE id = $1 FOR UPDATE`, orderID).Scan(&updated)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, pgx.ErrNoRows
		}
		return false, fmt.Errorf("lock order: %w", err)
	}
	if updated {
		return false, nil
	}

	rows, err := tx.Query(ctx, `SELECT product_id, variant_id, quantity FROM order_items WHERE order_id = $1`, orderID)
	if err != nil {
		return false, fmt.Errorf("get order items: %w", err)
	}
	items, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.OrderItem, error) {
		var item model.OrderItem
		err := row.Scan(&item.ProductID, &item.VariantID, &item.Quantity)
		return item, err
	})
	if err != nil {
		return false, fmt.Errorf("scan order item: %w", err)
	}

	for _, item := range items {
		var productID uuid.UUID
		switch {
		case item.VariantID != nil:
			err = tx.QueryRow(ctx, decrementVariantSQL, *item.VariantID, item.Quantity).Scan(&productID)
		case item.ProductID != nil:
			err = tx.QueryRow(ctx, decrementProductSQL, *item.ProductID, item.Quantity).Scan(&productID)
		default:
			continue
		}
		if errors.Is(err, pgx.ErrNoRows) {
			// product removed or inventory not managed
			continue
		}
		if err != nil {
			return false, fmt.Errorf("decrement stock: %w", err)
		}

		if err := insertLog(ctx, tx, &model.InventoryUpdateLog{
			ProductID: productID,
			VariantID: item.VariantID,
			Delta:     -item.Quantity,
			Reason:    ReasonOrderFulfilled,
			OrderID:   &orderID,
			AdminID:   adminID,
		}); err != nil {
			return false, err
		}
	}

	if _, err := tx.Exec(ctx,
		`UPDATE orders SET inventory_updated = TRUE, updated_at = NOW() WHERE id = $1`, orderID,
	); err != nil {
		return false, fmt.Errorf("latch inventory flag: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("commit tx: %w", err)
	}
	return true, nil
}

func (r *pgInventoryRepo) Adjust(ctx context.Context, entry *model.InventoryUpdateLog) (int, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var quantity int
	if entry.VariantID != nil {
		err = tx.QueryRow(ctx, adjustVariantSQL, *entry.VariantID, entry.ProductID, entry.Delta).Scan(&quantity)
	} else {
		err = tx.QueryRow(ctx, adjustProductSQL, entry.ProductID, entry.Delta).Scan(&quantity)
	}
	if errors.Is(err, pgx.ErrNoRows) {
		exists, existsErr := r.exists(ctx, tx, entry)
		if existsErr != nil {
			return 0, existsErr
		}
		if !exists {
			return 0, pgx.ErrNoRows
		}
		return 0, ErrInsufficientStock
	}
	if err != nil {
		return 0, fmt.Errorf("adjust stock: %w", err)
	}

	if err := insertLog(ctx, tx, entry); err != nil {
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit tx: %w", err)
	}
	return quantity, nil
}

func (r *pgInventoryRepo) ListLogs(ctx context.Context, productID uuid.UUID, limit int) ([]model.InventoryUpdateLog, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, product_id, variant_id, delta, reason, order_id, admin_id, created_at
		 FROM inventory_update_logs WHERE product_id = $1 ORDER BY created_at DESC LIMIT $2`,
		productID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list inventory logs: %w", err)
	}
	logs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.InventoryUpdateLog, error) {
		var l model.InventoryUpdateLog
		err := row.Scan(&l.ID, &l.ProductID, &l.VariantID, &l.Delta, &l.Reason, &l.OrderID, &l.AdminID, &l.CreatedAt)
		return l, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan inventory log: %w", err)
	}
	return logs, nil
}

func (r *pgInventoryRepo) exists(ctx context.Context, tx pgx.Tx, entry *model.InventoryUpdateLog) (bool, error) {
	var exists bool
	var err error
	if entry.VariantID != nil {
		err = tx.QueryRow(ctx,
			`SELECT EXISTS(SELECT 1 FROM product_variants WHERE id = $1 AND product_id = $2)`, *entry.VariantID, entry.ProductID,
		).Scan(&exists)
	} else {
		err = tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM products WHERE id = $1)`, entry.ProductID).Scan(&exists)
	}
	if err != nil {
		return false, fmt.Errorf("check stock owner: %w", err)
	}
	return exists, nil
}

func insertLog(ctx context.Context, tx pgx.Tx, entry *model.InventoryUpdateLog) error {
	entry.ID = uuid.New()
	err := tx.QueryRow(ctx,
		`INSERT INTO inventory_update_logs (id, product_id, variant_id, delta, reason, order_id, admin_id, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, NOW()) RETURNING created_at`,
		entry.ID, entry.ProductID, entry.VariantID, entry.Delta, entry.Reason, entry.OrderID, entry.AdminID,
	).Scan(&entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert inventory log: %w", err)
	}
	return nil
}
