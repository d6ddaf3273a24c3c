package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/flicky/storefront-api/internal/model"
)

type ProductRepository interface {
	Create(ctx context.Context, product *model.Product) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Product, error)
	GetVariant(ctx context.Context, id uuid.UUID) (*model.ProductVariant, error)
	List(ctx context.Context, filter model.ProductFilter) ([]model.Product, int, error)
	Update(ctx context.Context, product *model.Product) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindSKUOwners(ctx context.Context, sku string) ([]model.SKUOwner, error)
}

type pgProductRepo struct{ pool *pgxpool.Pool }

func NewProductRepository(pool *pgxpool.Pool) ProductRepository {
	return &pgProductRepo{pool: pool}
}

const productColumns = `id, name, description, price, compare_at_price, images, category, subcategory, tags, sku,
	featured, inventory_quantity, low_stock_threshold, inventory_status, inventory_managed, attributes,
	created_at, updated_at`

const variantColumns = `id, product_id, name, sku, price, inventory_quantity, low_stock_threshold,
	inventory_status, inventory_managed, attributes, created_at, updated_at`

// customerHidden lists statuses never shown in customer-facing listings.
var customerHidden = []string{string(model.InventoryDiscontinued), string(model.InventoryOutOfStock)}

func (r *pgProductRepo) Create(ctx context.Context, product *model.Product) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	product.ID = uuid.New()
	err = tx.QueryRow(ctx,
		`INSERT INTO products (id, name, description, price, compare_at_price, images, category, subcategory, tags, sku,
			featured, inventory_quantity, low_stock_threshold, inventory_status, inventory_managed, attributes,
			created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, NOW(), NOW())
		 RETURNING created_at, updated_at`,
		product.ID, product.Name, product.Description, product.Price, product.CompareAtPrice,
		nonNil(product.Images), product.Category, product.Subcategory, nonNil(product.Tags), product.SKU,
		product.Featured, product.Inventory.Quantity, product.Inventory.LowStockThreshold,
		product.Inventory.Status, product.Inventory.Managed, attributes(product.Attributes),
	).Scan(&product.CreatedAt, &product.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create product: %w", err)
	}

	for i := range product.Variants {
		product.Variants[i].ID = uuid.Nil
		if err := insertVariant(ctx, tx, product.ID, &product.Variants[i]); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (r *pgProductRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.Product, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id)
	p, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get product: %w", err)
	}

	variants, err := r.variantsFor(ctx, []uuid.UUID{p.ID})
	if err != nil {
		return nil, err
	}
	p.Variants = variants[p.ID]
	return p, nil
}

func (r *pgProductRepo) GetVariant(ctx context.Context, id uuid.UUID) (*model.ProductVariant, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+variantColumns+` FROM product_variants WHERE id = $1`, id)
	v, err := scanVariant(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get variant: %w", err)
	}
	return v, nil
}

func (r *pgProductRepo) List(ctx context.Context, filter model.ProductFilter) ([]model.Product, int, error) {
	where, args := productWhere(filter)

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM products`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count products: %w", err)
	}

	query := fmt.Sprintf(`SELECT %s FROM products%s ORDER BY featured DESC, created_at DESC LIMIT $%d OFFSET $%d`,
		productColumns, where, len(args)+1, len(args)+2)
	rows, err := r.pool.Query(ctx, query, append(args, filter.Limit, filter.Offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	var products []model.Product
	var ids []uuid.UUID
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, *p)
		ids = append(ids, p.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("list products: %w", err)
	}
	if len(ids) == 0 {
		return products, total, nil
	}

	variants, err := r.variantsFor(ctx, ids)
	if err != nil {
		return nil, 0, err
	}
	for i := range products {
		products[i].Variants = variants[products[i].ID]
	}
	return products, total, nil
}

func (r *pgProductRepo) Update(ctx context.Context, product *model.Product) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx,
		`UPDATE products SET name=$2, description=$3, price=$4, compare_at_price=$5, images=$6, category=$7,
			subcategory=$8, tags=$9, sku=$10, featured=$11, inventory_quantity=$12, low_stock_threshold=$13,
			inventory_status=$14, inventory_managed=$15, attributes=$16, updated_at=NOW()
		 WHERE id=$1 RETURNING updated_at`,
		product.ID, product.Name, product.Description, product.Price, product.CompareAtPrice,
		nonNil(product.Images), product.Category, product.Subcategory, nonNil(product.Tags), product.SKU,
		product.Featured, product.Inventory.Quantity, product.Inventory.LowStockThreshold,
		product.Inventory.Status, product.Inventory.Managed, attributes(product.Attributes),
	).Scan(&product.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return pgx.ErrNoRows
		}
		return fmt.Errorf("update product: %w", err)
	}

	keep := make([]uuid.UUID, 0, len(product.Variants))
	for i := range product.Variants {
		v := &product.Variants[i]
		if v.ID != uuid.Nil {
			ct, err := tx.Exec(ctx,
				`UPDATE product_variants SET name=$3, sku=$4, price=$5, inventory_quantity=$6, low_stock_threshold=$7,
					inventory_status=$8, inventory_managed=$9, attributes=$10, updated_at=NOW()
				 WHERE id=$1 AND product_id=$2`,
				v.ID, product.ID, v.Name, v.SKU, v.Price, v.Inventory.Quantity, v.Inventory.LowStockThreshold,
				v.Inventory.Status, v.Inventory.Managed, attributes(v.Attributes),
			)
			if err != nil {
				return fmt.Errorf("update variant: %w", err)
			}
			if ct.RowsAffected() == 1 {
				v.ProductID = product.ID
				keep = append(keep, v.ID)
				continue
			}
			v.ID = uuid.Nil
		}
		if err := insertVariant(ctx, tx, product.ID, v); err != nil {
			return err
		}
		keep = append(keep, v.ID)
	}

	if _, err := tx.Exec(ctx,
		`DELETE FROM product_variants WHERE product_id = $1 AND NOT (id = ANY($2))`, product.ID, keep,
	); err != nil {
		return fmt.Errorf("prune variants: %w", err)
	}
	return tx.Commit(ctx)
}

func (r *pgProductRepo) Delete(ctx context.Context, id uuid.UUID) error {
	ct, err := r.pool.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *pgProductRepo) FindSKUOwners(ctx context.Context, sku string) ([]model.SKUOwner, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, NULL::uuid FROM products WHERE sku = $1
		 UNION ALL
		 SELECT product_id, id FROM product_variants WHERE sku = $1`, sku,
	)
	if err != nil {
		return nil, fmt.Errorf("find sku owners: %w", err)
	}
	owners, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.SKUOwner, error) {
		var o model.SKUOwner
		err := row.Scan(&o.ProductID, &o.VariantID)
		return o, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan sku owner: %w", err)
	}
	return owners, nil
}

func (r *pgProductRepo) variantsFor(ctx context.Context, productIDs []uuid.UUID) (map[uuid.UUID][]model.ProductVariant, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+variantColumns+` FROM product_variants WHERE product_id = ANY($1) ORDER BY created_at, name`, productIDs,
	)
	if err != nil {
		return nil, fmt.Errorf("list variants: %w", err)
	}
	defer rows.Close()

	out := make(map[uuid.UUID][]model.ProductVariant, len(productIDs))
	for rows.Next() {
		v, err := scanVariant(rows)
		if err != nil {
			return nil, fmt.Errorf("scan variant: %w", err)
		}
		out[v.ProductID] = append(out[v.ProductID], *v)
	}
	return out, rows.Err()
}

func insertVariant(ctx context.Context, tx pgx.Tx, productID uuid.UUID, v *model.ProductVariant) error {
	v.ID = uuid.New()
	v.ProductID = productID
	err := tx.QueryRow(ctx,
		`INSERT INTO product_variants (id, product_id, name, sku, price, inventory_quantity, low_stock_threshold,
			inventory_status, inventory_managed, attributes, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW(), NOW()) RETURNING created_at, updated_at`,
		v.ID, v.ProductID, v.Name, v.SKU, v.Price, v.Inventory.Quantity, v.Inventory.LowStockThreshold,
		v.Inventory.Status, v.Inventory.Managed, attributes(v.Attributes),
	).Scan(&v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert variant: %w", err)
	}
	return nil
}

func scanProduct(row pgx.Row) (*model.Product, error) {
	p := &model.Product{}
	var compareAt decimal.NullDecimal
	err := row.Scan(
		&p.ID, &p.Name, &p.Description, &p.Price, &compareAt, &p.Images, &p.Category, &p.Subcategory,
		&p.Tags, &p.SKU, &p.Featured, &p.Inventory.Quantity, &p.Inventory.LowStockThreshold,
		&p.Inventory.Status, &p.Inventory.Managed, &p.Attributes, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if compareAt.Valid {
		p.CompareAtPrice = &compareAt.Decimal
	}
	return p, nil
}

func scanVariant(row pgx.Row) (*model.ProductVariant, error) {
	v := &model.ProductVariant{}
	var price decimal.NullDecimal
	err := row.Scan(
		&v.ID, &v.ProductID, &v.Name, &v.SKU, &price, &v.Inventory.Quantity, &v.Inventory.LowStockThreshold,
		&v.Inventory.Status, &v.Inventory.Managed, &v.Attributes, &v.CreatedAt, &v.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if price.Valid {
		v.Price = &price.Decimal
	}
	return v, nil
}

func productWhere(filter model.ProductFilter) (string, []any) {
	var conds []string
	var args []any
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if filter.Statuses == nil {
		add("inventory_status <> ALL($%d)", customerHidden)
	} else if len(filter.Statuses) > 0 {
		statuses := make([]string, len(filter.Statuses))
		for i, s := range filter.Statuses {
			statuses[i] = string(s)
		}
		add("inventory_status = ANY($%d)", statuses)
	}
	if filter.Category != "" {
		add("category = $%d", filter.Category)
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		add(`(name ILIKE '%%' || $%[1]d || '%%' OR description ILIKE '%%' || $%[1]d || '%%')`, likeEscaper.Replace(search))
	}
	if filter.FeaturedOnly {
		add("featured = $%d", true)
	}

	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func attributes(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}
