package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	domain "github.com/Zhima-Mochi/minishop-checkout/internal/domain/inventory"
)

type InventoryRepository struct {
	pool *pgxpool.Pool
}

func NewInventoryRepository(pool *pgxpool.Pool) *InventoryRepository {
	return &InventoryRepository{pool: pool}
}

func (r *InventoryRepository) Get(ctx context.Context, productID string) (*domain.Product, error) {
	var product domain.Product
	err := r.pool.QueryRow(ctx,
		`SELECT product_id, title, unit_price, image_url, stock_count, is_active, updated_at
		 FROM products
		 WHERE product_id = $1`,
		productID).
		Scan(&product.ProductID, &product.Title, &product.UnitPrice, &product.ImageURL,
			&product.StockCount, &product.IsActive, &product.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &product, nil
}

func (r *InventoryRepository) Save(ctx context.Context, product *domain.Product) error {
	if product == nil {
		return nil
	}
	_, err := r.pool.Exec(ctx,
		`INSERT INTO products (product_id, title, unit_price, image_url, stock_count, is_active, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (product_id) DO UPDATE SET
		   title = EXCLUDED.title,
		   unit_price = EXCLUDED.unit_price,
		   image_url = EXCLUDED.image_url,
		   stock_count = EXCLUDED.stock_count,
		   is_active = EXCLUDED.is_active,
		   updated_at = EXCLUDED.updated_at`,
		product.ProductID, product.Title, product.UnitPrice, product.ImageURL,
		product.StockCount, product.IsActive, product.UpdatedAt)
	return err
}

// TryDecrement relies on the conditional UPDATE (and the non-negative check
// constraint behind it) to keep stock from ever going below zero under
// concurrent confirmations.
func (r *InventoryRepository) TryDecrement(ctx context.Context, productID string, quantity int) (bool, error) {
	if quantity <= 0 {
		return false, domain.ErrInvalidQuantity
	}

	tag, err := r.pool.Exec(ctx,
		`UPDATE products
		 SET stock_count = stock_count - $2, updated_at = now()
		 WHERE product_id = $1 AND stock_count >= $2`,
		productID, quantity)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() == 1 {
		return true, nil
	}

	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM products WHERE product_id = $1)`, productID).Scan(&exists); err != nil {
		return false, err
	}
	if !exists {
		return false, domain.ErrNotFound
	}
	return false, nil
}

func (r *InventoryRepository) Increment(ctx context.Context, productID string, quantity int) error {
	if quantity <= 0 {
		return domain.ErrInvalidQuantity
	}

	tag, err := r.pool.Exec(ctx,
		`UPDATE products
		 SET stock_count = stock_count + $2, updated_at = now()
		 WHERE product_id = $1`,
		productID, quantity)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
