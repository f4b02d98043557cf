package memory

import (
	"context"
	"sync"

	domain "github.com/Zhima-Mochi/minishop-checkout/internal/domain/inventory"
)

type InventoryRepository struct {
	mu       sync.RWMutex
	products map[string]*domain.Product
}

func NewInventoryRepository() *InventoryRepository {
	return &InventoryRepository{
		products: make(map[string]*domain.Product),
	}
}

func (r *InventoryRepository) Get(ctx context.Context, productID string) (*domain.Product, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	product, ok := r.products[productID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return cloneProduct(product), nil
}

func (r *InventoryRepository) Save(ctx context.Context, product *domain.Product) error {
	_ = ctx
	if product == nil {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.products[product.ProductID] = cloneProduct(product)
	return nil
}

// TryDecrement holds the write lock across the check and the subtraction so
// concurrent callers for the same product serialize here.
func (r *InventoryRepository) TryDecrement(ctx context.Context, productID string, quantity int) (bool, error) {
	_ = ctx
	if quantity <= 0 {
		return false, domain.ErrInvalidQuantity
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	product, ok := r.products[productID]
	if !ok {
		return false, domain.ErrNotFound
	}
	if product.StockCount < quantity {
		return false, nil
	}

	product.StockCount -= quantity
	return true, nil
}

func (r *InventoryRepository) Increment(ctx context.Context, productID string, quantity int) error {
	_ = ctx
	if quantity <= 0 {
		return domain.ErrInvalidQuantity
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	product, ok := r.products[productID]
	if !ok {
		return domain.ErrNotFound
	}
	product.StockCount += quantity
	return nil
}

func cloneProduct(product *domain.Product) *domain.Product {
	if product == nil {
		return nil
	}
	clone := *product
	return &clone
}
