package inventory

import (
	"errors"
	"time"
)

var (
	ErrNotFound          = errors.New("inventory: product not found")
	ErrUnavailable       = errors.New("inventory: product is not orderable")
	ErrInvalidQuantity   = errors.New("inventory: quantity must be greater than zero")
	ErrInsufficientStock = errors.New("inventory: insufficient stock")
)

// Product is one inventory record. It doubles as the snapshot source for
// order line items; catalog management itself lives outside this service.
type Product struct {
	ProductID  string
	Title      string
	UnitPrice  int64
	ImageURL   string
	StockCount int
	IsActive   bool
	UpdatedAt  time.Time
}

func NewProduct(productID, title string, unitPrice int64, stock int) (*Product, error) {
	if stock < 0 {
		return nil, ErrInvalidQuantity
	}
	if unitPrice < 0 {
		return nil, errors.New("inventory: unit price must be zero or greater")
	}
	return &Product{
		ProductID:  productID,
		Title:      title,
		UnitPrice:  unitPrice,
		StockCount: stock,
		IsActive:   true,
		UpdatedAt:  time.Now().UTC(),
	}, nil
}

// Orderable reports whether the product can be placed on a new order for the
// given quantity. This is the read-only check used at order creation; the
// actual decrement is deferred to payment confirmation.
func (p *Product) Orderable(quantity int) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	if !p.IsActive {
		return ErrUnavailable
	}
	if p.StockCount < quantity {
		return ErrInsufficientStock
	}
	return nil
}
