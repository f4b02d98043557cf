package inventory

import "context"

type Repository interface {
	Get(ctx context.Context, productID string) (*Product, error)
	Save(ctx context.Context, product *Product) error

	// TryDecrement atomically subtracts quantity from the product's stock and
	// returns true, or leaves the stock untouched and returns false when fewer
	// than quantity units remain. Stock never goes negative.
	TryDecrement(ctx context.Context, productID string, quantity int) (bool, error)

	// Increment restores stock, e.g. for returns or cancellations. The normal
	// order flow never calls it; it exists as the symmetric primitive.
	Increment(ctx context.Context, productID string, quantity int) error
}
