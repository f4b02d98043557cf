package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	domain "github.com/Zhima-Mochi/minishop-checkout/internal/domain/order"
)

const uniqueViolation = "23505"

type OrderRepository struct {
	pool *pgxpool.Pool
}

func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

func (r *OrderRepository) Insert(ctx context.Context, order *domain.Order) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO orders (id, gateway_order_id, payment_session_id, customer_id,
		                     total_amount, payment_status, status, payment_method,
		                     shipping_address, billing_address, phone, created_at, updated_at)
		 VALUES ($1, NULLIF($2, ''), $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		order.ID, order.GatewayOrderID, order.PaymentSessionID, order.CustomerID,
		order.TotalAmount, order.PaymentStatus, order.Status, order.PaymentMethod,
		order.ShippingAddress, order.BillingAddress, order.Phone, order.CreatedAt, order.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return domain.ErrConflict
		}
		return err
	}

	for i, item := range order.Items {
		_, err = tx.Exec(ctx,
			`INSERT INTO order_items (order_id, position, product_id, title, unit_price, image_url, quantity)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			order.ID, i, item.ProductID, item.Title, item.UnitPrice, item.ImageURL, item.Quantity)
		if err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

func (r *OrderRepository) Get(ctx context.Context, id string) (*domain.Order, error) {
	return r.getBy(ctx, `WHERE id = $1`, id)
}

func (r *OrderRepository) GetByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*domain.Order, error) {
	if gatewayOrderID == "" {
		return nil, domain.ErrNotFound
	}
	return r.getBy(ctx, `WHERE gateway_order_id = $1`, gatewayOrderID)
}

func (r *OrderRepository) getBy(ctx context.Context, where string, arg any) (*domain.Order, error) {
	var (
		order     domain.Order
		gatewayID *string
	)
	err := r.pool.QueryRow(ctx,
		`SELECT id, gateway_order_id, payment_session_id, customer_id, total_amount,
		        payment_status, status, payment_method, shipping_address,
		        billing_address, phone, created_at, updated_at
		 FROM orders `+where, arg).
		Scan(&order.ID, &gatewayID, &order.PaymentSessionID, &order.CustomerID,
			&order.TotalAmount, &order.PaymentStatus, &order.Status, &order.PaymentMethod,
			&order.ShippingAddress, &order.BillingAddress, &order.Phone,
			&order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	if gatewayID != nil {
		order.GatewayOrderID = *gatewayID
	}

	rows, err := r.pool.Query(ctx,
		`SELECT product_id, title, unit_price, image_url, quantity
		 FROM order_items
		 WHERE order_id = $1
		 ORDER BY position`,
		order.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var item domain.Item
		if err := rows.Scan(&item.ProductID, &item.Title, &item.UnitPrice, &item.ImageURL, &item.Quantity); err != nil {
			return nil, err
		}
		order.Items = append(order.Items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &order, nil
}

func (r *OrderRepository) AttachSession(ctx context.Context, orderID, gatewayOrderID, sessionID string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE orders
		 SET gateway_order_id = NULLIF($2, ''), payment_session_id = $3, updated_at = now()
		 WHERE id = $1`,
		orderID, gatewayOrderID, sessionID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// TransitionPayment maps the compare-and-set onto a conditional UPDATE: the
// WHERE clause on the current payment status makes the database arbitrate
// concurrent reconciliations for the same order.
func (r *OrderRepository) TransitionPayment(ctx context.Context, orderID string, from, to domain.PaymentStatus, next domain.Status) (bool, error) {
	if !domain.ValidPaymentTransition(from, to) {
		return false, errors.New("order repository: illegal payment transition " + string(from) + " -> " + string(to))
	}

	tag, err := r.pool.Exec(ctx,
		`UPDATE orders
		 SET payment_status = $3, status = $4, updated_at = now()
		 WHERE id = $1 AND payment_status = $2`,
		orderID, from, to, next)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() == 1 {
		return true, nil
	}

	// Lost the race or unknown order; tell those cases apart.
	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM orders WHERE id = $1)`, orderID).Scan(&exists); err != nil {
		return false, err
	}
	if !exists {
		return false, domain.ErrNotFound
	}
	return false, nil
}
