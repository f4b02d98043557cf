package memory

import (
	"context"
	"fmt"
	"sync"

	domain "github.com/Zhima-Mochi/minishop-checkout/internal/domain/order"
)

type OrderRepository struct {
	mu        sync.RWMutex
	orders    map[string]*domain.Order
	byGateway map[string]string
}

func NewOrderRepository() *OrderRepository {
	return &OrderRepository{
		orders:    make(map[string]*domain.Order),
		byGateway: make(map[string]string),
	}
}

func (r *OrderRepository) Insert(ctx context.Context, order *domain.Order) error {
	_ = ctx
	if order == nil || order.ID == "" {
		return fmt.Errorf("order repository: id is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.orders[order.ID]; exists {
		return domain.ErrConflict
	}

	r.orders[order.ID] = order.Clone()
	if order.GatewayOrderID != "" {
		r.byGateway[order.GatewayOrderID] = order.ID
	}
	return nil
}

func (r *OrderRepository) Get(ctx context.Context, id string) (*domain.Order, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	order, ok := r.orders[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return order.Clone(), nil
}

func (r *OrderRepository) GetByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*domain.Order, error) {
	_ = ctx
	if gatewayOrderID == "" {
		return nil, domain.ErrNotFound
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byGateway[gatewayOrderID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	order, found := r.orders[id]
	if !found {
		return nil, domain.ErrNotFound
	}
	return order.Clone(), nil
}

func (r *OrderRepository) AttachSession(ctx context.Context, orderID, gatewayOrderID, sessionID string) error {
	_ = ctx

	r.mu.Lock()
	defer r.mu.Unlock()

	order, ok := r.orders[orderID]
	if !ok {
		return domain.ErrNotFound
	}

	order.GatewayOrderID = gatewayOrderID
	order.PaymentSessionID = sessionID
	order.Touch()
	if gatewayOrderID != "" {
		r.byGateway[gatewayOrderID] = orderID
	}
	return nil
}

// TransitionPayment performs the compare-and-set under the repository lock.
// The order's payment status moves from -> to only when it still equals from;
// a lost race returns false without touching the record.
func (r *OrderRepository) TransitionPayment(ctx context.Context, orderID string, from, to domain.PaymentStatus, next domain.Status) (bool, error) {
	_ = ctx
	if !domain.ValidPaymentTransition(from, to) {
		return false, fmt.Errorf("order repository: illegal payment transition %s -> %s", from, to)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	order, ok := r.orders[orderID]
	if !ok {
		return false, domain.ErrNotFound
	}
	if order.PaymentStatus != from {
		return false, nil
	}

	order.PaymentStatus = to
	order.Status = next
	order.Touch()
	return true, nil
}
