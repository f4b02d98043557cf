package order

import "time"

// OrderCreatedEvent is a domain event emitted when a new order is persisted.
type OrderCreatedEvent struct {
	OrderID     string
	CustomerID  string
	TotalAmount int64
	OccurredAt  time.Time
}

func (OrderCreatedEvent) EventName() string { return "order.created" }

func NewOrderCreatedEvent(o *Order) OrderCreatedEvent {
	return OrderCreatedEvent{
		OrderID:     o.ID,
		CustomerID:  o.CustomerID,
		TotalAmount: o.TotalAmount,
		OccurredAt:  time.Now().UTC(),
	}
}

// OrderConfirmedEvent is emitted by the reconciliation that wins the
// pending -> paid transition.
type OrderConfirmedEvent struct {
	OrderID        string
	GatewayOrderID string
	TotalAmount    int64
	Source         string
	OccurredAt     time.Time
}

func (OrderConfirmedEvent) EventName() string { return "order.confirmed" }

func NewOrderConfirmedEvent(o *Order, source string) OrderConfirmedEvent {
	return OrderConfirmedEvent{
		OrderID:        o.ID,
		GatewayOrderID: o.GatewayOrderID,
		TotalAmount:    o.TotalAmount,
		Source:         source,
		OccurredAt:     time.Now().UTC(),
	}
}

// OrderPaymentFailedEvent is emitted when a terminal failure report settles a
// still-pending order.
type OrderPaymentFailedEvent struct {
	OrderID    string
	Reason     string
	Source     string
	OccurredAt time.Time
}

func (OrderPaymentFailedEvent) EventName() string { return "order.payment_failed" }

func NewOrderPaymentFailedEvent(o *Order, reason, source string) OrderPaymentFailedEvent {
	return OrderPaymentFailedEvent{
		OrderID:    o.ID,
		Reason:     reason,
		Source:     source,
		OccurredAt: time.Now().UTC(),
	}
}
