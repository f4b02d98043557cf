package order

import "context"

type Repository interface {
	Insert(ctx context.Context, order *Order) error
	Get(ctx context.Context, id string) (*Order, error)
	GetByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*Order, error)

	// AttachSession records the gateway order id and session handle after a
	// payment session has been opened for an already persisted order.
	AttachSession(ctx context.Context, orderID, gatewayOrderID, sessionID string) error

	// TransitionPayment atomically moves the payment status from `from` to `to`
	// and sets the fulfillment status to `next`, but only when the stored
	// payment status still equals `from`. It returns true when this call won
	// the transition and false when another caller already moved the order on.
	TransitionPayment(ctx context.Context, orderID string, from, to PaymentStatus, next Status) (bool, error)
}
