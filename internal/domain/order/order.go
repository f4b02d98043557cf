package order

import (
	"errors"
	"time"
)

var (
	ErrNotFound        = errors.New("order: not found")
	ErrConflict        = errors.New("order: already exists")
	ErrNoItems         = errors.New("order: at least one item is required")
	ErrInvalidQuantity = errors.New("order: quantity must be greater than zero")
	ErrInvalidAmount   = errors.New("order: amount must be zero or greater")
)

// PaymentStatus tracks the money side of an order. Transitions are strictly
// pending -> paid | failed, and paid -> refunded; failed and refunded are terminal.
type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentFailed   PaymentStatus = "failed"
	PaymentRefunded PaymentStatus = "refunded"
)

// Status is the fulfillment state. It advances pending -> confirmed when the
// payment first becomes paid; the downstream states are driven by fulfillment
// operations outside this service.
type Status string

const (
	StatusPending    Status = "pending"
	StatusConfirmed  Status = "confirmed"
	StatusProcessing Status = "processing"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
	StatusReturned   Status = "returned"
)

// Item is a line item with title and price snapshotted at creation time, so
// later catalog edits never retroactively change a placed order.
type Item struct {
	ProductID string
	Title     string
	UnitPrice int64
	ImageURL  string
	Quantity  int
}

func (i Item) LineTotal() int64 {
	return i.UnitPrice * int64(i.Quantity)
}

type Order struct {
	ID               string
	GatewayOrderID   string
	PaymentSessionID string
	CustomerID       string
	Items            []Item
	TotalAmount      int64
	PaymentStatus    PaymentStatus
	Status           Status
	PaymentMethod    string
	ShippingAddress  string
	BillingAddress   string
	Phone            string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Details carries the non-line-item fields captured at checkout.
type Details struct {
	PaymentMethod   string
	ShippingAddress string
	BillingAddress  string
	Phone           string
}

func New(id, customerID string, items []Item, d Details) (*Order, error) {
	if len(items) == 0 {
		return nil, ErrNoItems
	}
	var total int64
	for _, it := range items {
		if it.Quantity <= 0 {
			return nil, ErrInvalidQuantity
		}
		if it.UnitPrice < 0 {
			return nil, ErrInvalidAmount
		}
		total += it.LineTotal()
	}

	now := time.Now().UTC()
	return &Order{
		ID:              id,
		CustomerID:      customerID,
		Items:           append([]Item(nil), items...),
		TotalAmount:     total,
		PaymentStatus:   PaymentPending,
		Status:          StatusPending,
		PaymentMethod:   d.PaymentMethod,
		ShippingAddress: d.ShippingAddress,
		BillingAddress:  d.BillingAddress,
		Phone:           d.Phone,
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}

// ValidPaymentTransition reports whether from -> to is a legal payment edge.
// Repositories use it to reject writes that would bypass the state machine.
func ValidPaymentTransition(from, to PaymentStatus) bool {
	switch from {
	case PaymentPending:
		return to == PaymentPaid || to == PaymentFailed
	case PaymentPaid:
		return to == PaymentRefunded
	default:
		return false
	}
}

func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	clone := *o
	clone.Items = append([]Item(nil), o.Items...)
	return &clone
}

func (o *Order) Touch() {
	o.UpdatedAt = time.Now().UTC()
}
