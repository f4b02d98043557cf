package payment

import (
	"context"
	"errors"
)

var (
	// ErrGatewayUnavailable marks transient transport failures; callers may retry.
	ErrGatewayUnavailable = errors.New("payment: gateway unavailable")
	// ErrGatewayRejected marks explicit rejections; retrying will not help.
	ErrGatewayRejected = errors.New("payment: gateway rejected request")
)

// GatewayStatus is the status vocabulary the external processor reports.
type GatewayStatus string

const (
	GatewayStatusPaid        GatewayStatus = "PAID"
	GatewayStatusActive      GatewayStatus = "ACTIVE"
	GatewayStatusExpired     GatewayStatus = "EXPIRED"
	GatewayStatusFailed      GatewayStatus = "FAILED"
	GatewayStatusUserDropped GatewayStatus = "USER_DROPPED"
)

// Terminal reports whether the gateway will never change this status again.
func (s GatewayStatus) Terminal() bool {
	switch s {
	case GatewayStatusPaid, GatewayStatusExpired, GatewayStatusFailed, GatewayStatusUserDropped:
		return true
	default:
		return false
	}
}

type SessionRequest struct {
	OrderID    string
	Amount     int64
	Currency   string
	CustomerID string
	Phone      string
	ReturnURL  string
}

type Session struct {
	SessionID      string
	GatewayOrderID string
}

// StatusReport is what the gateway claims about an order. It is untrusted
// input: the reconciliation engine validates the amount and identifiers
// against the stored order before acting on it.
type StatusReport struct {
	GatewayOrderID string
	Status         GatewayStatus
	AmountReported int64
}

// Gateway is the boundary to the external payment processor.
type Gateway interface {
	OpenSession(ctx context.Context, req SessionRequest) (*Session, error)
	FetchStatus(ctx context.Context, gatewayOrderID string) (*StatusReport, error)
}
