package order

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	items := []Item{
		{ProductID: "P1", Title: "Espresso Beans", UnitPrice: 500, Quantity: 1},
		{ProductID: "P2", Title: "Kettle", UnitPrice: 300, Quantity: 1},
	}

	ord, err := New("ord-1", "cust-1", items, Details{PaymentMethod: "card"})
	require.NoError(t, err)
	require.Equal(t, int64(800), ord.TotalAmount)
	require.Equal(t, PaymentPending, ord.PaymentStatus)
	require.Equal(t, StatusPending, ord.Status)
	require.Len(t, ord.Items, 2)
	require.Equal(t, "card", ord.PaymentMethod)
}

func TestNew_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		items   []Item
		wantErr error
	}{
		{
			name:    "no items",
			items:   nil,
			wantErr: ErrNoItems,
		},
		{
			name:    "zero quantity",
			items:   []Item{{ProductID: "P1", UnitPrice: 100, Quantity: 0}},
			wantErr: ErrInvalidQuantity,
		},
		{
			name:    "negative quantity",
			items:   []Item{{ProductID: "P1", UnitPrice: 100, Quantity: -2}},
			wantErr: ErrInvalidQuantity,
		},
		{
			name:    "negative price",
			items:   []Item{{ProductID: "P1", UnitPrice: -1, Quantity: 1}},
			wantErr: ErrInvalidAmount,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New("ord-1", "cust-1", tt.items, Details{})
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestValidPaymentTransition(t *testing.T) {
	tests := []struct {
		from PaymentStatus
		to   PaymentStatus
		ok   bool
	}{
		{PaymentPending, PaymentPaid, true},
		{PaymentPending, PaymentFailed, true},
		{PaymentPending, PaymentRefunded, false},
		{PaymentPending, PaymentPending, false},
		{PaymentPaid, PaymentRefunded, true},
		{PaymentPaid, PaymentFailed, false},
		{PaymentPaid, PaymentPending, false},
		{PaymentFailed, PaymentPaid, false},
		{PaymentFailed, PaymentPending, false},
		{PaymentRefunded, PaymentPaid, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"_to_"+string(tt.to), func(t *testing.T) {
			require.Equal(t, tt.ok, ValidPaymentTransition(tt.from, tt.to))
		})
	}
}

func TestClone_Isolation(t *testing.T) {
	ord, err := New("ord-1", "cust-1", []Item{{ProductID: "P1", UnitPrice: 100, Quantity: 2}}, Details{})
	require.NoError(t, err)

	clone := ord.Clone()
	clone.PaymentStatus = PaymentPaid
	clone.Items[0].Quantity = 99

	require.Equal(t, PaymentPending, ord.PaymentStatus)
	require.Equal(t, 2, ord.Items[0].Quantity)
}
