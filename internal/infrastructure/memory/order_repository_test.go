package memory

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	domain "github.com/Zhima-Mochi/minishop-checkout/internal/domain/order"
)

func newPendingOrder(t *testing.T, id string) *domain.Order {
	t.Helper()
	ord, err := domain.New(id, "cust-1", []domain.Item{
		{ProductID: "P1", Title: "Beans", UnitPrice: 500, Quantity: 1},
	}, domain.Details{})
	require.NoError(t, err)
	return ord
}

func TestOrderRepository_InsertAndGet(t *testing.T) {
	repo := NewOrderRepository()
	ctx := context.Background()

	ord := newPendingOrder(t, "ord-1")
	require.NoError(t, repo.Insert(ctx, ord))

	got, err := repo.Get(ctx, "ord-1")
	require.NoError(t, err)
	require.Equal(t, ord.ID, got.ID)
	require.Equal(t, domain.PaymentPending, got.PaymentStatus)

	// Mutating the returned copy must not leak into the store.
	got.PaymentStatus = domain.PaymentPaid
	again, err := repo.Get(ctx, "ord-1")
	require.NoError(t, err)
	require.Equal(t, domain.PaymentPending, again.PaymentStatus)

	require.ErrorIs(t, repo.Insert(ctx, ord), domain.ErrConflict)

	_, err = repo.Get(ctx, "missing")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestOrderRepository_AttachSession(t *testing.T) {
	repo := NewOrderRepository()
	ctx := context.Background()

	require.NoError(t, repo.Insert(ctx, newPendingOrder(t, "ord-1")))
	require.NoError(t, repo.AttachSession(ctx, "ord-1", "gw-1", "sess-1"))

	got, err := repo.GetByGatewayOrderID(ctx, "gw-1")
	require.NoError(t, err)
	require.Equal(t, "ord-1", got.ID)
	require.Equal(t, "sess-1", got.PaymentSessionID)

	_, err = repo.GetByGatewayOrderID(ctx, "gw-unknown")
	require.ErrorIs(t, err, domain.ErrNotFound)

	require.ErrorIs(t, repo.AttachSession(ctx, "missing", "gw-2", "sess-2"), domain.ErrNotFound)
}

func TestOrderRepository_TransitionPayment(t *testing.T) {
	repo := NewOrderRepository()
	ctx := context.Background()

	require.NoError(t, repo.Insert(ctx, newPendingOrder(t, "ord-1")))

	won, err := repo.TransitionPayment(ctx, "ord-1", domain.PaymentPending, domain.PaymentPaid, domain.StatusConfirmed)
	require.NoError(t, err)
	require.True(t, won)

	got, err := repo.Get(ctx, "ord-1")
	require.NoError(t, err)
	require.Equal(t, domain.PaymentPaid, got.PaymentStatus)
	require.Equal(t, domain.StatusConfirmed, got.Status)

	// Second identical attempt loses the compare-and-set without error.
	won, err = repo.TransitionPayment(ctx, "ord-1", domain.PaymentPending, domain.PaymentPaid, domain.StatusConfirmed)
	require.NoError(t, err)
	require.False(t, won)

	// A failure report after payment must not downgrade the order.
	won, err = repo.TransitionPayment(ctx, "ord-1", domain.PaymentPending, domain.PaymentFailed, domain.StatusCancelled)
	require.NoError(t, err)
	require.False(t, won)

	got, err = repo.Get(ctx, "ord-1")
	require.NoError(t, err)
	require.Equal(t, domain.PaymentPaid, got.PaymentStatus)

	_, err = repo.TransitionPayment(ctx, "missing", domain.PaymentPending, domain.PaymentPaid, domain.StatusConfirmed)
	require.ErrorIs(t, err, domain.ErrNotFound)

	// An edge the state machine forbids is an error, not a silent no-op.
	_, err = repo.TransitionPayment(ctx, "ord-1", domain.PaymentFailed, domain.PaymentPaid, domain.StatusConfirmed)
	require.Error(t, err)
}

func TestOrderRepository_TransitionPayment_Concurrent(t *testing.T) {
	repo := NewOrderRepository()
	ctx := context.Background()

	require.NoError(t, repo.Insert(ctx, newPendingOrder(t, "ord-1")))

	const callers = 16
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			won, err := repo.TransitionPayment(ctx, "ord-1", domain.PaymentPending, domain.PaymentPaid, domain.StatusConfirmed)
			require.NoError(t, err)
			if won {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Equal(t, 1, wins)

	got, err := repo.Get(ctx, "ord-1")
	require.NoError(t, err)
	require.Equal(t, domain.PaymentPaid, got.PaymentStatus)
}
