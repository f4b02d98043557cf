//go:build integration

package postgres

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	dominv "github.com/Zhima-Mochi/minishop-checkout/internal/domain/inventory"
	domain "github.com/Zhima-Mochi/minishop-checkout/internal/domain/order"
)

func TestRepositories_Integration(t *testing.T) {
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("checkout"),
		tcpostgres.WithUsername("checkout_user"),
		tcpostgres.WithPassword("checkout_password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)
	defer func() {
		require.NoError(t, container.Terminate(ctx))
	}()

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	require.NoError(t, Migrate(ctx, dsn))

	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	defer pool.Close()

	orders := NewOrderRepository(pool)
	inventory := NewInventoryRepository(pool)

	newOrder := func(t *testing.T, id string) *domain.Order {
		t.Helper()
		ord, err := domain.New(id, "cust-1", []domain.Item{
			{ProductID: "P1", Title: "Beans", UnitPrice: 500, Quantity: 1},
			{ProductID: "P2", Title: "Kettle", UnitPrice: 300, Quantity: 1},
		}, domain.Details{PaymentMethod: "card", Phone: "5550100"})
		require.NoError(t, err)
		return ord
	}

	t.Run("InsertAndGet", func(t *testing.T) {
		ord := newOrder(t, "ord-1")
		require.NoError(t, orders.Insert(ctx, ord))

		got, err := orders.Get(ctx, "ord-1")
		require.NoError(t, err)
		require.Equal(t, ord.ID, got.ID)
		require.Equal(t, int64(800), got.TotalAmount)
		require.Equal(t, domain.PaymentPending, got.PaymentStatus)
		require.Len(t, got.Items, 2)
		require.Equal(t, "P1", got.Items[0].ProductID)

		require.ErrorIs(t, orders.Insert(ctx, ord), domain.ErrConflict)

		_, err = orders.Get(ctx, "missing")
		require.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("AttachSessionAndLookupByGatewayID", func(t *testing.T) {
		require.NoError(t, orders.Insert(ctx, newOrder(t, "ord-2")))
		require.NoError(t, orders.AttachSession(ctx, "ord-2", "gw-ord-2", "sess-2"))

		got, err := orders.GetByGatewayOrderID(ctx, "gw-ord-2")
		require.NoError(t, err)
		require.Equal(t, "ord-2", got.ID)
		require.Equal(t, "sess-2", got.PaymentSessionID)

		require.ErrorIs(t, orders.AttachSession(ctx, "missing", "gw-x", "sess-x"), domain.ErrNotFound)
	})

	t.Run("TransitionPayment_CompareAndSet", func(t *testing.T) {
		require.NoError(t, orders.Insert(ctx, newOrder(t, "ord-3")))

		won, err := orders.TransitionPayment(ctx, "ord-3", domain.PaymentPending, domain.PaymentPaid, domain.StatusConfirmed)
		require.NoError(t, err)
		require.True(t, won)

		won, err = orders.TransitionPayment(ctx, "ord-3", domain.PaymentPending, domain.PaymentPaid, domain.StatusConfirmed)
		require.NoError(t, err)
		require.False(t, won)

		got, err := orders.Get(ctx, "ord-3")
		require.NoError(t, err)
		require.Equal(t, domain.PaymentPaid, got.PaymentStatus)
		require.Equal(t, domain.StatusConfirmed, got.Status)

		_, err = orders.TransitionPayment(ctx, "missing", domain.PaymentPending, domain.PaymentPaid, domain.StatusConfirmed)
		require.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("TransitionPayment_ConcurrentSingleWinner", func(t *testing.T) {
		require.NoError(t, orders.Insert(ctx, newOrder(t, "ord-4")))

		const callers = 8
		var (
			wg   sync.WaitGroup
			mu   sync.Mutex
			wins int
		)
		for i := 0; i < callers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				won, err := orders.TransitionPayment(ctx, "ord-4", domain.PaymentPending, domain.PaymentPaid, domain.StatusConfirmed)
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
	})

	t.Run("Inventory_GuardedDecrement", func(t *testing.T) {
		product, err := dominv.NewProduct("P1", "Beans", 500, 2)
		require.NoError(t, err)
		require.NoError(t, inventory.Save(ctx, product))

		ok, err := inventory.TryDecrement(ctx, "P1", 2)
		require.NoError(t, err)
		require.True(t, ok)

		ok, err = inventory.TryDecrement(ctx, "P1", 1)
		require.NoError(t, err)
		require.False(t, ok)

		got, err := inventory.Get(ctx, "P1")
		require.NoError(t, err)
		require.Equal(t, 0, got.StockCount)

		_, err = inventory.TryDecrement(ctx, "missing", 1)
		require.ErrorIs(t, err, dominv.ErrNotFound)

		require.NoError(t, inventory.Increment(ctx, "P1", 3))
		got, err = inventory.Get(ctx, "P1")
		require.NoError(t, err)
		require.Equal(t, 3, got.StockCount)
	})
}
