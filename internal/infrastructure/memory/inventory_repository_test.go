package memory

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	domain "github.com/Zhima-Mochi/minishop-checkout/internal/domain/inventory"
)

func seedProduct(t *testing.T, repo *InventoryRepository, id string, stock int) {
	t.Helper()
	product, err := domain.NewProduct(id, "Product "+id, 100, stock)
	require.NoError(t, err)
	require.NoError(t, repo.Save(context.Background(), product))
}

func TestInventoryRepository_TryDecrement(t *testing.T) {
	repo := NewInventoryRepository()
	ctx := context.Background()
	seedProduct(t, repo, "P1", 3)

	ok, err := repo.TryDecrement(ctx, "P1", 2)
	require.NoError(t, err)
	require.True(t, ok)

	// Not enough left; the guard refuses instead of going negative.
	ok, err = repo.TryDecrement(ctx, "P1", 2)
	require.NoError(t, err)
	require.False(t, ok)

	got, err := repo.Get(ctx, "P1")
	require.NoError(t, err)
	require.Equal(t, 1, got.StockCount)

	_, err = repo.TryDecrement(ctx, "missing", 1)
	require.ErrorIs(t, err, domain.ErrNotFound)

	_, err = repo.TryDecrement(ctx, "P1", 0)
	require.ErrorIs(t, err, domain.ErrInvalidQuantity)
}

func TestInventoryRepository_TryDecrement_NeverNegative(t *testing.T) {
	repo := NewInventoryRepository()
	ctx := context.Background()
	seedProduct(t, repo, "P1", 5)

	const callers = 20
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := repo.TryDecrement(ctx, "P1", 1)
			require.NoError(t, err)
			if ok {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Equal(t, 5, succeeded)

	got, err := repo.Get(ctx, "P1")
	require.NoError(t, err)
	require.Equal(t, 0, got.StockCount)
}

func TestInventoryRepository_Increment(t *testing.T) {
	repo := NewInventoryRepository()
	ctx := context.Background()
	seedProduct(t, repo, "P1", 1)

	require.NoError(t, repo.Increment(ctx, "P1", 4))

	got, err := repo.Get(ctx, "P1")
	require.NoError(t, err)
	require.Equal(t, 5, got.StockCount)

	require.ErrorIs(t, repo.Increment(ctx, "missing", 1), domain.ErrNotFound)
}
