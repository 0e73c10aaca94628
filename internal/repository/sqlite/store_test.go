package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mamadbah2/batchledger/internal/config"
	"github.com/mamadbah2/batchledger/internal/domain/models"
	"github.com/mamadbah2/batchledger/internal/repository"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(context.Background(), config.SQLiteConfig{Path: filepath.Join(t.TempDir(), "ledger.db")}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLiteAppendReadPreservesOrder(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	for _, id := range []string{"STK-1", "STK-2", "STK-3"} {
		require.NoError(t, store.AppendRow(ctx, repository.Inventory, repository.Row{"id": id, "remaining": "5"}))
	}

	rows, err := store.ReadAll(ctx, repository.Inventory)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "STK-1", rows[0]["id"])
	assert.Equal(t, "STK-3", rows[2]["id"])
	assert.Equal(t, "", rows[0]["lot_number"])
}

func TestSQLiteCompareAndSwap(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	require.NoError(t, store.AppendRow(ctx, repository.FinishedGoods, repository.Row{"batch_id": "URT-1", "remaining_kg": "100"}))

	require.NoError(t, store.CompareAndSwapCell(ctx, repository.FinishedGoods, "batch_id", "URT-1", "remaining_kg", "100", "70"))

	err := store.CompareAndSwapCell(ctx, repository.FinishedGoods, "batch_id", "URT-1", "remaining_kg", "100", "40")
	assert.ErrorIs(t, err, models.ErrStaleValue)

	err = store.CompareAndSwapCell(ctx, repository.FinishedGoods, "batch_id", "URT-9", "remaining_kg", "100", "40")
	assert.ErrorIs(t, err, models.ErrNotFound)

	rows, err := store.ReadAll(ctx, repository.FinishedGoods)
	require.NoError(t, err)
	assert.Equal(t, "70", rows[0]["remaining_kg"])
}

func TestSQLiteUpdateCellAndReplaceAll(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	require.NoError(t, store.AppendRow(ctx, repository.Production, repository.Row{"id": "URT-1", "status": "pending"}))

	require.NoError(t, store.UpdateCell(ctx, repository.Production, "id", "URT-1", "status", "committed"))
	assert.ErrorIs(t, store.UpdateCell(ctx, repository.Production, "id", "URT-2", "status", "committed"), models.ErrNotFound)

	require.NoError(t, store.ReplaceAll(ctx, repository.Production, []repository.Row{{"id": "URT-7"}, {"id": "URT-8"}}))
	rows, err := store.ReadAll(ctx, repository.Production)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "URT-7", rows[0]["id"])
}

func TestSQLiteUnknownColumnIsStoreError(t *testing.T) {
	store := openTestStore(t)
	err := store.UpdateCell(context.Background(), repository.Limits, "ingredient", "x", "nope", "1")
	assert.ErrorIs(t, err, models.ErrStoreUnavailable)
}
