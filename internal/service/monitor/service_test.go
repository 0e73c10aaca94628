package monitor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mamadbah2/batchledger/internal/domain/models"
	"github.com/mamadbah2/batchledger/internal/ledger"
	"github.com/mamadbah2/batchledger/internal/repository"
	"github.com/mamadbah2/batchledger/internal/repository/memory"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestAlertsCompareAggregatedStock(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	lots := ledger.NewLots(store, nil, func() time.Time { return time.Unix(0, 0) }, nil)
	svc := NewService(store, lots, nil, nil)

	for _, lot := range []models.Lot{
		{Ingredient: "Flour", LotNumber: "L1", Received: dec("30")},
		{Ingredient: "Flour", LotNumber: "L2", Received: dec("15")},
		{Ingredient: "Sugar", LotNumber: "S1", Received: dec("50")},
	} {
		_, err := lots.Receive(ctx, lot, models.CategorySolid)
		require.NoError(t, err)
	}
	require.NoError(t, svc.SetLimits(ctx, []models.Limit{
		{Ingredient: "Flour", CriticalKg: dec("50")},
		{Ingredient: "Sugar", CriticalKg: dec("50")},
		{Ingredient: "Salt", CriticalKg: dec("1")},
		{Ingredient: "Oil", CriticalKg: decimal.Zero},
	}))

	alerts, err := svc.Alerts(ctx)
	require.NoError(t, err)
	require.Len(t, alerts, 2)
	assert.Equal(t, "Flour", alerts[0].Ingredient)
	assert.True(t, dec("45").Equal(alerts[0].RemainingKg))
	assert.Equal(t, "Salt", alerts[1].Ingredient)
	assert.True(t, alerts[1].RemainingKg.IsZero())
}

func TestSetLimitsValidates(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	svc := NewService(store, ledger.NewLots(store, nil, nil, nil), nil, nil)

	err := svc.SetLimits(ctx, []models.Limit{{Ingredient: "Flour", CriticalKg: dec("-1")}})
	assert.ErrorIs(t, err, models.ErrInvalidInput)

	err = svc.SetLimits(ctx, []models.Limit{{Ingredient: "Flour"}, {Ingredient: "Flour"}})
	assert.ErrorIs(t, err, models.ErrDuplicate)

	rows, err := store.ReadAll(ctx, repository.Limits)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestAlertsPropagateStoreFailure(t *testing.T) {
	store := memory.New()
	store.SetFault(func(string, string) error { return errors.New("down") })
	svc := NewService(store, ledger.NewLots(store, nil, nil, nil), nil, nil)

	_, err := svc.Alerts(context.Background())
	assert.ErrorIs(t, err, models.ErrStoreUnavailable)
}
