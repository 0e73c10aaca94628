package reporting

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mamadbah2/batchledger/internal/domain/models"
	"github.com/mamadbah2/batchledger/internal/ledger"
	"github.com/mamadbah2/batchledger/internal/repository/memory"
	"github.com/mamadbah2/batchledger/internal/service/catalog"
	"github.com/mamadbah2/batchledger/internal/service/production"
)

var day = time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type fakeArchive struct {
	saved []models.DailyReport
	err   error
}

func (f *fakeArchive) SaveDailyReport(_ context.Context, report models.DailyReport) error {
	if f.err != nil {
		return f.err
	}
	f.saved = append(f.saved, report)
	return nil
}

func (f *fakeArchive) DailyReports(_ context.Context, from, to time.Time) ([]models.DailyReport, error) {
	var out []models.DailyReport
	for _, r := range f.saved {
		if !r.Date.Before(from) && !r.Date.After(to) {
			out = append(out, r)
		}
	}
	return out, nil
}

type staticAlerts []models.Alert

func (s staticAlerts) Alerts(context.Context) ([]models.Alert, error) { return s, nil }

type fixture struct {
	lots     *ledger.Lots
	finished *ledger.FinishedGoods
	batches  *ledger.Batches
	batch    models.ProductionBatch
	lotB     models.Lot
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	now := func() time.Time { return day }
	var n atomic.Int64
	ids := func(prefix string) string { return fmt.Sprintf("%s-%d", prefix, n.Add(1)) }

	store := memory.New()
	cat := catalog.NewService(store, nil, nil)
	f := &fixture{
		lots:     ledger.NewLots(store, ids, now, nil),
		finished: ledger.NewFinishedGoods(store, nil),
		batches:  ledger.NewBatches(store, nil),
	}
	for name, category := range map[string]models.Category{
		"A":   models.CategorySolid,
		"B":   models.CategorySolid,
		"Box": models.CategoryPackaging,
	} {
		_, err := cat.AddIngredient(ctx, name, category)
		require.NoError(t, err)
	}
	_, err := cat.SaveRecipe(ctx, models.Recipe{
		Code: "P-1", NetPackageKg: dec("1"), ShelfLifeMonths: 1,
		Solids: map[string]decimal.Decimal{"A": dec("0.5"), "B": dec("0.5")},
	})
	require.NoError(t, err)

	_, err = f.lots.Receive(ctx, models.Lot{Ingredient: "A", LotNumber: "A1", Received: dec("100")}, models.CategorySolid)
	require.NoError(t, err)
	f.lotB, err = f.lots.Receive(ctx, models.Lot{Ingredient: "B", LotNumber: "B1", Received: dec("100")}, models.CategorySolid)
	require.NoError(t, err)
	_, err = f.lots.Receive(ctx, models.Lot{Ingredient: "Box", LotNumber: "X1", Received: dec("50"), PackagingUnitGrams: dec("50")}, models.CategoryPackaging)
	require.NoError(t, err)

	allocator := production.NewAllocator(cat, f.lots, now, nil)
	recorder := production.NewRecorder(production.RecorderDeps{Batches: f.batches, Lots: f.lots, Finished: f.finished, IDs: ids}, nil)
	validated, err := allocator.Validate(ctx, production.BatchDraft{
		ProductCode: "P-1", BatchNumber: "B-1", Packages: 20,
		Entries: map[string][]production.Entry{
			"A":   {{LotNumber: "A1", Quantity: dec("11")}},
			"B":   {{LotNumber: "B1", Quantity: dec("10")}},
			"Box": {{LotNumber: "X1", Units: 22}},
		},
	})
	require.NoError(t, err)
	f.batch, _, err = recorder.Commit(ctx, validated)
	require.NoError(t, err)

	_, _, err = f.finished.Decrement(ctx, f.batch.ID, dec("5"))
	require.NoError(t, err)
	require.NoError(t, f.finished.AppendShipment(ctx, models.Shipment{
		ID: "SHP-1", Date: day, BatchID: f.batch.ID, Customer: "Shop", Type: models.ShipmentSale, Kg: dec("5"),
	}))
	return f
}

func (f *fixture) service(alerts AlertSource, archive Archive) *Service {
	later := func() time.Time { return day.AddDate(0, 0, 10) }
	return NewService(f.batches, f.lots, f.finished, alerts, archive, later, nil)
}

func TestTraceFollowsBatchToLotsAndShipments(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, err := f.lots.Delete(ctx, f.lotB.ID, "spoiled")
	require.NoError(t, err)

	trace, err := f.service(nil, nil).Trace(ctx, f.batch.ID)
	require.NoError(t, err)

	assert.Equal(t, f.batch.ID, trace.Batch.ID)
	require.NotNil(t, trace.Finished)
	assert.True(t, dec("15").Equal(trace.Finished.RemainingKg))
	assert.Equal(t, 10, trace.DaysInStore)
	require.Len(t, trace.Shipments, 1)
	assert.Equal(t, "Shop", trace.Shipments[0].Customer)

	require.Len(t, trace.SourceLots, 3)
	numbers := []string{trace.SourceLots[0].LotNumber, trace.SourceLots[1].LotNumber, trace.SourceLots[2].LotNumber}
	assert.ElementsMatch(t, []string{"A1", "B1", "X1"}, numbers)
	for _, lot := range trace.SourceLots {
		if lot.ID == f.lotB.ID {
			assert.True(t, lot.Received.IsZero(), "deleted lot is rebuilt from the record")
		}
	}
}

func TestTraceUnknownBatch(t *testing.T) {
	f := newFixture(t)
	_, err := f.service(nil, nil).Trace(context.Background(), "URT-missing")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestWasteReport(t *testing.T) {
	f := newFixture(t)
	lines, err := f.service(nil, nil).WasteReport(context.Background())
	require.NoError(t, err)
	require.Len(t, lines, 1)

	line := lines[0]
	assert.Equal(t, "P-1", line.ProductCode)
	assert.InDelta(t, 20.0, line.NetKg, 1e-9)
	assert.InDelta(t, 1.0, line.SolidWasteKg, 1e-9)
	assert.InDelta(t, 4.76, line.SolidWastePercent, 1e-9)
	assert.InDelta(t, 0.0, line.LiquidWastePercent, 1e-9)
	assert.InDelta(t, 5.0, line.PackagingGramsPerPkg, 1e-9)
}

func TestWasteLinePercentages(t *testing.T) {
	line := wasteLine(models.ProductionBatch{
		NetKg:              dec("100"),
		TheoreticalSolidKg: dec("100"),
		SolidWasteKg:       dec("5"),
		LiquidWasteKg:      dec("2"),
	})
	assert.InDelta(t, 4.76, line.SolidWastePercent, 1e-9)
	assert.InDelta(t, 2.0, line.LiquidWastePercent, 1e-9)

	empty := wasteLine(models.ProductionBatch{SolidWasteKg: dec("0")})
	assert.Zero(t, empty.SolidWastePercent)
	assert.Zero(t, empty.LiquidWastePercent)
}

func TestDailyReportArchives(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	archive := &fakeArchive{}
	svc := f.service(staticAlerts{{Ingredient: "A", RemainingKg: dec("89"), LimitKg: dec("100")}}, archive)

	report, err := svc.DailyReport(ctx, day.Add(15*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, day, report.Date)
	assert.Equal(t, 1, report.Batches)
	assert.Equal(t, 20, report.Packages)
	assert.InDelta(t, 20.0, report.NetKg, 1e-9)
	assert.InDelta(t, 1.0, report.SolidWasteKg, 1e-9)
	assert.InDelta(t, 0.1, report.PackagingWasteKg, 1e-9)
	assert.InDelta(t, 5.0, report.ShippedKg, 1e-9)
	assert.Equal(t, 1, report.Shipments)
	assert.Equal(t, []string{"A"}, report.Alerts)
	require.Len(t, archive.saved, 1)

	history, err := svc.History(ctx, day, day)
	require.NoError(t, err)
	assert.Len(t, history, 1)
	assert.Contains(t, Summary(report), "Critical stock: A.")
}

func TestDailyReportEmptyDay(t *testing.T) {
	f := newFixture(t)
	report, err := f.service(nil, nil).DailyReport(context.Background(), day.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.Zero(t, report.Batches)
	assert.Zero(t, report.Shipments)
	assert.Empty(t, report.Alerts)
}

func TestDailyReportArchiveFailure(t *testing.T) {
	f := newFixture(t)
	_, err := f.service(nil, &fakeArchive{err: errors.New("mongo down")}).DailyReport(context.Background(), day)
	assert.Error(t, err)
}
