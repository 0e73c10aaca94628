package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mamadbah2/batchledger/internal/domain/models"
	"github.com/mamadbah2/batchledger/internal/repository"
)

// FinishedGoods holds one sellable lot per committed batch plus the shipments against them.
type FinishedGoods struct {
	store  repository.Store
	logger *zap.Logger
}

// NewFinishedGoods wires the finished-goods ledger.
func NewFinishedGoods(store repository.Store, logger *zap.Logger) *FinishedGoods {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FinishedGoods{store: store, logger: logger}
}

// Create appends the finished lot of a batch.
func (f *FinishedGoods) Create(ctx context.Context, lot models.FinishedLot) error {
	if err := f.store.AppendRow(ctx, repository.FinishedGoods, FinishedRow(lot)); err != nil {
		return fmt.Errorf("append finished lot %s: %w", lot.BatchID, err)
	}
	return nil
}

// List returns every finished lot, including sold-out ones.
func (f *FinishedGoods) List(ctx context.Context) ([]models.FinishedLot, error) {
	rows, err := f.store.ReadAll(ctx, repository.FinishedGoods)
	if err != nil {
		return nil, fmt.Errorf("load finished goods: %w", err)
	}
	lots := make([]models.FinishedLot, 0, len(rows))
	for _, row := range rows {
		lot, err := ParseFinished(row)
		if err != nil {
			f.logger.Warn("skip unreadable finished goods row", zap.String("batch_id", row.Get("batch_id")), zap.Error(err))
			continue
		}
		lots = append(lots, lot)
	}
	return lots, nil
}

// InStock returns the finished lots with remaining weight.
func (f *FinishedGoods) InStock(ctx context.Context) ([]models.FinishedLot, error) {
	lots, err := f.List(ctx)
	if err != nil {
		return nil, err
	}
	var out []models.FinishedLot
	for _, lot := range lots {
		if lot.RemainingKg.IsPositive() {
			out = append(out, lot)
		}
	}
	return out, nil
}

// Get returns the finished lot of a batch, always read from the store.
func (f *FinishedGoods) Get(ctx context.Context, batchID string) (models.FinishedLot, error) {
	row, err := f.row(ctx, batchID)
	if err != nil {
		return models.FinishedLot{}, err
	}
	return ParseFinished(row)
}

// Decrement removes kg from a finished lot. The precondition kg <= remaining is
// checked against the value the compare-and-swap is conditioned on.
func (f *FinishedGoods) Decrement(ctx context.Context, batchID string, kg decimal.Decimal) (before, after decimal.Decimal, err error) {
	if !kg.IsPositive() {
		return decimal.Zero, decimal.Zero, fmt.Errorf("%w: shipped kg must be positive", models.ErrInvalidInput)
	}
	for attempt := 1; ; attempt++ {
		row, err := f.row(ctx, batchID)
		if err != nil {
			return decimal.Zero, decimal.Zero, err
		}
		before, err = ParseDecimal(row.Get("remaining_kg"))
		if err != nil {
			return decimal.Zero, decimal.Zero, fmt.Errorf("finished lot %s: %w", batchID, err)
		}
		if kg.GreaterThan(before) {
			return before, before, fmt.Errorf("%w: batch %s holds %s kg, requested %s kg",
				models.ErrInsufficientFinishedStock, batchID, before.String(), kg.String())
		}
		after = before.Sub(kg)

		err = f.store.CompareAndSwapCell(ctx, repository.FinishedGoods, "batch_id", batchID, "remaining_kg", row.Get("remaining_kg"), FormatDecimal(after))
		if err == nil {
			return before, after, nil
		}
		if !errors.Is(err, models.ErrStaleValue) || attempt >= maxCASAttempts {
			return decimal.Zero, decimal.Zero, fmt.Errorf("decrement finished lot %s: %w", batchID, err)
		}
		f.logger.Debug("finished lot changed underneath shipment, retrying", zap.String("batch_id", batchID), zap.Int("attempt", attempt))
	}
}

// SetRemaining moves a finished lot's remaining kg from expected to kg. It fails
// with models.ErrStaleValue when the lot no longer holds expected.
func (f *FinishedGoods) SetRemaining(ctx context.Context, batchID string, expected, kg decimal.Decimal) error {
	row, err := f.row(ctx, batchID)
	if err != nil {
		return err
	}
	current, err := ParseDecimal(row.Get("remaining_kg"))
	if err != nil {
		return fmt.Errorf("finished lot %s: %w", batchID, err)
	}
	if !current.Equal(expected) {
		return fmt.Errorf("set finished lot %s: %w", batchID,
			repository.Stale(repository.FinishedGoods, batchID, "remaining_kg", expected.String(), current.String()))
	}
	err = f.store.CompareAndSwapCell(ctx, repository.FinishedGoods, "batch_id", batchID, "remaining_kg", row.Get("remaining_kg"), FormatDecimal(kg))
	if err != nil {
		return fmt.Errorf("set finished lot %s: %w", batchID, err)
	}
	return nil
}

// AppendShipment records a shipment row.
func (f *FinishedGoods) AppendShipment(ctx context.Context, shipment models.Shipment) error {
	if err := f.store.AppendRow(ctx, repository.Shipments, ShipmentRow(shipment)); err != nil {
		return fmt.Errorf("append shipment %s: %w", shipment.ID, err)
	}
	return nil
}

// Shipments returns the shipment history, optionally restricted to one day.
func (f *FinishedGoods) Shipments(ctx context.Context, day time.Time) ([]models.Shipment, error) {
	rows, err := f.store.ReadAll(ctx, repository.Shipments)
	if err != nil {
		return nil, fmt.Errorf("load shipments: %w", err)
	}
	out := make([]models.Shipment, 0, len(rows))
	for _, row := range rows {
		s, err := ParseShipment(row)
		if err != nil {
			f.logger.Warn("skip unreadable shipment row", zap.String("id", row.Get("id")), zap.Error(err))
			continue
		}
		if !day.IsZero() && !sameDay(s.Date, day) {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

func (f *FinishedGoods) row(ctx context.Context, batchID string) (repository.Row, error) {
	rows, err := f.store.ReadAll(ctx, repository.FinishedGoods)
	if err != nil {
		return nil, fmt.Errorf("load finished goods: %w", err)
	}
	for _, row := range rows {
		if row.Get("batch_id") == batchID {
			return row, nil
		}
	}
	return nil, fmt.Errorf("finished lot %s: %w", batchID, models.ErrNotFound)
}

func sameDay(a, b time.Time) bool {
	b = b.In(a.Location())
	return a.Year() == b.Year() && a.YearDay() == b.YearDay()
}
