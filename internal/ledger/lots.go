// Package ledger maps the domain onto the tabular store: the lot inventory, the
// production records, finished goods and shipments.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mamadbah2/batchledger/internal/domain/models"
	"github.com/mamadbah2/batchledger/internal/repository"
)

// maxCASAttempts bounds how often a decrement re-reads after losing a race.
const maxCASAttempts = 5

// Lots is the raw-material lot inventory.
type Lots struct {
	store  repository.Store
	ids    IDGenerator
	now    Clock
	logger *zap.Logger
}

// NewLots wires the inventory ledger. Nil ids and clock fall back to NewID and time.Now.
func NewLots(store repository.Store, ids IDGenerator, now Clock, logger *zap.Logger) *Lots {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ids == nil {
		ids = NewID
	}
	if now == nil {
		now = time.Now
	}
	return &Lots{store: store, ids: ids, now: now, logger: logger}
}

// Receive records a stock-in. Remaining starts equal to the received quantity.
func (l *Lots) Receive(ctx context.Context, lot models.Lot, category models.Category) (models.Lot, error) {
	lot.Ingredient = strings.TrimSpace(lot.Ingredient)
	lot.LotNumber = strings.TrimSpace(lot.LotNumber)
	switch {
	case lot.Ingredient == "":
		return models.Lot{}, fmt.Errorf("%w: ingredient is required", models.ErrInvalidInput)
	case lot.LotNumber == "":
		return models.Lot{}, fmt.Errorf("%w: lot number is required", models.ErrInvalidInput)
	case !lot.Received.IsPositive():
		return models.Lot{}, fmt.Errorf("%w: received quantity must be positive", models.ErrInvalidInput)
	case lot.PackagingUnitGrams.IsNegative():
		return models.Lot{}, fmt.Errorf("%w: packaging unit weight must not be negative", models.ErrInvalidInput)
	case category == models.CategoryPackaging && !lot.PackagingUnitGrams.IsPositive():
		return models.Lot{}, fmt.Errorf("%w: packaging lot %s needs a unit weight in grams", models.ErrInvalidInput, lot.LotNumber)
	}

	if lot.ID == "" {
		lot.ID = l.ids(PrefixLot)
	}
	if lot.ArrivalDate.IsZero() {
		lot.ArrivalDate = l.now()
	}
	lot.Remaining = lot.Received
	lot.Unit = models.UnitKg

	if err := l.store.AppendRow(ctx, repository.Inventory, LotRow(lot)); err != nil {
		return models.Lot{}, fmt.Errorf("append lot %s: %w", lot.ID, err)
	}

	l.logger.Info("lot received",
		zap.String("lot_id", lot.ID),
		zap.String("ingredient", lot.Ingredient),
		zap.String("lot_number", lot.LotNumber),
		zap.String("received", lot.Received.String()))
	return lot, nil
}

// List returns every lot, including depleted ones. Unreadable rows are skipped.
func (l *Lots) List(ctx context.Context) ([]models.Lot, error) {
	rows, err := l.store.ReadAll(ctx, repository.Inventory)
	if err != nil {
		return nil, fmt.Errorf("load inventory: %w", err)
	}
	lots := make([]models.Lot, 0, len(rows))
	for _, row := range rows {
		lot, err := ParseLot(row)
		if err != nil {
			l.logger.Warn("skip unreadable inventory row", zap.String("id", row.Get("id")), zap.Error(err))
			continue
		}
		lots = append(lots, lot)
	}
	return lots, nil
}

// Get returns one lot by id.
func (l *Lots) Get(ctx context.Context, id string) (models.Lot, error) {
	lots, err := l.List(ctx)
	if err != nil {
		return models.Lot{}, err
	}
	for _, lot := range lots {
		if lot.ID == id {
			return lot, nil
		}
	}
	return models.Lot{}, fmt.Errorf("lot %s: %w", id, models.ErrNotFound)
}

// Available lists the lots of an ingredient that still hold stock, oldest arrival first.
func (l *Lots) Available(ctx context.Context, ingredient string) ([]models.Lot, error) {
	lots, err := l.List(ctx)
	if err != nil {
		return nil, err
	}
	var out []models.Lot
	for _, lot := range lots {
		if lot.Ingredient == ingredient && lot.Remaining.IsPositive() {
			out = append(out, lot)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ArrivalDate.Before(out[j].ArrivalDate) })
	return out, nil
}

// RemainingByIngredient sums remaining stock per ingredient.
func (l *Lots) RemainingByIngredient(ctx context.Context) (map[string]decimal.Decimal, error) {
	lots, err := l.List(ctx)
	if err != nil {
		return nil, err
	}
	totals := make(map[string]decimal.Decimal)
	for _, lot := range lots {
		totals[lot.Ingredient] = totals[lot.Ingredient].Add(lot.Remaining)
	}
	return totals, nil
}

// Decrement lowers a lot's remaining quantity with compare-and-swap, flooring at zero,
// and appends the movement that evidences it. A lost race re-reads and retries.
func (l *Lots) Decrement(ctx context.Context, lotID, batchID string, quantity decimal.Decimal) (models.LotMovement, error) {
	if !quantity.IsPositive() {
		return models.LotMovement{}, fmt.Errorf("%w: decrement of lot %s must be positive", models.ErrInvalidInput, lotID)
	}

	var (
		lot   models.Lot
		after decimal.Decimal
	)
	for attempt := 1; ; attempt++ {
		row, err := l.row(ctx, lotID)
		if err != nil {
			return models.LotMovement{}, err
		}
		if lot, err = ParseLot(row); err != nil {
			return models.LotMovement{}, fmt.Errorf("decrement lot %s: %w", lotID, err)
		}

		after = lot.Remaining.Sub(quantity)
		if after.IsNegative() {
			l.logger.Warn("lot overdrawn, remaining floored at zero",
				zap.String("lot_id", lotID),
				zap.String("remaining", lot.Remaining.String()),
				zap.String("requested", quantity.String()))
			after = decimal.Zero
		}

		err = l.store.CompareAndSwapCell(ctx, repository.Inventory, "id", lotID, "remaining", row.Get("remaining"), FormatDecimal(after))
		if err == nil {
			break
		}
		if !errors.Is(err, models.ErrStaleValue) || attempt >= maxCASAttempts {
			return models.LotMovement{}, fmt.Errorf("decrement lot %s: %w", lotID, err)
		}
		l.logger.Debug("lot changed underneath decrement, retrying", zap.String("lot_id", lotID), zap.Int("attempt", attempt))
	}

	movement := models.LotMovement{
		ID:         l.ids(PrefixMovement),
		Date:       l.now(),
		LotID:      lot.ID,
		BatchID:    batchID,
		Ingredient: lot.Ingredient,
		LotNumber:  lot.LotNumber,
		Quantity:   quantity,
		Before:     lot.Remaining,
		After:      after,
	}
	if err := l.store.AppendRow(ctx, repository.LotMovements, MovementRow(movement)); err != nil {
		l.logger.Error("lot decremented but movement not recorded",
			zap.String("lot_id", lot.ID),
			zap.String("batch_id", batchID),
			zap.String("before", lot.Remaining.String()),
			zap.String("after", after.String()),
			zap.Error(err))
		return movement, fmt.Errorf("record movement for lot %s: %w", lotID, err)
	}
	return movement, nil
}

// Movements returns the decrement log.
func (l *Lots) Movements(ctx context.Context) ([]models.LotMovement, error) {
	rows, err := l.store.ReadAll(ctx, repository.LotMovements)
	if err != nil {
		return nil, fmt.Errorf("load lot movements: %w", err)
	}
	movements := make([]models.LotMovement, 0, len(rows))
	for _, row := range rows {
		m, err := ParseMovement(row)
		if err != nil {
			l.logger.Warn("skip unreadable movement row", zap.String("id", row.Get("id")), zap.Error(err))
			continue
		}
		movements = append(movements, m)
	}
	return movements, nil
}

// MovementsFor returns the movements recorded for one batch.
func (l *Lots) MovementsFor(ctx context.Context, batchID string) ([]models.LotMovement, error) {
	all, err := l.Movements(ctx)
	if err != nil {
		return nil, err
	}
	var out []models.LotMovement
	for _, m := range all {
		if m.BatchID == batchID {
			out = append(out, m)
		}
	}
	return out, nil
}

// Delete removes a lot after recording why. The audit row is written first so a
// failed rewrite never loses the reason.
func (l *Lots) Delete(ctx context.Context, lotID, reason string) (models.LotDeletion, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return models.LotDeletion{}, fmt.Errorf("%w: a reason is required to delete lot %s", models.ErrInvalidInput, lotID)
	}

	rows, err := l.store.ReadAll(ctx, repository.Inventory)
	if err != nil {
		return models.LotDeletion{}, fmt.Errorf("load inventory: %w", err)
	}

	kept := make([]repository.Row, 0, len(rows))
	var target repository.Row
	for _, row := range rows {
		if target == nil && row.Get("id") == lotID {
			target = row
			continue
		}
		kept = append(kept, row)
	}
	if target == nil {
		return models.LotDeletion{}, fmt.Errorf("lot %s: %w", lotID, models.ErrNotFound)
	}

	remaining, err := ParseDecimal(target.Get("remaining"))
	if err != nil {
		l.logger.Warn("deleting lot with unreadable remaining", zap.String("lot_id", lotID), zap.Error(err))
	}
	deletion := models.LotDeletion{
		LotID:      lotID,
		Ingredient: target.Get("ingredient"),
		LotNumber:  target.Get("lot_number"),
		Remaining:  remaining,
		Reason:     reason,
		DeletedAt:  l.now(),
	}
	if err := l.store.AppendRow(ctx, repository.LotDeletions, DeletionRow(deletion)); err != nil {
		return models.LotDeletion{}, fmt.Errorf("record deletion of lot %s: %w", lotID, err)
	}
	if err := l.store.ReplaceAll(ctx, repository.Inventory, kept); err != nil {
		return models.LotDeletion{}, fmt.Errorf("remove lot %s: %w", lotID, err)
	}

	l.logger.Info("lot deleted", zap.String("lot_id", lotID), zap.String("reason", reason))
	return deletion, nil
}

func (l *Lots) row(ctx context.Context, lotID string) (repository.Row, error) {
	rows, err := l.store.ReadAll(ctx, repository.Inventory)
	if err != nil {
		return nil, fmt.Errorf("load inventory: %w", err)
	}
	for _, row := range rows {
		if row.Get("id") == lotID {
			return row, nil
		}
	}
	return nil, fmt.Errorf("lot %s: %w", lotID, models.ErrNotFound)
}
