package ledger

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mamadbah2/batchledger/internal/domain/models"
	"github.com/mamadbah2/batchledger/internal/repository"
)

// Batches is the append-only production record ledger. Only the status cell
// changes after append.
type Batches struct {
	store  repository.Store
	logger *zap.Logger
}

// NewBatches wires the production record ledger.
func NewBatches(store repository.Store, logger *zap.Logger) *Batches {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Batches{store: store, logger: logger}
}

// Append writes a production record.
func (b *Batches) Append(ctx context.Context, batch models.ProductionBatch) error {
	row, err := BatchRow(batch)
	if err != nil {
		return fmt.Errorf("encode batch %s: %w", batch.ID, err)
	}
	if err := b.store.AppendRow(ctx, repository.Production, row); err != nil {
		return fmt.Errorf("append batch %s: %w", batch.ID, err)
	}
	return nil
}

// MarkCommitted flips the status of a record once every mutation landed.
func (b *Batches) MarkCommitted(ctx context.Context, batchID string) error {
	if err := b.store.UpdateCell(ctx, repository.Production, "id", batchID, "status", string(models.BatchCommitted)); err != nil {
		return fmt.Errorf("mark batch %s committed: %w", batchID, err)
	}
	return nil
}

// List returns every production record in insertion order.
func (b *Batches) List(ctx context.Context) ([]models.ProductionBatch, error) {
	rows, err := b.store.ReadAll(ctx, repository.Production)
	if err != nil {
		return nil, fmt.Errorf("load production records: %w", err)
	}
	out := make([]models.ProductionBatch, 0, len(rows))
	for _, row := range rows {
		batch, err := ParseBatch(row)
		if err != nil {
			b.logger.Warn("skip unreadable production row", zap.String("id", row.Get("id")), zap.Error(err))
			continue
		}
		out = append(out, batch)
	}
	return out, nil
}

// On returns the records produced on the given day.
func (b *Batches) On(ctx context.Context, day time.Time) ([]models.ProductionBatch, error) {
	all, err := b.List(ctx)
	if err != nil {
		return nil, err
	}
	var out []models.ProductionBatch
	for _, batch := range all {
		if sameDay(batch.Date, day) {
			out = append(out, batch)
		}
	}
	return out, nil
}

// Get returns one production record.
func (b *Batches) Get(ctx context.Context, batchID string) (models.ProductionBatch, error) {
	all, err := b.List(ctx)
	if err != nil {
		return models.ProductionBatch{}, err
	}
	for _, batch := range all {
		if batch.ID == batchID {
			return batch, nil
		}
	}
	return models.ProductionBatch{}, fmt.Errorf("batch %s: %w", batchID, models.ErrNotFound)
}
