package production

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mamadbah2/batchledger/internal/domain/models"
	"github.com/mamadbah2/batchledger/internal/events"
	"github.com/mamadbah2/batchledger/internal/ledger"
	"github.com/mamadbah2/batchledger/internal/lock"
	"github.com/mamadbah2/batchledger/internal/metrics"
)

// Commit stages, used for failure metrics and logs.
const (
	stageRecord    = "record"
	stageLock      = "lock"
	stageInventory = "inventory"
	stageFinished  = "finished_goods"
	stageStatus    = "status"
)

// BatchLedger is the production record ledger.
type BatchLedger interface {
	Append(ctx context.Context, batch models.ProductionBatch) error
	MarkCommitted(ctx context.Context, batchID string) error
}

// LotDecrementer lowers lot quantities and records the movement.
type LotDecrementer interface {
	Decrement(ctx context.Context, lotID, batchID string, quantity decimal.Decimal) (models.LotMovement, error)
}

// FinishedLedger receives the output lot of a batch.
type FinishedLedger interface {
	Create(ctx context.Context, lot models.FinishedLot) error
}

// Recorder commits validated batches. The production record is written first with
// status pending and only marked committed after every other write landed, so an
// interrupted commit is visible to reconciliation.
type Recorder struct {
	batches   BatchLedger
	lots      LotDecrementer
	finished  FinishedLedger
	locker    lock.Locker
	publisher events.Publisher
	metrics   *metrics.Metrics
	ids       ledger.IDGenerator
	logger    *zap.Logger
}

// RecorderDeps groups the collaborators of a Recorder.
type RecorderDeps struct {
	Batches   BatchLedger
	Lots      LotDecrementer
	Finished  FinishedLedger
	Locker    lock.Locker
	Publisher events.Publisher
	Metrics   *metrics.Metrics
	IDs       ledger.IDGenerator
}

// NewRecorder wires a recorder. Locker, publisher and ids have in-process defaults.
func NewRecorder(deps RecorderDeps, logger *zap.Logger) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	if deps.Locker == nil {
		deps.Locker = lock.NewLocal()
	}
	if deps.Publisher == nil {
		deps.Publisher = events.Nop{}
	}
	if deps.IDs == nil {
		deps.IDs = ledger.NewID
	}
	return &Recorder{
		batches:   deps.Batches,
		lots:      deps.Lots,
		finished:  deps.Finished,
		locker:    deps.Locker,
		publisher: deps.Publisher,
		metrics:   deps.Metrics,
		ids:       deps.IDs,
		logger:    logger,
	}
}

// Commit moves a validated batch to committed. On error the batch is not committed;
// if the pending record was already written, the error names it for reconciliation.
func (r *Recorder) Commit(ctx context.Context, validated ValidatedBatch) (models.ProductionBatch, models.FinishedLot, error) {
	if !validated.validated {
		return models.ProductionBatch{}, models.FinishedLot{}, fmt.Errorf("%w: batch was not validated", models.ErrInvalidBatch)
	}

	batch := validated.Batch
	batch.ID = r.ids(ledger.PrefixBatch)
	batch.Status = models.BatchPending
	finished := validated.Finished
	finished.BatchID = batch.ID

	log := r.logger.With(zap.String("batch_id", batch.ID), zap.String("product", batch.ProductCode))

	// Locks are held from before the pending record exists, so a repair never sees
	// a record whose commit is still running.
	keys := make([]string, 0, len(batch.Consumption)+1)
	for _, line := range batch.Consumption {
		keys = append(keys, lock.LotKey(line.LotID))
	}
	keys = append(keys, lock.FinishedKey(batch.ID))
	release, err := r.locker.Acquire(ctx, keys...)
	if err != nil {
		r.metrics.CommitFailed(stageLock)
		return models.ProductionBatch{}, models.FinishedLot{}, fmt.Errorf("commit batch: %w", err)
	}
	defer release()

	if err := r.batches.Append(ctx, batch); err != nil {
		r.metrics.CommitFailed(stageRecord)
		return models.ProductionBatch{}, models.FinishedLot{}, fmt.Errorf("commit batch: %w", err)
	}

	fail := func(stage string, err error) (models.ProductionBatch, models.FinishedLot, error) {
		r.metrics.CommitFailed(stage)
		log.Error("batch commit interrupted, record left pending", zap.String("stage", stage), zap.Error(err))
		return models.ProductionBatch{}, models.FinishedLot{}, fmt.Errorf("commit batch %s at %s (record pending): %w", batch.ID, stage, err)
	}

	for _, line := range batch.Consumption {
		movement, err := r.lots.Decrement(ctx, line.LotID, batch.ID, line.Quantity)
		if err != nil {
			return fail(stageInventory, err)
		}
		if shortfall := movement.Shortfall(); shortfall.IsPositive() {
			log.Warn("consumption exceeded lot stock",
				zap.String("lot_id", line.LotID),
				zap.String("shortfall", shortfall.String()))
		}
	}

	if err := r.finished.Create(ctx, finished); err != nil {
		return fail(stageFinished, err)
	}

	if err := r.batches.MarkCommitted(ctx, batch.ID); err != nil {
		return fail(stageStatus, err)
	}
	batch.Status = models.BatchCommitted

	r.metrics.BatchCommitted(batch.ProductCode, batch.SolidWasteKg, batch.LiquidWasteKg, batch.PackagingWasteKg)
	events.PublishQuietly(r.publisher, log, events.Event{
		Type:    events.TypeBatchCommitted,
		Key:     batch.ID,
		At:      time.Now().UTC(),
		Payload: batch,
	})

	log.Info("batch committed",
		zap.Int("packages", batch.Packages),
		zap.String("net_kg", batch.NetKg.String()),
		zap.String("solid_waste_kg", batch.SolidWasteKg.String()),
		zap.String("liquid_waste_kg", batch.LiquidWasteKg.String()),
		zap.String("packaging_waste_kg", batch.PackagingWasteKg.String()))
	return batch, finished, nil
}
