// Package shipping depletes finished-goods lots through sales, samples and disposals.
package shipping

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mamadbah2/batchledger/internal/domain/models"
	"github.com/mamadbah2/batchledger/internal/events"
	"github.com/mamadbah2/batchledger/internal/ledger"
	"github.com/mamadbah2/batchledger/internal/lock"
	"github.com/mamadbah2/batchledger/internal/metrics"
)

// Request is an operator's shipment order.
type Request struct {
	BatchID  string              `json:"batch_id"`
	Customer string              `json:"customer"`
	Type     models.ShipmentType `json:"type"`
	Kg       decimal.Decimal     `json:"kg"`
	Note     string              `json:"note"`
}

// Stock is a finished lot with its derived package count.
type Stock struct {
	models.FinishedLot
	RemainingPackages decimal.Decimal `json:"remaining_packages"`
	DaysToExpiry      int             `json:"days_to_expiry"`
}

// Service records shipments.
type Service struct {
	goods     *ledger.FinishedGoods
	locker    lock.Locker
	publisher events.Publisher
	metrics   *metrics.Metrics
	ids       ledger.IDGenerator
	now       ledger.Clock
	logger    *zap.Logger
}

// NewService wires the shipment recorder.
func NewService(goods *ledger.FinishedGoods, locker lock.Locker, publisher events.Publisher, m *metrics.Metrics, ids ledger.IDGenerator, now ledger.Clock, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if locker == nil {
		locker = lock.NewLocal()
	}
	if publisher == nil {
		publisher = events.Nop{}
	}
	if ids == nil {
		ids = ledger.NewID
	}
	if now == nil {
		now = time.Now
	}
	return &Service{goods: goods, locker: locker, publisher: publisher, metrics: m, ids: ids, now: now, logger: logger}
}

// Record ships kg from one finished lot. The remaining weight is read fresh under
// the lot's lock and decremented with compare-and-swap before the shipment row is appended.
// If the append fails the decrement is reverted; a failed revert surfaces as
// models.ErrPartialCommit and is picked up by the reconcile audit.
func (s *Service) Record(ctx context.Context, req Request) (models.Shipment, error) {
	req.BatchID = strings.TrimSpace(req.BatchID)
	if req.BatchID == "" {
		return models.Shipment{}, fmt.Errorf("%w: batch id is required", models.ErrInvalidInput)
	}
	if !req.Kg.IsPositive() {
		return models.Shipment{}, fmt.Errorf("%w: shipped kg must be positive", models.ErrInvalidInput)
	}
	shipmentType, err := models.ParseShipmentType(string(req.Type))
	if err != nil {
		return models.Shipment{}, err
	}

	release, err := s.locker.Acquire(ctx, lock.FinishedKey(req.BatchID))
	if err != nil {
		return models.Shipment{}, fmt.Errorf("lock finished lot %s: %w", req.BatchID, err)
	}
	defer release()

	before, after, err := s.goods.Decrement(ctx, req.BatchID, req.Kg)
	if err != nil {
		return models.Shipment{}, err
	}

	shipment := models.Shipment{
		ID:       s.ids(ledger.PrefixShipment),
		Date:     s.now(),
		BatchID:  req.BatchID,
		Customer: strings.TrimSpace(req.Customer),
		Type:     shipmentType,
		Kg:       req.Kg,
		Note:     req.Note,
	}
	if err := s.goods.AppendShipment(ctx, shipment); err != nil {
		// Still under the lot's lock: put the weight back so stock matches the shipment log.
		if restoreErr := s.goods.SetRemaining(ctx, req.BatchID, after, before); restoreErr != nil {
			s.logger.Error("finished lot decremented but shipment not recorded",
				zap.String("batch_id", req.BatchID),
				zap.String("before", before.String()),
				zap.String("after", after.String()),
				zap.Error(err),
				zap.NamedError("restore_error", restoreErr))
			return models.Shipment{}, fmt.Errorf("%w: %w", models.ErrPartialCommit, err)
		}
		s.logger.Warn("shipment not recorded, finished lot restored",
			zap.String("batch_id", req.BatchID),
			zap.String("remaining_kg", before.String()),
			zap.Error(err))
		return models.Shipment{}, err
	}

	s.metrics.Shipped(string(shipmentType), req.Kg)
	events.PublishQuietly(s.publisher, s.logger, events.Event{
		Type:    events.TypeShipment,
		Key:     shipment.ID,
		At:      shipment.Date,
		Payload: shipment,
	})
	s.logger.Info("shipment recorded",
		zap.String("shipment_id", shipment.ID),
		zap.String("batch_id", shipment.BatchID),
		zap.String("type", string(shipmentType)),
		zap.String("kg", req.Kg.String()),
		zap.String("remaining_kg", after.String()))
	return shipment, nil
}

// Shipments returns the shipment history.
func (s *Service) Shipments(ctx context.Context) ([]models.Shipment, error) {
	return s.goods.Shipments(ctx, time.Time{})
}

// Stock lists finished lots that still hold weight.
func (s *Service) Stock(ctx context.Context) ([]Stock, error) {
	lots, err := s.goods.InStock(ctx)
	if err != nil {
		return nil, err
	}
	now := s.now()
	out := make([]Stock, 0, len(lots))
	for _, lot := range lots {
		out = append(out, Stock{
			FinishedLot:       lot,
			RemainingPackages: lot.RemainingPackages(),
			DaysToExpiry:      int(lot.ExpiryDate.Sub(now).Hours() / 24),
		})
	}
	return out, nil
}
