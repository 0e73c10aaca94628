// Package inventory records raw-material stock-ins and lot deletions.
package inventory

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mamadbah2/batchledger/internal/domain/models"
	"github.com/mamadbah2/batchledger/internal/events"
	"github.com/mamadbah2/batchledger/internal/ledger"
	"github.com/mamadbah2/batchledger/internal/lock"
)

// IngredientLookup resolves the category of an ingredient.
type IngredientLookup interface {
	Ingredient(ctx context.Context, name string) (models.Ingredient, error)
}

// Service fronts the lot ledger for operators.
type Service struct {
	lots        *ledger.Lots
	ingredients IngredientLookup
	locker      lock.Locker
	publisher   events.Publisher
	logger      *zap.Logger
}

// NewService wires the inventory service.
func NewService(lots *ledger.Lots, ingredients IngredientLookup, locker lock.Locker, publisher events.Publisher, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if locker == nil {
		locker = lock.NewLocal()
	}
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &Service{lots: lots, ingredients: ingredients, locker: locker, publisher: publisher, logger: logger}
}

// Receive records a stock-in for a catalog ingredient.
func (s *Service) Receive(ctx context.Context, lot models.Lot) (models.Lot, error) {
	ingredient, err := s.ingredients.Ingredient(ctx, lot.Ingredient)
	if err != nil {
		return models.Lot{}, fmt.Errorf("receive lot %s: %w", lot.LotNumber, err)
	}
	lot.Ingredient = ingredient.Name

	received, err := s.lots.Receive(ctx, lot, ingredient.Category)
	if err != nil {
		return models.Lot{}, err
	}
	events.PublishQuietly(s.publisher, s.logger, events.Event{
		Type:    events.TypeLotReceived,
		Key:     received.ID,
		At:      time.Now().UTC(),
		Payload: received,
	})
	return received, nil
}

// Delete removes a lot under its lock so no commit decrements it concurrently.
func (s *Service) Delete(ctx context.Context, lotID, reason string) (models.LotDeletion, error) {
	release, err := s.locker.Acquire(ctx, lock.LotKey(lotID))
	if err != nil {
		return models.LotDeletion{}, fmt.Errorf("lock lot %s: %w", lotID, err)
	}
	defer release()

	deletion, err := s.lots.Delete(ctx, lotID, reason)
	if err != nil {
		return models.LotDeletion{}, err
	}
	events.PublishQuietly(s.publisher, s.logger, events.Event{
		Type:    events.TypeLotDeleted,
		Key:     lotID,
		At:      time.Now().UTC(),
		Payload: deletion,
	})
	return deletion, nil
}

// Lots lists every lot. With an ingredient, only its lots that still hold stock, oldest first.
func (s *Service) Lots(ctx context.Context, ingredient string) ([]models.Lot, error) {
	if ingredient != "" {
		return s.lots.Available(ctx, ingredient)
	}
	return s.lots.List(ctx)
}

// Movements lists lot decrements, optionally for one batch.
func (s *Service) Movements(ctx context.Context, batchID string) ([]models.LotMovement, error) {
	if batchID != "" {
		return s.lots.MovementsFor(ctx, batchID)
	}
	return s.lots.Movements(ctx)
}
