// Package reconcile finds production records whose commit did not finish and rolls them forward.
package reconcile

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mamadbah2/batchledger/internal/domain/models"
	"github.com/mamadbah2/batchledger/internal/ledger"
	"github.com/mamadbah2/batchledger/internal/lock"
	"github.com/mamadbah2/batchledger/internal/metrics"
)

// Finding describes one incomplete commit. It matches models.ErrPartialCommit.
type Finding struct {
	BatchID         string                   `json:"batch_id"`
	ProductCode     string                   `json:"product_code"`
	BatchNumber     string                   `json:"batch_number"`
	Status          models.BatchStatus       `json:"status"`
	MissingFinished bool                     `json:"missing_finished"`
	MissingLines    []models.ConsumptionLine `json:"missing_lines,omitempty"`
	// RemainingDrift is set when the finished lot's remaining kg disagrees with
	// starting kg minus recorded shipments; ExpectedRemainingKg is the latter.
	RemainingDrift      bool            `json:"remaining_drift"`
	RemainingKg         decimal.Decimal `json:"remaining_kg"`
	ExpectedRemainingKg decimal.Decimal `json:"expected_remaining_kg"`
	Problems            []string        `json:"problems"`
}

func (f Finding) Error() string {
	return fmt.Sprintf("batch %s: %s", f.BatchID, strings.Join(f.Problems, "; "))
}

// Unwrap lets errors.Is match models.ErrPartialCommit.
func (f Finding) Unwrap() error { return models.ErrPartialCommit }

// Empty reports whether the batch is consistent.
func (f Finding) Empty() bool { return len(f.Problems) == 0 }

// RecipeSource looks recipes up to rebuild a missing finished lot.
type RecipeSource interface {
	Recipe(ctx context.Context, code string) (models.Recipe, error)
}

// Service audits and repairs commits.
type Service struct {
	batches  *ledger.Batches
	lots     *ledger.Lots
	finished *ledger.FinishedGoods
	recipes  RecipeSource
	locker   lock.Locker
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

// NewService wires reconciliation.
func NewService(batches *ledger.Batches, lots *ledger.Lots, finished *ledger.FinishedGoods, recipes RecipeSource, locker lock.Locker, m *metrics.Metrics, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if locker == nil {
		locker = lock.NewLocal()
	}
	return &Service{batches: batches, lots: lots, finished: finished, recipes: recipes, locker: locker, metrics: m, logger: logger}
}

type snapshot struct {
	finished map[string]models.FinishedLot
	shipped  map[string]decimal.Decimal            // batch → shipped kg
	applied  map[string]map[string]decimal.Decimal // batch → lot → decremented quantity
}

func (s *Service) snapshot(ctx context.Context) (snapshot, error) {
	lots, err := s.finished.List(ctx)
	if err != nil {
		return snapshot{}, err
	}
	shipments, err := s.finished.Shipments(ctx, time.Time{})
	if err != nil {
		return snapshot{}, err
	}
	movements, err := s.lots.Movements(ctx)
	if err != nil {
		return snapshot{}, err
	}
	snap := snapshot{
		finished: make(map[string]models.FinishedLot, len(lots)),
		shipped:  make(map[string]decimal.Decimal),
		applied:  make(map[string]map[string]decimal.Decimal),
	}
	for _, lot := range lots {
		snap.finished[lot.BatchID] = lot
	}
	for _, shipment := range shipments {
		snap.shipped[shipment.BatchID] = snap.shipped[shipment.BatchID].Add(shipment.Kg)
	}
	for _, m := range movements {
		if snap.applied[m.BatchID] == nil {
			snap.applied[m.BatchID] = make(map[string]decimal.Decimal)
		}
		snap.applied[m.BatchID][m.LotID] = snap.applied[m.BatchID][m.LotID].Add(m.Quantity)
	}
	return snap, nil
}

func inspect(batch models.ProductionBatch, snap snapshot) Finding {
	finding := Finding{
		BatchID:     batch.ID,
		ProductCode: batch.ProductCode,
		BatchNumber: batch.BatchNumber,
		Status:      batch.Status,
	}
	if batch.Status == models.BatchPending {
		finding.Problems = append(finding.Problems, "record still pending")
	}
	if lot, ok := snap.finished[batch.ID]; !ok {
		finding.MissingFinished = true
		finding.Problems = append(finding.Problems, "no finished-goods lot")
	} else {
		expected := decimal.Max(decimal.Zero, lot.StartingKg.Sub(snap.shipped[batch.ID]))
		if !expected.Equal(lot.RemainingKg) {
			finding.RemainingDrift = true
			finding.RemainingKg = lot.RemainingKg
			finding.ExpectedRemainingKg = expected
			finding.Problems = append(finding.Problems, fmt.Sprintf("finished lot holds %s kg, shipments leave %s kg",
				lot.RemainingKg.String(), expected.String()))
		}
	}

	required := make(map[string]models.ConsumptionLine)
	var order []string
	for _, line := range batch.Consumption {
		if existing, ok := required[line.LotID]; ok {
			existing.Quantity = existing.Quantity.Add(line.Quantity)
			required[line.LotID] = existing
			continue
		}
		required[line.LotID] = line
		order = append(order, line.LotID)
	}
	for _, lotID := range order {
		line := required[lotID]
		missing := line.Quantity.Sub(snap.applied[batch.ID][lotID])
		if missing.IsPositive() {
			line.Quantity = missing
			finding.MissingLines = append(finding.MissingLines, line)
		}
	}
	if len(finding.MissingLines) > 0 {
		finding.Problems = append(finding.Problems, fmt.Sprintf("%d lot decrements not recorded", len(finding.MissingLines)))
	}
	return finding
}

// Audit lists every production record whose commit is incomplete.
func (s *Service) Audit(ctx context.Context) ([]Finding, error) {
	batches, err := s.batches.List(ctx)
	if err != nil {
		return nil, err
	}
	snap, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}

	var findings []Finding
	for _, batch := range batches {
		if finding := inspect(batch, snap); !finding.Empty() {
			findings = append(findings, finding)
		}
	}
	sort.Slice(findings, func(i, j int) bool { return findings[i].BatchID < findings[j].BatchID })

	s.metrics.PartialCommits(len(findings))
	if len(findings) > 0 {
		s.logger.Warn("partial commits detected", zap.Int("count", len(findings)))
	}
	return findings, nil
}

// Repair rolls one batch forward: missing decrements are applied, a missing finished
// lot is created from the record and its recipe, and the record is marked committed.
// The returned finding describes what was repaired.
func (s *Service) Repair(ctx context.Context, batchID string) (Finding, error) {
	batch, err := s.batches.Get(ctx, batchID)
	if err != nil {
		return Finding{}, err
	}

	keys := make([]string, 0, len(batch.Consumption)+1)
	for _, line := range batch.Consumption {
		keys = append(keys, lock.LotKey(line.LotID))
	}
	keys = append(keys, lock.FinishedKey(batchID))
	release, err := s.locker.Acquire(ctx, keys...)
	if err != nil {
		return Finding{}, fmt.Errorf("lock batch %s for repair: %w", batchID, err)
	}
	defer release()

	// Re-read under the locks: a commit that held them may have finished meanwhile.
	batch, err = s.batches.Get(ctx, batchID)
	if err != nil {
		return Finding{}, err
	}
	snap, err := s.snapshot(ctx)
	if err != nil {
		return Finding{}, err
	}
	finding := inspect(batch, snap)
	if finding.Empty() {
		return finding, nil
	}

	log := s.logger.With(zap.String("batch_id", batchID))
	for _, line := range finding.MissingLines {
		if _, err := s.lots.Decrement(ctx, line.LotID, batchID, line.Quantity); err != nil {
			return finding, fmt.Errorf("repair batch %s: %w", batchID, err)
		}
		log.Info("applied missing lot decrement", zap.String("lot_id", line.LotID), zap.String("quantity", line.Quantity.String()))
	}

	if finding.MissingFinished {
		recipe, err := s.recipes.Recipe(ctx, batch.ProductCode)
		if err != nil {
			return finding, fmt.Errorf("repair batch %s: %w", batchID, err)
		}
		lot := models.FinishedLot{
			BatchID:        batch.ID,
			ProductCode:    batch.ProductCode,
			BatchNumber:    batch.BatchNumber,
			ProductionDate: batch.Date,
			ExpiryDate:     models.ExpiryDate(batch.Date, recipe.ShelfLifeMonths),
			StartingKg:     batch.NetKg,
			RemainingKg:    batch.NetKg,
			PackageKg:      recipe.NetPackageKg,
		}
		if err := s.finished.Create(ctx, lot); err != nil {
			return finding, fmt.Errorf("repair batch %s: %w", batchID, err)
		}
		log.Info("created missing finished lot")
	}

	if finding.RemainingDrift {
		if err := s.finished.SetRemaining(ctx, batchID, finding.RemainingKg, finding.ExpectedRemainingKg); err != nil {
			return finding, fmt.Errorf("repair batch %s: %w", batchID, err)
		}
		log.Info("finished lot realigned with shipments",
			zap.String("from_kg", finding.RemainingKg.String()),
			zap.String("to_kg", finding.ExpectedRemainingKg.String()))
	}

	if batch.Status != models.BatchCommitted {
		if err := s.batches.MarkCommitted(ctx, batchID); err != nil {
			return finding, fmt.Errorf("repair batch %s: %w", batchID, err)
		}
	}

	log.Info("batch repaired", zap.Strings("problems", finding.Problems))
	return finding, nil
}
