// Package reporting derives traceability, waste and daily summaries from the ledgers.
package reporting

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mamadbah2/batchledger/internal/domain/models"
	"github.com/mamadbah2/batchledger/internal/ledger"
)

// Archive persists daily reports. MongoDB in production.
type Archive interface {
	SaveDailyReport(ctx context.Context, report models.DailyReport) error
	DailyReports(ctx context.Context, from, to time.Time) ([]models.DailyReport, error)
}

// AlertSource provides the current critical-stock alerts.
type AlertSource interface {
	Alerts(ctx context.Context) ([]models.Alert, error)
}

var hundred = decimal.NewFromInt(100)

// Service exposes read-only analytics over the ledgers.
type Service struct {
	batches  *ledger.Batches
	lots     *ledger.Lots
	finished *ledger.FinishedGoods
	alerts   AlertSource
	archive  Archive
	now      ledger.Clock
	logger   *zap.Logger
}

// NewService wires a new reporting service instance. archive and alerts may be nil.
func NewService(batches *ledger.Batches, lots *ledger.Lots, finished *ledger.FinishedGoods, alerts AlertSource, archive Archive, now ledger.Clock, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if now == nil {
		now = time.Now
	}
	return &Service{batches: batches, lots: lots, finished: finished, alerts: alerts, archive: archive, now: now, logger: logger}
}

// Trace returns the genealogy of one batch: its record, the finished lot, the
// shipments drawn from it and the source lots it consumed.
func (s *Service) Trace(ctx context.Context, batchID string) (models.Trace, error) {
	batch, err := s.batches.Get(ctx, batchID)
	if err != nil {
		return models.Trace{}, err
	}
	trace := models.Trace{Batch: batch}

	lot, err := s.finished.Get(ctx, batchID)
	switch {
	case err == nil:
		trace.Finished = &lot
		trace.DaysInStore = int(s.now().Sub(lot.ProductionDate).Hours() / 24)
	case errors.Is(err, models.ErrNotFound):
		s.logger.Warn("traced batch has no finished lot", zap.String("batch_id", batchID))
	default:
		return models.Trace{}, err
	}

	shipments, err := s.finished.Shipments(ctx, time.Time{})
	if err != nil {
		return models.Trace{}, err
	}
	for _, shipment := range shipments {
		if shipment.BatchID == batchID {
			trace.Shipments = append(trace.Shipments, shipment)
		}
	}

	seen := make(map[string]struct{})
	for _, line := range batch.Consumption {
		if _, ok := seen[line.LotID]; ok {
			continue
		}
		seen[line.LotID] = struct{}{}

		source, err := s.lots.Get(ctx, line.LotID)
		if errors.Is(err, models.ErrNotFound) {
			// Deleted lots keep their identity through the record itself.
			source = models.Lot{ID: line.LotID, Ingredient: line.Ingredient, LotNumber: line.LotNumber}
		} else if err != nil {
			return models.Trace{}, err
		}
		trace.SourceLots = append(trace.SourceLots, source)
	}
	return trace, nil
}

// WasteReport lists waste ratios for every committed batch.
func (s *Service) WasteReport(ctx context.Context) ([]models.WasteLine, error) {
	batches, err := s.batches.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("build waste report: %w", err)
	}
	lines := make([]models.WasteLine, 0, len(batches))
	for _, batch := range batches {
		if batch.Status != models.BatchCommitted {
			continue
		}
		lines = append(lines, wasteLine(batch))
	}
	return lines, nil
}

func wasteLine(batch models.ProductionBatch) models.WasteLine {
	line := models.WasteLine{
		BatchID:      batch.ID,
		Date:         batch.Date,
		ProductCode:  batch.ProductCode,
		BatchNumber:  batch.BatchNumber,
		NetKg:        batch.NetKg.InexactFloat64(),
		SolidWasteKg: batch.SolidWasteKg.InexactFloat64(),
	}
	// Solid waste is a share of the solids actually put in; liquid waste of the output.
	if input := batch.TheoreticalSolidKg.Add(batch.SolidWasteKg); input.IsPositive() {
		line.SolidWastePercent = batch.SolidWasteKg.Div(input).Mul(hundred).Round(2).InexactFloat64()
	}
	if batch.NetKg.IsPositive() {
		line.LiquidWastePercent = batch.LiquidWasteKg.Div(batch.NetKg).Mul(hundred).Round(2).InexactFloat64()
	}
	if batch.Packages > 0 {
		grams := batch.PackagingWasteKg.Mul(decimal.NewFromInt(1000)).Div(decimal.NewFromInt(int64(batch.Packages)))
		line.PackagingGramsPerPkg = grams.Round(2).InexactFloat64()
	}
	return line
}

// DailyReport aggregates one production day and archives it when an archive is configured.
func (s *Service) DailyReport(ctx context.Context, day time.Time) (models.DailyReport, error) {
	day = time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)

	batches, err := s.batches.On(ctx, day)
	if err != nil {
		return models.DailyReport{}, fmt.Errorf("build daily report: %w", err)
	}
	shipments, err := s.finished.Shipments(ctx, day)
	if err != nil {
		return models.DailyReport{}, fmt.Errorf("build daily report: %w", err)
	}

	var net, solid, liquid, packaging, shipped decimal.Decimal
	report := models.DailyReport{Date: day, CreatedAt: s.now().UTC(), Alerts: []string{}}
	for _, batch := range batches {
		if batch.Status != models.BatchCommitted {
			continue
		}
		report.Batches++
		report.Packages += batch.Packages
		net = net.Add(batch.NetKg)
		solid = solid.Add(batch.SolidWasteKg)
		liquid = liquid.Add(batch.LiquidWasteKg)
		packaging = packaging.Add(batch.PackagingWasteKg)
	}
	for _, shipment := range shipments {
		shipped = shipped.Add(shipment.Kg)
	}
	report.Shipments = len(shipments)
	report.NetKg = net.InexactFloat64()
	report.SolidWasteKg = solid.InexactFloat64()
	report.LiquidWasteKg = liquid.InexactFloat64()
	report.PackagingWasteKg = packaging.InexactFloat64()
	report.ShippedKg = shipped.InexactFloat64()

	if s.alerts != nil {
		alerts, err := s.alerts.Alerts(ctx)
		if err != nil {
			s.logger.Warn("daily report without alerts", zap.Error(err))
		}
		for _, alert := range alerts {
			report.Alerts = append(report.Alerts, alert.Ingredient)
		}
	}

	if s.archive != nil {
		if err := s.archive.SaveDailyReport(ctx, report); err != nil {
			return report, fmt.Errorf("archive daily report: %w", err)
		}
	}
	return report, nil
}

// History returns archived daily reports in [from, to].
func (s *Service) History(ctx context.Context, from, to time.Time) ([]models.DailyReport, error) {
	if s.archive == nil {
		return nil, nil
	}
	return s.archive.DailyReports(ctx, from, to)
}

// Summary renders a daily report as a short operator message.
func Summary(report models.DailyReport) string {
	msg := fmt.Sprintf("Production %s: %d batches, %d packages, %.2f kg net. Waste solid %.2f kg, liquid %.2f kg, packaging %.3f kg. Shipped %.2f kg in %d shipments.",
		report.Date.Format(time.DateOnly), report.Batches, report.Packages, report.NetKg,
		report.SolidWasteKg, report.LiquidWasteKg, report.PackagingWasteKg, report.ShippedKg, report.Shipments)
	if len(report.Alerts) > 0 {
		msg += " Critical stock: " + strings.Join(report.Alerts, ", ") + "."
	}
	return msg
}
