// Package monitor derives critical-stock alerts from the lot inventory and the limits table.
package monitor

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mamadbah2/batchledger/internal/domain/models"
	"github.com/mamadbah2/batchledger/internal/ledger"
	"github.com/mamadbah2/batchledger/internal/metrics"
	"github.com/mamadbah2/batchledger/internal/repository"
)

// StockReader sums remaining stock per ingredient.
type StockReader interface {
	RemainingByIngredient(ctx context.Context) (map[string]decimal.Decimal, error)
}

// Service computes alerts on demand. It holds no state of its own.
type Service struct {
	store   repository.Store
	stock   StockReader
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewService wires the monitor.
func NewService(store repository.Store, stock StockReader, m *metrics.Metrics, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, stock: stock, metrics: m, logger: logger}
}

// Limits returns the configured critical limits.
func (s *Service) Limits(ctx context.Context) ([]models.Limit, error) {
	rows, err := s.store.ReadAll(ctx, repository.Limits)
	if err != nil {
		return nil, fmt.Errorf("load limits: %w", err)
	}
	limits := make([]models.Limit, 0, len(rows))
	for _, row := range rows {
		limit, err := ledger.ParseLimit(row)
		if err != nil {
			s.logger.Warn("skip unreadable limit row", zap.Error(err))
			continue
		}
		limits = append(limits, limit)
	}
	return limits, nil
}

// SetLimits replaces the whole limits table.
func (s *Service) SetLimits(ctx context.Context, limits []models.Limit) error {
	seen := make(map[string]struct{}, len(limits))
	rows := make([]repository.Row, 0, len(limits))
	for _, limit := range limits {
		limit.Ingredient = strings.TrimSpace(limit.Ingredient)
		if limit.Ingredient == "" {
			return fmt.Errorf("%w: limit without ingredient", models.ErrInvalidInput)
		}
		if limit.CriticalKg.IsNegative() {
			return fmt.Errorf("%w: negative limit for %s", models.ErrInvalidInput, limit.Ingredient)
		}
		if _, dup := seen[limit.Ingredient]; dup {
			return fmt.Errorf("%w: limit for %s listed twice", models.ErrDuplicate, limit.Ingredient)
		}
		seen[limit.Ingredient] = struct{}{}
		rows = append(rows, ledger.LimitRow(limit))
	}
	if err := s.store.ReplaceAll(ctx, repository.Limits, rows); err != nil {
		return fmt.Errorf("save limits: %w", err)
	}
	s.logger.Info("critical limits replaced", zap.Int("count", len(rows)))
	return nil
}

// Alerts lists the ingredients whose total remaining stock is strictly below a non-zero limit.
func (s *Service) Alerts(ctx context.Context) ([]models.Alert, error) {
	limits, err := s.Limits(ctx)
	if err != nil {
		return nil, err
	}
	remaining, err := s.stock.RemainingByIngredient(ctx)
	if err != nil {
		return nil, err
	}

	var alerts []models.Alert
	for _, limit := range limits {
		if !limit.CriticalKg.IsPositive() {
			continue
		}
		total := remaining[limit.Ingredient]
		if total.LessThan(limit.CriticalKg) {
			alerts = append(alerts, models.Alert{Ingredient: limit.Ingredient, RemainingKg: total, LimitKg: limit.CriticalKg})
		}
	}
	sort.Slice(alerts, func(i, j int) bool { return alerts[i].Ingredient < alerts[j].Ingredient })

	s.metrics.StockObserved(remaining, len(alerts))
	return alerts, nil
}
