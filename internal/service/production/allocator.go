package production

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mamadbah2/batchledger/internal/domain/models"
)

// Entry is one operator-chosen consumption line. Solids and liquids use Quantity
// in kg; packaging uses Units. A lot is referenced by id or by lot number.
type Entry struct {
	LotID     string          `json:"lot_id"`
	LotNumber string          `json:"lot_number"`
	Quantity  decimal.Decimal `json:"quantity"`
	Units     int             `json:"units"`
}

func (e Entry) blank() bool {
	return e.LotID == "" && strings.TrimSpace(e.LotNumber) == "" && e.Quantity.IsZero() && e.Units == 0
}

// BatchDraft is a batch being assembled. It has no side effects.
type BatchDraft struct {
	Date        time.Time          `json:"date"`
	ProductCode string             `json:"product_code"`
	BatchNumber string             `json:"batch_number"`
	Packages    int                `json:"packages"`
	Entries     map[string][]Entry `json:"entries"`
}

// ValidatedBatch passed every allocation check and can be committed.
type ValidatedBatch struct {
	Batch        models.ProductionBatch `json:"batch"`
	Finished     models.FinishedLot     `json:"finished"`
	Requirements Requirements           `json:"requirements"`

	validated bool
}

// Catalog is the part of the ingredient catalog the allocator needs.
type Catalog interface {
	Recipe(ctx context.Context, code string) (models.Recipe, error)
	Ingredient(ctx context.Context, name string) (models.Ingredient, error)
}

// LotReader lists the current inventory. It must read the store, not a cache.
type LotReader interface {
	List(ctx context.Context) ([]models.Lot, error)
}

// Allocator turns drafts into validated batches.
type Allocator struct {
	catalog Catalog
	lots    LotReader
	now     func() time.Time
	logger  *zap.Logger
}

// maxEntries is how many lot entries each category accepts per ingredient.
var maxEntries = map[models.Category]int{
	models.CategorySolid:     2,
	models.CategoryLiquid:    1,
	models.CategoryPackaging: 1,
}

// NewAllocator wires the allocator.
func NewAllocator(catalog Catalog, lots LotReader, now func() time.Time, logger *zap.Logger) *Allocator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if now == nil {
		now = time.Now
	}
	return &Allocator{catalog: catalog, lots: lots, now: now, logger: logger}
}

// Validate checks a draft against the recipe and current lots and computes waste.
// Any failure rejects the whole draft; nothing is written.
func (a *Allocator) Validate(ctx context.Context, draft BatchDraft) (ValidatedBatch, error) {
	if draft.Packages <= 0 {
		return ValidatedBatch{}, fmt.Errorf("%w: packages produced must be positive", models.ErrInvalidBatch)
	}
	if strings.TrimSpace(draft.ProductCode) == "" {
		return ValidatedBatch{}, fmt.Errorf("%w: product code is required", models.ErrInvalidBatch)
	}
	if strings.TrimSpace(draft.BatchNumber) == "" {
		return ValidatedBatch{}, fmt.Errorf("%w: batch number is required", models.ErrInvalidBatch)
	}
	if draft.Date.IsZero() {
		draft.Date = a.now()
	}

	recipe, err := a.catalog.Recipe(ctx, draft.ProductCode)
	if err != nil {
		return ValidatedBatch{}, fmt.Errorf("load recipe %s: %w", draft.ProductCode, err)
	}
	requested := RequestedKg(draft.Packages, recipe.NetPackageKg)
	requirements := Resolve(recipe, requested)

	lots, err := a.lots.List(ctx)
	if err != nil {
		return ValidatedBatch{}, fmt.Errorf("load lots for allocation: %w", err)
	}

	names := make([]string, 0, len(draft.Entries))
	for name := range draft.Entries {
		names = append(names, name)
	}
	sort.Strings(names)

	packages := decimal.NewFromInt(int64(draft.Packages))
	packagingWaste := decimal.Zero
	var lines []models.ConsumptionLine

	for _, name := range names {
		entries := nonBlank(draft.Entries[name])
		if len(entries) == 0 {
			continue
		}
		ingredient, err := a.catalog.Ingredient(ctx, name)
		if err != nil {
			return ValidatedBatch{}, fmt.Errorf("%w: ingredient %s: %v", models.ErrInvalidInput, name, err)
		}
		if ingredient.Category != models.CategoryPackaging {
			if _, needed := requirements[name]; !needed {
				a.logger.Debug("ignoring entries for ingredient with no theoretical requirement",
					zap.String("ingredient", name), zap.String("product", recipe.Code))
				continue
			}
		}
		if limit := maxEntries[ingredient.Category]; len(entries) > limit {
			return ValidatedBatch{}, fmt.Errorf("%w: %s accepts at most %d lot entries, got %d",
				models.ErrTooManyLotEntries, name, limit, len(entries))
		}

		for _, entry := range entries {
			line, unitKg, ok, err := a.line(ingredient, entry, lots)
			if err != nil {
				return ValidatedBatch{}, err
			}
			if !ok {
				continue
			}
			if ingredient.Category == models.CategoryPackaging {
				// One packaging unit per produced package is assumed.
				packagingWaste = packagingWaste.Add(decimal.NewFromInt(int64(line.Units)).Sub(packages).Mul(unitKg))
			}
			lines = append(lines, line)
		}
	}

	batch := models.ProductionBatch{
		Date:                draft.Date,
		ProductCode:         recipe.Code,
		BatchNumber:         strings.TrimSpace(draft.BatchNumber),
		Packages:            draft.Packages,
		NetKg:               requested,
		TheoreticalSolidKg:  requirements.Total(models.CategorySolid),
		TheoreticalLiquidKg: requirements.Total(models.CategoryLiquid),
		PackagingWasteKg:    packagingWaste,
		Consumption:         lines,
		Status:              models.BatchPending,
	}
	batch.SolidWasteKg = batch.ActualByCategory(models.CategorySolid).Sub(batch.TheoreticalSolidKg)
	batch.LiquidWasteKg = batch.ActualByCategory(models.CategoryLiquid).Sub(batch.TheoreticalLiquidKg)

	finished := models.FinishedLot{
		ProductCode:    recipe.Code,
		BatchNumber:    batch.BatchNumber,
		ProductionDate: draft.Date,
		ExpiryDate:     models.ExpiryDate(draft.Date, recipe.ShelfLifeMonths),
		StartingKg:     requested,
		RemainingKg:    requested,
		PackageKg:      recipe.NetPackageKg,
	}

	return ValidatedBatch{Batch: batch, Finished: finished, Requirements: requirements, validated: true}, nil
}

// line converts one entry into a consumption line. unitKg is only set for packaging;
// ok is false for zero entries.
func (a *Allocator) line(ingredient models.Ingredient, entry Entry, lots []models.Lot) (line models.ConsumptionLine, unitKg decimal.Decimal, ok bool, err error) {
	packaging := ingredient.Category == models.CategoryPackaging

	switch {
	case packaging && entry.Units < 0, !packaging && entry.Quantity.IsNegative():
		return line, unitKg, false, fmt.Errorf("%w: negative consumption for %s", models.ErrInvalidInput, ingredient.Name)
	case packaging && entry.Units == 0, !packaging && entry.Quantity.IsZero():
		return line, unitKg, false, nil
	}

	lot, found := findLot(lots, ingredient.Name, entry)
	if !found {
		return line, unitKg, false, fmt.Errorf("%w: %s has consumption but no lot with stock selected",
			models.ErrMissingLotSelection, ingredient.Name)
	}

	line = models.ConsumptionLine{
		Ingredient: ingredient.Name,
		Category:   ingredient.Category,
		LotID:      lot.ID,
		LotNumber:  lot.LotNumber,
		Quantity:   entry.Quantity,
	}
	if packaging {
		if !lot.PackagingUnitGrams.IsPositive() {
			return models.ConsumptionLine{}, unitKg, false, fmt.Errorf("%w: packaging lot %s has no unit weight", models.ErrInvalidInput, lot.LotNumber)
		}
		unitKg = lot.UnitKg()
		line.Units = entry.Units
		line.Quantity = decimal.NewFromInt(int64(entry.Units)).Mul(unitKg)
	}
	return line, unitKg, true, nil
}

// findLot resolves an entry to a lot of the ingredient that still holds stock.
func findLot(lots []models.Lot, ingredient string, entry Entry) (models.Lot, bool) {
	lotNumber := strings.TrimSpace(entry.LotNumber)
	for _, lot := range lots {
		if lot.Ingredient != ingredient || !lot.Remaining.IsPositive() {
			continue
		}
		if entry.LotID != "" {
			if lot.ID == entry.LotID {
				return lot, true
			}
			continue
		}
		if lotNumber != "" && lot.Matches(ingredient, lotNumber) {
			return lot, true
		}
	}
	return models.Lot{}, false
}

func nonBlank(entries []Entry) []Entry {
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if !e.blank() {
			out = append(out, e)
		}
	}
	return out
}
