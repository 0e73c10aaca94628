package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// BatchStatus tracks how far the commit sequence of a production record progressed.
type BatchStatus string

const (
	BatchPending   BatchStatus = "pending"
	BatchCommitted BatchStatus = "committed"
)

// ConsumptionLine is one itemized use of a lot by a production batch.
type ConsumptionLine struct {
	Ingredient string          `json:"ingredient"`
	Category   Category        `json:"category"`
	LotID      string          `json:"lot_id"`
	LotNumber  string          `json:"lot_number"`
	Quantity   decimal.Decimal `json:"quantity"`
	Units      int             `json:"units,omitempty"`
}

// ProductionBatch is the authoritative traceability record of one produced batch.
type ProductionBatch struct {
	ID                  string            `json:"id"`
	Date                time.Time         `json:"date"`
	ProductCode         string            `json:"product_code"`
	BatchNumber         string            `json:"batch_number"`
	Packages            int               `json:"packages"`
	NetKg               decimal.Decimal   `json:"net_kg"`
	TheoreticalSolidKg  decimal.Decimal   `json:"theoretical_solid_kg"`
	TheoreticalLiquidKg decimal.Decimal   `json:"theoretical_liquid_kg"`
	SolidWasteKg        decimal.Decimal   `json:"solid_waste_kg"`
	LiquidWasteKg       decimal.Decimal   `json:"liquid_waste_kg"`
	PackagingWasteKg    decimal.Decimal   `json:"packaging_waste_kg"`
	Consumption         []ConsumptionLine `json:"consumption"`
	Status              BatchStatus       `json:"status"`
}

// ActualByCategory sums the itemized consumption of one category.
func (b ProductionBatch) ActualByCategory(category Category) decimal.Decimal {
	total := decimal.Zero
	for _, line := range b.Consumption {
		if line.Category == category {
			total = total.Add(line.Quantity)
		}
	}
	return total
}

// ActualByIngredient sums the itemized consumption per ingredient.
func (b ProductionBatch) ActualByIngredient() map[string]decimal.Decimal {
	totals := make(map[string]decimal.Decimal)
	for _, line := range b.Consumption {
		totals[line.Ingredient] = totals[line.Ingredient].Add(line.Quantity)
	}
	return totals
}

// WasteConsistent reports whether the stored solid and liquid waste still equal
// itemized actual usage minus the stored theoretical usage.
func (b ProductionBatch) WasteConsistent() bool {
	solid := b.ActualByCategory(CategorySolid).Sub(b.TheoreticalSolidKg)
	liquid := b.ActualByCategory(CategoryLiquid).Sub(b.TheoreticalLiquidKg)
	return solid.Equal(b.SolidWasteKg) && liquid.Equal(b.LiquidWasteKg)
}

// DaysPerShelfMonth approximates a month when computing expiry dates.
const DaysPerShelfMonth = 30

// ExpiryDate applies the shelf life to a production date.
func ExpiryDate(produced time.Time, shelfLifeMonths int) time.Time {
	return produced.AddDate(0, 0, shelfLifeMonths*DaysPerShelfMonth)
}

// FinishedLot is the sellable output of one committed batch.
type FinishedLot struct {
	BatchID        string          `json:"batch_id"`
	ProductCode    string          `json:"product_code"`
	BatchNumber    string          `json:"batch_number"`
	ProductionDate time.Time       `json:"production_date"`
	ExpiryDate     time.Time       `json:"expiry_date"`
	StartingKg     decimal.Decimal `json:"starting_kg"`
	RemainingKg    decimal.Decimal `json:"remaining_kg"`
	PackageKg      decimal.Decimal `json:"package_kg"`
}

// RemainingPackages derives how many packages the remaining kg represent.
func (f FinishedLot) RemainingPackages() decimal.Decimal {
	if !f.PackageKg.IsPositive() {
		return decimal.Zero
	}
	return f.RemainingKg.Div(f.PackageKg)
}
