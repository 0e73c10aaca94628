package models

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// FractionTolerance bounds how far the solid fractions of a recipe may drift from 1.
var FractionTolerance = decimal.RequireFromString("0.001")

// Recipe describes how one finished product is composed.
// Solids maps ingredient to its fraction of the output; Liquids maps ingredient to kg per 100 kg of output.
type Recipe struct {
	Code            string                     `json:"code"`
	Name            string                     `json:"name"`
	NetPackageKg    decimal.Decimal            `json:"net_package_kg"`
	ShelfLifeMonths int                        `json:"shelf_life_months"`
	Solids          map[string]decimal.Decimal `json:"solids"`
	Liquids         map[string]decimal.Decimal `json:"liquids"`
}

// SolidTotal sums the solid fractions.
func (r Recipe) SolidTotal() decimal.Decimal {
	total := decimal.Zero
	for _, fraction := range r.Solids {
		total = total.Add(fraction)
	}
	return total
}

// Validate checks the invariants a recipe must hold before it is accepted into the catalog.
func (r Recipe) Validate() error {
	if strings.TrimSpace(r.Code) == "" {
		return fmt.Errorf("%w: product code is required", ErrInvalidRecipe)
	}
	if !r.NetPackageKg.IsPositive() {
		return fmt.Errorf("%w: net package weight must be positive", ErrInvalidRecipe)
	}
	if r.ShelfLifeMonths < 0 {
		return fmt.Errorf("%w: shelf life must not be negative", ErrInvalidRecipe)
	}
	for name, fraction := range r.Solids {
		if fraction.IsNegative() {
			return fmt.Errorf("%w: negative fraction for %s", ErrInvalidRecipe, name)
		}
	}
	for name, ratio := range r.Liquids {
		if ratio.IsNegative() {
			return fmt.Errorf("%w: negative ratio for %s", ErrInvalidRecipe, name)
		}
	}

	total := r.SolidTotal()
	if total.Sub(decimal.NewFromInt(1)).Abs().GreaterThan(FractionTolerance) {
		return fmt.Errorf("%w: solid fractions sum to %s, expected 1", ErrInvalidRecipe, total.String())
	}
	return nil
}
