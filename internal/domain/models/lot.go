package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// UnitKg is the only unit the inventory ledger stores quantities in.
const UnitKg = "kg"

// Lot is one dated arrival of an ingredient. Remaining only ever decreases.
type Lot struct {
	ID                 string          `json:"id"`
	ArrivalDate        time.Time       `json:"arrival_date"`
	Ingredient         string          `json:"ingredient"`
	LotNumber          string          `json:"lot_number"`
	Received           decimal.Decimal `json:"received"`
	Remaining          decimal.Decimal `json:"remaining"`
	Unit               string          `json:"unit"`
	PackagingUnitGrams decimal.Decimal `json:"packaging_unit_grams"`
}

// UnitKg converts the packaging unit weight to kilograms.
func (l Lot) UnitKg() decimal.Decimal {
	return l.PackagingUnitGrams.Div(decimal.NewFromInt(1000))
}

// Matches reports whether the lot is the one an operator refers to by ingredient and lot number.
func (l Lot) Matches(ingredient, lotNumber string) bool {
	return l.Ingredient == ingredient && l.LotNumber == lotNumber
}

// LotMovement is the append-only evidence of one remaining-quantity decrement.
type LotMovement struct {
	ID         string          `json:"id"`
	Date       time.Time       `json:"date"`
	LotID      string          `json:"lot_id"`
	BatchID    string          `json:"batch_id"`
	Ingredient string          `json:"ingredient"`
	LotNumber  string          `json:"lot_number"`
	Quantity   decimal.Decimal `json:"quantity"`
	Before     decimal.Decimal `json:"before"`
	After      decimal.Decimal `json:"after"`
}

// Shortfall is the part of the movement the lot could not cover because remaining is floored at zero.
func (m LotMovement) Shortfall() decimal.Decimal {
	applied := m.Before.Sub(m.After)
	return m.Quantity.Sub(applied)
}

// LotDeletion is the audit trail left behind when an operator removes a lot.
type LotDeletion struct {
	LotID      string          `json:"lot_id"`
	Ingredient string          `json:"ingredient"`
	LotNumber  string          `json:"lot_number"`
	Remaining  decimal.Decimal `json:"remaining"`
	Reason     string          `json:"reason"`
	DeletedAt  time.Time       `json:"deleted_at"`
}
