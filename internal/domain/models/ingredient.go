package models

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Category determines the unit semantics of an ingredient.
type Category string

const (
	CategorySolid     Category = "solid"
	CategoryLiquid    Category = "liquid"
	CategoryPackaging Category = "packaging"
)

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	switch c {
	case CategorySolid, CategoryLiquid, CategoryPackaging:
		return true
	}
	return false
}

// ParseCategory accepts the canonical names plus the labels used by the legacy sheet.
func ParseCategory(raw string) (Category, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "solid", "katı", "kati":
		return CategorySolid, nil
	case "liquid", "sıvı", "sivi":
		return CategoryLiquid, nil
	case "packaging", "ambalaj":
		return CategoryPackaging, nil
	default:
		return "", fmt.Errorf("%w: unknown category %q", ErrInvalidInput, raw)
	}
}

// Ingredient is a raw material registered in the catalog.
type Ingredient struct {
	Name     string   `json:"name"`
	Category Category `json:"category"`
}

// Limit is the configured critical stock level of one ingredient.
type Limit struct {
	Ingredient string          `json:"ingredient"`
	CriticalKg decimal.Decimal `json:"critical_kg"`
}

// Alert is emitted when the aggregated remaining stock falls under its limit.
type Alert struct {
	Ingredient  string          `json:"ingredient"`
	RemainingKg decimal.Decimal `json:"remaining_kg"`
	LimitKg     decimal.Decimal `json:"limit_kg"`
}
