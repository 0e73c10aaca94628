// Package repository defines the tabular persistence boundary every ledger is stored behind.
package repository

import (
	"context"
	"fmt"

	"github.com/mamadbah2/batchledger/internal/domain/models"
)

// Row is one record keyed by column name. Missing columns read as empty strings.
type Row map[string]string

// Get returns the value of a column, or "" when the column is absent.
func (r Row) Get(column string) string {
	if r == nil {
		return ""
	}
	return r[column]
}

// Table names a ledger tab and its ordered columns.
type Table struct {
	Name    string
	Columns []string
}

// Values projects a row onto the table's column order.
func (t Table) Values(row Row) []string {
	values := make([]string, len(t.Columns))
	for i, column := range t.Columns {
		values[i] = row.Get(column)
	}
	return values
}

// RowFrom builds a row from positional values; short inputs leave trailing columns empty.
func (t Table) RowFrom(values []string) Row {
	row := make(Row, len(t.Columns))
	for i, column := range t.Columns {
		if i < len(values) {
			row[column] = values[i]
		} else {
			row[column] = ""
		}
	}
	return row
}

// HasColumn reports whether the column belongs to the table.
func (t Table) HasColumn(column string) bool {
	for _, c := range t.Columns {
		if c == column {
			return true
		}
	}
	return false
}

// Store is the persistence contract shared by the Sheets, SQLite and in-memory backends.
type Store interface {
	ReadAll(ctx context.Context, table Table) ([]Row, error)
	AppendRow(ctx context.Context, table Table, row Row) error
	UpdateCell(ctx context.Context, table Table, keyColumn, keyValue, targetColumn, newValue string) error
	ReplaceAll(ctx context.Context, table Table, rows []Row) error
	// CompareAndSwapCell writes newValue only when the target cell still equals expected.
	// A mismatch returns models.ErrStaleValue.
	CompareAndSwapCell(ctx context.Context, table Table, keyColumn, keyValue, targetColumn, expected, newValue string) error
}

// Unavailable wraps a backend failure so callers can match models.ErrStoreUnavailable.
func Unavailable(op string, table Table, err error) error {
	return fmt.Errorf("%s %s: %w: %v", op, table.Name, models.ErrStoreUnavailable, err)
}

// Stale reports a lost compare-and-swap.
func Stale(table Table, key, column, expected, actual string) error {
	return fmt.Errorf("%s[%s].%s expected %q got %q: %w", table.Name, key, column, expected, actual, models.ErrStaleValue)
}

// Missing reports an UpdateCell or CompareAndSwapCell against an unknown key.
func Missing(table Table, keyColumn, keyValue string) error {
	return fmt.Errorf("%s where %s=%q: %w", table.Name, keyColumn, keyValue, models.ErrNotFound)
}

// Ledger tables.
var (
	Ingredients = Table{Name: "ingredients", Columns: []string{"name", "category"}}

	Products = Table{Name: "products", Columns: []string{
		"code", "name", "net_package_kg", "shelf_life_months", "solids", "liquids",
	}}

	Inventory = Table{Name: "inventory", Columns: []string{
		"id", "arrival_date", "ingredient", "lot_number", "received", "remaining", "unit", "packaging_unit_grams",
	}}

	Production = Table{Name: "production", Columns: []string{
		"id", "date", "product_code", "batch_number", "packages", "net_kg",
		"theoretical_solid_kg", "theoretical_liquid_kg",
		"solid_waste_kg", "liquid_waste_kg", "packaging_waste_kg", "consumption", "status",
	}}

	FinishedGoods = Table{Name: "finished_goods", Columns: []string{
		"batch_id", "product_code", "batch_number", "production_date", "expiry_date",
		"starting_kg", "remaining_kg", "package_kg",
	}}

	Shipments = Table{Name: "shipments", Columns: []string{
		"id", "date", "batch_id", "customer", "type", "kg", "note",
	}}

	Limits = Table{Name: "limits", Columns: []string{"ingredient", "critical_kg"}}

	LotMovements = Table{Name: "lot_movements", Columns: []string{
		"id", "date", "lot_id", "batch_id", "ingredient", "lot_number", "quantity", "before", "after",
	}}

	LotDeletions = Table{Name: "lot_deletions", Columns: []string{
		"lot_id", "ingredient", "lot_number", "remaining", "reason", "deleted_at",
	}}
)

// Tables lists every ledger table, in the order backends provision them.
var Tables = []Table{
	Ingredients, Products, Inventory, Production, FinishedGoods, Shipments, Limits, LotMovements, LotDeletions,
}
