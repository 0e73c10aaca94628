package ledger

import (
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/mamadbah2/batchledger/internal/domain/models"
	"github.com/mamadbah2/batchledger/internal/repository"
)

// LotRow converts a lot to its inventory row.
func LotRow(lot models.Lot) repository.Row {
	return repository.Row{
		"id":                   lot.ID,
		"arrival_date":         FormatDate(lot.ArrivalDate),
		"ingredient":           lot.Ingredient,
		"lot_number":           lot.LotNumber,
		"received":             FormatDecimal(lot.Received),
		"remaining":            FormatDecimal(lot.Remaining),
		"unit":                 lot.Unit,
		"packaging_unit_grams": FormatDecimal(lot.PackagingUnitGrams),
	}
}

// ParseLot reads an inventory row.
func ParseLot(row repository.Row) (models.Lot, error) {
	lot := models.Lot{
		ID:         row.Get("id"),
		Ingredient: row.Get("ingredient"),
		LotNumber:  row.Get("lot_number"),
		Unit:       row.Get("unit"),
	}
	if lot.Unit == "" {
		lot.Unit = models.UnitKg
	}
	var err error
	if lot.ArrivalDate, err = ParseDate(row.Get("arrival_date")); err != nil {
		return models.Lot{}, fmt.Errorf("lot %s arrival_date: %w", lot.ID, err)
	}
	if lot.Received, err = ParseDecimal(row.Get("received")); err != nil {
		return models.Lot{}, fmt.Errorf("lot %s received: %w", lot.ID, err)
	}
	if lot.Remaining, err = ParseDecimal(row.Get("remaining")); err != nil {
		return models.Lot{}, fmt.Errorf("lot %s remaining: %w", lot.ID, err)
	}
	if lot.PackagingUnitGrams, err = ParseDecimal(row.Get("packaging_unit_grams")); err != nil {
		return models.Lot{}, fmt.Errorf("lot %s packaging_unit_grams: %w", lot.ID, err)
	}
	return lot, nil
}

// MovementRow converts a lot movement to its row.
func MovementRow(m models.LotMovement) repository.Row {
	return repository.Row{
		"id":         m.ID,
		"date":       FormatTime(m.Date),
		"lot_id":     m.LotID,
		"batch_id":   m.BatchID,
		"ingredient": m.Ingredient,
		"lot_number": m.LotNumber,
		"quantity":   FormatDecimal(m.Quantity),
		"before":     FormatDecimal(m.Before),
		"after":      FormatDecimal(m.After),
	}
}

// ParseMovement reads a lot movement row.
func ParseMovement(row repository.Row) (models.LotMovement, error) {
	m := models.LotMovement{
		ID:         row.Get("id"),
		LotID:      row.Get("lot_id"),
		BatchID:    row.Get("batch_id"),
		Ingredient: row.Get("ingredient"),
		LotNumber:  row.Get("lot_number"),
	}
	var err error
	if m.Date, err = ParseDate(row.Get("date")); err != nil {
		return models.LotMovement{}, fmt.Errorf("movement %s date: %w", m.ID, err)
	}
	if m.Quantity, err = ParseDecimal(row.Get("quantity")); err != nil {
		return models.LotMovement{}, fmt.Errorf("movement %s quantity: %w", m.ID, err)
	}
	if m.Before, err = ParseDecimal(row.Get("before")); err != nil {
		return models.LotMovement{}, fmt.Errorf("movement %s before: %w", m.ID, err)
	}
	if m.After, err = ParseDecimal(row.Get("after")); err != nil {
		return models.LotMovement{}, fmt.Errorf("movement %s after: %w", m.ID, err)
	}
	return m, nil
}

// DeletionRow converts a lot deletion audit entry to its row.
func DeletionRow(d models.LotDeletion) repository.Row {
	return repository.Row{
		"lot_id":     d.LotID,
		"ingredient": d.Ingredient,
		"lot_number": d.LotNumber,
		"remaining":  FormatDecimal(d.Remaining),
		"reason":     d.Reason,
		"deleted_at": FormatTime(d.DeletedAt),
	}
}

// BatchRow converts a production record to its row.
func BatchRow(b models.ProductionBatch) (repository.Row, error) {
	consumption, err := EncodeConsumption(b.Consumption)
	if err != nil {
		return nil, err
	}
	return repository.Row{
		"id":                    b.ID,
		"date":                  FormatDate(b.Date),
		"product_code":          b.ProductCode,
		"batch_number":          b.BatchNumber,
		"packages":              strconv.Itoa(b.Packages),
		"net_kg":                FormatDecimal(b.NetKg),
		"theoretical_solid_kg":  FormatDecimal(b.TheoreticalSolidKg),
		"theoretical_liquid_kg": FormatDecimal(b.TheoreticalLiquidKg),
		"solid_waste_kg":        FormatDecimal(b.SolidWasteKg),
		"liquid_waste_kg":       FormatDecimal(b.LiquidWasteKg),
		"packaging_waste_kg":    FormatDecimal(b.PackagingWasteKg),
		"consumption":           consumption,
		"status":                string(b.Status),
	}, nil
}

// ParseBatch reads a production record row. Rows written before the status
// column existed are treated as committed.
func ParseBatch(row repository.Row) (models.ProductionBatch, error) {
	b := models.ProductionBatch{
		ID:          row.Get("id"),
		ProductCode: row.Get("product_code"),
		BatchNumber: row.Get("batch_number"),
		Status:      models.BatchStatus(row.Get("status")),
	}
	if b.Status == "" {
		b.Status = models.BatchCommitted
	}
	var err error
	if b.Date, err = ParseDate(row.Get("date")); err != nil {
		return models.ProductionBatch{}, fmt.Errorf("batch %s date: %w", b.ID, err)
	}
	if b.Packages, err = ParseInt(row.Get("packages")); err != nil {
		return models.ProductionBatch{}, fmt.Errorf("batch %s packages: %w", b.ID, err)
	}
	for column, target := range map[string]*decimal.Decimal{
		"net_kg":                &b.NetKg,
		"theoretical_solid_kg":  &b.TheoreticalSolidKg,
		"theoretical_liquid_kg": &b.TheoreticalLiquidKg,
		"solid_waste_kg":        &b.SolidWasteKg,
		"liquid_waste_kg":       &b.LiquidWasteKg,
		"packaging_waste_kg":    &b.PackagingWasteKg,
	} {
		value, err := ParseDecimal(row.Get(column))
		if err != nil {
			return models.ProductionBatch{}, fmt.Errorf("batch %s %s: %w", b.ID, column, err)
		}
		*target = value
	}
	if b.Consumption, err = DecodeConsumption(row.Get("consumption")); err != nil {
		return models.ProductionBatch{}, fmt.Errorf("batch %s: %w", b.ID, err)
	}
	return b, nil
}

// FinishedRow converts a finished-goods lot to its row.
func FinishedRow(f models.FinishedLot) repository.Row {
	return repository.Row{
		"batch_id":        f.BatchID,
		"product_code":    f.ProductCode,
		"batch_number":    f.BatchNumber,
		"production_date": FormatDate(f.ProductionDate),
		"expiry_date":     FormatDate(f.ExpiryDate),
		"starting_kg":     FormatDecimal(f.StartingKg),
		"remaining_kg":    FormatDecimal(f.RemainingKg),
		"package_kg":      FormatDecimal(f.PackageKg),
	}
}

// ParseFinished reads a finished-goods row.
func ParseFinished(row repository.Row) (models.FinishedLot, error) {
	f := models.FinishedLot{
		BatchID:     row.Get("batch_id"),
		ProductCode: row.Get("product_code"),
		BatchNumber: row.Get("batch_number"),
	}
	var err error
	if f.ProductionDate, err = ParseDate(row.Get("production_date")); err != nil {
		return models.FinishedLot{}, fmt.Errorf("finished lot %s production_date: %w", f.BatchID, err)
	}
	if f.ExpiryDate, err = ParseDate(row.Get("expiry_date")); err != nil {
		return models.FinishedLot{}, fmt.Errorf("finished lot %s expiry_date: %w", f.BatchID, err)
	}
	if f.StartingKg, err = ParseDecimal(row.Get("starting_kg")); err != nil {
		return models.FinishedLot{}, fmt.Errorf("finished lot %s starting_kg: %w", f.BatchID, err)
	}
	if f.RemainingKg, err = ParseDecimal(row.Get("remaining_kg")); err != nil {
		return models.FinishedLot{}, fmt.Errorf("finished lot %s remaining_kg: %w", f.BatchID, err)
	}
	if f.PackageKg, err = ParseDecimal(row.Get("package_kg")); err != nil {
		return models.FinishedLot{}, fmt.Errorf("finished lot %s package_kg: %w", f.BatchID, err)
	}
	return f, nil
}

// ShipmentRow converts a shipment to its row.
func ShipmentRow(s models.Shipment) repository.Row {
	return repository.Row{
		"id":       s.ID,
		"date":     FormatTime(s.Date),
		"batch_id": s.BatchID,
		"customer": s.Customer,
		"type":     string(s.Type),
		"kg":       FormatDecimal(s.Kg),
		"note":     s.Note,
	}
}

// ParseShipment reads a shipment row.
func ParseShipment(row repository.Row) (models.Shipment, error) {
	s := models.Shipment{
		ID:       row.Get("id"),
		BatchID:  row.Get("batch_id"),
		Customer: row.Get("customer"),
		Note:     row.Get("note"),
	}
	var err error
	if s.Date, err = ParseDate(row.Get("date")); err != nil {
		return models.Shipment{}, fmt.Errorf("shipment %s date: %w", s.ID, err)
	}
	if s.Type, err = models.ParseShipmentType(row.Get("type")); err != nil {
		return models.Shipment{}, fmt.Errorf("shipment %s: %w", s.ID, err)
	}
	if s.Kg, err = ParseDecimal(row.Get("kg")); err != nil {
		return models.Shipment{}, fmt.Errorf("shipment %s kg: %w", s.ID, err)
	}
	return s, nil
}

// IngredientRow converts a catalog ingredient to its row.
func IngredientRow(i models.Ingredient) repository.Row {
	return repository.Row{"name": i.Name, "category": string(i.Category)}
}

// ParseIngredient reads an ingredient row.
func ParseIngredient(row repository.Row) (models.Ingredient, error) {
	category, err := models.ParseCategory(row.Get("category"))
	if err != nil {
		return models.Ingredient{}, fmt.Errorf("ingredient %s: %w", row.Get("name"), err)
	}
	return models.Ingredient{Name: row.Get("name"), Category: category}, nil
}

// RecipeRow converts a recipe to its products row.
func RecipeRow(r models.Recipe) (repository.Row, error) {
	solids, err := EncodeComposition(r.Solids)
	if err != nil {
		return nil, err
	}
	liquids, err := EncodeComposition(r.Liquids)
	if err != nil {
		return nil, err
	}
	return repository.Row{
		"code":              r.Code,
		"name":              r.Name,
		"net_package_kg":    FormatDecimal(r.NetPackageKg),
		"shelf_life_months": strconv.Itoa(r.ShelfLifeMonths),
		"solids":            solids,
		"liquids":           liquids,
	}, nil
}

// ParseRecipe reads a products row.
func ParseRecipe(row repository.Row) (models.Recipe, error) {
	r := models.Recipe{Code: row.Get("code"), Name: row.Get("name")}
	var err error
	if r.NetPackageKg, err = ParseDecimal(row.Get("net_package_kg")); err != nil {
		return models.Recipe{}, fmt.Errorf("recipe %s net_package_kg: %w", r.Code, err)
	}
	if r.ShelfLifeMonths, err = ParseInt(row.Get("shelf_life_months")); err != nil {
		return models.Recipe{}, fmt.Errorf("recipe %s shelf_life_months: %w", r.Code, err)
	}
	if r.Solids, err = DecodeComposition(row.Get("solids")); err != nil {
		return models.Recipe{}, fmt.Errorf("recipe %s solids: %w", r.Code, err)
	}
	if r.Liquids, err = DecodeComposition(row.Get("liquids")); err != nil {
		return models.Recipe{}, fmt.Errorf("recipe %s liquids: %w", r.Code, err)
	}
	return r, nil
}

// LimitRow converts a critical-stock limit to its row.
func LimitRow(l models.Limit) repository.Row {
	return repository.Row{"ingredient": l.Ingredient, "critical_kg": FormatDecimal(l.CriticalKg)}
}

// ParseLimit reads a limits row.
func ParseLimit(row repository.Row) (models.Limit, error) {
	critical, err := ParseDecimal(row.Get("critical_kg"))
	if err != nil {
		return models.Limit{}, fmt.Errorf("limit %s: %w", row.Get("ingredient"), err)
	}
	return models.Limit{Ingredient: row.Get("ingredient"), CriticalKg: critical}, nil
}
