package models

import "time"

// DailyReport represents the aggregated production day stored in MongoDB.
type DailyReport struct {
	Date             time.Time `bson:"date" json:"date"`
	Batches          int       `bson:"batches" json:"batches"`
	Packages         int       `bson:"packages" json:"packages"`
	NetKg            float64   `bson:"net_kg" json:"net_kg"`
	SolidWasteKg     float64   `bson:"solid_waste_kg" json:"solid_waste_kg"`
	LiquidWasteKg    float64   `bson:"liquid_waste_kg" json:"liquid_waste_kg"`
	PackagingWasteKg float64   `bson:"packaging_waste_kg" json:"packaging_waste_kg"`
	ShippedKg        float64   `bson:"shipped_kg" json:"shipped_kg"`
	Shipments        int       `bson:"shipments" json:"shipments"`
	Alerts           []string  `bson:"alerts" json:"alerts"`
	CreatedAt        time.Time `bson:"created_at" json:"created_at"`
}

// WasteLine is one row of the waste report.
type WasteLine struct {
	BatchID              string    `json:"batch_id"`
	Date                 time.Time `json:"date"`
	ProductCode          string    `json:"product_code"`
	BatchNumber          string    `json:"batch_number"`
	NetKg                float64   `json:"net_kg"`
	SolidWasteKg         float64   `json:"solid_waste_kg"`
	SolidWastePercent    float64   `json:"solid_waste_percent"`
	LiquidWastePercent   float64   `json:"liquid_waste_percent"`
	PackagingGramsPerPkg float64   `json:"packaging_grams_per_package"`
}

// Trace is the lot-level genealogy of one production batch.
type Trace struct {
	Batch       ProductionBatch `json:"batch"`
	Finished    *FinishedLot    `json:"finished,omitempty"`
	DaysInStore int             `json:"days_in_store"`
	Shipments   []Shipment      `json:"shipments"`
	SourceLots  []Lot           `json:"source_lots"`
}
