package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ShipmentType is metadata only; every type depletes finished goods the same way.
type ShipmentType string

const (
	ShipmentSale     ShipmentType = "sale"
	ShipmentSample   ShipmentType = "sample"
	ShipmentDisposal ShipmentType = "disposal"
)

// ParseShipmentType accepts canonical names and the legacy sheet labels.
func ParseShipmentType(raw string) (ShipmentType, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "sale", "satış", "satis":
		return ShipmentSale, nil
	case "sample", "numune":
		return ShipmentSample, nil
	case "disposal", "imha":
		return ShipmentDisposal, nil
	default:
		return "", fmt.Errorf("%w: unknown shipment type %q", ErrInvalidInput, raw)
	}
}

// Shipment depletes exactly one finished-goods lot.
type Shipment struct {
	ID       string          `json:"id"`
	Date     time.Time       `json:"date"`
	BatchID  string          `json:"batch_id"`
	Customer string          `json:"customer"`
	Type     ShipmentType    `json:"type"`
	Kg       decimal.Decimal `json:"kg"`
	Note     string          `json:"note"`
}
