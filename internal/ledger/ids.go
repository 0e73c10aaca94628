package ledger

import (
	"time"

	"github.com/google/uuid"
)

// Identifier prefixes. They keep ids readable in a spreadsheet.
const (
	PrefixLot      = "STK"
	PrefixBatch    = "URT"
	PrefixShipment = "SHP"
	PrefixMovement = "MOV"
)

// IDGenerator returns a new unique id carrying the prefix.
type IDGenerator func(prefix string) string

// NewID builds "<prefix>-<uuidv7>", which sorts by creation time.
func NewID(prefix string) string {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return prefix + "-" + id.String()
}

// Clock returns the current time; tests replace it.
type Clock func() time.Time
