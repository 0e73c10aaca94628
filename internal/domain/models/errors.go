package models

import "errors"

// Ledger error kinds. Callers match them with errors.Is; the wrapped message carries the detail.
var (
	// ErrInvalidRecipe indicates the solid fractions of a recipe do not sum to 1 within tolerance,
	// or the recipe references unknown ingredients.
	ErrInvalidRecipe = errors.New("invalid recipe")
	// ErrMissingLotSelection indicates a positive consumption entry without a real lot reference.
	ErrMissingLotSelection = errors.New("missing lot selection")
	// ErrInsufficientFinishedStock indicates a shipment larger than the remaining finished goods.
	ErrInsufficientFinishedStock = errors.New("insufficient finished stock")
	// ErrStoreUnavailable indicates the backing store failed a read or write. Retryable.
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrPartialCommit indicates a production record whose inventory decrements or
	// finished-goods lot are missing.
	ErrPartialCommit = errors.New("partial commit detected")

	ErrNotFound          = errors.New("not found")
	ErrInvalidInput      = errors.New("invalid input")
	ErrInvalidBatch      = errors.New("invalid batch")
	ErrTooManyLotEntries = errors.New("too many lot entries")
	ErrDuplicate         = errors.New("duplicate")
	// ErrStaleValue indicates a conditional update lost against a concurrent writer.
	ErrStaleValue = errors.New("stale value")
)
