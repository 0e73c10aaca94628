package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mamadbah2/batchledger/internal/domain/models"
)

func TestStatusFor(t *testing.T) {
	cases := map[error]int{
		models.ErrNotFound:                  http.StatusNotFound,
		models.ErrInsufficientFinishedStock: http.StatusConflict,
		models.ErrPartialCommit:             http.StatusConflict,
		models.ErrDuplicate:                 http.StatusConflict,
		models.ErrInvalidRecipe:             http.StatusUnprocessableEntity,
		models.ErrMissingLotSelection:       http.StatusUnprocessableEntity,
		models.ErrTooManyLotEntries:         http.StatusUnprocessableEntity,
		models.ErrInvalidBatch:              http.StatusUnprocessableEntity,
		models.ErrStoreUnavailable:          http.StatusServiceUnavailable,
		errors.New("boom"):                  http.StatusInternalServerError,
	}
	for err, want := range cases {
		wrapped := fmt.Errorf("commit batch URT-1 at inventory (record pending): %w", err)
		assert.Equal(t, want, statusFor(wrapped), err.Error())
	}
}
