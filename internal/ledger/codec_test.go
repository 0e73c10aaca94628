package ledger

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mamadbah2/batchledger/internal/domain/models"
)

func TestParseDecimalIsLenient(t *testing.T) {
	cases := map[string]string{
		"":         "0",
		"12":       "12",
		" 12.5 ":   "12.5",
		"12,5":     "12.5",
		"1.250,75": "1250.75",
		"0.125":    "0.125",
	}
	for raw, want := range cases {
		got, err := ParseDecimal(raw)
		require.NoError(t, err, raw)
		assert.True(t, decimal.RequireFromString(want).Equal(got), "%q parsed as %s", raw, got)
	}

	_, err := ParseDecimal("twelve")
	assert.Error(t, err)
}

func TestParseDateAcceptsSheetFormats(t *testing.T) {
	want := time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC)
	for _, raw := range []string{"2024-03-09", "2024-03-09 14:22:01", "2024-03-09T14:22:01Z", "2024-03-09 14:22:01.123456"} {
		got, err := ParseDate(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, want.Format(dateLayout), got.Format(dateLayout), raw)
	}

	_, err := ParseDate("")
	assert.Error(t, err)
}

func TestCompositionRoundTripAndLegacy(t *testing.T) {
	shares := map[string]decimal.Decimal{
		"Flour": decimal.RequireFromString("0.6"),
		"Sugar": decimal.RequireFromString("0.4"),
	}
	encoded, err := EncodeComposition(shares)
	require.NoError(t, err)
	assert.Contains(t, encoded, `"v":1`)

	decoded, err := DecodeComposition(encoded)
	require.NoError(t, err)
	assert.True(t, shares["Flour"].Equal(decoded["Flour"]))

	legacy, err := DecodeComposition(`{'Flour': 0.6, 'Sugar': 0.4}`)
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("0.4").Equal(legacy["Sugar"]))

	empty, err := DecodeComposition("")
	require.NoError(t, err)
	assert.Empty(t, empty)

	_, err = DecodeComposition(`{"v":2,"items":{}}`)
	assert.Error(t, err)
}

func TestConsumptionEncoding(t *testing.T) {
	lines := []models.ConsumptionLine{
		{Ingredient: "Flour", Category: models.CategorySolid, LotID: "STK-1", LotNumber: "L1", Quantity: decimal.RequireFromString("505")},
		{Ingredient: "Box", Category: models.CategoryPackaging, LotID: "STK-2", LotNumber: "B1", Quantity: decimal.RequireFromString("10.05"), Units: 201},
	}
	encoded, err := EncodeConsumption(lines)
	require.NoError(t, err)

	decoded, err := DecodeConsumption(encoded)
	require.NoError(t, err)
	require.Len(t, decoded, 2)
	assert.Equal(t, 201, decoded[1].Units)
	assert.True(t, lines[0].Quantity.Equal(decoded[0].Quantity))
}

func TestBatchRowWithoutStatusReadsCommitted(t *testing.T) {
	batch := models.ProductionBatch{ID: "URT-1", Date: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), Packages: 3}
	row, err := BatchRow(batch)
	require.NoError(t, err)
	row["status"] = ""

	parsed, err := ParseBatch(row)
	require.NoError(t, err)
	assert.Equal(t, models.BatchCommitted, parsed.Status)
	assert.Equal(t, 3, parsed.Packages)
}
