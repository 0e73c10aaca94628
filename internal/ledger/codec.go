package ledger

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mamadbah2/batchledger/internal/domain/models"
)

const (
	dateLayout     = "2006-01-02"
	dateTimeLayout = "2006-01-02 15:04:05"

	// codecVersion is written into every structured cell.
	codecVersion = 1
)

// ParseDecimal reads a numeric cell. Empty cells are zero; a decimal comma is
// accepted ("12,5"), as is a dotted thousands separator ("1.250,5").
func ParseDecimal(raw string) (decimal.Decimal, error) {
	str := strings.TrimSpace(raw)
	if str == "" {
		return decimal.Zero, nil
	}
	if strings.Contains(str, ",") {
		if strings.Contains(str, ".") {
			str = strings.ReplaceAll(str, ".", "")
		}
		str = strings.ReplaceAll(str, ",", ".")
	}
	value, err := decimal.NewFromString(str)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse numeric value %q: %w", raw, err)
	}
	return value, nil
}

// ParseInt reads an integral cell leniently; fractional parts are truncated.
func ParseInt(raw string) (int, error) {
	value, err := ParseDecimal(raw)
	if err != nil {
		return 0, err
	}
	return int(value.IntPart()), nil
}

// FormatDecimal writes a numeric cell in canonical dotted form.
func FormatDecimal(value decimal.Decimal) string {
	return value.String()
}

// ParseDate reads a date cell written as a day, an RFC3339 timestamp or a date-time.
func ParseDate(raw string) (time.Time, error) {
	str := strings.TrimSpace(raw)
	if str == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}
	for _, layout := range []string{time.RFC3339Nano, dateTimeLayout, dateLayout} {
		if t, err := time.Parse(layout, str); err == nil {
			return t, nil
		}
	}
	if len(str) > len(dateLayout) {
		if t, err := time.Parse(dateLayout, str[:len(dateLayout)]); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised date %q", raw)
}

// FormatDate writes a calendar day.
func FormatDate(t time.Time) string {
	return t.Format(dateLayout)
}

// FormatTime writes an instant.
func FormatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

type compositionEnvelope struct {
	V     int                        `json:"v"`
	Items map[string]decimal.Decimal `json:"items"`
}

// EncodeComposition serialises a recipe share map into a versioned JSON cell.
func EncodeComposition(shares map[string]decimal.Decimal) (string, error) {
	if shares == nil {
		shares = map[string]decimal.Decimal{}
	}
	payload, err := json.Marshal(compositionEnvelope{V: codecVersion, Items: shares})
	if err != nil {
		return "", fmt.Errorf("encode composition: %w", err)
	}
	return string(payload), nil
}

// DecodeComposition reads a share map. Besides the versioned envelope it accepts
// bare legacy maps, including single-quoted dictionary literals.
func DecodeComposition(raw string) (map[string]decimal.Decimal, error) {
	str := strings.TrimSpace(raw)
	if str == "" {
		return map[string]decimal.Decimal{}, nil
	}

	var probe map[string]json.RawMessage
	if err := json.Unmarshal([]byte(str), &probe); err != nil {
		str = strings.ReplaceAll(str, "'", `"`)
		if err := json.Unmarshal([]byte(str), &probe); err != nil {
			return nil, fmt.Errorf("decode composition %q: %w", raw, err)
		}
	}

	if _, versioned := probe["v"]; versioned {
		var env compositionEnvelope
		if err := json.Unmarshal([]byte(str), &env); err != nil {
			return nil, fmt.Errorf("decode composition: %w", err)
		}
		if env.V != codecVersion {
			return nil, fmt.Errorf("decode composition: unsupported version %d", env.V)
		}
		if env.Items == nil {
			env.Items = map[string]decimal.Decimal{}
		}
		return env.Items, nil
	}

	shares := make(map[string]decimal.Decimal, len(probe))
	for name, value := range probe {
		var share decimal.Decimal
		if err := json.Unmarshal(value, &share); err != nil {
			return nil, fmt.Errorf("decode composition share %s: %w", name, err)
		}
		shares[name] = share
	}
	return shares, nil
}

type consumptionEnvelope struct {
	V     int                      `json:"v"`
	Items []models.ConsumptionLine `json:"items"`
}

// EncodeConsumption serialises the itemized lot usage of a batch.
func EncodeConsumption(lines []models.ConsumptionLine) (string, error) {
	if lines == nil {
		lines = []models.ConsumptionLine{}
	}
	payload, err := json.Marshal(consumptionEnvelope{V: codecVersion, Items: lines})
	if err != nil {
		return "", fmt.Errorf("encode consumption: %w", err)
	}
	return string(payload), nil
}

// DecodeConsumption reads the itemized lot usage of a batch.
func DecodeConsumption(raw string) ([]models.ConsumptionLine, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	var env consumptionEnvelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		return nil, fmt.Errorf("decode consumption: %w", err)
	}
	if env.V != codecVersion {
		return nil, fmt.Errorf("decode consumption: unsupported version %d", env.V)
	}
	return env.Items, nil
}
