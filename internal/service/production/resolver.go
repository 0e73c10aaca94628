package production

import (
	"github.com/shopspring/decimal"

	"github.com/mamadbah2/batchledger/internal/domain/models"
)

var hundred = decimal.NewFromInt(100)

// Requirement is the theoretical quantity of one ingredient for a requested output.
type Requirement struct {
	Ingredient string          `json:"ingredient"`
	Category   models.Category `json:"category"`
	Kg         decimal.Decimal `json:"kg"`
}

// Requirements maps ingredient name to its theoretical requirement.
type Requirements map[string]Requirement

// Total sums the theoretical kg of one category.
func (r Requirements) Total(category models.Category) decimal.Decimal {
	total := decimal.Zero
	for _, req := range r {
		if req.Category == category {
			total = total.Add(req.Kg)
		}
	}
	return total
}

// RequestedKg is the output weight of a batch.
func RequestedKg(packages int, netPackageKg decimal.Decimal) decimal.Decimal {
	return decimal.NewFromInt(int64(packages)).Mul(netPackageKg)
}

// Resolve converts a saved recipe into theoretical requirements. Solids scale by
// fraction of the output, liquids by kg per 100 kg of output. Zero entries are left out.
// The recipe is trusted: it was validated when saved.
func Resolve(recipe models.Recipe, requestedKg decimal.Decimal) Requirements {
	out := make(Requirements, len(recipe.Solids)+len(recipe.Liquids))
	for name, fraction := range recipe.Solids {
		if fraction.IsZero() {
			continue
		}
		out[name] = Requirement{Ingredient: name, Category: models.CategorySolid, Kg: requestedKg.Mul(fraction)}
	}
	for name, ratio := range recipe.Liquids {
		if ratio.IsZero() {
			continue
		}
		out[name] = Requirement{Ingredient: name, Category: models.CategoryLiquid, Kg: requestedKg.Div(hundred).Mul(ratio)}
	}
	return out
}
