package catalog

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mamadbah2/batchledger/internal/domain/models"
	"github.com/mamadbah2/batchledger/internal/repository"
	"github.com/mamadbah2/batchledger/internal/repository/memory"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func seed(t *testing.T, svc *Service) {
	t.Helper()
	ctx := context.Background()
	for name, category := range map[string]models.Category{
		"Flour": models.CategorySolid,
		"Sugar": models.CategorySolid,
		"Oil":   models.CategoryLiquid,
		"Box":   models.CategoryPackaging,
	} {
		_, err := svc.AddIngredient(ctx, name, category)
		require.NoError(t, err)
	}
}

func TestAddIngredientAppendsZeroLimit(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	svc := NewService(store, nil, nil)

	_, err := svc.AddIngredient(ctx, "Flour", models.CategorySolid)
	require.NoError(t, err)

	limits, err := store.ReadAll(ctx, repository.Limits)
	require.NoError(t, err)
	require.Len(t, limits, 1)
	assert.Equal(t, "Flour", limits[0]["ingredient"])
	assert.Equal(t, "0", limits[0]["critical_kg"])

	_, err = svc.AddIngredient(ctx, "flour", models.CategoryLiquid)
	assert.ErrorIs(t, err, models.ErrDuplicate)

	_, err = svc.AddIngredient(ctx, "Salt", models.Category("powder"))
	assert.ErrorIs(t, err, models.ErrInvalidInput)
}

func TestAddIngredientSurvivesLimitRowFailure(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	svc := NewService(store, nil, nil)
	store.SetFault(func(op, table string) error {
		if op == memory.OpAppendRow && table == repository.Limits.Name {
			return errors.New("quota exceeded")
		}
		return nil
	})

	ingredient, err := svc.AddIngredient(ctx, "Flour", models.CategorySolid)
	require.NoError(t, err)
	assert.Equal(t, "Flour", ingredient.Name)

	store.SetFault(nil)
	got, err := svc.Ingredient(ctx, "Flour")
	require.NoError(t, err)
	assert.Equal(t, models.CategorySolid, got.Category)
	limits, err := store.ReadAll(ctx, repository.Limits)
	require.NoError(t, err)
	assert.Empty(t, limits)
}

func TestSaveRecipeRejectsBadFractionsWithoutWriting(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	svc := NewService(store, nil, nil)
	seed(t, svc)

	_, err := svc.SaveRecipe(ctx, models.Recipe{
		Code:         "P-1",
		NetPackageKg: dec("5"),
		Solids:       map[string]decimal.Decimal{"Flour": dec("0.6"), "Sugar": dec("0.3")},
	})
	assert.ErrorIs(t, err, models.ErrInvalidRecipe)

	rows, err := store.ReadAll(ctx, repository.Products)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestSaveRecipeChecksIngredientCategories(t *testing.T) {
	ctx := context.Background()
	svc := NewService(memory.New(), nil, nil)
	seed(t, svc)

	_, err := svc.SaveRecipe(ctx, models.Recipe{
		Code:         "P-1",
		NetPackageKg: dec("5"),
		Solids:       map[string]decimal.Decimal{"Flour": dec("1")},
		Liquids:      map[string]decimal.Decimal{"Sugar": dec("2")},
	})
	assert.ErrorIs(t, err, models.ErrInvalidRecipe)

	_, err = svc.SaveRecipe(ctx, models.Recipe{
		Code:         "P-1",
		NetPackageKg: dec("5"),
		Solids:       map[string]decimal.Decimal{"Rice": dec("1")},
	})
	assert.ErrorIs(t, err, models.ErrInvalidRecipe)
}

func TestSaveRecipeUpsertsAndInvalidatesCache(t *testing.T) {
	ctx := context.Background()
	cache := NewMemoryCache(time.Hour, nil)
	svc := NewService(memory.New(), cache, nil)
	seed(t, svc)

	recipe := models.Recipe{
		Code:            "P-1",
		Name:            "Biscuit",
		NetPackageKg:    dec("5"),
		ShelfLifeMonths: 12,
		Solids:          map[string]decimal.Decimal{"Flour": dec("0.6"), "Sugar": dec("0.4")},
		Liquids:         map[string]decimal.Decimal{"Oil": dec("2.5")},
	}
	_, err := svc.SaveRecipe(ctx, recipe)
	require.NoError(t, err)

	got, err := svc.Recipe(ctx, "P-1")
	require.NoError(t, err)
	assert.Equal(t, "Biscuit", got.Name)

	recipe.Name = "Biscuit v2"
	_, err = svc.SaveRecipe(ctx, recipe)
	require.NoError(t, err)

	all, err := svc.Recipes(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "Biscuit v2", all[0].Name)
	assert.True(t, dec("2.5").Equal(all[0].Liquids["Oil"]))

	_, err = svc.Recipe(ctx, "P-404")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestCatalogFallsBackWhenCacheFails(t *testing.T) {
	ctx := context.Background()
	svc := NewService(memory.New(), brokenCache{}, nil)
	seed(t, svc)

	ingredients, err := svc.Ingredients(ctx)
	require.NoError(t, err)
	assert.Len(t, ingredients, 4)
	assert.Equal(t, "Box", ingredients[0].Name)
}

func TestMemoryCacheExpires(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	cache := NewMemoryCache(time.Minute, func() time.Time { return now })

	require.NoError(t, cache.Set(ctx, "k", []string{"a"}))
	var got []string
	hit, err := cache.Get(ctx, "k", &got)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, []string{"a"}, got)

	now = now.Add(2 * time.Minute)
	hit, err = cache.Get(ctx, "k", &got)
	require.NoError(t, err)
	assert.False(t, hit)
}

type brokenCache struct{}

func (brokenCache) Get(context.Context, string, interface{}) (bool, error) {
	return false, errors.New("cache down")
}
func (brokenCache) Set(context.Context, string, interface{}) error { return errors.New("cache down") }
func (brokenCache) Invalidate(context.Context, ...string) error     { return errors.New("cache down") }
