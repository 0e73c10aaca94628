// Package catalog owns ingredients and recipes. Recipes are validated when saved,
// so the resolver can trust them.
package catalog

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mamadbah2/batchledger/internal/domain/models"
	"github.com/mamadbah2/batchledger/internal/ledger"
	"github.com/mamadbah2/batchledger/internal/repository"
)

const (
	ingredientsKey = "ingredients"
	recipesKey     = "recipes"
)

// Service exposes catalog reads and writes.
type Service struct {
	store  repository.Store
	cache  Cache
	logger *zap.Logger
}

// NewService wires the catalog. A nil cache disables caching.
func NewService(store repository.Store, cache Cache, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cache == nil {
		cache = NewMemoryCache(0, nil)
	}
	return &Service{store: store, cache: cache, logger: logger}
}

// AddIngredient registers a new ingredient together with a zero critical-stock limit.
// Failing to write the limit row is logged and does not fail the call.
func (s *Service) AddIngredient(ctx context.Context, name string, category models.Category) (models.Ingredient, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return models.Ingredient{}, fmt.Errorf("%w: ingredient name is required", models.ErrInvalidInput)
	}
	if !category.Valid() {
		return models.Ingredient{}, fmt.Errorf("%w: unknown category %q", models.ErrInvalidInput, category)
	}

	existing, err := s.loadIngredients(ctx)
	if err != nil {
		return models.Ingredient{}, err
	}
	for _, ing := range existing {
		if strings.EqualFold(ing.Name, name) {
			return models.Ingredient{}, fmt.Errorf("%w: ingredient %s already registered as %s", models.ErrDuplicate, ing.Name, ing.Category)
		}
	}

	ingredient := models.Ingredient{Name: name, Category: category}
	if err := s.store.AppendRow(ctx, repository.Ingredients, ledger.IngredientRow(ingredient)); err != nil {
		return models.Ingredient{}, fmt.Errorf("append ingredient %s: %w", name, err)
	}
	s.invalidate(ctx, ingredientsKey)

	// A missing limit row reads as a zero limit, so the ingredient stands on its own.
	if err := s.ensureLimitRow(ctx, name); err != nil {
		s.logger.Warn("ingredient added without a limit row", zap.String("name", name), zap.Error(err))
	}

	s.logger.Info("ingredient added", zap.String("name", name), zap.String("category", string(category)))
	return ingredient, nil
}

func (s *Service) ensureLimitRow(ctx context.Context, name string) error {
	rows, err := s.store.ReadAll(ctx, repository.Limits)
	if err != nil {
		return fmt.Errorf("load limits: %w", err)
	}
	for _, row := range rows {
		if row.Get("ingredient") == name {
			return nil
		}
	}
	if err := s.store.AppendRow(ctx, repository.Limits, ledger.LimitRow(models.Limit{Ingredient: name, CriticalKg: decimal.Zero})); err != nil {
		return fmt.Errorf("append limit for %s: %w", name, err)
	}
	return nil
}

// Ingredients returns the catalog sorted by name.
func (s *Service) Ingredients(ctx context.Context) ([]models.Ingredient, error) {
	var cached []models.Ingredient
	if s.fromCache(ctx, ingredientsKey, &cached) {
		return cached, nil
	}
	ingredients, err := s.loadIngredients(ctx)
	if err != nil {
		return nil, err
	}
	s.toCache(ctx, ingredientsKey, ingredients)
	return ingredients, nil
}

// Ingredient looks one ingredient up by exact name.
func (s *Service) Ingredient(ctx context.Context, name string) (models.Ingredient, error) {
	ingredients, err := s.Ingredients(ctx)
	if err != nil {
		return models.Ingredient{}, err
	}
	for _, ing := range ingredients {
		if ing.Name == name {
			return ing, nil
		}
	}
	return models.Ingredient{}, fmt.Errorf("ingredient %s: %w", name, models.ErrNotFound)
}

func (s *Service) loadIngredients(ctx context.Context) ([]models.Ingredient, error) {
	rows, err := s.store.ReadAll(ctx, repository.Ingredients)
	if err != nil {
		return nil, fmt.Errorf("load ingredients: %w", err)
	}
	out := make([]models.Ingredient, 0, len(rows))
	for _, row := range rows {
		ing, err := ledger.ParseIngredient(row)
		if err != nil {
			s.logger.Warn("skip unreadable ingredient row", zap.Error(err))
			continue
		}
		out = append(out, ing)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// SaveRecipe validates and upserts a recipe by code. Nothing is written when validation fails.
func (s *Service) SaveRecipe(ctx context.Context, recipe models.Recipe) (models.Recipe, error) {
	recipe.Code = strings.TrimSpace(recipe.Code)
	if err := recipe.Validate(); err != nil {
		return models.Recipe{}, err
	}
	if err := s.checkComposition(ctx, recipe); err != nil {
		return models.Recipe{}, err
	}

	row, err := ledger.RecipeRow(recipe)
	if err != nil {
		return models.Recipe{}, err
	}
	rows, err := s.store.ReadAll(ctx, repository.Products)
	if err != nil {
		return models.Recipe{}, fmt.Errorf("load recipes: %w", err)
	}
	replaced := false
	for i := range rows {
		if rows[i].Get("code") == recipe.Code {
			rows[i] = row
			replaced = true
			break
		}
	}
	if replaced {
		err = s.store.ReplaceAll(ctx, repository.Products, rows)
	} else {
		err = s.store.AppendRow(ctx, repository.Products, row)
	}
	if err != nil {
		return models.Recipe{}, fmt.Errorf("save recipe %s: %w", recipe.Code, err)
	}
	s.invalidate(ctx, recipesKey)

	s.logger.Info("recipe saved", zap.String("code", recipe.Code), zap.Bool("updated", replaced))
	return recipe, nil
}

func (s *Service) checkComposition(ctx context.Context, recipe models.Recipe) error {
	ingredients, err := s.loadIngredients(ctx)
	if err != nil {
		return err
	}
	categories := make(map[string]models.Category, len(ingredients))
	for _, ing := range ingredients {
		categories[ing.Name] = ing.Category
	}
	check := func(shares map[string]decimal.Decimal, want models.Category) error {
		for name := range shares {
			got, ok := categories[name]
			if !ok {
				return fmt.Errorf("%w: unknown ingredient %s", models.ErrInvalidRecipe, name)
			}
			if got != want {
				return fmt.Errorf("%w: %s is %s, listed as %s", models.ErrInvalidRecipe, name, got, want)
			}
		}
		return nil
	}
	if err := check(recipe.Solids, models.CategorySolid); err != nil {
		return err
	}
	return check(recipe.Liquids, models.CategoryLiquid)
}

// Recipes returns every saved recipe sorted by code.
func (s *Service) Recipes(ctx context.Context) ([]models.Recipe, error) {
	var cached []models.Recipe
	if s.fromCache(ctx, recipesKey, &cached) {
		return cached, nil
	}

	rows, err := s.store.ReadAll(ctx, repository.Products)
	if err != nil {
		return nil, fmt.Errorf("load recipes: %w", err)
	}
	recipes := make([]models.Recipe, 0, len(rows))
	for _, row := range rows {
		recipe, err := ledger.ParseRecipe(row)
		if err != nil {
			s.logger.Warn("skip unreadable recipe row", zap.String("code", row.Get("code")), zap.Error(err))
			continue
		}
		recipes = append(recipes, recipe)
	}
	sort.Slice(recipes, func(i, j int) bool { return recipes[i].Code < recipes[j].Code })
	s.toCache(ctx, recipesKey, recipes)
	return recipes, nil
}

// Recipe returns one recipe by product code.
func (s *Service) Recipe(ctx context.Context, code string) (models.Recipe, error) {
	recipes, err := s.Recipes(ctx)
	if err != nil {
		return models.Recipe{}, err
	}
	for _, r := range recipes {
		if r.Code == code {
			return r, nil
		}
	}
	return models.Recipe{}, fmt.Errorf("recipe %s: %w", code, models.ErrNotFound)
}

func (s *Service) fromCache(ctx context.Context, key string, dest interface{}) bool {
	hit, err := s.cache.Get(ctx, key, dest)
	if err != nil {
		s.logger.Warn("catalog cache read failed", zap.String("key", key), zap.Error(err))
		return false
	}
	return hit
}

func (s *Service) toCache(ctx context.Context, key string, value interface{}) {
	if err := s.cache.Set(ctx, key, value); err != nil {
		s.logger.Warn("catalog cache write failed", zap.String("key", key), zap.Error(err))
	}
}

func (s *Service) invalidate(ctx context.Context, keys ...string) {
	if err := s.cache.Invalidate(ctx, keys...); err != nil {
		s.logger.Warn("catalog cache invalidation failed", zap.Strings("keys", keys), zap.Error(err))
	}
}
