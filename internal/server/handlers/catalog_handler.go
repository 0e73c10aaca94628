package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/mamadbah2/batchledger/internal/domain/models"
	"github.com/mamadbah2/batchledger/internal/service/production"
)

type ingredientRequest struct {
	Name     string `json:"name" binding:"required"`
	Category string `json:"category" binding:"required"`
}

// ListIngredients returns the catalog.
func (h *Handler) ListIngredients(c *gin.Context) {
	ingredients, err := h.svc.Catalog.Ingredients(c.Request.Context())
	if err != nil {
		h.fail(c, "list ingredients failed", err)
		return
	}
	c.JSON(http.StatusOK, ingredients)
}

// AddIngredient registers a new ingredient.
func (h *Handler) AddIngredient(c *gin.Context) {
	var req ingredientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}
	category, err := models.ParseCategory(req.Category)
	if err != nil {
		h.fail(c, "invalid ingredient category", err)
		return
	}
	ingredient, err := h.svc.Catalog.AddIngredient(c.Request.Context(), req.Name, category)
	if err != nil {
		h.fail(c, "add ingredient failed", err)
		return
	}
	c.JSON(http.StatusCreated, ingredient)
}

// ListRecipes returns every recipe.
func (h *Handler) ListRecipes(c *gin.Context) {
	recipes, err := h.svc.Catalog.Recipes(c.Request.Context())
	if err != nil {
		h.fail(c, "list recipes failed", err)
		return
	}
	c.JSON(http.StatusOK, recipes)
}

// SaveRecipe creates or replaces a recipe.
func (h *Handler) SaveRecipe(c *gin.Context) {
	var recipe models.Recipe
	if err := c.ShouldBindJSON(&recipe); err != nil {
		h.badRequest(c, err)
		return
	}
	saved, err := h.svc.Catalog.SaveRecipe(c.Request.Context(), recipe)
	if err != nil {
		h.fail(c, "save recipe failed", err)
		return
	}
	c.JSON(http.StatusOK, saved)
}

// ResolveRecipe returns the theoretical requirement for ?packages=N of a product.
func (h *Handler) ResolveRecipe(c *gin.Context) {
	packages, err := strconv.Atoi(c.Query("packages"))
	if err != nil || packages <= 0 {
		h.fail(c, "invalid package count", fmt.Errorf("%w: packages must be a positive integer", models.ErrInvalidInput))
		return
	}
	recipe, err := h.svc.Catalog.Recipe(c.Request.Context(), c.Param("code"))
	if err != nil {
		h.fail(c, "resolve recipe failed", err)
		return
	}
	requested := production.RequestedKg(packages, recipe.NetPackageKg)
	c.JSON(http.StatusOK, gin.H{
		"product_code": recipe.Code,
		"requested_kg": requested,
		"requirements": production.Resolve(recipe, requested),
	})
}
