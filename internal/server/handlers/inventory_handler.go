package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mamadbah2/batchledger/internal/domain/models"
)

type receiveLotRequest struct {
	Ingredient         string          `json:"ingredient" binding:"required"`
	LotNumber          string          `json:"lot_number" binding:"required"`
	Received           decimal.Decimal `json:"received"`
	PackagingUnitGrams decimal.Decimal `json:"packaging_unit_grams"`
	ArrivalDate        time.Time       `json:"arrival_date"`
}

// ListLots returns the lots, or with ?ingredient= only that ingredient's lots in stock.
func (h *Handler) ListLots(c *gin.Context) {
	lots, err := h.svc.Inventory.Lots(c.Request.Context(), c.Query("ingredient"))
	if err != nil {
		h.fail(c, "list lots failed", err)
		return
	}
	c.JSON(http.StatusOK, lots)
}

// ReceiveLot records a stock-in.
func (h *Handler) ReceiveLot(c *gin.Context) {
	var req receiveLotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}
	lot, err := h.svc.Inventory.Receive(c.Request.Context(), models.Lot{
		Ingredient:         req.Ingredient,
		LotNumber:          req.LotNumber,
		Received:           req.Received,
		PackagingUnitGrams: req.PackagingUnitGrams,
		ArrivalDate:        req.ArrivalDate,
	})
	if err != nil {
		h.fail(c, "receive lot failed", err)
		return
	}
	c.JSON(http.StatusCreated, lot)
}

// DeleteLot removes a lot; ?reason= is required.
func (h *Handler) DeleteLot(c *gin.Context) {
	deletion, err := h.svc.Inventory.Delete(c.Request.Context(), c.Param("id"), c.Query("reason"))
	if err != nil {
		h.fail(c, "delete lot failed", err)
		return
	}
	c.JSON(http.StatusOK, deletion)
}

// ListMovements returns lot decrements, optionally for ?batch_id=.
func (h *Handler) ListMovements(c *gin.Context) {
	movements, err := h.svc.Inventory.Movements(c.Request.Context(), c.Query("batch_id"))
	if err != nil {
		h.fail(c, "list movements failed", err)
		return
	}
	c.JSON(http.StatusOK, movements)
}

// ListLimits returns the critical limits.
func (h *Handler) ListLimits(c *gin.Context) {
	limits, err := h.svc.Monitor.Limits(c.Request.Context())
	if err != nil {
		h.fail(c, "list limits failed", err)
		return
	}
	c.JSON(http.StatusOK, limits)
}

// SetLimits replaces the critical limits.
func (h *Handler) SetLimits(c *gin.Context) {
	var limits []models.Limit
	if err := c.ShouldBindJSON(&limits); err != nil {
		h.badRequest(c, err)
		return
	}
	if err := h.svc.Monitor.SetLimits(c.Request.Context(), limits); err != nil {
		h.fail(c, "set limits failed", err)
		return
	}
	c.JSON(http.StatusOK, limits)
}

// Alerts lists critical stock. A failing store degrades to an empty list.
func (h *Handler) Alerts(c *gin.Context) {
	alerts, err := h.svc.Monitor.Alerts(c.Request.Context())
	if err != nil {
		h.logger.Warn("alerts unavailable, serving empty view", zap.Error(err))
		c.JSON(http.StatusOK, gin.H{"alerts": []models.Alert{}, "degraded": true})
		return
	}
	if alerts == nil {
		alerts = []models.Alert{}
	}
	c.JSON(http.StatusOK, gin.H{"alerts": alerts, "degraded": false})
}
