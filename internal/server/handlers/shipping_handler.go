package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mamadbah2/batchledger/internal/service/shipping"
)

// FinishedGoods lists finished lots still in stock.
func (h *Handler) FinishedGoods(c *gin.Context) {
	stock, err := h.svc.Shipping.Stock(c.Request.Context())
	if err != nil {
		h.fail(c, "list finished goods failed", err)
		return
	}
	c.JSON(http.StatusOK, stock)
}

// ListShipments returns the shipment history.
func (h *Handler) ListShipments(c *gin.Context) {
	shipments, err := h.svc.Shipping.Shipments(c.Request.Context())
	if err != nil {
		h.fail(c, "list shipments failed", err)
		return
	}
	c.JSON(http.StatusOK, shipments)
}

// RecordShipment ships kg out of a finished lot.
func (h *Handler) RecordShipment(c *gin.Context) {
	var req shipping.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}
	shipment, err := h.svc.Shipping.Record(c.Request.Context(), req)
	if err != nil {
		h.fail(c, "record shipment failed", err)
		return
	}
	c.JSON(http.StatusCreated, shipment)
}
