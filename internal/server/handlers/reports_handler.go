package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mamadbah2/batchledger/internal/domain/models"
	"github.com/mamadbah2/batchledger/internal/service/reconcile"
)

// Reconciliation lists production records whose commit did not finish.
func (h *Handler) Reconciliation(c *gin.Context) {
	findings, err := h.svc.Reconcile.Audit(c.Request.Context())
	if err != nil {
		h.fail(c, "reconciliation audit failed", err)
		return
	}
	if findings == nil {
		findings = []reconcile.Finding{}
	}
	c.JSON(http.StatusOK, gin.H{"findings": findings, "count": len(findings)})
}

// RepairBatch rolls one unfinished commit forward.
func (h *Handler) RepairBatch(c *gin.Context) {
	finding, err := h.svc.Reconcile.Repair(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, "repair batch failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"batch_id": c.Param("id"), "repaired": finding.Problems})
}

// WasteReport lists waste ratios per batch. A failing store degrades to an empty report.
func (h *Handler) WasteReport(c *gin.Context) {
	lines, err := h.svc.Reporting.WasteReport(c.Request.Context())
	if err != nil {
		h.logger.Warn("waste report unavailable, serving empty view", zap.Error(err))
		lines = []models.WasteLine{}
	}
	c.JSON(http.StatusOK, lines)
}

// DailyReport builds (and archives) the report of ?date=YYYY-MM-DD, today by default.
func (h *Handler) DailyReport(c *gin.Context) {
	day := time.Now()
	if raw := c.Query("date"); raw != "" {
		parsed, err := time.Parse(time.DateOnly, raw)
		if err != nil {
			h.fail(c, "invalid report date", fmt.Errorf("%w: date must be YYYY-MM-DD", models.ErrInvalidInput))
			return
		}
		day = parsed
	}
	report, err := h.svc.Reporting.DailyReport(c.Request.Context(), day)
	if err != nil {
		h.fail(c, "daily report failed", err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// ReportHistory returns archived daily reports between ?from= and ?to=.
func (h *Handler) ReportHistory(c *gin.Context) {
	from, errFrom := time.Parse(time.DateOnly, c.Query("from"))
	to, errTo := time.Parse(time.DateOnly, c.Query("to"))
	if errFrom != nil || errTo != nil {
		h.fail(c, "invalid report range", fmt.Errorf("%w: from and to must be YYYY-MM-DD", models.ErrInvalidInput))
		return
	}
	reports, err := h.svc.Reporting.History(c.Request.Context(), from, to)
	if err != nil {
		h.fail(c, "report history failed", err)
		return
	}
	if reports == nil {
		reports = []models.DailyReport{}
	}
	c.JSON(http.StatusOK, reports)
}
