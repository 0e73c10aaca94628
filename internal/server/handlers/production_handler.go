package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mamadbah2/batchledger/internal/domain/models"
	"github.com/mamadbah2/batchledger/internal/service/production"
)

// BatchLister reads production records.
type BatchLister interface {
	List(ctx context.Context) ([]models.ProductionBatch, error)
}

// ValidateBatch previews a batch draft without writing anything.
func (h *Handler) ValidateBatch(c *gin.Context) {
	var draft production.BatchDraft
	if err := c.ShouldBindJSON(&draft); err != nil {
		h.badRequest(c, err)
		return
	}
	validated, err := h.svc.Allocator.Validate(c.Request.Context(), draft)
	if err != nil {
		h.fail(c, "batch validation failed", err)
		return
	}
	c.JSON(http.StatusOK, validated)
}

// CommitBatch validates and commits a batch draft.
func (h *Handler) CommitBatch(c *gin.Context) {
	var draft production.BatchDraft
	if err := c.ShouldBindJSON(&draft); err != nil {
		h.badRequest(c, err)
		return
	}
	ctx := c.Request.Context()
	validated, err := h.svc.Allocator.Validate(ctx, draft)
	if err != nil {
		h.fail(c, "batch validation failed", err)
		return
	}
	batch, finished, err := h.svc.Recorder.Commit(ctx, validated)
	if err != nil {
		h.fail(c, "batch commit failed", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"batch": batch, "finished": finished})
}

// ListBatches returns every production record.
func (h *Handler) ListBatches(c *gin.Context) {
	batches, err := h.svc.Batches.List(c.Request.Context())
	if err != nil {
		h.fail(c, "list batches failed", err)
		return
	}
	c.JSON(http.StatusOK, batches)
}

// TraceBatch returns the genealogy of one batch.
func (h *Handler) TraceBatch(c *gin.Context) {
	trace, err := h.svc.Reporting.Trace(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, "trace batch failed", err)
		return
	}
	c.JSON(http.StatusOK, trace)
}
