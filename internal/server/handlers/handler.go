package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mamadbah2/batchledger/internal/domain/models"
	"github.com/mamadbah2/batchledger/internal/service/catalog"
	"github.com/mamadbah2/batchledger/internal/service/inventory"
	"github.com/mamadbah2/batchledger/internal/service/monitor"
	"github.com/mamadbah2/batchledger/internal/service/notify"
	"github.com/mamadbah2/batchledger/internal/service/production"
	"github.com/mamadbah2/batchledger/internal/service/reconcile"
	"github.com/mamadbah2/batchledger/internal/service/reporting"
	"github.com/mamadbah2/batchledger/internal/service/shipping"
)

// Services are the application services exposed over HTTP.
type Services struct {
	Catalog   *catalog.Service
	Inventory *inventory.Service
	Monitor   *monitor.Service
	Allocator *production.Allocator
	Recorder  *production.Recorder
	Batches   BatchLister
	Shipping  *shipping.Service
	Reconcile *reconcile.Service
	Reporting *reporting.Service
	Notifier  notify.Notifier
}

// Handler adapts the ledger services to gin.
type Handler struct {
	svc    Services
	logger *zap.Logger
}

// New constructs the HTTP handler adapter.
func New(svc Services, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, logger: logger}
}

// statusFor maps ledger errors to HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrInsufficientFinishedStock),
		errors.Is(err, models.ErrPartialCommit),
		errors.Is(err, models.ErrDuplicate),
		errors.Is(err, models.ErrStaleValue):
		return http.StatusConflict
	case errors.Is(err, models.ErrInvalidRecipe),
		errors.Is(err, models.ErrMissingLotSelection),
		errors.Is(err, models.ErrInvalidInput),
		errors.Is(err, models.ErrInvalidBatch),
		errors.Is(err, models.ErrTooManyLotEntries):
		return http.StatusUnprocessableEntity
	case errors.Is(err, models.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) fail(c *gin.Context, msg string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error(msg, zap.Error(err))
	} else {
		h.logger.Warn(msg, zap.Error(err))
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func (h *Handler) badRequest(c *gin.Context, err error) {
	h.logger.Warn("invalid request body", zap.String("path", c.FullPath()), zap.Error(err))
	c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
}

// Health reports liveness.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// SendMessage pushes a manual operator notification.
func (h *Handler) SendMessage(c *gin.Context) {
	var req models.OutboundMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	if err := h.svc.Notifier.SendOutbound(c.Request.Context(), req); err != nil {
		if errors.Is(err, models.ErrInvalidInput) {
			h.fail(c, "invalid outbound message", err)
			return
		}
		h.logger.Error("failed sending outbound", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "unable to send message"})
		return
	}

	c.Status(http.StatusAccepted)
}
