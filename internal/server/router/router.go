package router

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mamadbah2/batchledger/internal/server/handlers"
)

// New wires the Gin engine with the ledger routes and middlewares. metrics may be nil.
func New(h *handlers.Handler, metrics http.Handler, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(zapLoggerMiddleware(logger))

	r.GET("/healthz", h.Health)
	if metrics != nil {
		r.GET("/metrics", gin.WrapH(metrics))
	}

	r.GET("/ingredients", h.ListIngredients)
	r.POST("/ingredients", h.AddIngredient)
	r.GET("/recipes", h.ListRecipes)
	r.PUT("/recipes", h.SaveRecipe)
	r.GET("/recipes/:code/resolve", h.ResolveRecipe)

	r.GET("/lots", h.ListLots)
	r.POST("/lots", h.ReceiveLot)
	r.DELETE("/lots/:id", h.DeleteLot)
	r.GET("/movements", h.ListMovements)

	r.GET("/limits", h.ListLimits)
	r.PUT("/limits", h.SetLimits)
	r.GET("/alerts", h.Alerts)

	r.POST("/batches/validate", h.ValidateBatch)
	r.POST("/batches", h.CommitBatch)
	r.GET("/batches", h.ListBatches)
	r.GET("/batches/:id/trace", h.TraceBatch)

	r.GET("/finished-goods", h.FinishedGoods)
	r.GET("/shipments", h.ListShipments)
	r.POST("/shipments", h.RecordShipment)

	r.GET("/reconciliation", h.Reconciliation)
	r.POST("/reconciliation/:id/repair", h.RepairBatch)

	r.GET("/reports/waste", h.WasteReport)
	r.GET("/reports/daily", h.DailyReport)
	r.GET("/reports/history", h.ReportHistory)

	r.POST("/send-message", h.SendMessage)

	if logger != nil {
		logger.Info("router initialized")
	}

	return r
}

func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		}
		if c.Writer.Status() >= http.StatusInternalServerError {
			logger.Warn("request completed", fields...)
			return
		}
		logger.Info("request completed", fields...)
	}
}
