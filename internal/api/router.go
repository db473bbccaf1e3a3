package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nfe-ledger/internal/api/handler"
	"github.com/nfe-ledger/internal/api/middleware"
)

// setupRouter configures API routes and middleware for the application
func setupRouter(
	logger *slog.Logger,
	r *gin.Engine,
	queryHandler *handler.QueryHandler,
	catalogHandler *handler.CatalogHandler,
) {
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Logger(logger))
	r.Use(middleware.CorrelationID())

	// API v1 endpoints
	v1 := r.Group("/api/v1")
	{
		v1.GET("/inventory", queryHandler.GetInventory)

		reports := v1.Group("/reports")
		{
			reports.GET("/financial", queryHandler.GetFinancialSummary)
			reports.GET("/dashboard", queryHandler.GetDashboard)
		}

		notes := v1.Group("/notes")
		{
			notes.GET("", queryHandler.ListNotes)
			notes.GET("/:id/items", queryHandler.GetNoteItems)
		}

		products := v1.Group("/products")
		{
			products.POST("", catalogHandler.CreateProduct)
			products.GET("", catalogHandler.ListProducts)
		}

		v1.GET("/entities", catalogHandler.ListEntities)
	}

	// Health check endpoint for monitoring
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "timestamp": time.Now().UTC()})
	})
}
