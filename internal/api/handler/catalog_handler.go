package handler

import (
	"errors"
	"log/slog"

	"github.com/gin-gonic/gin"

	"github.com/nfe-ledger/internal/api/service"
	"github.com/nfe-ledger/internal/domain/product"
)

// CatalogHandler handles HTTP requests for catalog maintenance
type CatalogHandler struct {
	catalogService service.CatalogService
	logger         *slog.Logger
}

// NewCatalogHandler creates a new catalog handler
func NewCatalogHandler(logger *slog.Logger, catalogService service.CatalogService) *CatalogHandler {
	return &CatalogHandler{
		catalogService: catalogService,
		logger:         logger,
	}
}

// CreateProduct registers a product manually with an opening stock balance
func (h *CatalogHandler) CreateProduct(c *gin.Context) {
	var req RegisterProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", "error", err)
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	p, err := h.catalogService.RegisterProduct(c.Request.Context(), req.Code, req.Description, req.OpeningStock)
	if err != nil {
		var duplicate product.ErrDuplicateProduct
		if errors.As(err, &duplicate) {
			h.logger.Warn("Attempt to register duplicate product", "code", duplicate.Code)
			RespondConflict(c, "Product with this code already exists")
			return
		}
		h.logger.Error("Failed to register product", "code", req.Code, "error", err)
		RespondInternalError(c)
		return
	}

	RespondCreated(c, ProductResponse{Code: p.Code, Description: p.Description})
}

// ListProducts returns all registered products ordered by description
func (h *CatalogHandler) ListProducts(c *gin.Context) {
	products, err := h.catalogService.ListProducts(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to list products", "error", err)
		RespondInternalError(c)
		return
	}

	mapped := make([]ProductResponse, 0, len(products))
	for _, p := range products {
		mapped = append(mapped, ProductResponse{Code: p.Code, Description: p.Description})
	}
	RespondOK(c, ProductListResponse{Products: mapped})
}

// ListEntities returns all note counterparties ordered by name
func (h *CatalogHandler) ListEntities(c *gin.Context) {
	entities, err := h.catalogService.ListEntities(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to list entities", "error", err)
		RespondInternalError(c)
		return
	}

	mapped := make([]EntityResponse, 0, len(entities))
	for _, e := range entities {
		mapped = append(mapped, EntityResponse{
			ID:    e.ID,
			Name:  e.Name,
			TaxID: e.TaxID,
			Role:  string(e.Role),
		})
	}
	RespondOK(c, EntityListResponse{Entities: mapped})
}
