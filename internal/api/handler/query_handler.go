package handler

import (
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nfe-ledger/internal/api/service"
	"github.com/nfe-ledger/internal/domain/note"
	"github.com/nfe-ledger/internal/domain/shared"
)

// QueryHandler handles HTTP requests for ledger queries
type QueryHandler struct {
	queryService service.QueryService
	logger       *slog.Logger
}

// NewQueryHandler creates a new query handler
func NewQueryHandler(logger *slog.Logger, queryService service.QueryService) *QueryHandler {
	return &QueryHandler{
		queryService: queryService,
		logger:       logger,
	}
}

// GetInventory returns the full stock position, ordered by product description
func (h *QueryHandler) GetInventory(c *gin.Context) {
	balances, err := h.queryService.Inventory(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to list inventory", "error", err)
		RespondInternalError(c)
		return
	}

	items := make([]InventoryItemResponse, 0, len(balances))
	for _, b := range balances {
		items = append(items, InventoryItemResponse{
			ProductCode:   b.ProductCode,
			Description:   b.Description,
			StockQuantity: b.StockQuantity.String(),
		})
	}
	RespondOK(c, InventoryListResponse{Items: items})
}

// GetFinancialSummary aggregates note totals over an optional period given
// by the from and to query parameters
func (h *QueryHandler) GetFinancialSummary(c *gin.Context) {
	period, err := parsePeriod(c)
	if err != nil {
		RespondBadRequest(c, err.Error())
		return
	}

	summary, err := h.queryService.FinancialSummary(c.Request.Context(), period)
	if err != nil {
		h.logger.Error("Failed to compute financial summary", "error", err)
		RespondInternalError(c)
		return
	}

	RespondOK(c, mapFinancialSummary(summary))
}

// GetDashboard returns the overview counters
func (h *QueryHandler) GetDashboard(c *gin.Context) {
	dash, err := h.queryService.Dashboard(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to compute dashboard", "error", err)
		RespondInternalError(c)
		return
	}

	RespondOK(c, DashboardResponse{
		ProductCount:         dash.ProductCount,
		TotalStock:           dash.TotalStock.String(),
		NegativeBalanceCount: dash.NegativeBalanceCount,
		Financial:            mapFinancialSummary(&dash.Financial),
	})
}

// ListNotes returns note summaries matching the query parameters, oldest first
func (h *QueryHandler) ListNotes(c *gin.Context) {
	filter, err := parseNoteFilter(c)
	if err != nil {
		RespondBadRequest(c, err.Error())
		return
	}

	summaries, err := h.queryService.Notes(c.Request.Context(), filter)
	if err != nil {
		h.logger.Error("Failed to list notes", "error", err)
		RespondInternalError(c)
		return
	}

	notes := make([]NoteSummaryResponse, 0, len(summaries))
	for _, s := range summaries {
		notes = append(notes, NoteSummaryResponse{
			ID:         s.ID,
			NaturalKey: s.NaturalKey,
			IssuedAt:   s.IssuedAt.Format(time.RFC3339),
			Direction:  string(s.Direction),
			EntityName: s.EntityName,
			Total:      s.Total.String(),
		})
	}
	RespondOK(c, NoteListResponse{Notes: notes})
}

// GetNoteItems returns the line items of one note, in document order
func (h *QueryHandler) GetNoteItems(c *gin.Context) {
	idParam := c.Param("id")
	noteID, err := strconv.ParseInt(idParam, 10, 64)
	if err != nil {
		RespondBadRequest(c, "Invalid note ID")
		return
	}

	items, err := h.queryService.NoteItems(c.Request.Context(), noteID)
	if err != nil {
		var notFound note.ErrNoteNotFound
		if errors.As(err, &notFound) {
			RespondNotFound(c, "Note not found")
			return
		}
		h.logger.Error("Failed to list note items", "noteID", noteID, "error", err)
		RespondInternalError(c)
		return
	}

	mapped := make([]NoteItemResponse, 0, len(items))
	for _, item := range items {
		mapped = append(mapped, NoteItemResponse{
			ProductCode: item.ProductCode,
			Description: item.Description,
			Quantity:    item.Quantity.String(),
			UnitPrice:   item.UnitPrice.String(),
			LineTotal:   item.LineTotal.String(),
		})
	}
	RespondOK(c, NoteItemListResponse{NoteID: noteID, Items: mapped})
}

func mapFinancialSummary(s *shared.FinancialSummary) FinancialSummaryResponse {
	return FinancialSummaryResponse{
		EntryTotal: s.EntryTotal.String(),
		ExitTotal:  s.ExitTotal.String(),
		NetBalance: s.NetBalance.String(),
	}
}

// parsePeriod reads the from and to query parameters. Timestamps may be
// RFC 3339 or plain dates; a plain to date covers its whole day.
func parsePeriod(c *gin.Context) (shared.Period, error) {
	var period shared.Period

	if from := c.Query("from"); from != "" {
		t, err := parseTimeParam(from, false)
		if err != nil {
			return period, errors.New("invalid from parameter: " + from)
		}
		period.Start = &t
	}
	if to := c.Query("to"); to != "" {
		t, err := parseTimeParam(to, true)
		if err != nil {
			return period, errors.New("invalid to parameter: " + to)
		}
		period.End = &t
	}
	return period, nil
}

func parseTimeParam(value string, endOfDay bool) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return time.Time{}, err
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return t, nil
}

func parseNoteFilter(c *gin.Context) (shared.NoteFilter, error) {
	var filter shared.NoteFilter

	period, err := parsePeriod(c)
	if err != nil {
		return filter, err
	}
	filter.Period = period

	if direction := c.Query("direction"); direction != "" {
		d := shared.Direction(direction)
		if d != shared.DirectionEntry && d != shared.DirectionExit {
			return filter, errors.New("invalid direction parameter: " + direction)
		}
		filter.Direction = d
	}

	filter.ProductCode = c.Query("product_code")

	if entityID := c.Query("entity_id"); entityID != "" {
		id, err := strconv.ParseInt(entityID, 10, 64)
		if err != nil {
			return filter, errors.New("invalid entity_id parameter: " + entityID)
		}
		filter.EntityID = id
	}
	return filter, nil
}
