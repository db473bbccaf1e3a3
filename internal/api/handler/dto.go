package handler

import "github.com/shopspring/decimal"

// RegisterProductRequest represents a request to register a product manually
type RegisterProductRequest struct {
	Code         string          `json:"code" binding:"required"`
	Description  string          `json:"description" binding:"required"`
	OpeningStock decimal.Decimal `json:"opening_stock"`
}

// ProductResponse represents a product in API responses
type ProductResponse struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

// ProductListResponse represents a list of products in API responses
type ProductListResponse struct {
	Products []ProductResponse `json:"products"`
}

// EntityResponse represents a note counterparty in API responses
type EntityResponse struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	TaxID string `json:"tax_id"`
	Role  string `json:"role"`
}

// EntityListResponse represents a list of entities in API responses
type EntityListResponse struct {
	Entities []EntityResponse `json:"entities"`
}

// InventoryItemResponse represents one stock balance in API responses.
// Quantities are serialized as strings to keep their exact decimal form.
type InventoryItemResponse struct {
	ProductCode   string `json:"product_code"`
	Description   string `json:"description"`
	StockQuantity string `json:"stock_quantity"`
}

// InventoryListResponse represents the full stock position in API responses
type InventoryListResponse struct {
	Items []InventoryItemResponse `json:"items"`
}

// FinancialSummaryResponse represents aggregated note totals in API responses
type FinancialSummaryResponse struct {
	EntryTotal string `json:"entry_total"`
	ExitTotal  string `json:"exit_total"`
	NetBalance string `json:"net_balance"`
}

// DashboardResponse represents the overview counters in API responses
type DashboardResponse struct {
	ProductCount         int                      `json:"product_count"`
	TotalStock           string                   `json:"total_stock"`
	NegativeBalanceCount int                      `json:"negative_balance_count"`
	Financial            FinancialSummaryResponse `json:"financial"`
}

// NoteSummaryResponse represents a note header in API responses
type NoteSummaryResponse struct {
	ID         int64  `json:"id"`
	NaturalKey string `json:"natural_key"`
	IssuedAt   string `json:"issued_at"`
	Direction  string `json:"direction"`
	EntityName string `json:"entity_name"`
	Total      string `json:"total"`
}

// NoteListResponse represents a list of notes in API responses
type NoteListResponse struct {
	Notes []NoteSummaryResponse `json:"notes"`
}

// NoteItemResponse represents a note line item in API responses
type NoteItemResponse struct {
	ProductCode string `json:"product_code"`
	Description string `json:"description"`
	Quantity    string `json:"quantity"`
	UnitPrice   string `json:"unit_price"`
	LineTotal   string `json:"line_total"`
}

// NoteItemListResponse represents the line items of one note in API responses
type NoteItemListResponse struct {
	NoteID int64              `json:"note_id"`
	Items  []NoteItemResponse `json:"items"`
}
