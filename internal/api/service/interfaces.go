package service

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/nfe-ledger/internal/domain/entity"
	"github.com/nfe-ledger/internal/domain/inventory"
	"github.com/nfe-ledger/internal/domain/note"
	"github.com/nfe-ledger/internal/domain/product"
	"github.com/nfe-ledger/internal/domain/shared"
)

// Dashboard is a one-screen overview of the ledger state
type Dashboard struct {
	ProductCount         int                     `json:"product_count"`
	TotalStock           decimal.Decimal         `json:"total_stock"`
	NegativeBalanceCount int                     `json:"negative_balance_count"`
	Financial            shared.FinancialSummary `json:"financial"`
}

// QueryService defines the read side of the ledger
type QueryService interface {
	// Inventory returns all stock balances ordered by product description
	Inventory(ctx context.Context) ([]inventory.Balance, error)

	// FinancialSummary aggregates note totals over an optional inclusive period
	FinancialSummary(ctx context.Context, period shared.Period) (*shared.FinancialSummary, error)

	// Notes returns note summaries matching the filter, oldest first
	Notes(ctx context.Context, filter shared.NoteFilter) ([]note.Summary, error)

	// NoteItems returns the line items of one note.
	// Returns note.ErrNoteNotFound if the note does not exist.
	NoteItems(ctx context.Context, noteID int64) ([]note.ItemDetail, error)

	// Dashboard computes the overview counters
	Dashboard(ctx context.Context) (*Dashboard, error)
}

// CatalogService defines manual catalog maintenance alongside the
// document-driven ingestion path
type CatalogService interface {
	// RegisterProduct creates a product with an opening stock balance.
	// Returns product.ErrDuplicateProduct if the code already exists.
	RegisterProduct(ctx context.Context, code, description string, openingStock decimal.Decimal) (*product.Product, error)

	// ListProducts returns all products ordered by description
	ListProducts(ctx context.Context) ([]product.Product, error)

	// ListEntities returns all entities ordered by name
	ListEntities(ctx context.Context) ([]entity.Entity, error)
}
