package service

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/nfe-ledger/internal/domain/inventory"
	"github.com/nfe-ledger/internal/domain/note"
	"github.com/nfe-ledger/internal/domain/product"
	"github.com/nfe-ledger/internal/domain/shared"
)

// QueryServiceImpl implements the QueryService interface
type QueryServiceImpl struct {
	noteRepo      note.Repository
	inventoryRepo inventory.Repository
	productRepo   product.Repository
}

// NewQueryService creates a new query service
func NewQueryService(noteRepo note.Repository, inventoryRepo inventory.Repository, productRepo product.Repository) QueryService {
	return &QueryServiceImpl{
		noteRepo:      noteRepo,
		inventoryRepo: inventoryRepo,
		productRepo:   productRepo,
	}
}

func (s *QueryServiceImpl) Inventory(ctx context.Context) ([]inventory.Balance, error) {
	return s.inventoryRepo.List(ctx)
}

func (s *QueryServiceImpl) FinancialSummary(ctx context.Context, period shared.Period) (*shared.FinancialSummary, error) {
	return s.noteRepo.FinancialSummary(ctx, period)
}

func (s *QueryServiceImpl) Notes(ctx context.Context, filter shared.NoteFilter) ([]note.Summary, error) {
	return s.noteRepo.Filtered(ctx, filter)
}

// NoteItems returns the line items of one note, distinguishing a missing
// note from a note that simply has no items.
func (s *QueryServiceImpl) NoteItems(ctx context.Context, noteID int64) ([]note.ItemDetail, error) {
	n, err := s.noteRepo.GetByID(ctx, noteID)
	if err != nil {
		return nil, err
	}
	if n == nil {
		return nil, note.ErrNoteNotFound{NoteID: noteID}
	}

	return s.noteRepo.ItemsByNoteID(ctx, noteID)
}

// Dashboard aggregates the overview counters from the product catalog, the
// stock balances, and the all-time financial summary.
func (s *QueryServiceImpl) Dashboard(ctx context.Context) (*Dashboard, error) {
	products, err := s.productRepo.List(ctx)
	if err != nil {
		return nil, err
	}

	balances, err := s.inventoryRepo.List(ctx)
	if err != nil {
		return nil, err
	}

	financial, err := s.noteRepo.FinancialSummary(ctx, shared.Period{})
	if err != nil {
		return nil, err
	}

	totalStock := decimal.Zero
	negative := 0
	for _, b := range balances {
		totalStock = totalStock.Add(b.StockQuantity)
		if b.StockQuantity.IsNegative() {
			negative++
		}
	}

	return &Dashboard{
		ProductCount:         len(products),
		TotalStock:           totalStock,
		NegativeBalanceCount: negative,
		Financial:            *financial,
	}, nil
}
