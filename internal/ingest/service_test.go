package ingest

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/nfe-ledger/internal/domain/entity"
	"github.com/nfe-ledger/internal/domain/inventory"
	"github.com/nfe-ledger/internal/domain/note"
	"github.com/nfe-ledger/internal/domain/product"
	"github.com/nfe-ledger/internal/domain/shared"
)

// fakeTxRunner runs the transaction function directly; the repositories are
// mocked so no real tx is needed.
type fakeTxRunner struct{}

func (fakeTxRunner) ExecuteTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	return fn(nil)
}

type mockNoteRepo struct{ mock.Mock }

func (m *mockNoteRepo) Create(ctx context.Context, n *note.Note) error {
	args := m.Called(ctx, n)
	return args.Error(0)
}

func (m *mockNoteRepo) CreateItem(ctx context.Context, item *note.Item) error {
	args := m.Called(ctx, item)
	return args.Error(0)
}

func (m *mockNoteRepo) GetByNaturalKey(ctx context.Context, naturalKey string) (*note.Note, error) {
	args := m.Called(ctx, naturalKey)
	if n := args.Get(0); n != nil {
		return n.(*note.Note), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockNoteRepo) GetByID(ctx context.Context, id int64) (*note.Note, error) {
	args := m.Called(ctx, id)
	if n := args.Get(0); n != nil {
		return n.(*note.Note), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockNoteRepo) FinancialSummary(ctx context.Context, period shared.Period) (*shared.FinancialSummary, error) {
	args := m.Called(ctx, period)
	if s := args.Get(0); s != nil {
		return s.(*shared.FinancialSummary), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockNoteRepo) Filtered(ctx context.Context, filter shared.NoteFilter) ([]note.Summary, error) {
	args := m.Called(ctx, filter)
	if s := args.Get(0); s != nil {
		return s.([]note.Summary), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockNoteRepo) ItemsByNoteID(ctx context.Context, noteID int64) ([]note.ItemDetail, error) {
	args := m.Called(ctx, noteID)
	if items := args.Get(0); items != nil {
		return items.([]note.ItemDetail), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockNoteRepo) WithTx(tx pgx.Tx) note.Repository { return m }

type mockEntityRepo struct{ mock.Mock }

func (m *mockEntityRepo) Create(ctx context.Context, e *entity.Entity) error {
	args := m.Called(ctx, e)
	return args.Error(0)
}

func (m *mockEntityRepo) GetByTaxIDAndRole(ctx context.Context, taxID string, role entity.Role) (*entity.Entity, error) {
	args := m.Called(ctx, taxID, role)
	if e := args.Get(0); e != nil {
		return e.(*entity.Entity), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockEntityRepo) List(ctx context.Context) ([]entity.Entity, error) {
	args := m.Called(ctx)
	if e := args.Get(0); e != nil {
		return e.([]entity.Entity), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockEntityRepo) WithTx(tx pgx.Tx) entity.Repository { return m }

type mockProductRepo struct{ mock.Mock }

func (m *mockProductRepo) Create(ctx context.Context, p *product.Product) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

func (m *mockProductRepo) GetByCode(ctx context.Context, code string) (*product.Product, error) {
	args := m.Called(ctx, code)
	if p := args.Get(0); p != nil {
		return p.(*product.Product), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockProductRepo) List(ctx context.Context) ([]product.Product, error) {
	args := m.Called(ctx)
	if p := args.Get(0); p != nil {
		return p.([]product.Product), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockProductRepo) WithTx(tx pgx.Tx) product.Repository { return m }

type mockInventoryRepo struct{ mock.Mock }

func (m *mockInventoryRepo) ApplyDelta(ctx context.Context, productCode string, delta decimal.Decimal) error {
	args := m.Called(ctx, productCode, delta)
	return args.Error(0)
}

func (m *mockInventoryRepo) GetByProductCode(ctx context.Context, productCode string) (*inventory.Balance, error) {
	args := m.Called(ctx, productCode)
	if b := args.Get(0); b != nil {
		return b.(*inventory.Balance), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockInventoryRepo) List(ctx context.Context) ([]inventory.Balance, error) {
	args := m.Called(ctx)
	if b := args.Get(0); b != nil {
		return b.([]inventory.Balance), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockInventoryRepo) WithTx(tx pgx.Tx) inventory.Repository { return m }

type mockPublisher struct{ mock.Mock }

func (m *mockPublisher) Publish(ctx context.Context, key string, value interface{}) error {
	args := m.Called(ctx, key, value)
	return args.Error(0)
}

func (m *mockPublisher) Close() error {
	args := m.Called()
	return args.Error(0)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func entryNote() *note.ParsedNote {
	return &note.ParsedNote{
		NaturalKey:       "35250112345678000199550010000001231000001234",
		IssuedAt:         time.Date(2025, 1, 15, 10, 30, 0, 0, time.UTC),
		Direction:        shared.DirectionEntry,
		CounterpartyName: "ACME Distribuidora LTDA",
		CounterpartyTax:  "12345678000199",
		Total:            decimal.NewFromInt(50),
		Items: []note.ParsedItem{
			{
				ProductCode: "P1",
				Description: "Parafuso sextavado",
				Quantity:    decimal.NewFromInt(10),
				UnitPrice:   decimal.NewFromInt(5),
				LineTotal:   decimal.NewFromInt(50),
			},
		},
	}
}

func TestService_Ingest_NewNote(t *testing.T) {
	ctx := context.Background()
	parsed := entryNote()

	noteRepo := new(mockNoteRepo)
	entityRepo := new(mockEntityRepo)
	productRepo := new(mockProductRepo)
	inventoryRepo := new(mockInventoryRepo)
	publisher := new(mockPublisher)

	noteRepo.On("GetByNaturalKey", ctx, parsed.NaturalKey).Return(nil, nil).Once()

	entityRepo.On("GetByTaxIDAndRole", ctx, parsed.CounterpartyTax, entity.RoleSupplier).Return(nil, nil).Once()
	entityRepo.On("Create", ctx, mock.MatchedBy(func(e *entity.Entity) bool {
		return e.Name == parsed.CounterpartyName && e.TaxID == parsed.CounterpartyTax && e.Role == entity.RoleSupplier
	})).Run(func(args mock.Arguments) {
		args.Get(1).(*entity.Entity).ID = 3
	}).Return(nil).Once()

	noteRepo.On("Create", ctx, mock.MatchedBy(func(n *note.Note) bool {
		return n.NaturalKey == parsed.NaturalKey && n.EntityID == 3 && n.Direction == shared.DirectionEntry
	})).Run(func(args mock.Arguments) {
		args.Get(1).(*note.Note).ID = 42
	}).Return(nil).Once()

	productRepo.On("GetByCode", ctx, "P1").Return(nil, nil).Once()
	productRepo.On("Create", ctx, mock.MatchedBy(func(p *product.Product) bool {
		return p.Code == "P1" && p.Description == "Parafuso sextavado"
	})).Return(nil).Once()

	noteRepo.On("CreateItem", ctx, mock.MatchedBy(func(item *note.Item) bool {
		return item.NoteID == 42 && item.ProductCode == "P1" && item.Quantity.Equal(decimal.NewFromInt(10))
	})).Return(nil).Once()

	inventoryRepo.On("ApplyDelta", ctx, "P1", mock.MatchedBy(func(d decimal.Decimal) bool {
		return d.Equal(decimal.NewFromInt(10))
	})).Return(nil).Once()

	publisher.On("Publish", ctx, parsed.NaturalKey, mock.Anything).Return(nil).Once()

	svc := NewService(fakeTxRunner{}, noteRepo, entityRepo, productRepo, inventoryRepo, publisher, testLogger())

	outcome, err := svc.Ingest(ctx, parsed)
	require.NoError(t, err)
	assert.Equal(t, shared.OutcomeInserted, outcome)

	noteRepo.AssertExpectations(t)
	entityRepo.AssertExpectations(t)
	productRepo.AssertExpectations(t)
	inventoryRepo.AssertExpectations(t)
	publisher.AssertExpectations(t)
}

func TestService_Ingest_Duplicate(t *testing.T) {
	ctx := context.Background()
	parsed := entryNote()

	noteRepo := new(mockNoteRepo)
	entityRepo := new(mockEntityRepo)
	productRepo := new(mockProductRepo)
	inventoryRepo := new(mockInventoryRepo)
	publisher := new(mockPublisher)

	noteRepo.On("GetByNaturalKey", ctx, parsed.NaturalKey).
		Return(&note.Note{ID: 42, NaturalKey: parsed.NaturalKey}, nil).Once()

	svc := NewService(fakeTxRunner{}, noteRepo, entityRepo, productRepo, inventoryRepo, publisher, testLogger())

	outcome, err := svc.Ingest(ctx, parsed)
	require.NoError(t, err)
	assert.Equal(t, shared.OutcomeDuplicate, outcome)

	// A duplicate leaves no trace and emits no event
	noteRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	entityRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	inventoryRepo.AssertNotCalled(t, "ApplyDelta", mock.Anything, mock.Anything, mock.Anything)
	publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
	noteRepo.AssertExpectations(t)
}

func TestService_Ingest_ExitMovesStockDown(t *testing.T) {
	ctx := context.Background()
	parsed := entryNote()
	parsed.Direction = shared.DirectionExit
	parsed.CounterpartyName = "Comercio Varejista SA"
	parsed.CounterpartyTax = "98765432000188"

	noteRepo := new(mockNoteRepo)
	entityRepo := new(mockEntityRepo)
	productRepo := new(mockProductRepo)
	inventoryRepo := new(mockInventoryRepo)

	noteRepo.On("GetByNaturalKey", ctx, parsed.NaturalKey).Return(nil, nil).Once()

	// Entity and product already known, no creates expected
	entityRepo.On("GetByTaxIDAndRole", ctx, parsed.CounterpartyTax, entity.RoleCustomer).
		Return(&entity.Entity{ID: 9, Name: "Comercio Varejista SA", TaxID: parsed.CounterpartyTax, Role: entity.RoleCustomer}, nil).Once()
	productRepo.On("GetByCode", ctx, "P1").
		Return(&product.Product{Code: "P1", Description: "Parafuso sextavado"}, nil).Once()

	noteRepo.On("Create", ctx, mock.MatchedBy(func(n *note.Note) bool {
		return n.EntityID == 9 && n.Direction == shared.DirectionExit
	})).Run(func(args mock.Arguments) {
		args.Get(1).(*note.Note).ID = 43
	}).Return(nil).Once()

	noteRepo.On("CreateItem", ctx, mock.Anything).Return(nil).Once()

	inventoryRepo.On("ApplyDelta", ctx, "P1", mock.MatchedBy(func(d decimal.Decimal) bool {
		return d.Equal(decimal.NewFromInt(-10))
	})).Return(nil).Once()

	svc := NewService(fakeTxRunner{}, noteRepo, entityRepo, productRepo, inventoryRepo, nil, testLogger())

	outcome, err := svc.Ingest(ctx, parsed)
	require.NoError(t, err)
	assert.Equal(t, shared.OutcomeInserted, outcome)

	entityRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	productRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	inventoryRepo.AssertExpectations(t)
}

func TestService_Ingest_StorageFailure(t *testing.T) {
	ctx := context.Background()
	parsed := entryNote()

	noteRepo := new(mockNoteRepo)
	entityRepo := new(mockEntityRepo)
	productRepo := new(mockProductRepo)
	inventoryRepo := new(mockInventoryRepo)

	dbErr := errors.New("connection reset")
	noteRepo.On("GetByNaturalKey", ctx, parsed.NaturalKey).Return(nil, nil).Once()
	entityRepo.On("GetByTaxIDAndRole", ctx, parsed.CounterpartyTax, entity.RoleSupplier).Return(nil, dbErr).Once()

	svc := NewService(fakeTxRunner{}, noteRepo, entityRepo, productRepo, inventoryRepo, nil, testLogger())

	outcome, err := svc.Ingest(ctx, parsed)
	require.Error(t, err)
	assert.Empty(t, outcome)

	var storageErr *shared.StorageError
	assert.ErrorAs(t, err, &storageErr)
	assert.Equal(t, "get entity", storageErr.Op)
	assert.ErrorIs(t, err, dbErr)
}

func TestService_Ingest_PublishFailureDoesNotFailIngest(t *testing.T) {
	ctx := context.Background()
	parsed := entryNote()

	noteRepo := new(mockNoteRepo)
	entityRepo := new(mockEntityRepo)
	productRepo := new(mockProductRepo)
	inventoryRepo := new(mockInventoryRepo)
	publisher := new(mockPublisher)

	noteRepo.On("GetByNaturalKey", ctx, parsed.NaturalKey).Return(nil, nil).Once()
	entityRepo.On("GetByTaxIDAndRole", ctx, parsed.CounterpartyTax, entity.RoleSupplier).
		Return(&entity.Entity{ID: 3}, nil).Once()
	noteRepo.On("Create", ctx, mock.Anything).Run(func(args mock.Arguments) {
		args.Get(1).(*note.Note).ID = 42
	}).Return(nil).Once()
	productRepo.On("GetByCode", ctx, "P1").
		Return(&product.Product{Code: "P1"}, nil).Once()
	noteRepo.On("CreateItem", ctx, mock.Anything).Return(nil).Once()
	inventoryRepo.On("ApplyDelta", ctx, "P1", mock.Anything).Return(nil).Once()

	publisher.On("Publish", ctx, parsed.NaturalKey, mock.Anything).
		Return(errors.New("broker unavailable")).Once()

	svc := NewService(fakeTxRunner{}, noteRepo, entityRepo, productRepo, inventoryRepo, publisher, testLogger())

	outcome, err := svc.Ingest(ctx, parsed)
	require.NoError(t, err)
	assert.Equal(t, shared.OutcomeInserted, outcome)
	publisher.AssertExpectations(t)
}
