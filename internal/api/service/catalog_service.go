package service

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/nfe-ledger/internal/domain/entity"
	"github.com/nfe-ledger/internal/domain/inventory"
	"github.com/nfe-ledger/internal/domain/product"
	"github.com/nfe-ledger/internal/domain/shared"
)

// TxRunner runs a function inside a database transaction.
// Satisfied by persistence.PostgresDB.
type TxRunner interface {
	ExecuteTx(ctx context.Context, fn func(tx pgx.Tx) error) error
}

// CatalogServiceImpl implements the CatalogService interface
type CatalogServiceImpl struct {
	pgDB          TxRunner
	productRepo   product.Repository
	entityRepo    entity.Repository
	inventoryRepo inventory.Repository
}

// NewCatalogService creates a new catalog service
func NewCatalogService(pgDB TxRunner, productRepo product.Repository, entityRepo entity.Repository, inventoryRepo inventory.Repository) CatalogService {
	return &CatalogServiceImpl{
		pgDB:          pgDB,
		productRepo:   productRepo,
		entityRepo:    entityRepo,
		inventoryRepo: inventoryRepo,
	}
}

// RegisterProduct creates a product with an opening stock balance in one
// transaction. A product registered this way behaves exactly like one first
// seen on a note: later notes move its balance from the opening value.
func (s *CatalogServiceImpl) RegisterProduct(ctx context.Context, code, description string, openingStock decimal.Decimal) (*product.Product, error) {
	p := &product.Product{Code: code, Description: description}

	err := s.pgDB.ExecuteTx(ctx, func(tx pgx.Tx) error {
		productRepo := s.productRepo.WithTx(tx)

		existing, err := productRepo.GetByCode(ctx, code)
		if err != nil {
			return shared.NewStorageError("get product", err)
		}
		if existing != nil {
			return product.ErrDuplicateProduct{Code: code}
		}

		if err := productRepo.Create(ctx, p); err != nil {
			return shared.NewStorageError("create product", err)
		}

		if err := s.inventoryRepo.WithTx(tx).ApplyDelta(ctx, code, openingStock); err != nil {
			return shared.NewStorageError("apply opening stock", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return p, nil
}

func (s *CatalogServiceImpl) ListProducts(ctx context.Context) ([]product.Product, error) {
	return s.productRepo.List(ctx)
}

func (s *CatalogServiceImpl) ListEntities(ctx context.Context) ([]entity.Entity, error) {
	return s.entityRepo.List(ctx)
}
