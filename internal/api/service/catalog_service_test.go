package service

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/nfe-ledger/internal/domain/entity"
	"github.com/nfe-ledger/internal/domain/product"
	"github.com/nfe-ledger/internal/domain/shared"
)

func TestCatalogService_RegisterProduct(t *testing.T) {
	ctx := context.Background()

	t.Run("CreatesProductWithOpeningStock", func(t *testing.T) {
		productRepo := new(mockProductRepo)
		inventoryRepo := new(mockInventoryRepo)
		svc := NewCatalogService(fakeTxRunner{}, productRepo, new(mockEntityRepo), inventoryRepo)

		opening := decimal.NewFromInt(25)
		productRepo.On("GetByCode", ctx, "P1").Return(nil, nil).Once()
		productRepo.On("Create", ctx, mock.MatchedBy(func(p *product.Product) bool {
			return p.Code == "P1" && p.Description == "Parafuso sextavado"
		})).Return(nil).Once()
		inventoryRepo.On("ApplyDelta", ctx, "P1", mock.MatchedBy(func(d decimal.Decimal) bool {
			return d.Equal(opening)
		})).Return(nil).Once()

		p, err := svc.RegisterProduct(ctx, "P1", "Parafuso sextavado", opening)
		require.NoError(t, err)
		assert.Equal(t, "P1", p.Code)

		productRepo.AssertExpectations(t)
		inventoryRepo.AssertExpectations(t)
	})

	t.Run("DuplicateCode", func(t *testing.T) {
		productRepo := new(mockProductRepo)
		inventoryRepo := new(mockInventoryRepo)
		svc := NewCatalogService(fakeTxRunner{}, productRepo, new(mockEntityRepo), inventoryRepo)

		productRepo.On("GetByCode", ctx, "P1").
			Return(&product.Product{Code: "P1", Description: "Parafuso sextavado"}, nil).Once()

		p, err := svc.RegisterProduct(ctx, "P1", "Other description", decimal.Zero)
		require.Error(t, err)
		assert.Nil(t, p)

		var duplicate product.ErrDuplicateProduct
		require.ErrorAs(t, err, &duplicate)
		assert.Equal(t, "P1", duplicate.Code)
		productRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
		inventoryRepo.AssertNotCalled(t, "ApplyDelta", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("StorageFailureRollsBack", func(t *testing.T) {
		productRepo := new(mockProductRepo)
		inventoryRepo := new(mockInventoryRepo)
		svc := NewCatalogService(fakeTxRunner{}, productRepo, new(mockEntityRepo), inventoryRepo)

		dbErr := errors.New("db down")
		productRepo.On("GetByCode", ctx, "P1").Return(nil, nil).Once()
		productRepo.On("Create", ctx, mock.Anything).Return(dbErr).Once()

		p, err := svc.RegisterProduct(ctx, "P1", "Parafuso sextavado", decimal.Zero)
		require.Error(t, err)
		assert.Nil(t, p)

		var storageErr *shared.StorageError
		require.ErrorAs(t, err, &storageErr)
		assert.Equal(t, "create product", storageErr.Op)
	})
}

func TestCatalogService_Listings(t *testing.T) {
	ctx := context.Background()

	t.Run("ListProducts", func(t *testing.T) {
		productRepo := new(mockProductRepo)
		svc := NewCatalogService(fakeTxRunner{}, productRepo, new(mockEntityRepo), new(mockInventoryRepo))

		expected := []product.Product{{Code: "P1", Description: "Parafuso sextavado"}}
		productRepo.On("List", ctx).Return(expected, nil).Once()

		products, err := svc.ListProducts(ctx)
		require.NoError(t, err)
		assert.Equal(t, expected, products)
	})

	t.Run("ListEntities", func(t *testing.T) {
		entityRepo := new(mockEntityRepo)
		svc := NewCatalogService(fakeTxRunner{}, new(mockProductRepo), entityRepo, new(mockInventoryRepo))

		expected := []entity.Entity{{ID: 1, Name: "ACME Distribuidora LTDA", TaxID: "12345678000199", Role: entity.RoleSupplier}}
		entityRepo.On("List", ctx).Return(expected, nil).Once()

		entities, err := svc.ListEntities(ctx)
		require.NoError(t, err)
		assert.Equal(t, expected, entities)
	})
}
