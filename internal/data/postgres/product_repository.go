package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/nfe-ledger/internal/domain/product"
	"github.com/nfe-ledger/internal/platform/persistence"
)

// ProductRepository implements the product.Repository interface for PostgreSQL
type ProductRepository struct {
	querier persistence.Querier // Can be *pgxpool.Pool or pgx.Tx
	logger  *slog.Logger
}

// NewProductRepository creates a new PostgreSQL product repository
func NewProductRepository(logger *slog.Logger, db *persistence.PostgresDB) product.Repository {
	return &ProductRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// WithTx wraps the repository with a transaction
func (r *ProductRepository) WithTx(tx pgx.Tx) product.Repository {
	return &ProductRepository{
		querier: tx,
		logger:  r.logger,
	}
}

// Create stores a new product. The first document to mention a code wins;
// callers must check GetByCode before creating.
func (r *ProductRepository) Create(ctx context.Context, p *product.Product) error {
	query := `
		INSERT INTO products (code, description)
		VALUES ($1, $2)
	`

	_, err := r.querier.Exec(ctx, query, p.Code, p.Description)
	if err != nil {
		r.logger.Error("Failed to create product", "code", p.Code, "error", err)
		return fmt.Errorf("failed to create product: %w", err)
	}

	return nil
}

// GetByCode retrieves a product by its code. Returns nil, nil when no
// product with that code exists.
func (r *ProductRepository) GetByCode(ctx context.Context, code string) (*product.Product, error) {
	query := `
		SELECT code, description
		FROM products
		WHERE code = $1
	`

	var p product.Product
	err := r.querier.QueryRow(ctx, query, code).Scan(&p.Code, &p.Description)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		r.logger.Error("Failed to get product", "code", code, "error", err)
		return nil, fmt.Errorf("failed to get product: %w", err)
	}

	return &p, nil
}

// List returns all products ordered by description
func (r *ProductRepository) List(ctx context.Context) ([]product.Product, error) {
	query := `
		SELECT code, description
		FROM products
		ORDER BY description
	`

	rows, err := r.querier.Query(ctx, query)
	if err != nil {
		r.logger.Error("Failed to list products", "error", err)
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	defer rows.Close()

	var products []product.Product
	for rows.Next() {
		var p product.Product
		if err := rows.Scan(&p.Code, &p.Description); err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}

	return products, nil
}
