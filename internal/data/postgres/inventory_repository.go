package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/nfe-ledger/internal/domain/inventory"
	"github.com/nfe-ledger/internal/platform/persistence"
)

// InventoryRepository implements the inventory.Repository interface for PostgreSQL
type InventoryRepository struct {
	querier persistence.Querier // Can be *pgxpool.Pool or pgx.Tx
	logger  *slog.Logger
}

// NewInventoryRepository creates a new PostgreSQL inventory repository
func NewInventoryRepository(logger *slog.Logger, db *persistence.PostgresDB) inventory.Repository {
	return &InventoryRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// WithTx wraps the repository with a transaction so stock deltas commit
// or roll back together with the note items that produced them.
func (r *InventoryRepository) WithTx(tx pgx.Tx) inventory.Repository {
	return &InventoryRepository{
		querier: tx,
		logger:  r.logger,
	}
}

// ApplyDelta adds delta to the stock balance of a product, creating the
// balance row on first sight. Delta is signed: positive for entries,
// negative for exits. Balances may go negative.
func (r *InventoryRepository) ApplyDelta(ctx context.Context, productCode string, delta decimal.Decimal) error {
	query := `
		INSERT INTO inventory (product_code, stock_quantity)
		VALUES ($1, $2)
		ON CONFLICT (product_code)
		DO UPDATE SET stock_quantity = inventory.stock_quantity + EXCLUDED.stock_quantity
	`

	_, err := r.querier.Exec(ctx, query, productCode, delta)
	if err != nil {
		r.logger.Error("Failed to apply stock delta", "productCode", productCode, "delta", delta, "error", err)
		return fmt.Errorf("failed to apply stock delta: %w", err)
	}

	return nil
}

// GetByProductCode retrieves the stock balance of a single product.
// Returns nil, nil when the product has never moved.
func (r *InventoryRepository) GetByProductCode(ctx context.Context, productCode string) (*inventory.Balance, error) {
	query := `
		SELECT i.product_code, p.description, i.stock_quantity
		FROM inventory i
		JOIN products p ON p.code = i.product_code
		WHERE i.product_code = $1
	`

	var b inventory.Balance
	err := r.querier.QueryRow(ctx, query, productCode).Scan(&b.ProductCode, &b.Description, &b.StockQuantity)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		r.logger.Error("Failed to get stock balance", "productCode", productCode, "error", err)
		return nil, fmt.Errorf("failed to get stock balance: %w", err)
	}

	return &b, nil
}

// List returns all stock balances with product descriptions, ordered by description
func (r *InventoryRepository) List(ctx context.Context) ([]inventory.Balance, error) {
	query := `
		SELECT i.product_code, p.description, i.stock_quantity
		FROM inventory i
		JOIN products p ON p.code = i.product_code
		ORDER BY p.description
	`

	rows, err := r.querier.Query(ctx, query)
	if err != nil {
		r.logger.Error("Failed to list stock balances", "error", err)
		return nil, fmt.Errorf("failed to list stock balances: %w", err)
	}
	defer rows.Close()

	var balances []inventory.Balance
	for rows.Next() {
		var b inventory.Balance
		if err := rows.Scan(&b.ProductCode, &b.Description, &b.StockQuantity); err != nil {
			return nil, fmt.Errorf("failed to scan stock balance: %w", err)
		}
		balances = append(balances, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list stock balances: %w", err)
	}

	return balances, nil
}
