// Package inventory tracks the running stock balance per product. Balances
// move with every ingested note item and may go negative; the ledger
// records movements, it does not police them.
package inventory

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// Balance is the current stock position of one product
type Balance struct {
	ProductCode   string          `json:"product_code"`
	Description   string          `json:"description"`
	StockQuantity decimal.Decimal `json:"stock_quantity"`
}

// Repository defines the interface for stock balance data access
type Repository interface {
	// ApplyDelta adds delta to a product's stock balance, creating the
	// balance row on first sight. Delta is signed: positive for entries,
	// negative for exits.
	ApplyDelta(ctx context.Context, productCode string, delta decimal.Decimal) error

	// GetByProductCode retrieves the balance of a single product.
	// Returns nil, nil when the product has never moved.
	GetByProductCode(ctx context.Context, productCode string) (*Balance, error)

	// List returns all balances with product descriptions, ordered by
	// description
	List(ctx context.Context) ([]Balance, error)

	// WithTx returns a repository bound to the given transaction
	WithTx(tx pgx.Tx) Repository
}
