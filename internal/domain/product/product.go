// Package product models the goods moved by fiscal documents. Products are
// registered on first sight during ingestion or manually with an opening
// stock; the first description seen for a code wins.
package product

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

type Product struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

// ErrDuplicateProduct is returned when registering a product whose code
// already exists
type ErrDuplicateProduct struct {
	Code string
}

func (e ErrDuplicateProduct) Error() string {
	return fmt.Sprintf("product already exists: %s", e.Code)
}

// Repository defines the interface for product data access
type Repository interface {
	// Create stores a new product
	Create(ctx context.Context, p *Product) error

	// GetByCode retrieves a product by its code.
	// Returns nil, nil when no product with that code exists.
	GetByCode(ctx context.Context, code string) (*Product, error)

	// List returns all products ordered by description
	List(ctx context.Context) ([]Product, error)

	// WithTx returns a repository bound to the given transaction
	WithTx(tx pgx.Tx) Repository
}
