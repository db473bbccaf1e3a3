package entity

import (
	"context"

	"github.com/jackc/pgx/v5"
)

// Repository defines the interface for entity data access
type Repository interface {
	// Create stores a new entity and fills in its generated ID
	Create(ctx context.Context, e *Entity) error

	// GetByTaxIDAndRole retrieves an entity by its dedup key.
	// Returns nil, nil when no entity matches.
	GetByTaxIDAndRole(ctx context.Context, taxID string, role Role) (*Entity, error)

	// List returns all entities ordered by name
	List(ctx context.Context) ([]Entity, error)

	// WithTx returns a repository bound to the given transaction
	WithTx(tx pgx.Tx) Repository
}
