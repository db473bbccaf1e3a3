// Package postgres provides PostgreSQL implementations of the domain
// repositories. It handles all database operations while maintaining
// transaction safety and proper error handling for the stock ledger.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/nfe-ledger/internal/domain/entity"
	"github.com/nfe-ledger/internal/platform/persistence"
)

// EntityRepository implements the entity.Repository interface for PostgreSQL
type EntityRepository struct {
	querier persistence.Querier // Can be *pgxpool.Pool or pgx.Tx
	logger  *slog.Logger
}

// NewEntityRepository creates a new PostgreSQL entity repository
func NewEntityRepository(logger *slog.Logger, db *persistence.PostgresDB) entity.Repository {
	return &EntityRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// WithTx wraps the repository with a transaction so entity writes commit or
// roll back together with the note that referenced them.
func (r *EntityRepository) WithTx(tx pgx.Tx) entity.Repository {
	return &EntityRepository{
		querier: tx,
		logger:  r.logger,
	}
}

// Create stores a new entity and fills in its generated ID
func (r *EntityRepository) Create(ctx context.Context, e *entity.Entity) error {
	query := `
		INSERT INTO entities (name, tax_id, role)
		VALUES ($1, $2, $3)
		RETURNING id
	`

	err := r.querier.QueryRow(ctx, query, e.Name, e.TaxID, e.Role).Scan(&e.ID)
	if err != nil {
		r.logger.Error("Failed to create entity", "taxID", e.TaxID, "role", e.Role, "error", err)
		return fmt.Errorf("failed to create entity: %w", err)
	}

	return nil
}

// GetByTaxIDAndRole retrieves an entity by its dedup key. Returns nil, nil
// when no entity matches; the same tax id may exist once per role.
func (r *EntityRepository) GetByTaxIDAndRole(ctx context.Context, taxID string, role entity.Role) (*entity.Entity, error) {
	query := `
		SELECT id, name, tax_id, role
		FROM entities
		WHERE tax_id = $1 AND role = $2
	`

	var e entity.Entity
	err := r.querier.QueryRow(ctx, query, taxID, role).Scan(&e.ID, &e.Name, &e.TaxID, &e.Role)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		r.logger.Error("Failed to get entity", "taxID", taxID, "role", role, "error", err)
		return nil, fmt.Errorf("failed to get entity: %w", err)
	}

	return &e, nil
}

// List returns all entities ordered by name
func (r *EntityRepository) List(ctx context.Context) ([]entity.Entity, error) {
	query := `
		SELECT id, name, tax_id, role
		FROM entities
		ORDER BY name
	`

	rows, err := r.querier.Query(ctx, query)
	if err != nil {
		r.logger.Error("Failed to list entities", "error", err)
		return nil, fmt.Errorf("failed to list entities: %w", err)
	}
	defer rows.Close()

	var entities []entity.Entity
	for rows.Next() {
		var e entity.Entity
		if err := rows.Scan(&e.ID, &e.Name, &e.TaxID, &e.Role); err != nil {
			return nil, fmt.Errorf("failed to scan entity: %w", err)
		}
		entities = append(entities, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list entities: %w", err)
	}

	return entities, nil
}
