package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/nfe-ledger/internal/domain/note"
	"github.com/nfe-ledger/internal/domain/shared"
	"github.com/nfe-ledger/internal/platform/persistence"
)

// NoteRepository implements the note.Repository interface for PostgreSQL
type NoteRepository struct {
	querier persistence.Querier // Can be *pgxpool.Pool or pgx.Tx
	logger  *slog.Logger
}

// NewNoteRepository creates a new PostgreSQL note repository
func NewNoteRepository(logger *slog.Logger, db *persistence.PostgresDB) note.Repository {
	return &NoteRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// WithTx wraps the repository with a transaction
func (r *NoteRepository) WithTx(tx pgx.Tx) note.Repository {
	return &NoteRepository{
		querier: tx,
		logger:  r.logger,
	}
}

// Create stores a new note header and fills in its generated ID
func (r *NoteRepository) Create(ctx context.Context, n *note.Note) error {
	query := `
		INSERT INTO notes (natural_key, issued_at, direction, entity_id, total)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`

	err := r.querier.QueryRow(ctx, query,
		n.NaturalKey, n.IssuedAt, n.Direction, n.EntityID, n.Total,
	).Scan(&n.ID)
	if err != nil {
		r.logger.Error("Failed to create note", "naturalKey", n.NaturalKey, "error", err)
		return fmt.Errorf("failed to create note: %w", err)
	}

	return nil
}

// CreateItem stores a single note line item and fills in its generated ID
func (r *NoteRepository) CreateItem(ctx context.Context, item *note.Item) error {
	query := `
		INSERT INTO note_items (note_id, product_code, quantity, unit_price, line_total)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`

	err := r.querier.QueryRow(ctx, query,
		item.NoteID, item.ProductCode, item.Quantity, item.UnitPrice, item.LineTotal,
	).Scan(&item.ID)
	if err != nil {
		r.logger.Error("Failed to create note item", "noteID", item.NoteID, "productCode", item.ProductCode, "error", err)
		return fmt.Errorf("failed to create note item: %w", err)
	}

	return nil
}

// GetByNaturalKey retrieves a note by its access key. Returns nil, nil when
// no note with that key has been recorded; this is the idempotency probe.
func (r *NoteRepository) GetByNaturalKey(ctx context.Context, naturalKey string) (*note.Note, error) {
	query := `
		SELECT id, natural_key, issued_at, direction, entity_id, total
		FROM notes
		WHERE natural_key = $1
	`

	var n note.Note
	err := r.querier.QueryRow(ctx, query, naturalKey).Scan(
		&n.ID, &n.NaturalKey, &n.IssuedAt, &n.Direction, &n.EntityID, &n.Total,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		r.logger.Error("Failed to get note", "naturalKey", naturalKey, "error", err)
		return nil, fmt.Errorf("failed to get note: %w", err)
	}

	return &n, nil
}

// GetByID retrieves a note by its generated ID. Returns nil, nil when no
// note with that ID exists.
func (r *NoteRepository) GetByID(ctx context.Context, id int64) (*note.Note, error) {
	query := `
		SELECT id, natural_key, issued_at, direction, entity_id, total
		FROM notes
		WHERE id = $1
	`

	var n note.Note
	err := r.querier.QueryRow(ctx, query, id).Scan(
		&n.ID, &n.NaturalKey, &n.IssuedAt, &n.Direction, &n.EntityID, &n.Total,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		r.logger.Error("Failed to get note", "noteID", id, "error", err)
		return nil, fmt.Errorf("failed to get note: %w", err)
	}

	return &n, nil
}

// FinancialSummary aggregates note totals per direction over an optional
// period. Notes issued exactly on a bound are included on both ends.
func (r *NoteRepository) FinancialSummary(ctx context.Context, period shared.Period) (*shared.FinancialSummary, error) {
	query := `
		SELECT direction, COALESCE(SUM(total), 0)
		FROM notes
	`

	var conditions []string
	var args []interface{}
	if period.Start != nil {
		args = append(args, *period.Start)
		conditions = append(conditions, fmt.Sprintf("issued_at >= $%d", len(args)))
	}
	if period.End != nil {
		args = append(args, *period.End)
		conditions = append(conditions, fmt.Sprintf("issued_at <= $%d", len(args)))
	}
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " GROUP BY direction"

	rows, err := r.querier.Query(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to compute financial summary", "error", err)
		return nil, fmt.Errorf("failed to compute financial summary: %w", err)
	}
	defer rows.Close()

	summary := &shared.FinancialSummary{
		EntryTotal: decimal.Zero,
		ExitTotal:  decimal.Zero,
	}
	for rows.Next() {
		var direction shared.Direction
		var total decimal.Decimal
		if err := rows.Scan(&direction, &total); err != nil {
			return nil, fmt.Errorf("failed to scan financial summary row: %w", err)
		}
		switch direction {
		case shared.DirectionEntry:
			summary.EntryTotal = total
		case shared.DirectionExit:
			summary.ExitTotal = total
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to compute financial summary: %w", err)
	}
	summary.NetBalance = summary.EntryTotal.Sub(summary.ExitTotal)

	return summary, nil
}

// Filtered returns note summaries matching the filter, ordered by issue
// date ascending. Zero-valued filter fields are ignored; the product
// filter is a semijoin, so each matching note appears once regardless of
// how many of its items carry the product.
func (r *NoteRepository) Filtered(ctx context.Context, filter shared.NoteFilter) ([]note.Summary, error) {
	query := `
		SELECT n.id, n.natural_key, n.issued_at, n.direction, e.name, n.total
		FROM notes n
		JOIN entities e ON e.id = n.entity_id
	`

	var conditions []string
	var args []interface{}
	if filter.Period.Start != nil {
		args = append(args, *filter.Period.Start)
		conditions = append(conditions, fmt.Sprintf("n.issued_at >= $%d", len(args)))
	}
	if filter.Period.End != nil {
		args = append(args, *filter.Period.End)
		conditions = append(conditions, fmt.Sprintf("n.issued_at <= $%d", len(args)))
	}
	if filter.Direction != "" {
		args = append(args, filter.Direction)
		conditions = append(conditions, fmt.Sprintf("n.direction = $%d", len(args)))
	}
	if filter.EntityID != 0 {
		args = append(args, filter.EntityID)
		conditions = append(conditions, fmt.Sprintf("n.entity_id = $%d", len(args)))
	}
	if filter.ProductCode != "" {
		args = append(args, filter.ProductCode)
		conditions = append(conditions, fmt.Sprintf(
			"EXISTS (SELECT 1 FROM note_items ni WHERE ni.note_id = n.id AND ni.product_code = $%d)", len(args)))
	}
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY n.issued_at"

	rows, err := r.querier.Query(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to filter notes", "error", err)
		return nil, fmt.Errorf("failed to filter notes: %w", err)
	}
	defer rows.Close()

	var summaries []note.Summary
	for rows.Next() {
		var s note.Summary
		if err := rows.Scan(&s.ID, &s.NaturalKey, &s.IssuedAt, &s.Direction, &s.EntityName, &s.Total); err != nil {
			return nil, fmt.Errorf("failed to scan note summary: %w", err)
		}
		summaries = append(summaries, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to filter notes: %w", err)
	}

	return summaries, nil
}

// ItemsByNoteID returns the line items of a note with product descriptions,
// in storage order. An empty result does not distinguish a missing note
// from a note without items; callers probe the note separately.
func (r *NoteRepository) ItemsByNoteID(ctx context.Context, noteID int64) ([]note.ItemDetail, error) {
	query := `
		SELECT ni.product_code, p.description, ni.quantity, ni.unit_price, ni.line_total
		FROM note_items ni
		JOIN products p ON p.code = ni.product_code
		WHERE ni.note_id = $1
		ORDER BY ni.id
	`

	rows, err := r.querier.Query(ctx, query, noteID)
	if err != nil {
		r.logger.Error("Failed to list note items", "noteID", noteID, "error", err)
		return nil, fmt.Errorf("failed to list note items: %w", err)
	}
	defer rows.Close()

	var items []note.ItemDetail
	for rows.Next() {
		var item note.ItemDetail
		if err := rows.Scan(&item.ProductCode, &item.Description, &item.Quantity, &item.UnitPrice, &item.LineTotal); err != nil {
			return nil, fmt.Errorf("failed to scan note item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list note items: %w", err)
	}

	return items, nil
}
