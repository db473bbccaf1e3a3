package note

import (
	"context"
	"strconv"

	"github.com/jackc/pgx/v5"

	"github.com/nfe-ledger/internal/domain/shared"
)

// ErrNoteNotFound is returned when a note is looked up by ID and does not
// exist
type ErrNoteNotFound struct {
	NoteID int64
}

func (e ErrNoteNotFound) Error() string {
	return "note not found: " + strconv.FormatInt(e.NoteID, 10)
}

// Repository defines the interface for note data access
type Repository interface {
	// Create stores a new note header and fills in its generated ID
	Create(ctx context.Context, n *Note) error

	// CreateItem stores a single note line item and fills in its generated ID
	CreateItem(ctx context.Context, item *Item) error

	// GetByNaturalKey retrieves a note by its access key.
	// Returns nil, nil when no note with that key has been recorded.
	GetByNaturalKey(ctx context.Context, naturalKey string) (*Note, error)

	// GetByID retrieves a note by its generated ID.
	// Returns nil, nil when no note with that ID exists.
	GetByID(ctx context.Context, id int64) (*Note, error)

	// FinancialSummary aggregates note totals per direction over an
	// optional period with inclusive bounds
	FinancialSummary(ctx context.Context, period shared.Period) (*shared.FinancialSummary, error)

	// Filtered returns note summaries matching the filter, ordered by
	// issue date ascending
	Filtered(ctx context.Context, filter shared.NoteFilter) ([]Summary, error)

	// ItemsByNoteID returns the line items of a note in storage order
	ItemsByNoteID(ctx context.Context, noteID int64) ([]ItemDetail, error)

	// WithTx returns a repository bound to the given transaction
	WithTx(tx pgx.Tx) Repository
}
