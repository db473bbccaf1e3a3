// Package ingest records parsed fiscal documents in the stock ledger. Each
// document is applied in a single database transaction: the note header,
// its items, any first-seen entities and products, and the stock deltas
// all commit or roll back together.
package ingest

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/nfe-ledger/internal/domain/entity"
	"github.com/nfe-ledger/internal/domain/inventory"
	"github.com/nfe-ledger/internal/domain/note"
	"github.com/nfe-ledger/internal/domain/product"
	"github.com/nfe-ledger/internal/domain/shared"
	"github.com/nfe-ledger/internal/platform/messaging/producers"
)

// TxRunner runs a function inside a database transaction, rolling back
// when the function returns an error. Satisfied by persistence.PostgresDB.
type TxRunner interface {
	ExecuteTx(ctx context.Context, fn func(tx pgx.Tx) error) error
}

// Service applies parsed notes to the ledger
type Service struct {
	pgDB          TxRunner
	noteRepo      note.Repository
	entityRepo    entity.Repository
	productRepo   product.Repository
	inventoryRepo inventory.Repository
	publisher     producers.MessagePublisher // nil when messaging is disabled
	logger        *slog.Logger
}

func NewService(
	pgDB TxRunner,
	noteRepo note.Repository,
	entityRepo entity.Repository,
	productRepo product.Repository,
	inventoryRepo inventory.Repository,
	publisher producers.MessagePublisher,
	logger *slog.Logger,
) *Service {
	return &Service{
		pgDB:          pgDB,
		noteRepo:      noteRepo,
		entityRepo:    entityRepo,
		productRepo:   productRepo,
		inventoryRepo: inventoryRepo,
		publisher:     publisher,
		logger:        logger,
	}
}

// Ingest records a parsed note in the ledger. A note whose natural key has
// been recorded before is reported as a duplicate and leaves no trace; the
// stored version of the note is never compared against the new one. Any
// storage failure rolls the whole document back.
func (s *Service) Ingest(ctx context.Context, parsed *note.ParsedNote) (shared.IngestOutcome, error) {
	logger := s.logger.With("natural_key", parsed.NaturalKey)

	var stored *note.Note
	outcome := shared.OutcomeInserted

	err := s.pgDB.ExecuteTx(ctx, func(tx pgx.Tx) error {
		noteRepo := s.noteRepo.WithTx(tx)

		existing, err := noteRepo.GetByNaturalKey(ctx, parsed.NaturalKey)
		if err != nil {
			return shared.NewStorageError("check duplicate note", err)
		}
		if existing != nil {
			outcome = shared.OutcomeDuplicate
			return nil
		}

		ent, err := s.resolveEntity(ctx, tx, parsed)
		if err != nil {
			return err
		}

		n := &note.Note{
			NaturalKey: parsed.NaturalKey,
			IssuedAt:   parsed.IssuedAt,
			Direction:  parsed.Direction,
			EntityID:   ent.ID,
			Total:      parsed.Total,
		}
		if err := noteRepo.Create(ctx, n); err != nil {
			return shared.NewStorageError("create note", err)
		}

		productRepo := s.productRepo.WithTx(tx)
		inventoryRepo := s.inventoryRepo.WithTx(tx)
		for i := range parsed.Items {
			item := &parsed.Items[i]
			if err := s.applyItem(ctx, noteRepo, productRepo, inventoryRepo, n, item); err != nil {
				return err
			}
		}

		stored = n
		return nil
	})
	if err != nil {
		var storageErr *shared.StorageError
		if !errors.As(err, &storageErr) {
			err = shared.NewStorageError("ingest note", err)
		}
		return "", err
	}

	if outcome == shared.OutcomeDuplicate {
		logger.Info("Skipped duplicate note")
		return outcome, nil
	}

	logger.Info("Ingested note", "note_id", stored.ID, "direction", stored.Direction, "items", len(parsed.Items))
	s.publishIngested(ctx, stored, len(parsed.Items))
	return outcome, nil
}

// resolveEntity finds the note counterparty by its tax id and role, creating
// it on first sight. First write wins: a later note with the same tax id and
// role but a different name does not update the stored name.
func (s *Service) resolveEntity(ctx context.Context, tx pgx.Tx, parsed *note.ParsedNote) (*entity.Entity, error) {
	entityRepo := s.entityRepo.WithTx(tx)
	role := entity.RoleForDirection(parsed.Direction)

	ent, err := entityRepo.GetByTaxIDAndRole(ctx, parsed.CounterpartyTax, role)
	if err != nil {
		return nil, shared.NewStorageError("get entity", err)
	}
	if ent != nil {
		return ent, nil
	}

	ent = &entity.Entity{
		Name:  parsed.CounterpartyName,
		TaxID: parsed.CounterpartyTax,
		Role:  role,
	}
	if err := entityRepo.Create(ctx, ent); err != nil {
		return nil, shared.NewStorageError("create entity", err)
	}
	return ent, nil
}

// applyItem records one line item and moves stock by the item quantity,
// positive for entries and negative for exits.
func (s *Service) applyItem(
	ctx context.Context,
	noteRepo note.Repository,
	productRepo product.Repository,
	inventoryRepo inventory.Repository,
	n *note.Note,
	item *note.ParsedItem,
) error {
	p, err := productRepo.GetByCode(ctx, item.ProductCode)
	if err != nil {
		return shared.NewStorageError("get product", err)
	}
	if p == nil {
		p = &product.Product{Code: item.ProductCode, Description: item.Description}
		if err := productRepo.Create(ctx, p); err != nil {
			return shared.NewStorageError("create product", err)
		}
	}

	noteItem := &note.Item{
		NoteID:      n.ID,
		ProductCode: item.ProductCode,
		Quantity:    item.Quantity,
		UnitPrice:   item.UnitPrice,
		LineTotal:   item.LineTotal,
	}
	if err := noteRepo.CreateItem(ctx, noteItem); err != nil {
		return shared.NewStorageError("create note item", err)
	}

	delta := item.Quantity
	if n.Direction == shared.DirectionExit {
		delta = decimal.Zero.Sub(item.Quantity)
	}
	if err := inventoryRepo.ApplyDelta(ctx, item.ProductCode, delta); err != nil {
		return shared.NewStorageError("apply stock delta", err)
	}
	return nil
}

// publishIngested emits a post-commit event for consumers downstream. A
// publish failure is logged and swallowed; the note is already committed.
func (s *Service) publishIngested(ctx context.Context, n *note.Note, itemCount int) {
	if s.publisher == nil {
		return
	}

	event := &producers.NoteIngestedEvent{
		NoteID:     n.ID,
		NaturalKey: n.NaturalKey,
		Direction:  string(n.Direction),
		IssuedAt:   n.IssuedAt,
		Total:      n.Total,
		ItemCount:  itemCount,
	}
	if err := s.publisher.Publish(ctx, n.NaturalKey, event); err != nil {
		s.logger.Error("Failed to publish note ingested event", "natural_key", n.NaturalKey, "error", err)
	}
}
