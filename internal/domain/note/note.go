// Package note models fiscal documents, both in their parsed in-flight form
// and as persisted ledger records. The natural key (the document access
// key) makes ingestion idempotent.
package note

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/nfe-ledger/internal/domain/shared"
)

// ParsedItem is one line item of a parsed document, before persistence
type ParsedItem struct {
	ProductCode string
	Description string
	Quantity    decimal.Decimal
	UnitPrice   decimal.Decimal
	LineTotal   decimal.Decimal
}

// ParsedNote is the normalized form of a fiscal document produced by the
// parser. Items keep document order.
type ParsedNote struct {
	NaturalKey       string
	IssuedAt         time.Time
	Direction        shared.Direction
	CounterpartyName string
	CounterpartyTax  string
	Total            decimal.Decimal
	Items            []ParsedItem
}

// Note is a persisted note header
type Note struct {
	ID         int64            `json:"id"`
	NaturalKey string           `json:"natural_key"`
	IssuedAt   time.Time        `json:"issued_at"`
	Direction  shared.Direction `json:"direction"`
	EntityID   int64            `json:"entity_id"`
	Total      decimal.Decimal  `json:"total"`
}

// Item is a persisted note line item
type Item struct {
	ID          int64           `json:"id"`
	NoteID      int64           `json:"note_id"`
	ProductCode string          `json:"product_code"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	LineTotal   decimal.Decimal `json:"line_total"`
}

// Summary is a note header joined with its counterparty name, as shown in
// listings
type Summary struct {
	ID         int64            `json:"id"`
	NaturalKey string           `json:"natural_key"`
	IssuedAt   time.Time        `json:"issued_at"`
	Direction  shared.Direction `json:"direction"`
	EntityName string           `json:"entity_name"`
	Total      decimal.Decimal  `json:"total"`
}

// ItemDetail is a line item joined with its product description, as shown
// in note drill-downs
type ItemDetail struct {
	ProductCode string          `json:"product_code"`
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	LineTotal   decimal.Decimal `json:"line_total"`
}
