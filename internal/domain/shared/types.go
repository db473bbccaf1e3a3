// Package shared holds types common to the ingestion and query sides of
// the ledger.
package shared

import (
	"time"

	"github.com/shopspring/decimal"
)

// Direction classifies a fiscal document as stock coming in or going out
type Direction string

const (
	DirectionEntry Direction = "ENTRY"
	DirectionExit  Direction = "EXIT"
)

// IngestOutcome reports what happened to one document during ingestion.
// A duplicate is a normal outcome, not an error.
type IngestOutcome string

const (
	OutcomeInserted  IngestOutcome = "INSERTED"
	OutcomeDuplicate IngestOutcome = "DUPLICATE"
)

// Period is an optional time window. Nil bounds mean unbounded on that
// side; both bounds are inclusive.
type Period struct {
	Start *time.Time
	End   *time.Time
}

// FinancialSummary aggregates note totals over a period
type FinancialSummary struct {
	EntryTotal decimal.Decimal `json:"entry_total"`
	ExitTotal  decimal.Decimal `json:"exit_total"`
	NetBalance decimal.Decimal `json:"net_balance"`
}

// NoteFilter narrows a note listing. Zero-valued fields are ignored.
type NoteFilter struct {
	Period      Period
	Direction   Direction
	ProductCode string
	EntityID    int64
}
