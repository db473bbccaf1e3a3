// Package entity models the counterparties of fiscal documents: suppliers
// on entry notes and customers on exit notes. The same tax id may appear
// once per role.
package entity

import "github.com/nfe-ledger/internal/domain/shared"

// Role is the side an entity plays on a note
type Role string

const (
	RoleSupplier Role = "SUPPLIER"
	RoleCustomer Role = "CUSTOMER"
)

// RoleForDirection gives the counterparty role implied by a note direction:
// the issuer of an entry note is a supplier, the recipient of an exit note
// is a customer.
func RoleForDirection(direction shared.Direction) Role {
	if direction == shared.DirectionEntry {
		return RoleSupplier
	}
	return RoleCustomer
}

// Entity is a deduplicated note counterparty
type Entity struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	TaxID string `json:"tax_id"`
	Role  Role   `json:"role"`
}
