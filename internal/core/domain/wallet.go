package domain

import (
	"time"

	"github.com/google/uuid"
)

// Wallet holds a user's balance in minor currency units.
// The balance is mutated exclusively by the ledger service; it never
// goes below zero on a committed operation.
type Wallet struct {
	ID        uuid.UUID `json:"id"`
	OwnerID   uuid.UUID `json:"owner_id"`
	Balance   int64     `json:"balance"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
