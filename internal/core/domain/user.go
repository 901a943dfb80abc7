package domain

import (
	"time"

	"github.com/google/uuid"
)

// User is the authenticated principal owning exactly one wallet.
// Deactivated users keep their rows (and transaction history) but are
// invisible to wallet resolution.
type User struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
