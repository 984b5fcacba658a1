package domain

import (
	"time"

	"github.com/google/uuid"
)

// RefreshTokenFamily is the one stateful row the core owns. Exactly one
// refresh token in a family is valid at any instant: CurrentJIT names it.
// Rotation overwrites CurrentJIT/ExpiresAt/CreatedAt in place; reuse
// detection or sign_out deletes the row outright.
type RefreshTokenFamily struct {
	Family     uuid.UUID
	UserID     uuid.UUID
	CurrentJIT uuid.UUID
	ExpiresAt  time.Time
	CreatedAt  time.Time
	IPAddress  *string
	UserAgent  *string
}

// RequestMetadata captures the ambient request data attached to a
// family row for audit purposes. It is never used as an authentication
// input.
type RequestMetadata struct {
	IPAddress *string
	UserAgent *string
}
