package domain

import (
	"time"

	"github.com/google/uuid"
)

// User is a registered account. The core never mutates or deletes a
// User row once sign_up has created it.
type User struct {
	ID           uuid.UUID
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// Credentials is the narrow projection CredentialStore returns for
// sign-in: just enough to run password verification without pulling
// the whole user row.
type Credentials struct {
	UserID       uuid.UUID
	PasswordHash string
}
