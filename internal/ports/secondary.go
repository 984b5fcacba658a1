package ports

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/pnwatin/auth-server/internal/domain"
)

// CredentialStore is the persistence contract AuthCore depends on. It
// enforces email uniqueness and exposes the family row as the single
// unit of atomic read-modify-write for rotation.
type CredentialStore interface {
	// InsertUser creates a user row. Returns domain.ErrEmailTaken iff the
	// unique email constraint rejects the insert.
	InsertUser(ctx context.Context, email, passwordHash string) (uuid.UUID, error)

	// GetCredentials does a single indexed lookup by email. Returns
	// domain.ErrUserNotFound if no such user exists — AuthCore is the
	// only caller allowed to see that distinction; it never reaches a
	// client.
	GetCredentials(ctx context.Context, email string) (domain.Credentials, error)

	// UpsertFamily inserts a new family row when expectedCurrentJIT is
	// nil, otherwise performs an atomic compare-and-set against
	// expectedCurrentJIT. A zero-row update
	// (existing family whose current_jit no longer matches
	// expectedCurrentJIT) returns domain.ErrFamilyNotFound so the caller
	// can treat it as reuse.
	UpsertFamily(ctx context.Context, family domain.RefreshTokenFamily, expectedCurrentJIT *uuid.UUID) error

	// LookupJIT reports whether jit is the currently valid refresh token
	// of some family, returning that family's row. Returns
	// domain.ErrFamilyNotFound if no family currently has this jit.
	LookupJIT(ctx context.Context, jit uuid.UUID) (domain.RefreshTokenFamily, error)

	// GetFamily fetches a family row by id regardless of which jit is
	// current, used to distinguish "reused" from "unknown" in the
	// refresh_tokens state machine.
	GetFamily(ctx context.Context, family uuid.UUID) (domain.RefreshTokenFamily, error)

	// DeleteFamily removes a family row. Deleting a family that does not
	// exist is not an error (idempotent, used by sign_out).
	DeleteFamily(ctx context.Context, family uuid.UUID) error
}

// PasswordHasher derives and verifies PHC-format password hashes using a
// memory-hard KDF. Verify must take comparable wall time regardless of
// whether the hash is real or the precomputed dummy, so a missing
// account can't be distinguished from a wrong password by timing.
type PasswordHasher interface {
	Hash(ctx context.Context, password string) (string, error)
	Verify(ctx context.Context, hash, candidate string) error
}

// TokenCodec encodes and decodes the two claim shapes AuthCore issues.
// The codec stamps exp = iat + ttl itself; AccessTTL/RefreshTTL are
// exposed so the service layer can compute a family row's expires_at
// without reaching into the codec's internals.
type TokenCodec interface {
	EncodeAccess(sub, jit uuid.UUID, now time.Time) (string, error)
	EncodeRefresh(sub, family, jit uuid.UUID, now time.Time) (string, error)
	DecodeAccess(token string, now time.Time) (AccessClaims, error)
	DecodeRefresh(token string, now time.Time) (RefreshClaims, error)
	// DecodeRefreshIgnoringExpiry accepts an expired-but-otherwise-valid
	// refresh token; required by sign_out, which must still be able to
	// terminate a family whose refresh token just expired.
	DecodeRefreshIgnoringExpiry(token string) (RefreshClaims, error)
	AccessTTL() time.Duration
	RefreshTTL() time.Duration
}

// AccessClaims is the decoded shape of an access token.
type AccessClaims struct {
	Sub uuid.UUID
	JIT uuid.UUID
	IAT time.Time
	Exp time.Time
}

// RefreshClaims is the decoded shape of a refresh token.
type RefreshClaims struct {
	Sub    uuid.UUID
	Family uuid.UUID
	JIT    uuid.UUID
	IAT    time.Time
	Exp    time.Time
}

// EventPublisher is the best-effort audit/notification sink. Failures
// here never fail the calling operation.
type EventPublisher interface {
	PublishUserRegistered(ctx context.Context, userID uuid.UUID, email string) error
	PublishFamilyReused(ctx context.Context, family, userID uuid.UUID) error
}
