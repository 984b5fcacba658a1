// Package repository implements ports.CredentialStore against Postgres,
// covering the users table and the refresh_token_families rotation
// state.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pnwatin/auth-server/internal/domain"
	"github.com/pnwatin/auth-server/internal/ports"
)

// Store implements ports.CredentialStore with a pgxpool.Pool. The pool
// is expected to be built with otelpgx.NewTracer() installed as its
// QueryTracer (see cmd/authserver/main.go), so every query here is
// traced without this package importing otel itself.
type Store struct {
	db *pgxpool.Pool
}

var _ ports.CredentialStore = (*Store)(nil)

// New wraps an already-configured pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{db: pool}
}

// InsertUser creates a user row, translating the users_email_key unique
// violation into domain.ErrEmailTaken.
func (s *Store) InsertUser(ctx context.Context, email, passwordHash string) (uuid.UUID, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return uuid.Nil, fmt.Errorf("repository: generate user id: %w", err)
	}

	q := `
		INSERT INTO users (id, email, password_hash, created_at)
		VALUES (@id, @email, @password_hash, @created_at)
	`
	args := pgx.NamedArgs{
		"id":            id,
		"email":         email,
		"password_hash": passwordHash,
		"created_at":    time.Now().UTC(),
	}

	if _, err := s.db.Exec(ctx, q, args); err != nil {
		return uuid.Nil, s.handleError(err)
	}
	return id, nil
}

// GetCredentials does the single indexed lookup sign_in needs.
func (s *Store) GetCredentials(ctx context.Context, email string) (domain.Credentials, error) {
	const q = `SELECT id, password_hash FROM users WHERE email = $1`

	var creds domain.Credentials
	err := s.db.QueryRow(ctx, q, email).Scan(&creds.UserID, &creds.PasswordHash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Credentials{}, domain.ErrUserNotFound
		}
		return domain.Credentials{}, fmt.Errorf("repository: get credentials: %w", err)
	}
	return creds, nil
}

// UpsertFamily is the single atomic write rotation depends on (spec
// §4.3 item 3, §5). A nil expectedCurrentJIT means "this family does
// not exist yet" and takes the plain-insert path; a non-nil value means
// "rotate, but only if nobody beat us to it" and takes the
// compare-and-set UPDATE path.
func (s *Store) UpsertFamily(ctx context.Context, family domain.RefreshTokenFamily, expectedCurrentJIT *uuid.UUID) error {
	if expectedCurrentJIT == nil {
		const q = `
			INSERT INTO refresh_token_families
				(family, user_id, current_jit, expires_at, created_at, ip_address, user_agent)
			VALUES (@family, @user_id, @current_jit, @expires_at, @created_at, @ip_address, @user_agent)
		`
		args := pgx.NamedArgs{
			"family":      family.Family,
			"user_id":     family.UserID,
			"current_jit": family.CurrentJIT,
			"expires_at":  family.ExpiresAt,
			"created_at":  family.CreatedAt,
			"ip_address":  family.IPAddress,
			"user_agent":  family.UserAgent,
		}
		if _, err := s.db.Exec(ctx, q, args); err != nil {
			return s.handleError(err)
		}
		return nil
	}

	const q = `
		UPDATE refresh_token_families
		SET current_jit = @new_jit, expires_at = @expires_at, created_at = @created_at, ip_address = @ip_address, user_agent = @user_agent
		WHERE family = @family AND current_jit = @expected_jit
		RETURNING family
	`
	args := pgx.NamedArgs{
		"new_jit":      family.CurrentJIT,
		"expires_at":   family.ExpiresAt,
		"created_at":   family.CreatedAt,
		"ip_address":   family.IPAddress,
		"user_agent":   family.UserAgent,
		"family":       family.Family,
		"expected_jit": *expectedCurrentJIT,
	}

	var returned uuid.UUID
	err := s.db.QueryRow(ctx, q, args).Scan(&returned)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Zero rows: either the family is gone, or current_jit has
			// already moved on. Both are "rotation lost the race" from
			// this call's point of view.
			return domain.ErrFamilyNotFound
		}
		return fmt.Errorf("repository: rotate family: %w", err)
	}
	return nil
}

// LookupJIT reports whether jit is some family's current_jit.
func (s *Store) LookupJIT(ctx context.Context, jit uuid.UUID) (domain.RefreshTokenFamily, error) {
	const q = `
		SELECT family, user_id, current_jit, expires_at, created_at, ip_address, user_agent
		FROM refresh_token_families
		WHERE current_jit = $1
	`
	return s.scanFamily(s.db.QueryRow(ctx, q, jit))
}

// GetFamily fetches a family row regardless of its current jit.
func (s *Store) GetFamily(ctx context.Context, family uuid.UUID) (domain.RefreshTokenFamily, error) {
	const q = `
		SELECT family, user_id, current_jit, expires_at, created_at, ip_address, user_agent
		FROM refresh_token_families
		WHERE family = $1
	`
	return s.scanFamily(s.db.QueryRow(ctx, q, family))
}

func (s *Store) scanFamily(row pgx.Row) (domain.RefreshTokenFamily, error) {
	var f domain.RefreshTokenFamily
	err := row.Scan(&f.Family, &f.UserID, &f.CurrentJIT, &f.ExpiresAt, &f.CreatedAt, &f.IPAddress, &f.UserAgent)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.RefreshTokenFamily{}, domain.ErrFamilyNotFound
		}
		return domain.RefreshTokenFamily{}, fmt.Errorf("repository: scan family: %w", err)
	}
	return f, nil
}

// DeleteFamily removes a family row. Deleting a row that is already
// gone is not an error — sign_out and reuse-handling both rely on this
// idempotence.
func (s *Store) DeleteFamily(ctx context.Context, family uuid.UUID) error {
	const q = `DELETE FROM refresh_token_families WHERE family = $1`
	if _, err := s.db.Exec(ctx, q, family); err != nil {
		return fmt.Errorf("repository: delete family: %w", err)
	}
	return nil
}

// handleError translates Postgres error codes into domain errors.
func (s *Store) handleError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code == "23505" {
			return domain.ErrEmailTaken
		}
	}
	return fmt.Errorf("repository: %w", err)
}
