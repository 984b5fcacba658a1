// Package service implements AuthCore: enumeration-resistant sign-in,
// family-based refresh rotation with reuse detection, and signed-claim
// issuance, orchestrated as fetch -> verify -> persist -> issue tokens
// -> best-effort publish.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/pnwatin/auth-server/internal/domain"
	"github.com/pnwatin/auth-server/internal/ports"
)

// AuthService implements ports.AuthCore.
type AuthService struct {
	store  ports.CredentialStore
	hasher hasherWithDummy
	codec  ports.TokenCodec
	clock  ports.Clock
	events ports.EventPublisher
	log    *slog.Logger
}

// hasherWithDummy is the narrow slice of PasswordHasher AuthService
// needs, plus the precomputed dummy hash for the enumeration-resistant
// path.
type hasherWithDummy interface {
	ports.PasswordHasher
	DummyHash() string
}

// New builds an AuthService. events may be nil, in which case audit
// publication is a no-op — the core must keep working if the broker is
// unavailable.
func New(store ports.CredentialStore, hasher hasherWithDummy, codec ports.TokenCodec, clock ports.Clock, events ports.EventPublisher, log *slog.Logger) *AuthService {
	if events == nil {
		events = noopPublisher{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &AuthService{store: store, hasher: hasher, codec: codec, clock: clock, events: events, log: log}
}

var _ ports.AuthCore = (*AuthService)(nil)

// SignUp validates the input, hashes the password, and inserts the
// user. No tokens are issued at registration.
func (s *AuthService) SignUp(ctx context.Context, cmd ports.SignUpCmd) (uuid.UUID, error) {
	email, err := domain.ValidateEmail(cmd.Email)
	if err != nil {
		return uuid.Nil, domain.ErrInvalidInput
	}
	if cmd.Password == "" {
		return uuid.Nil, domain.ErrInvalidInput
	}

	hash, err := s.hasher.Hash(ctx, cmd.Password)
	if err != nil {
		return uuid.Nil, fmt.Errorf("service: hash password: %w", err)
	}

	userID, err := s.store.InsertUser(ctx, email, hash)
	if err != nil {
		if errors.Is(err, domain.ErrEmailTaken) {
			return uuid.Nil, domain.ErrEmailTaken
		}
		s.log.Error("sign_up: insert user failed", "error", err)
		return uuid.Nil, domain.ErrStorage
	}

	if err := s.events.PublishUserRegistered(ctx, userID, email); err != nil {
		s.log.Warn("sign_up: publish user registered failed", "error", err)
	}

	return userID, nil
}

// SignIn is the enumeration-resistant sign-in path. The check order is
// load-bearing: verification always runs, on either the real or the
// dummy hash, before the two failure conditions ("no such user" and
// "wrong password") are folded into one indistinguishable error. Never
// add an early return before the Verify call.
func (s *AuthService) SignIn(ctx context.Context, cmd ports.SignInCmd) (ports.TokenPair, error) {
	email, err := domain.ValidateEmail(cmd.Email)
	if err != nil {
		return ports.TokenPair{}, domain.ErrInvalidInput
	}
	if cmd.Password == "" {
		return ports.TokenPair{}, domain.ErrInvalidInput
	}

	creds, err := s.store.GetCredentials(ctx, email)
	noSuchUser := false
	expectedHash := s.hasher.DummyHash()
	switch {
	case err == nil:
		expectedHash = creds.PasswordHash
	case errors.Is(err, domain.ErrUserNotFound):
		noSuchUser = true
	default:
		s.log.Error("sign_in: get credentials failed", "error", err)
		return ports.TokenPair{}, domain.ErrStorage
	}

	verifyErr := s.hasher.Verify(ctx, expectedHash, cmd.Password)
	if noSuchUser || verifyErr != nil {
		return ports.TokenPair{}, domain.ErrInvalidCredentials
	}

	return s.issueNewFamily(ctx, creds.UserID, cmd.Metadata)
}

// RefreshTokens is the reuse-detection state machine: decode fails ->
// InvalidToken; lookup miss with an existing family -> reuse, delete
// family, InvalidToken; lookup miss with no family -> InvalidToken;
// lookup hit -> rotate.
func (s *AuthService) RefreshTokens(ctx context.Context, cmd ports.RefreshCmd) (ports.TokenPair, error) {
	now := s.clock.Now()
	claims, err := s.codec.DecodeRefresh(cmd.RefreshToken, now)
	if err != nil {
		return ports.TokenPair{}, domain.ErrInvalidToken
	}

	_, err = s.store.LookupJIT(ctx, claims.JIT)
	switch {
	case err == nil:
		// Live: presented jit is the family's current one. Rotate.
		return s.rotate(ctx, claims, cmd.Metadata)

	case errors.Is(err, domain.ErrFamilyNotFound):
		// Either Reused (family still exists, jit is stale) or
		// Unknown/Expired (family is already gone). Both return
		// InvalidToken, but Reused additionally wipes the family.
		if _, getErr := s.store.GetFamily(ctx, claims.Family); getErr == nil {
			if delErr := s.store.DeleteFamily(ctx, claims.Family); delErr != nil {
				s.log.Error("refresh_tokens: delete reused family failed", "error", delErr)
				return ports.TokenPair{}, domain.ErrStorage
			}
			if pubErr := s.events.PublishFamilyReused(ctx, claims.Family, claims.Sub); pubErr != nil {
				s.log.Warn("refresh_tokens: publish family reused failed", "error", pubErr)
			}
		}
		return ports.TokenPair{}, domain.ErrInvalidToken

	default:
		s.log.Error("refresh_tokens: lookup jit failed", "error", err)
		return ports.TokenPair{}, domain.ErrStorage
	}
}

// rotate issues a fresh refresh token in the same family plus a fresh
// access token, and performs the atomic compare-and-set write.
func (s *AuthService) rotate(ctx context.Context, presented ports.RefreshClaims, metadata domain.RequestMetadata) (ports.TokenPair, error) {
	now := s.clock.Now()

	newRefreshJIT, err := uuid.NewRandom()
	if err != nil {
		return ports.TokenPair{}, fmt.Errorf("service: generate jit: %w", err)
	}
	newAccessJIT, err := uuid.NewRandom()
	if err != nil {
		return ports.TokenPair{}, fmt.Errorf("service: generate jit: %w", err)
	}

	family := domain.RefreshTokenFamily{
		Family:     presented.Family,
		UserID:     presented.Sub,
		CurrentJIT: newRefreshJIT,
		ExpiresAt:  now.Add(s.codec.RefreshTTL()),
		CreatedAt:  now,
		IPAddress:  metadata.IPAddress,
		UserAgent:  metadata.UserAgent,
	}

	expected := presented.JIT
	if err := s.store.UpsertFamily(ctx, family, &expected); err != nil {
		if errors.Is(err, domain.ErrFamilyNotFound) {
			// Lost the race: another rotation (or reuse-detection
			// delete) beat us to this family since LookupJIT. Treat as
			// reuse.
			if delErr := s.store.DeleteFamily(ctx, presented.Family); delErr != nil {
				s.log.Error("rotate: delete raced family failed", "error", delErr)
			}
			return ports.TokenPair{}, domain.ErrInvalidToken
		}
		s.log.Error("rotate: upsert family failed", "error", err)
		return ports.TokenPair{}, domain.ErrStorage
	}

	refreshToken, err := s.codec.EncodeRefresh(presented.Sub, presented.Family, newRefreshJIT, now)
	if err != nil {
		return ports.TokenPair{}, fmt.Errorf("service: encode refresh token: %w", err)
	}
	accessToken, err := s.codec.EncodeAccess(presented.Sub, newAccessJIT, now)
	if err != nil {
		return ports.TokenPair{}, fmt.Errorf("service: encode access token: %w", err)
	}

	return ports.TokenPair{AccessToken: accessToken, RefreshToken: refreshToken}, nil
}

// issueNewFamily is sign_in's token-issuance tail: fresh family, fresh
// refresh jit, fresh access jit, persisted then returned.
func (s *AuthService) issueNewFamily(ctx context.Context, userID uuid.UUID, metadata domain.RequestMetadata) (ports.TokenPair, error) {
	now := s.clock.Now()

	family, err := uuid.NewRandom()
	if err != nil {
		return ports.TokenPair{}, fmt.Errorf("service: generate family: %w", err)
	}
	refreshJIT, err := uuid.NewRandom()
	if err != nil {
		return ports.TokenPair{}, fmt.Errorf("service: generate jit: %w", err)
	}
	accessJIT, err := uuid.NewRandom()
	if err != nil {
		return ports.TokenPair{}, fmt.Errorf("service: generate jit: %w", err)
	}

	refreshToken, err := s.codec.EncodeRefresh(userID, family, refreshJIT, now)
	if err != nil {
		return ports.TokenPair{}, fmt.Errorf("service: encode refresh token: %w", err)
	}
	accessToken, err := s.codec.EncodeAccess(userID, accessJIT, now)
	if err != nil {
		return ports.TokenPair{}, fmt.Errorf("service: encode access token: %w", err)
	}

	row := domain.RefreshTokenFamily{
		Family:     family,
		UserID:     userID,
		CurrentJIT: refreshJIT,
		ExpiresAt:  now.Add(s.codec.RefreshTTL()),
		CreatedAt:  now,
		IPAddress:  metadata.IPAddress,
		UserAgent:  metadata.UserAgent,
	}
	if err := s.store.UpsertFamily(ctx, row, nil); err != nil {
		s.log.Error("issue_new_family: upsert family failed", "error", err)
		return ports.TokenPair{}, domain.ErrStorage
	}

	return ports.TokenPair{AccessToken: accessToken, RefreshToken: refreshToken}, nil
}

// SignOut decodes ignoring expiry, then deletes the family. Idempotent
// — deleting an already-gone family is success.
func (s *AuthService) SignOut(ctx context.Context, cmd ports.SignOutCmd) error {
	claims, err := s.codec.DecodeRefreshIgnoringExpiry(cmd.RefreshToken)
	if err != nil {
		return domain.ErrInvalidToken
	}
	if err := s.store.DeleteFamily(ctx, claims.Family); err != nil {
		s.log.Error("sign_out: delete family failed", "error", err)
		return domain.ErrStorage
	}
	return nil
}

type noopPublisher struct{}

func (noopPublisher) PublishUserRegistered(context.Context, uuid.UUID, string) error { return nil }
func (noopPublisher) PublishFamilyReused(context.Context, uuid.UUID, uuid.UUID) error { return nil }
