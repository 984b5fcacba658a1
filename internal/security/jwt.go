package security

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/pnwatin/auth-server/internal/domain"
	"github.com/pnwatin/auth-server/internal/ports"
)

// accessClaims and refreshClaims are the wire shapes signed with HMAC-
// SHA-256. A single symmetric secret signs both, but access and refresh
// tokens carry distinct claim shapes, so JWTCodec keeps a separate
// Encode/Decode pair for each rather than one generic claims type
// (interface methods can't be generic, and the two shapes diverge
// enough — refresh carries a family id, access doesn't — to not share
// one struct anyway).
type accessClaims struct {
	Sub uuid.UUID `json:"sub"`
	JIT uuid.UUID `json:"jit"`
	jwt.RegisteredClaims
}

type refreshClaims struct {
	Sub    uuid.UUID `json:"sub"`
	Family uuid.UUID `json:"family"`
	JIT    uuid.UUID `json:"jit"`
	jwt.RegisteredClaims
}

// JWTCodec implements ports.TokenCodec with HMAC-SHA-256 and
// independent access/refresh lifetimes.
type JWTCodec struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	leeway     time.Duration
}

var _ ports.TokenCodec = (*JWTCodec)(nil)

// NewJWTCodec builds a codec. leeway is the clock-skew tolerance applied
// to expiry checks (0 in tests, where the fake clock makes skew moot).
func NewJWTCodec(secret []byte, accessTTL, refreshTTL, leeway time.Duration) (*JWTCodec, error) {
	if len(secret) < 32 {
		return nil, errors.New("security: jwt secret must be at least 32 bytes")
	}
	return &JWTCodec{secret: secret, accessTTL: accessTTL, refreshTTL: refreshTTL, leeway: leeway}, nil
}

func (c *JWTCodec) AccessTTL() time.Duration  { return c.accessTTL }
func (c *JWTCodec) RefreshTTL() time.Duration { return c.refreshTTL }

// EncodeAccess signs a fresh access token for (sub, jit) with iat=now,
// exp=now+AccessTTL.
func (c *JWTCodec) EncodeAccess(sub, jit uuid.UUID, now time.Time) (string, error) {
	claims := accessClaims{
		Sub: sub,
		JIT: jit,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.accessTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
}

// EncodeRefresh signs a fresh refresh token for (sub, family, jit).
func (c *JWTCodec) EncodeRefresh(sub, family, jit uuid.UUID, now time.Time) (string, error) {
	claims := refreshClaims{
		Sub:    sub,
		Family: family,
		JIT:    jit,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.refreshTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
}

func (c *JWTCodec) keyFunc(t *jwt.Token) (interface{}, error) {
	if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
	}
	return c.secret, nil
}

// DecodeAccess verifies signature, structure, and now < exp (within
// leeway). Any failure collapses to domain.ErrInvalidToken — expired,
// tampered, and malformed all look identical to the caller, so there's
// no oracle for guessing which check failed.
func (c *JWTCodec) DecodeAccess(token string, now time.Time) (ports.AccessClaims, error) {
	var claims accessClaims
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(func() time.Time { return now }),
		jwt.WithLeeway(c.leeway),
	)
	if _, err := parser.ParseWithClaims(token, &claims, c.keyFunc); err != nil {
		return ports.AccessClaims{}, domain.ErrInvalidToken
	}
	return ports.AccessClaims{
		Sub: claims.Sub,
		JIT: claims.JIT,
		IAT: claims.IssuedAt.Time,
		Exp: claims.ExpiresAt.Time,
	}, nil
}

// DecodeRefresh is DecodeAccess's counterpart for refresh tokens.
func (c *JWTCodec) DecodeRefresh(token string, now time.Time) (ports.RefreshClaims, error) {
	var claims refreshClaims
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(func() time.Time { return now }),
		jwt.WithLeeway(c.leeway),
	)
	if _, err := parser.ParseWithClaims(token, &claims, c.keyFunc); err != nil {
		return ports.RefreshClaims{}, domain.ErrInvalidToken
	}
	return ports.RefreshClaims{
		Sub:    claims.Sub,
		Family: claims.Family,
		JIT:    claims.JIT,
		IAT:    claims.IssuedAt.Time,
		Exp:    claims.ExpiresAt.Time,
	}, nil
}

// DecodeRefreshIgnoringExpiry verifies signature and structure but not
// freshness — required by sign_out so a client can terminate its family
// with a refresh token that expired moments ago.
func (c *JWTCodec) DecodeRefreshIgnoringExpiry(token string) (ports.RefreshClaims, error) {
	var claims refreshClaims
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithoutClaimsValidation(),
	)
	if _, err := parser.ParseWithClaims(token, &claims, c.keyFunc); err != nil {
		return ports.RefreshClaims{}, domain.ErrInvalidToken
	}
	if claims.Sub == uuid.Nil || claims.Family == uuid.Nil || claims.JIT == uuid.Nil {
		return ports.RefreshClaims{}, domain.ErrInvalidToken
	}
	return ports.RefreshClaims{
		Sub:    claims.Sub,
		Family: claims.Family,
		JIT:    claims.JIT,
		IAT:    claims.IssuedAt.Time,
		Exp:    claims.ExpiresAt.Time,
	}, nil
}
