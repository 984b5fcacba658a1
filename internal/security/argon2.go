// Package security implements PasswordHasher with Argon2id and
// TokenCodec with HMAC-SHA-256 JWTs.
package security

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"

	"github.com/pnwatin/auth-server/internal/domain"
	"github.com/pnwatin/auth-server/internal/ports"
)

// Argon2Params controls the KDF's memory/time/parallelism trade-off.
type Argon2Params struct {
	Memory      uint32 // KiB
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// DefaultArgon2Params follows the OWASP-recommended balance of memory,
// iterations, and parallelism for Argon2id.
var DefaultArgon2Params = Argon2Params{
	Memory:      19 * 1024, // 19 MiB
	Iterations:  2,
	Parallelism: 1,
	SaltLength:  16,
	KeyLength:   32,
}

// dummyPassword is hashed once at startup to build the fixed PHC string
// used on the "no such user" path of sign_in, so that path performs the
// same KDF work as a real verification.
const dummyPassword = "correct horse battery staple - do not reuse"

// Argon2Hasher implements ports.PasswordHasher. Hash/Verify are
// CPU-bound and always run through the injected HashPool.
type Argon2Hasher struct {
	params Argon2Params
	pool   *HashPool
	dummy  string
}

var _ ports.PasswordHasher = (*Argon2Hasher)(nil)

// NewArgon2Hasher builds a hasher with the given params (DefaultArgon2Params
// if zero-valued) and precomputes the dummy hash used for enumeration
// resistance.
func NewArgon2Hasher(params Argon2Params, pool *HashPool) (*Argon2Hasher, error) {
	if params == (Argon2Params{}) {
		params = DefaultArgon2Params
	}
	h := &Argon2Hasher{params: params, pool: pool}
	dummy, err := h.hashSync(dummyPassword)
	if err != nil {
		return nil, fmt.Errorf("security: precompute dummy hash: %w", err)
	}
	h.dummy = dummy
	return h, nil
}

// DummyHash returns the PHC string, precomputed by NewArgon2Hasher from
// dummyPassword, that AuthCore substitutes for a missing user's real hash.
func (h *Argon2Hasher) DummyHash() string { return h.dummy }

// Hash derives a PHC-format Argon2id hash on the bounded worker pool.
func (h *Argon2Hasher) Hash(ctx context.Context, password string) (string, error) {
	return h.pool.Run(ctx, func() (string, error) {
		return h.hashSync(password)
	})
}

func (h *Argon2Hasher) hashSync(password string) (string, error) {
	salt := make([]byte, h.params.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("security: read salt: %w", err)
	}

	hash := argon2.IDKey([]byte(password), salt, h.params.Iterations, h.params.Memory, h.params.Parallelism, h.params.KeyLength)

	b64Salt := base64.RawStdEncoding.EncodeToString(salt)
	b64Hash := base64.RawStdEncoding.EncodeToString(hash)

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, h.params.Memory, h.params.Iterations, h.params.Parallelism, b64Salt, b64Hash), nil
}

// Verify compares candidate against hash in constant time, on the
// bounded worker pool. It returns domain.ErrInvalidCredentials iff the
// candidate does not match; any other failure (malformed stored hash)
// is an unexpected error.
func (h *Argon2Hasher) Verify(ctx context.Context, hash, candidate string) error {
	return h.pool.RunErr(ctx, func() error {
		return verifySync(hash, candidate)
	})
}

func verifySync(encodedHash, password string) error {
	p, salt, hash, err := decodeHash(encodedHash)
	if err != nil {
		return fmt.Errorf("security: decode stored hash: %w", err)
	}

	candidate := argon2.IDKey([]byte(password), salt, p.Iterations, p.Memory, p.Parallelism, p.KeyLength)

	if subtle.ConstantTimeCompare(hash, candidate) == 1 {
		return nil
	}
	return domain.ErrInvalidCredentials
}

func decodeHash(encodedHash string) (p Argon2Params, salt, hash []byte, err error) {
	vals := strings.Split(encodedHash, "$")
	if len(vals) != 6 {
		return Argon2Params{}, nil, nil, errors.New("invalid hash format")
	}

	var version int
	if _, err = fmt.Sscanf(vals[2], "v=%d", &version); err != nil {
		return Argon2Params{}, nil, nil, err
	}
	if version != argon2.Version {
		return Argon2Params{}, nil, nil, errors.New("incompatible argon2 version")
	}

	if _, err = fmt.Sscanf(vals[3], "m=%d,t=%d,p=%d", &p.Memory, &p.Iterations, &p.Parallelism); err != nil {
		return Argon2Params{}, nil, nil, err
	}

	salt, err = base64.RawStdEncoding.DecodeString(vals[4])
	if err != nil {
		return Argon2Params{}, nil, nil, err
	}
	p.SaltLength = uint32(len(salt))

	hash, err = base64.RawStdEncoding.DecodeString(vals[5])
	if err != nil {
		return Argon2Params{}, nil, nil, err
	}
	p.KeyLength = uint32(len(hash))

	return p, salt, hash, nil
}
