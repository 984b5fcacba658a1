package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pnwatin/auth-server/internal/domain"
	"github.com/pnwatin/auth-server/internal/ports"
	"github.com/pnwatin/auth-server/internal/security"
)

// fakeStore is an in-memory ports.CredentialStore used to exercise
// AuthService without a database.
type fakeStore struct {
	mu       sync.Mutex
	byEmail  map[string]domain.Credentials
	families map[uuid.UUID]domain.RefreshTokenFamily
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		byEmail:  make(map[string]domain.Credentials),
		families: make(map[uuid.UUID]domain.RefreshTokenFamily),
	}
}

func (f *fakeStore) InsertUser(ctx context.Context, email, passwordHash string) (uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.byEmail[email]; exists {
		return uuid.Nil, domain.ErrEmailTaken
	}
	id := uuid.New()
	f.byEmail[email] = domain.Credentials{UserID: id, PasswordHash: passwordHash}
	return id, nil
}

func (f *fakeStore) GetCredentials(ctx context.Context, email string) (domain.Credentials, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	creds, ok := f.byEmail[email]
	if !ok {
		return domain.Credentials{}, domain.ErrUserNotFound
	}
	return creds, nil
}

func (f *fakeStore) UpsertFamily(ctx context.Context, family domain.RefreshTokenFamily, expectedCurrentJIT *uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	existing, exists := f.families[family.Family]
	if expectedCurrentJIT == nil {
		f.families[family.Family] = family
		return nil
	}
	if !exists || existing.CurrentJIT != *expectedCurrentJIT {
		return domain.ErrFamilyNotFound
	}
	f.families[family.Family] = family
	return nil
}

func (f *fakeStore) LookupJIT(ctx context.Context, jit uuid.UUID) (domain.RefreshTokenFamily, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, fam := range f.families {
		if fam.CurrentJIT == jit {
			return fam, nil
		}
	}
	return domain.RefreshTokenFamily{}, domain.ErrFamilyNotFound
}

func (f *fakeStore) GetFamily(ctx context.Context, family uuid.UUID) (domain.RefreshTokenFamily, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fam, ok := f.families[family]
	if !ok {
		return domain.RefreshTokenFamily{}, domain.ErrFamilyNotFound
	}
	return fam, nil
}

func (f *fakeStore) DeleteFamily(ctx context.Context, family uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.families, family)
	return nil
}

// fixedClock lets tests control "now" without sleeping, matching spec
// §8's invariant tests.
type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

func newTestService(t *testing.T, clk ports.Clock) (*AuthService, *fakeStore) {
	t.Helper()
	store := newFakeStore()
	pool := security.NewHashPool(2)
	hasher, err := security.NewArgon2Hasher(security.Argon2Params{Memory: 8 * 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}, pool)
	require.NoError(t, err)
	codec, err := security.NewJWTCodec([]byte("01234567890123456789012345678901"), 15*time.Minute, time.Hour, 0)
	require.NoError(t, err)
	svc := New(store, hasher, codec, clk, nil, nil)
	return svc, store
}

func TestAuthService_SignUpThenSignIn(t *testing.T) {
	now := time.Now()
	svc, _ := newTestService(t, fixedClock{now})
	ctx := context.Background()

	userID, err := svc.SignUp(ctx, ports.SignUpCmd{Email: "a@b.com", Password: "password"})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, userID)

	t.Run("duplicate email is rejected", func(t *testing.T) {
		_, err := svc.SignUp(ctx, ports.SignUpCmd{Email: "a@b.com", Password: "password"})
		assert.ErrorIs(t, err, domain.ErrEmailTaken)
	})

	t.Run("sign-in issues a token pair with matching iat", func(t *testing.T) {
		pair, err := svc.SignIn(ctx, ports.SignInCmd{Email: "a@b.com", Password: "password"})
		require.NoError(t, err)
		assert.NotEmpty(t, pair.AccessToken)
		assert.NotEmpty(t, pair.RefreshToken)

		access, err := svc.codec.DecodeAccess(pair.AccessToken, now)
		require.NoError(t, err)
		refresh, err := svc.codec.DecodeRefresh(pair.RefreshToken, now)
		require.NoError(t, err)
		assert.Equal(t, access.IAT.Unix(), refresh.IAT.Unix())
		assert.Equal(t, userID, access.Sub)
	})
}

// TestAuthService_SignUp_ConcurrentSameEmail verifies that of N
// concurrent sign_up calls with the same email, exactly one succeeds
// and every other one fails with ErrEmailTaken.
func TestAuthService_SignUp_ConcurrentSameEmail(t *testing.T) {
	svc, _ := newTestService(t, fixedClock{time.Now()})
	ctx := context.Background()

	const attempts = 10
	results := make([]error, attempts)
	var wg sync.WaitGroup
	wg.Add(attempts)
	for i := 0; i < attempts; i++ {
		i := i
		go func() {
			defer wg.Done()
			_, err := svc.SignUp(ctx, ports.SignUpCmd{Email: "race@b.com", Password: "password"})
			results[i] = err
		}()
	}
	wg.Wait()

	successes, conflicts := 0, 0
	for _, err := range results {
		switch {
		case err == nil:
			successes++
		case err == domain.ErrEmailTaken:
			conflicts++
		}
	}
	assert.Equal(t, 1, successes)
	assert.Equal(t, attempts-1, conflicts)
}

func TestAuthService_SignIn_InvalidInput(t *testing.T) {
	svc, _ := newTestService(t, fixedClock{time.Now()})
	_, err := svc.SignIn(context.Background(), ports.SignInCmd{Email: "@b.com", Password: "x"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestAuthService_SignIn_SameErrorForWrongPasswordAndNoSuchUser(t *testing.T) {
	svc, _ := newTestService(t, fixedClock{time.Now()})
	ctx := context.Background()
	_, err := svc.SignUp(ctx, ports.SignUpCmd{Email: "a@b.com", Password: "password"})
	require.NoError(t, err)

	_, wrongPasswordErr := svc.SignIn(ctx, ports.SignInCmd{Email: "a@b.com", Password: "nope"})
	_, noSuchUserErr := svc.SignIn(ctx, ports.SignInCmd{Email: "nobody@b.com", Password: "nope"})

	assert.ErrorIs(t, wrongPasswordErr, domain.ErrInvalidCredentials)
	assert.ErrorIs(t, noSuchUserErr, domain.ErrInvalidCredentials)
}

func TestAuthService_RefreshTokens_RotationAndReuseDetection(t *testing.T) {
	now := time.Now()
	svc, _ := newTestService(t, fixedClock{now})
	ctx := context.Background()

	_, err := svc.SignUp(ctx, ports.SignUpCmd{Email: "a@b.com", Password: "password"})
	require.NoError(t, err)
	pair1, err := svc.SignIn(ctx, ports.SignInCmd{Email: "a@b.com", Password: "password"})
	require.NoError(t, err)

	// S4: rotating R1 succeeds and yields R2.
	pair2, err := svc.RefreshTokens(ctx, ports.RefreshCmd{RefreshToken: pair1.RefreshToken})
	require.NoError(t, err)
	assert.NotEqual(t, pair1.RefreshToken, pair2.RefreshToken)

	// S5: replaying R1 is reuse -> InvalidToken, and it wipes the family,
	// so even the legitimately-rotated R2 stops working afterward.
	_, err = svc.RefreshTokens(ctx, ports.RefreshCmd{RefreshToken: pair1.RefreshToken})
	assert.ErrorIs(t, err, domain.ErrInvalidToken)

	_, err = svc.RefreshTokens(ctx, ports.RefreshCmd{RefreshToken: pair2.RefreshToken})
	assert.ErrorIs(t, err, domain.ErrInvalidToken)
}

func TestAuthService_RefreshTokens_RotationIdempotency(t *testing.T) {
	now := time.Now()
	svc, store := newTestService(t, fixedClock{now})
	ctx := context.Background()

	_, err := svc.SignUp(ctx, ports.SignUpCmd{Email: "a@b.com", Password: "password"})
	require.NoError(t, err)
	pair, err := svc.SignIn(ctx, ports.SignInCmd{Email: "a@b.com", Password: "password"})
	require.NoError(t, err)

	refresh, err := svc.codec.DecodeRefresh(pair.RefreshToken, now)
	require.NoError(t, err)
	family := refresh.Family

	for i := 0; i < 5; i++ {
		pair, err = svc.RefreshTokens(ctx, ports.RefreshCmd{RefreshToken: pair.RefreshToken})
		require.NoError(t, err)
	}

	row, err := store.GetFamily(ctx, family)
	require.NoError(t, err)

	latest, err := svc.codec.DecodeRefresh(pair.RefreshToken, now)
	require.NoError(t, err)
	assert.Equal(t, latest.JIT, row.CurrentJIT)
	assert.Len(t, store.families, 1)
}

func TestAuthService_SignOut_IsIdempotent(t *testing.T) {
	now := time.Now()
	svc, _ := newTestService(t, fixedClock{now})
	ctx := context.Background()

	_, err := svc.SignUp(ctx, ports.SignUpCmd{Email: "a@b.com", Password: "password"})
	require.NoError(t, err)
	pair, err := svc.SignIn(ctx, ports.SignInCmd{Email: "a@b.com", Password: "password"})
	require.NoError(t, err)

	require.NoError(t, svc.SignOut(ctx, ports.SignOutCmd{RefreshToken: pair.RefreshToken}))
	// Signing out again with the same (now-orphaned) token is still Ok.
	assert.NoError(t, svc.SignOut(ctx, ports.SignOutCmd{RefreshToken: pair.RefreshToken}))
}
