// Package ports defines the boundary between AuthCore and everything it
// drives (persistence, crypto) or is driven by (HTTP handlers). Keeping
// these as interfaces in their own package, separate from both the
// service implementation and the adapters, separates primary (driving)
// contracts from secondary (driven) ones.
package ports

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/pnwatin/auth-server/internal/domain"
)

// SignUpCmd is the validated input to AuthCore.SignUp.
type SignUpCmd struct {
	Email    string
	Password string
}

// SignInCmd is the validated input to AuthCore.SignIn.
type SignInCmd struct {
	Email    string
	Password string
	Metadata domain.RequestMetadata
}

// RefreshCmd is the input to AuthCore.RefreshTokens.
type RefreshCmd struct {
	RefreshToken string
	Metadata     domain.RequestMetadata
}

// SignOutCmd is the input to AuthCore.SignOut.
type SignOutCmd struct {
	RefreshToken string
}

// TokenPair is the response shape shared by sign_in and refresh_tokens.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// AuthCore is the primary port: the API the core exposes to whatever
// transport sits in front of it (HTTP today; nothing stops a gRPC or
// CLI adapter from driving the same interface tomorrow).
type AuthCore interface {
	SignUp(ctx context.Context, cmd SignUpCmd) (uuid.UUID, error)
	SignIn(ctx context.Context, cmd SignInCmd) (TokenPair, error)
	RefreshTokens(ctx context.Context, cmd RefreshCmd) (TokenPair, error)
	SignOut(ctx context.Context, cmd SignOutCmd) error
}

// Clock abstracts wall-clock reads so tests can control expiry without
// sleeping.
type Clock interface {
	Now() time.Time
}
