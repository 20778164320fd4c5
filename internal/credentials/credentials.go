// Package credentials defines the credential store contract consumed by the
// session manager, with interchangeable backends selected by configuration.
package credentials

import (
	"context"

	"example.com/workouts/internal/domain"
)

// Session is a resolved identity together with the token pair that proves it.
type Session struct {
	Identity domain.Identity
	Tokens   domain.TokenPair
}

// Registration is the outcome of a sign-up. When the provider requires email
// confirmation, Session is nil and ConfirmationRequired is set; the caller
// has no authenticated session until the account is confirmed.
type Registration struct {
	Session              *Session
	Identity             domain.Identity
	ConfirmationRequired bool
}

// Store is the credential provider contract. Implementations classify
// failures with the sentinel errors in the domain package.
type Store interface {
	// SignIn exchanges email/password for a session.
	SignIn(ctx context.Context, email, password string) (*Session, error)

	// SignUp creates an account, returning an active session when
	// confirmation is disabled.
	SignUp(ctx context.Context, email, password string) (*Registration, error)

	// SetSession validates a previously issued token pair, refreshing it when
	// the access token has expired but the refresh token is still good. The
	// returned session may carry a different pair than the one supplied.
	SetSession(ctx context.Context, tokens domain.TokenPair) (*Session, error)

	// CurrentIdentity resolves the principal behind a live access token.
	CurrentIdentity(ctx context.Context, accessToken string) (*domain.Identity, error)

	// SignOut revokes the pair at the provider. Best-effort: callers clear
	// local state regardless of the result.
	SignOut(ctx context.Context, tokens domain.TokenPair) error
}
