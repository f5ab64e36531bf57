package auth

import (
	"context"
	"time"

	"github.com/spec-kit/ticketdesk/internal/domain"
	apperrors "github.com/spec-kit/ticketdesk/pkg/util"
)

// AuthSession is the outcome of a sign-in or sign-up. AccessToken is empty
// when the provider keeps no server-side session.
type AuthSession struct {
	User         domain.User
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	// Pending is set when the account exists but awaits email confirmation.
	Pending bool
}

// Provider authenticates accounts against an identity backend.
type Provider interface {
	SignIn(ctx context.Context, email, password string) (*AuthSession, error)
	SignUp(ctx context.Context, email, password string) (*AuthSession, error)
	UpdateMetadata(ctx context.Context, accessToken string, data map[string]any) (*domain.User, error)
	CurrentUser(ctx context.Context, accessToken string) (*domain.User, error)
	SignOut(ctx context.Context, accessToken string) error
}

// LocalProvider is used when no backend is configured. Any credentials sign
// in as the local user and nothing is stored.
type LocalProvider struct{}

func NewLocalProvider() *LocalProvider {
	return &LocalProvider{}
}

func (LocalProvider) SignIn(_ context.Context, email, _ string) (*AuthSession, error) {
	return &AuthSession{User: domain.User{ID: domain.LocalUserID, Email: email}}, nil
}

func (LocalProvider) SignUp(_ context.Context, email, _ string) (*AuthSession, error) {
	return &AuthSession{User: domain.User{ID: domain.LocalUserID, Email: email}}, nil
}

func (LocalProvider) UpdateMetadata(context.Context, string, map[string]any) (*domain.User, error) {
	return nil, apperrors.NewUnauthorizedError("no active session", nil)
}

func (LocalProvider) CurrentUser(context.Context, string) (*domain.User, error) {
	return nil, apperrors.NewUnauthorizedError("no active session", nil)
}

func (LocalProvider) SignOut(context.Context, string) error {
	return nil
}
