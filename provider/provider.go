// Package provider defines the identity provider contract the auth surface relays to.
// Implementations report failures with the sentinels in internal/errors so handlers
// can map them to stable API error codes.
package provider

import (
	"context"
	"time"

	"github.com/ESHWARGEEK/CodeLearn/users"
)

const TokenTypeBearer = "Bearer"

// TokenSet is what a successful sign-in, refresh or code exchange yields.
type TokenSet struct {
	AccessToken  string
	RefreshToken string
	IDToken      string
	// ExpiresIn is the access token lifetime in seconds as reported by the provider.
	ExpiresIn int
	IssuedAt  time.Time
}

// TokenMetadata is the part of a TokenSet that is safe to hand to clients.
// Raw tokens only ever travel in httpOnly cookies.
type TokenMetadata struct {
	ExpiresIn int    `json:"expiresIn"`
	IssuedAt  int64  `json:"issuedAt"` // unix milliseconds
	TokenType string `json:"tokenType"`
}

func (t *TokenSet) Metadata() *TokenMetadata {
	return &TokenMetadata{
		ExpiresIn: t.ExpiresIn,
		IssuedAt:  t.IssuedAt.UnixMilli(),
		TokenType: TokenTypeBearer,
	}
}

// ExpiresAt is the absolute expiry of the access token.
func (m *TokenMetadata) ExpiresAt() time.Time {
	return time.UnixMilli(m.IssuedAt).Add(time.Duration(m.ExpiresIn) * time.Second)
}

// Redacted keeps token values out of logs.
type Redacted string

func (Redacted) String() string {
	return "[REDACTED]"
}

type SignUpResult struct {
	UserID        string
	UserConfirmed bool
}

type IdentityProvider interface {
	SignUp(ctx context.Context, email, password, name string) (*SignUpResult, error)
	ConfirmSignUp(ctx context.Context, email, code string) error
	ResendConfirmationCode(ctx context.Context, email string) error
	SignIn(ctx context.Context, email, password string) (*TokenSet, error)
	// Refresh exchanges a refresh token for new tokens. username may be empty; it is
	// only needed by clients configured with a secret.
	Refresh(ctx context.Context, refreshToken, username string) (*TokenSet, error)
	GetUser(ctx context.Context, accessToken string) (*users.User, error)
	GlobalSignOut(ctx context.Context, accessToken string) error
	ForgotPassword(ctx context.Context, email string) error
	ConfirmForgotPassword(ctx context.Context, email, code, newPassword string) error
}
