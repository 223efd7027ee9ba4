package token

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/ESHWARGEEK/CodeLearn/internal/config"
	apperrors "github.com/ESHWARGEEK/CodeLearn/internal/errors"
	"github.com/ESHWARGEEK/CodeLearn/users"
	"github.com/coreos/go-oidc/v3/oidc"
)

// Verifier validates a session token and returns its claims.
// Every failure is reported as apperrors.ErrInvalidToken.
type Verifier interface {
	Verify(ctx context.Context, rawToken string) (*Claims, error)
}

type VerifierOption func(*oidc.Config)

// WithVerifierClock overrides the clock used for expiry checks.
func WithVerifierClock(now func() time.Time) VerifierOption {
	return func(c *oidc.Config) {
		c.Now = now
	}
}

// OIDCVerifier checks signature and issuer with go-oidc and enforces the audience itself,
// since access tokens carry client_id rather than aud.
type OIDCVerifier struct {
	verifier *oidc.IDTokenVerifier
	clientID string
}

var _ Verifier = (*OIDCVerifier)(nil)

func NewOIDCVerifier(issuer, clientID string, keySet oidc.KeySet, opts ...VerifierOption) *OIDCVerifier {
	cfg := &oidc.Config{
		SkipClientIDCheck:    true,
		SupportedSigningAlgs: []string{oidc.RS256},
	}
	for _, opt := range opts {
		opt(cfg)
	}

	return &OIDCVerifier{
		verifier: oidc.NewVerifier(issuer, keySet, cfg),
		clientID: clientID,
	}
}

// NewRemoteVerifier verifies against the pool's published JWKS. Keys are fetched lazily
// and cached by go-oidc, so ctx must outlive the verifier.
func NewRemoteVerifier(ctx context.Context, cfg config.IdentityConfig) *OIDCVerifier {
	return NewOIDCVerifier(cfg.GetIssuerURL(), cfg.GetClientID(), oidc.NewRemoteKeySet(ctx, cfg.GetJWKSURL()))
}

type poolClaims struct {
	Email           string `json:"email"`
	Tier            string `json:"custom:tier"`
	TokenUse        string `json:"token_use"`
	ClientID        string `json:"client_id"`
	Username        string `json:"username"`
	CognitoUsername string `json:"cognito:username"`
}

func (v *OIDCVerifier) Verify(ctx context.Context, rawToken string) (*Claims, error) {
	if strings.TrimSpace(rawToken) == "" {
		return nil, apperrors.ErrInvalidToken
	}

	idToken, err := v.verifier.Verify(ctx, rawToken)
	if err != nil {
		return nil, apperrors.Wrapf(apperrors.ErrInvalidToken, "%v", err)
	}

	var pc poolClaims
	if err := idToken.Claims(&pc); err != nil {
		return nil, apperrors.Wrapf(apperrors.ErrInvalidToken, "decoding claims: %v", err)
	}

	if !v.audienceMatches(idToken.Audience, pc) {
		return nil, apperrors.Wrapf(apperrors.ErrInvalidToken, "audience mismatch")
	}

	username := pc.Username
	if username == "" {
		username = pc.CognitoUsername
	}

	return &Claims{
		Subject:   idToken.Subject,
		Email:     pc.Email,
		Tier:      users.ParseTier(pc.Tier),
		TokenUse:  pc.TokenUse,
		Username:  username,
		ExpiresAt: idToken.Expiry,
	}, nil
}

func (v *OIDCVerifier) audienceMatches(aud []string, pc poolClaims) bool {
	if slices.Contains(aud, v.clientID) {
		return true
	}
	return pc.TokenUse == TokenUseAccess && pc.ClientID == v.clientID
}
