// Package local is an in-process identity provider for development and tests.
// It mirrors the user pool's behaviour closely enough that the HTTP surface cannot
// tell the difference: verification codes, RS256 access tokens and refresh tokens.
package local

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	apperrors "github.com/ESHWARGEEK/CodeLearn/internal/errors"
	"github.com/ESHWARGEEK/CodeLearn/provider"
	"github.com/ESHWARGEEK/CodeLearn/token"
	"github.com/ESHWARGEEK/CodeLearn/users"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	defaultAccessTTL  = time.Hour
	defaultRefreshTTL = 30 * 24 * time.Hour
	codeTTL           = 24 * time.Hour
)

// CodeSink receives every verification and reset code the provider issues.
type CodeSink func(email, code string)

type account struct {
	sub                string
	email              string
	name               string
	passwordHash       string
	confirmed          bool
	tier               users.Tier
	onboardingComplete bool
	createdAt          time.Time

	code         string
	codeIssuedAt time.Time

	resetCode         string
	resetCodeIssuedAt time.Time
}

type refreshEntry struct {
	email     string
	expiresAt time.Time
}

type Provider struct {
	issuer      string
	clientID    string
	signer      *token.Signer
	accessTTL   time.Duration
	autoConfirm bool
	sink        CodeSink
	now         func() time.Time

	mu       sync.Mutex
	accounts map[string]*account // keyed by lower-cased email
	refresh  map[string]refreshEntry
}

var _ provider.IdentityProvider = (*Provider)(nil)

type Option func(*Provider)

func WithClock(now func() time.Time) Option {
	return func(p *Provider) { p.now = now }
}

func WithCodeSink(sink CodeSink) Option {
	return func(p *Provider) { p.sink = sink }
}

// WithAutoConfirm skips email verification, like a pool with auto-verified email.
func WithAutoConfirm() Option {
	return func(p *Provider) { p.autoConfirm = true }
}

func WithAccessTTL(ttl time.Duration) Option {
	return func(p *Provider) { p.accessTTL = ttl }
}

func New(issuer, clientID string, signer *token.Signer, opts ...Option) *Provider {
	p := &Provider{
		issuer:    issuer,
		clientID:  clientID,
		signer:    signer,
		accessTTL: defaultAccessTTL,
		now:       time.Now,
		accounts:  make(map[string]*account),
		refresh:   make(map[string]refreshEntry),
	}
	p.sink = func(email, code string) {
		log.Info().Str("email", email).Str("code", code).Msg("Local provider issued code")
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Verifier returns a token verifier that accepts the tokens this provider issues.
func (p *Provider) Verifier(opts ...token.VerifierOption) *token.OIDCVerifier {
	return token.NewOIDCVerifier(p.issuer, p.clientID, p.signer.KeyPair().KeySet(), opts...)
}

// SetTier changes the subscription tier stamped into subsequently issued tokens.
func (p *Provider) SetTier(email string, tier users.Tier) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	acc, ok := p.accounts[normalise(email)]
	if !ok {
		return apperrors.ErrUserNotFound
	}
	acc.tier = tier
	return nil
}

func (p *Provider) SignUp(_ context.Context, email, password, name string) (*provider.SignUpResult, error) {
	if err := users.ValidatePasswordStrength(password); err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrInvalidParameter, err)
	}
	hash, err := users.HashPassword(password)
	if err != nil {
		return nil, apperrors.Wrapf(err, "hashing password")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	key := normalise(email)
	if _, exists := p.accounts[key]; exists {
		return nil, apperrors.ErrUserExists
	}

	acc := &account{
		sub:          uuid.NewString(),
		email:        key,
		name:         name,
		passwordHash: hash,
		confirmed:    p.autoConfirm,
		tier:         users.TierFree,
		createdAt:    p.now(),
	}
	p.accounts[key] = acc

	if !acc.confirmed {
		if err := p.issueCodeLocked(acc); err != nil {
			return nil, err
		}
	}

	return &provider.SignUpResult{UserID: acc.sub, UserConfirmed: acc.confirmed}, nil
}

func (p *Provider) ConfirmSignUp(_ context.Context, email, code string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	acc, ok := p.accounts[normalise(email)]
	if !ok {
		return apperrors.ErrUserNotFound
	}
	if acc.confirmed {
		return apperrors.ErrAlreadyVerified
	}
	if err := p.checkCode(acc.code, acc.codeIssuedAt, code); err != nil {
		return err
	}

	acc.confirmed = true
	acc.code = ""
	return nil
}

func (p *Provider) ResendConfirmationCode(_ context.Context, email string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	acc, ok := p.accounts[normalise(email)]
	if !ok {
		return apperrors.ErrUserNotFound
	}
	if acc.confirmed {
		return apperrors.ErrAlreadyVerified
	}
	return p.issueCodeLocked(acc)
}

func (p *Provider) SignIn(_ context.Context, email, password string) (*provider.TokenSet, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	acc, ok := p.accounts[normalise(email)]
	if !ok || !users.CheckPasswordHash(password, acc.passwordHash) {
		return nil, apperrors.ErrInvalidCredentials
	}
	if !acc.confirmed {
		return nil, apperrors.ErrUserNotConfirmed
	}

	refreshToken := uuid.NewString()
	p.refresh[refreshToken] = refreshEntry{email: acc.email, expiresAt: p.now().Add(defaultRefreshTTL)}
	return p.issueTokensLocked(acc, refreshToken)
}

func (p *Provider) Refresh(_ context.Context, refreshToken, _ string) (*provider.TokenSet, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	entry, ok := p.refresh[refreshToken]
	if !ok {
		return nil, apperrors.ErrInvalidRefreshToken
	}
	if p.now().After(entry.expiresAt) {
		delete(p.refresh, refreshToken)
		return nil, apperrors.ErrInvalidRefreshToken
	}

	acc, ok := p.accounts[entry.email]
	if !ok {
		return nil, apperrors.ErrInvalidRefreshToken
	}
	return p.issueTokensLocked(acc, refreshToken)
}

func (p *Provider) GetUser(_ context.Context, accessToken string) (*users.User, error) {
	acc, err := p.accountForToken(accessToken)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	return &users.User{
		UserID:             acc.sub,
		Email:              acc.email,
		Name:               acc.name,
		Tier:               acc.tier,
		CreatedAt:          acc.createdAt,
		UpdatedAt:          now,
		OnboardingComplete: acc.onboardingComplete,
	}, nil
}

// GlobalSignOut revokes every refresh token of the user. Access tokens stay valid
// until they expire, as they do with the hosted pool.
func (p *Provider) GlobalSignOut(_ context.Context, accessToken string) error {
	acc, err := p.accountForToken(accessToken)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	for rt, entry := range p.refresh {
		if entry.email == acc.email {
			delete(p.refresh, rt)
		}
	}
	return nil
}

func (p *Provider) ForgotPassword(_ context.Context, email string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	acc, ok := p.accounts[normalise(email)]
	if !ok {
		return apperrors.ErrUserNotFound
	}

	code, err := generateCode()
	if err != nil {
		return err
	}
	acc.resetCode = code
	acc.resetCodeIssuedAt = p.now()
	p.sink(acc.email, code)
	return nil
}

func (p *Provider) ConfirmForgotPassword(_ context.Context, email, code, newPassword string) error {
	if err := users.ValidatePasswordStrength(newPassword); err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrInvalidParameter, err)
	}
	hash, err := users.HashPassword(newPassword)
	if err != nil {
		return apperrors.Wrapf(err, "hashing password")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	acc, ok := p.accounts[normalise(email)]
	if !ok {
		return apperrors.ErrUserNotFound
	}
	if err := p.checkCode(acc.resetCode, acc.resetCodeIssuedAt, code); err != nil {
		return err
	}

	acc.passwordHash = hash
	acc.resetCode = ""
	return nil
}

func (p *Provider) accountForToken(accessToken string) (*account, error) {
	claims, err := p.signer.Parse(accessToken)
	if err != nil {
		return nil, apperrors.Wrapf(apperrors.ErrInvalidToken, "%v", err)
	}
	sub, _ := claims.GetSubject()

	p.mu.Lock()
	defer p.mu.Unlock()

	for _, acc := range p.accounts {
		if acc.sub == sub {
			return acc, nil
		}
	}
	return nil, apperrors.ErrInvalidToken
}

func (p *Provider) issueTokensLocked(acc *account, refreshToken string) (*provider.TokenSet, error) {
	now := p.now()
	exp := now.Add(p.accessTTL)

	access, err := p.signer.Sign(jwt.MapClaims{
		"iss":               p.issuer,
		"sub":               acc.sub,
		"iat":               now.Unix(),
		"exp":               exp.Unix(),
		"jti":               uuid.NewString(),
		token.ClaimTokenUse: token.TokenUseAccess,
		token.ClaimClientID: p.clientID,
		token.ClaimUsername: acc.sub,
		token.ClaimEmail:    acc.email,
		token.ClaimTier:     string(acc.tier),
	})
	if err != nil {
		return nil, err
	}

	id, err := p.signer.Sign(jwt.MapClaims{
		"iss":                        p.issuer,
		"sub":                        acc.sub,
		"aud":                        p.clientID,
		"iat":                        now.Unix(),
		"exp":                        exp.Unix(),
		token.ClaimTokenUse:          token.TokenUseID,
		token.ClaimCognitoUsername:   acc.sub,
		token.ClaimEmail:             acc.email,
		token.ClaimTier:              string(acc.tier),
		users.AttrName:               acc.name,
		users.AttrOnboardingComplete: fmt.Sprint(acc.onboardingComplete),
	})
	if err != nil {
		return nil, err
	}

	return &provider.TokenSet{
		AccessToken:  access,
		RefreshToken: refreshToken,
		IDToken:      id,
		ExpiresIn:    int(p.accessTTL.Seconds()),
		IssuedAt:     now,
	}, nil
}

func (p *Provider) issueCodeLocked(acc *account) error {
	code, err := generateCode()
	if err != nil {
		return err
	}
	acc.code = code
	acc.codeIssuedAt = p.now()
	p.sink(acc.email, code)
	return nil
}

func (p *Provider) checkCode(want string, issuedAt time.Time, got string) error {
	if want == "" || want != got {
		return apperrors.ErrCodeMismatch
	}
	if p.now().Sub(issuedAt) > codeTTL {
		return apperrors.ErrCodeExpired
	}
	return nil
}

// generateCode returns a 6 digit numeric code.
func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", apperrors.Wrapf(err, "generating code")
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

func normalise(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
