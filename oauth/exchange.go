package oauth

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/ESHWARGEEK/CodeLearn/internal/config"
	apperrors "github.com/ESHWARGEEK/CodeLearn/internal/errors"
	"github.com/ESHWARGEEK/CodeLearn/provider"
	"github.com/ESHWARGEEK/CodeLearn/users"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

const defaultExpiresIn = 3600

// Exchanger trades authorization codes for tokens at the pool's token endpoint
// and resolves the signed-in user.
type Exchanger struct {
	*Authorizer
	clientSecret string
	tokenURL     string
	idp          provider.IdentityProvider
	httpClient   *http.Client
	now          func() time.Time
}

type ExchangerOption func(*Exchanger)

// WithHTTPClient sets the client used for the token endpoint call.
func WithHTTPClient(c *http.Client) ExchangerOption {
	return func(e *Exchanger) { e.httpClient = c }
}

func NewExchanger(cfg config.IdentityConfig, appURL string, idp provider.IdentityProvider, opts ...ExchangerOption) *Exchanger {
	e := &Exchanger{
		Authorizer:   NewAuthorizer(cfg, appURL),
		clientSecret: cfg.GetClientSecret(),
		tokenURL:     cfg.GetTokenEndpoint(),
		idp:          idp,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// oauth2Config authenticates with HTTP Basic when a secret is configured and
// with client_id in the body otherwise, never both.
func (e *Exchanger) oauth2Config(p Provider) *oauth2.Config {
	authStyle := oauth2.AuthStyleInParams
	if e.clientSecret != "" {
		authStyle = oauth2.AuthStyleInHeader
	}

	return &oauth2.Config{
		ClientID:     e.clientID,
		ClientSecret: e.clientSecret,
		Endpoint: oauth2.Endpoint{
			AuthURL:   e.authorizeURL,
			TokenURL:  e.tokenURL,
			AuthStyle: authStyle,
		},
		RedirectURL: e.RedirectURI(p),
		Scopes:      e.scopes,
	}
}

// Exchange performs the authorization_code grant. Upstream failures are logged
// with their body and reported as apperrors.ErrExchangeFailed.
func (e *Exchanger) Exchange(ctx context.Context, code string, p Provider) (*provider.TokenSet, error) {
	if code == "" {
		return nil, apperrors.ErrMissingCode
	}
	if e.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, e.httpClient)
	}

	issuedAt := e.now()
	tok, err := e.oauth2Config(p).Exchange(ctx, code)
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) && re.Response != nil {
			log.Error().Int("status", re.Response.StatusCode).Str("body", string(re.Body)).Str("provider", p.String()).Msg("OAuth token exchange failed")
		} else {
			log.Err(err).Str("provider", p.String()).Msg("OAuth token exchange failed")
		}
		return nil, apperrors.ErrExchangeFailed
	}

	idToken, _ := tok.Extra("id_token").(string)
	return &provider.TokenSet{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		IDToken:      idToken,
		ExpiresIn:    expiresIn(tok, issuedAt),
		IssuedAt:     issuedAt,
	}, nil
}

// FetchProfile resolves the user behind a freshly exchanged access token.
func (e *Exchanger) FetchProfile(ctx context.Context, accessToken string) (*users.User, error) {
	return e.idp.GetUser(ctx, accessToken)
}

func expiresIn(tok *oauth2.Token, issuedAt time.Time) int {
	if tok.ExpiresIn > 0 {
		return int(tok.ExpiresIn)
	}
	if !tok.Expiry.IsZero() {
		if secs := int(tok.Expiry.Sub(issuedAt).Round(time.Second).Seconds()); secs > 0 {
			return secs
		}
	}
	return defaultExpiresIn
}
