package oauth

import (
	"github.com/ESHWARGEEK/CodeLearn/internal/config"
	"golang.org/x/oauth2"
)

// CallbackPath is the route prefix the hosted UI redirects back to.
const CallbackPath = "/api/auth/callback/"

// Authorizer builds hosted UI authorize URLs. It holds nothing secret and can
// be shared with clients.
type Authorizer struct {
	clientID     string
	authorizeURL string
	appURL       string
	scopes       []string
}

func NewAuthorizer(cfg config.IdentityConfig, appURL string) *Authorizer {
	return &Authorizer{
		clientID:     cfg.GetClientID(),
		authorizeURL: cfg.GetAuthorizeEndpoint(),
		appURL:       appURL,
		scopes:       cfg.GetOAuthScopes(),
	}
}

// RedirectURI is where the hosted UI sends the user back for the given provider.
func (a *Authorizer) RedirectURI(p Provider) string {
	return a.appURL + CallbackPath + p.String()
}

// AuthorizeURL embeds client_id, response_type=code, scope, redirect_uri, state
// and the identity provider name.
func (a *Authorizer) AuthorizeURL(p Provider, state string) string {
	cfg := &oauth2.Config{
		ClientID:    a.clientID,
		Endpoint:    oauth2.Endpoint{AuthURL: a.authorizeURL},
		RedirectURL: a.RedirectURI(p),
		Scopes:      a.scopes,
	}
	return cfg.AuthCodeURL(state, oauth2.SetAuthURLParam("identity_provider", p.IdentityProviderName()))
}
