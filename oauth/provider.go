package oauth

import (
	"strings"

	apperrors "github.com/ESHWARGEEK/CodeLearn/internal/errors"
)

// Provider is a federated identity provider reachable through the hosted UI.
// The zero value is not a valid provider.
type Provider int

const (
	GitHub Provider = iota + 1
	Google
)

// Providers lists every supported provider.
func Providers() []Provider {
	return []Provider{GitHub, Google}
}

// ParseProvider accepts the lower-case path segment used in callback URLs.
func ParseProvider(name string) (Provider, error) {
	for _, p := range Providers() {
		if strings.EqualFold(name, p.String()) {
			return p, nil
		}
	}
	return 0, apperrors.Wrapf(apperrors.ErrInvalidProvider, "%q", name)
}

// String is the path segment, e.g. "github".
func (p Provider) String() string {
	switch p {
	case GitHub:
		return "github"
	case Google:
		return "google"
	default:
		return "unknown"
	}
}

// IdentityProviderName is the name the hosted UI expects in identity_provider.
func (p Provider) IdentityProviderName() string {
	switch p {
	case GitHub:
		return "GitHub"
	case Google:
		return "Google"
	default:
		return ""
	}
}
