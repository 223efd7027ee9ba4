package config

import (
	"fmt"
	"strings"
)

const (
	regionVar       = "AWS_REGION"
	userPoolIDVar   = "COGNITO_USER_POOL_ID"
	clientIDVar     = "COGNITO_CLIENT_ID"
	clientSecretVar = "COGNITO_CLIENT_SECRET"
	domainVar       = "COGNITO_DOMAIN"
)

type IdentityConfig interface {
	GetRegion() string
	GetUserPoolID() string
	GetClientID() string
	GetClientSecret() string
	HasUserPool() bool
	GetIssuerURL() string
	GetJWKSURL() string
	GetAuthorizeEndpoint() string
	GetTokenEndpoint() string
	GetOAuthScopes() []string
}

// Identity describes the hosted user pool and its app client.
type Identity struct {
	Region       string
	UserPoolID   string
	ClientID     string
	ClientSecret string
	// Domain is the hosted UI domain. A bare host gets an https scheme.
	Domain string
}

var _ IdentityConfig = Identity{}

func loadIdentity() Identity {
	return Identity{
		Region:       GetEnv(regionVar, "us-east-1"),
		UserPoolID:   GetEnv(userPoolIDVar, ""),
		ClientID:     GetEnv(clientIDVar, ""),
		ClientSecret: GetEnv(clientSecretVar, ""),
		Domain:       GetEnv(domainVar, ""),
	}
}

func (i Identity) GetRegion() string {
	return i.Region
}

func (i Identity) GetUserPoolID() string {
	return i.UserPoolID
}

func (i Identity) GetClientID() string {
	return i.ClientID
}

func (i Identity) GetClientSecret() string {
	return i.ClientSecret
}

func (i Identity) HasUserPool() bool {
	return i.UserPoolID != "" && i.ClientID != ""
}

func (i Identity) GetIssuerURL() string {
	return fmt.Sprintf("https://cognito-idp.%s.amazonaws.com/%s", i.Region, i.UserPoolID)
}

func (i Identity) GetJWKSURL() string {
	return i.GetIssuerURL() + "/.well-known/jwks.json"
}

func (i Identity) GetAuthorizeEndpoint() string {
	return i.domainURL() + "/oauth2/authorize"
}

func (i Identity) GetTokenEndpoint() string {
	return i.domainURL() + "/oauth2/token"
}

func (Identity) GetOAuthScopes() []string {
	return []string{"email", "openid", "profile"}
}

func (i Identity) domainURL() string {
	d := strings.TrimSuffix(i.Domain, "/")
	if strings.HasPrefix(d, "http://") || strings.HasPrefix(d, "https://") {
		return d
	}
	return "https://" + d
}
