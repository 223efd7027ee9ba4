// Package cognito implements provider.IdentityProvider on top of a Cognito user pool.
package cognito

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/ESHWARGEEK/CodeLearn/internal/config"
	apperrors "github.com/ESHWARGEEK/CodeLearn/internal/errors"
	"github.com/ESHWARGEEK/CodeLearn/internal/utils"
	"github.com/ESHWARGEEK/CodeLearn/provider"
	"github.com/ESHWARGEEK/CodeLearn/users"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	cip "github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider/types"
)

const defaultExpiresIn = 3600

// API is the subset of the Cognito client the provider calls.
type API interface {
	SignUp(ctx context.Context, params *cip.SignUpInput, optFns ...func(*cip.Options)) (*cip.SignUpOutput, error)
	ConfirmSignUp(ctx context.Context, params *cip.ConfirmSignUpInput, optFns ...func(*cip.Options)) (*cip.ConfirmSignUpOutput, error)
	ResendConfirmationCode(ctx context.Context, params *cip.ResendConfirmationCodeInput, optFns ...func(*cip.Options)) (*cip.ResendConfirmationCodeOutput, error)
	InitiateAuth(ctx context.Context, params *cip.InitiateAuthInput, optFns ...func(*cip.Options)) (*cip.InitiateAuthOutput, error)
	GetUser(ctx context.Context, params *cip.GetUserInput, optFns ...func(*cip.Options)) (*cip.GetUserOutput, error)
	GlobalSignOut(ctx context.Context, params *cip.GlobalSignOutInput, optFns ...func(*cip.Options)) (*cip.GlobalSignOutOutput, error)
	ForgotPassword(ctx context.Context, params *cip.ForgotPasswordInput, optFns ...func(*cip.Options)) (*cip.ForgotPasswordOutput, error)
	ConfirmForgotPassword(ctx context.Context, params *cip.ConfirmForgotPasswordInput, optFns ...func(*cip.Options)) (*cip.ConfirmForgotPasswordOutput, error)
}

var _ API = (*cip.Client)(nil)

type Provider struct {
	api          API
	clientID     string
	clientSecret string
	now          func() time.Time
}

var _ provider.IdentityProvider = (*Provider)(nil)

func New(api API, cfg config.IdentityConfig) *Provider {
	return &Provider{
		api:          api,
		clientID:     cfg.GetClientID(),
		clientSecret: cfg.GetClientSecret(),
		now:          time.Now,
	}
}

// NewFromConfig builds a Cognito client from the default AWS credential chain.
func NewFromConfig(ctx context.Context, cfg config.IdentityConfig) (*Provider, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.GetRegion()))
	if err != nil {
		return nil, apperrors.Wrapf(err, "loading AWS config")
	}
	return New(cip.NewFromConfig(awsCfg), cfg), nil
}

// SecretHash is base64(HMAC-SHA256(username+clientID, clientSecret)).
func SecretHash(username, clientID, clientSecret string) string {
	mac := hmac.New(sha256.New, []byte(clientSecret))
	mac.Write([]byte(username + clientID))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func (p *Provider) secretHash(username string) *string {
	if p.clientSecret == "" || username == "" {
		return nil
	}
	return aws.String(SecretHash(username, p.clientID, p.clientSecret))
}

func (p *Provider) SignUp(ctx context.Context, email, password, name string) (*provider.SignUpResult, error) {
	attrs := []types.AttributeType{{Name: aws.String(users.AttrEmail), Value: aws.String(email)}}
	if name != "" {
		attrs = append(attrs, types.AttributeType{Name: aws.String(users.AttrName), Value: aws.String(name)})
	}

	out, err := p.api.SignUp(ctx, &cip.SignUpInput{
		ClientId:       aws.String(p.clientID),
		Username:       aws.String(email),
		Password:       aws.String(password),
		SecretHash:     p.secretHash(email),
		UserAttributes: attrs,
	})
	if err != nil {
		return nil, mapError(err, apperrors.ErrInvalidCredentials, apperrors.ErrInvalidParameter)
	}

	return &provider.SignUpResult{
		UserID:        utils.Value(out.UserSub),
		UserConfirmed: out.UserConfirmed,
	}, nil
}

func (p *Provider) ConfirmSignUp(ctx context.Context, email, code string) error {
	_, err := p.api.ConfirmSignUp(ctx, &cip.ConfirmSignUpInput{
		ClientId:         aws.String(p.clientID),
		Username:         aws.String(email),
		ConfirmationCode: aws.String(code),
		SecretHash:       p.secretHash(email),
	})
	if err != nil {
		// Cognito answers NotAuthorized when the user is already confirmed.
		return mapError(err, apperrors.ErrAlreadyVerified, apperrors.ErrInvalidParameter)
	}
	return nil
}

func (p *Provider) ResendConfirmationCode(ctx context.Context, email string) error {
	_, err := p.api.ResendConfirmationCode(ctx, &cip.ResendConfirmationCodeInput{
		ClientId:   aws.String(p.clientID),
		Username:   aws.String(email),
		SecretHash: p.secretHash(email),
	})
	if err != nil {
		// InvalidParameter on resend means the user is already confirmed.
		return mapError(err, apperrors.ErrInvalidCredentials, apperrors.ErrAlreadyVerified)
	}
	return nil
}

func (p *Provider) SignIn(ctx context.Context, email, password string) (*provider.TokenSet, error) {
	params := map[string]string{
		"USERNAME": email,
		"PASSWORD": password,
	}
	if hash := p.secretHash(email); hash != nil {
		params["SECRET_HASH"] = *hash
	}

	out, err := p.api.InitiateAuth(ctx, &cip.InitiateAuthInput{
		ClientId:       aws.String(p.clientID),
		AuthFlow:       types.AuthFlowTypeUserPasswordAuth,
		AuthParameters: params,
	})
	if err != nil {
		return nil, mapError(err, apperrors.ErrInvalidCredentials, apperrors.ErrInvalidParameter)
	}
	return p.tokenSet(out, "")
}

func (p *Provider) Refresh(ctx context.Context, refreshToken, username string) (*provider.TokenSet, error) {
	params := map[string]string{
		"REFRESH_TOKEN": refreshToken,
	}
	if hash := p.secretHash(username); hash != nil {
		params["SECRET_HASH"] = *hash
	}

	out, err := p.api.InitiateAuth(ctx, &cip.InitiateAuthInput{
		ClientId:       aws.String(p.clientID),
		AuthFlow:       types.AuthFlowTypeRefreshTokenAuth,
		AuthParameters: params,
	})
	if err != nil {
		return nil, mapError(err, apperrors.ErrInvalidRefreshToken, apperrors.ErrInvalidRefreshToken)
	}
	// The refresh flow does not rotate the refresh token.
	return p.tokenSet(out, refreshToken)
}

func (p *Provider) tokenSet(out *cip.InitiateAuthOutput, refreshToken string) (*provider.TokenSet, error) {
	result := out.AuthenticationResult
	if result == nil {
		return nil, fmt.Errorf("%w: unsupported challenge %q", apperrors.ErrInvalidCredentials, out.ChallengeName)
	}

	expiresIn := int(result.ExpiresIn)
	if expiresIn <= 0 {
		expiresIn = defaultExpiresIn
	}
	if rt := utils.Value(result.RefreshToken); rt != "" {
		refreshToken = rt
	}

	return &provider.TokenSet{
		AccessToken:  utils.Value(result.AccessToken),
		RefreshToken: refreshToken,
		IDToken:      utils.Value(result.IdToken),
		ExpiresIn:    expiresIn,
		IssuedAt:     p.now(),
	}, nil
}

func (p *Provider) GetUser(ctx context.Context, accessToken string) (*users.User, error) {
	out, err := p.api.GetUser(ctx, &cip.GetUserInput{AccessToken: aws.String(accessToken)})
	if err != nil {
		return nil, mapError(err, apperrors.ErrInvalidToken, apperrors.ErrInvalidToken)
	}

	attrs := make(map[string]string, len(out.UserAttributes))
	for _, a := range out.UserAttributes {
		attrs[utils.Value(a.Name)] = utils.Value(a.Value)
	}
	return users.FromAttributes(utils.Value(out.Username), attrs, p.now()), nil
}

func (p *Provider) GlobalSignOut(ctx context.Context, accessToken string) error {
	_, err := p.api.GlobalSignOut(ctx, &cip.GlobalSignOutInput{AccessToken: aws.String(accessToken)})
	if err != nil {
		return mapError(err, apperrors.ErrInvalidToken, apperrors.ErrInvalidToken)
	}
	return nil
}

func (p *Provider) ForgotPassword(ctx context.Context, email string) error {
	_, err := p.api.ForgotPassword(ctx, &cip.ForgotPasswordInput{
		ClientId:   aws.String(p.clientID),
		Username:   aws.String(email),
		SecretHash: p.secretHash(email),
	})
	if err != nil {
		return mapError(err, apperrors.ErrInvalidCredentials, apperrors.ErrInvalidParameter)
	}
	return nil
}

func (p *Provider) ConfirmForgotPassword(ctx context.Context, email, code, newPassword string) error {
	_, err := p.api.ConfirmForgotPassword(ctx, &cip.ConfirmForgotPasswordInput{
		ClientId:         aws.String(p.clientID),
		Username:         aws.String(email),
		ConfirmationCode: aws.String(code),
		Password:         aws.String(newPassword),
		SecretHash:       p.secretHash(email),
	})
	if err != nil {
		return mapError(err, apperrors.ErrInvalidCredentials, apperrors.ErrInvalidParameter)
	}
	return nil
}
