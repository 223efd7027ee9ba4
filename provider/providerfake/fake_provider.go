package providerfake

import (
	"context"
	"sync"
	"time"

	"github.com/ESHWARGEEK/CodeLearn/provider"
	"github.com/ESHWARGEEK/CodeLearn/users"
)

var _ provider.IdentityProvider = (*FakeProvider)(nil)

// FakeProvider answers every call with a canned success unless the matching
// func field is set. Calls are recorded by method name.
type FakeProvider struct {
	SignUpFunc                func(ctx context.Context, email, password, name string) (*provider.SignUpResult, error)
	ConfirmSignUpFunc         func(ctx context.Context, email, code string) error
	ResendConfirmationFunc    func(ctx context.Context, email string) error
	SignInFunc                func(ctx context.Context, email, password string) (*provider.TokenSet, error)
	RefreshFunc               func(ctx context.Context, refreshToken, username string) (*provider.TokenSet, error)
	GetUserFunc               func(ctx context.Context, accessToken string) (*users.User, error)
	GlobalSignOutFunc         func(ctx context.Context, accessToken string) error
	ForgotPasswordFunc        func(ctx context.Context, email string) error
	ConfirmForgotPasswordFunc func(ctx context.Context, email, code, newPassword string) error

	lock  sync.Mutex
	calls []string
}

func NewFakeProvider() *FakeProvider {
	return &FakeProvider{}
}

// Tokens is the token set returned by the default SignIn and Refresh.
func Tokens() *provider.TokenSet {
	return &provider.TokenSet{
		AccessToken:  "fake-access-token",
		RefreshToken: "fake-refresh-token",
		IDToken:      "fake-id-token",
		ExpiresIn:    3600,
		IssuedAt:     time.Now(),
	}
}

// User is the user returned by the default GetUser.
func User() *users.User {
	now := time.Now()
	return &users.User{
		UserID:    "fake-user",
		Email:     "fake@example.com",
		Tier:      users.TierFree,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (f *FakeProvider) Calls() []string {
	f.lock.Lock()
	defer f.lock.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *FakeProvider) record(name string) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.calls = append(f.calls, name)
}

func (f *FakeProvider) SignUp(ctx context.Context, email, password, name string) (*provider.SignUpResult, error) {
	f.record("SignUp")
	if f.SignUpFunc != nil {
		return f.SignUpFunc(ctx, email, password, name)
	}
	return &provider.SignUpResult{UserID: "fake-user"}, nil
}

func (f *FakeProvider) ConfirmSignUp(ctx context.Context, email, code string) error {
	f.record("ConfirmSignUp")
	if f.ConfirmSignUpFunc != nil {
		return f.ConfirmSignUpFunc(ctx, email, code)
	}
	return nil
}

func (f *FakeProvider) ResendConfirmationCode(ctx context.Context, email string) error {
	f.record("ResendConfirmationCode")
	if f.ResendConfirmationFunc != nil {
		return f.ResendConfirmationFunc(ctx, email)
	}
	return nil
}

func (f *FakeProvider) SignIn(ctx context.Context, email, password string) (*provider.TokenSet, error) {
	f.record("SignIn")
	if f.SignInFunc != nil {
		return f.SignInFunc(ctx, email, password)
	}
	return Tokens(), nil
}

func (f *FakeProvider) Refresh(ctx context.Context, refreshToken, username string) (*provider.TokenSet, error) {
	f.record("Refresh")
	if f.RefreshFunc != nil {
		return f.RefreshFunc(ctx, refreshToken, username)
	}
	t := Tokens()
	t.RefreshToken = refreshToken
	return t, nil
}

func (f *FakeProvider) GetUser(ctx context.Context, accessToken string) (*users.User, error) {
	f.record("GetUser")
	if f.GetUserFunc != nil {
		return f.GetUserFunc(ctx, accessToken)
	}
	return User(), nil
}

func (f *FakeProvider) GlobalSignOut(ctx context.Context, accessToken string) error {
	f.record("GlobalSignOut")
	if f.GlobalSignOutFunc != nil {
		return f.GlobalSignOutFunc(ctx, accessToken)
	}
	return nil
}

func (f *FakeProvider) ForgotPassword(ctx context.Context, email string) error {
	f.record("ForgotPassword")
	if f.ForgotPasswordFunc != nil {
		return f.ForgotPasswordFunc(ctx, email)
	}
	return nil
}

func (f *FakeProvider) ConfirmForgotPassword(ctx context.Context, email, code, newPassword string) error {
	f.record("ConfirmForgotPassword")
	if f.ConfirmForgotPasswordFunc != nil {
		return f.ConfirmForgotPasswordFunc(ctx, email, code, newPassword)
	}
	return nil
}
