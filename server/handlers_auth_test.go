package server_test

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	apperrors "github.com/ESHWARGEEK/CodeLearn/internal/errors"
	"github.com/ESHWARGEEK/CodeLearn/provider"
	"github.com/ESHWARGEEK/CodeLearn/provider/providerfake"
	"github.com/ESHWARGEEK/CodeLearn/server"
	"github.com/ESHWARGEEK/CodeLearn/session"
	"github.com/ESHWARGEEK/CodeLearn/users"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

type signupData struct {
	UserID        string                  `json:"userId"`
	UserConfirmed bool                    `json:"userConfirmed"`
	Message       string                  `json:"message"`
	User          *users.User             `json:"user"`
	Tokens        *provider.TokenMetadata `json:"tokens"`
}

type sessionData struct {
	User   *users.User             `json:"user"`
	Tokens *provider.TokenMetadata `json:"tokens"`
}

type messageData struct {
	Message string `json:"message"`
}

func signupBody(password string) map[string]any {
	return map[string]any{
		"email":       "Alice@Example.com ",
		"password":    password,
		"name":        "Alice",
		"acceptTerms": true,
	}
}

func TestSignupValidation(t *testing.T) {
	env := newTestEnv(t)

	t.Run("WeakPassword", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, server.RouteSignup, signupBody("short"))
		apiErr := requireAPIError(t, rec, http.StatusBadRequest, server.CodeValidationError)
		require.Equal(t, []string{
			users.MsgPasswordTooShort,
			users.MsgPasswordNoUpper,
			users.MsgPasswordNoNumber,
		}, apiErr.Details)
	})

	t.Run("TermsNotAccepted", func(t *testing.T) {
		body := signupBody("Passw0rd!")
		body["acceptTerms"] = false
		rec := env.do(t, http.MethodPost, server.RouteSignup, body)
		apiErr := requireAPIError(t, rec, http.StatusBadRequest, server.CodeValidationError)
		require.Contains(t, apiErr.Details, "acceptTerms: the terms must be accepted")
	})

	t.Run("BadEmail", func(t *testing.T) {
		body := signupBody("Passw0rd!")
		body["email"] = "not-an-email"
		rec := env.do(t, http.MethodPost, server.RouteSignup, body)
		apiErr := requireAPIError(t, rec, http.StatusBadRequest, server.CodeValidationError)
		require.Contains(t, apiErr.Details, "email: must be a valid email address")
	})

	t.Run("MalformedBody", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, server.RouteSignup, "{not json")
		requireAPIError(t, rec, http.StatusBadRequest, server.CodeValidationError)
	})

	require.Empty(t, env.idp.Calls(), "the provider is never called for invalid input")
}

func TestSignupUnconfirmed(t *testing.T) {
	env := newTestEnv(t)
	var gotEmail string
	env.idp.SignUpFunc = func(_ context.Context, email, _, _ string) (*provider.SignUpResult, error) {
		gotEmail = email
		return &provider.SignUpResult{UserID: "u-1"}, nil
	}

	rec := env.do(t, http.MethodPost, server.RouteSignup, signupBody("Passw0rd!"))

	var data signupData
	requireData(t, rec, http.StatusCreated, &data)
	require.Equal(t, "u-1", data.UserID)
	require.False(t, data.UserConfirmed)
	require.Equal(t, "Please check your email for verification code", data.Message)
	require.Nil(t, data.User)
	require.Equal(t, "alice@example.com", gotEmail)
	require.Nil(t, findCookie(rec, session.AccessTokenCookie))
}

func TestSignupConfirmedSignsIn(t *testing.T) {
	env := newTestEnv(t)
	env.idp.SignUpFunc = func(context.Context, string, string, string) (*provider.SignUpResult, error) {
		return &provider.SignUpResult{UserID: "u-1", UserConfirmed: true}, nil
	}

	rec := env.do(t, http.MethodPost, server.RouteSignup, signupBody("Passw0rd!"))

	var data signupData
	requireData(t, rec, http.StatusCreated, &data)
	require.True(t, data.UserConfirmed)
	require.NotNil(t, data.User)
	require.Equal(t, 3600, data.Tokens.ExpiresIn)

	access := findCookie(rec, session.AccessTokenCookie)
	require.NotNil(t, access)
	require.Equal(t, http.SameSiteStrictMode, access.SameSite)
	require.True(t, access.HttpOnly)
	require.NotContains(t, rec.Body.String(), "fake-access-token")
}

func TestSignupProviderErrors(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{err: apperrors.ErrUserExists, status: http.StatusConflict, code: server.CodeUserExists},
		{err: apperrors.ErrInvalidParameter, status: http.StatusBadRequest, code: server.CodeValidationError},
		{err: errors.New("boom"), status: http.StatusInternalServerError, code: server.CodeSignupFailed},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			env := newTestEnv(t)
			env.idp.SignUpFunc = func(context.Context, string, string, string) (*provider.SignUpResult, error) {
				return nil, tt.err
			}
			rec := env.do(t, http.MethodPost, server.RouteSignup, signupBody("Passw0rd!"))
			requireAPIError(t, rec, tt.status, tt.code)
		})
	}
}

func TestVerify(t *testing.T) {
	tests := []struct {
		name   string
		code   string
		err    error
		status int
		want   string
	}{
		{name: "ok", code: "123456", status: http.StatusOK},
		{name: "format", code: "12ab56", status: http.StatusBadRequest, want: server.CodeValidationError},
		{name: "length", code: "12345", status: http.StatusBadRequest, want: server.CodeValidationError},
		{name: "mismatch", code: "123456", err: apperrors.ErrCodeMismatch, status: http.StatusBadRequest, want: server.CodeInvalidCode},
		{name: "expired", code: "123456", err: apperrors.ErrCodeExpired, status: http.StatusBadRequest, want: server.CodeExpiredCode},
		{name: "already verified", code: "123456", err: apperrors.ErrAlreadyVerified, status: http.StatusBadRequest, want: server.CodeAlreadyVerified},
		{name: "other", code: "123456", err: errors.New("boom"), status: http.StatusInternalServerError, want: server.CodeVerificationFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			env.idp.ConfirmSignUpFunc = func(context.Context, string, string) error { return tt.err }

			rec := env.do(t, http.MethodPost, server.RouteVerify, map[string]string{"email": "alice@example.com", "code": tt.code})
			if tt.want == "" {
				var data messageData
				requireData(t, rec, tt.status, &data)
				require.Equal(t, "Email verified successfully", data.Message)
				return
			}
			requireAPIError(t, rec, tt.status, tt.want)
		})
	}
}

func TestResendCodeRateLimit(t *testing.T) {
	env := newTestEnv(t)
	body := map[string]string{"email": "alice@example.com"}

	rec := env.do(t, http.MethodPost, server.RouteResendCode, body)
	requireData(t, rec, http.StatusOK, nil)

	// Same address with different case and spacing shares the window.
	env.clock.Advance(30 * time.Second)
	rec = env.do(t, http.MethodPost, server.RouteResendCode, map[string]string{"email": " ALICE@example.com"})
	apiErr := requireAPIError(t, rec, http.StatusTooManyRequests, server.CodeRateLimited)
	require.Equal(t, "Please wait 1 minute before requesting another code.", apiErr.Message)
	require.Equal(t, "60", rec.Header().Get("Retry-After"))

	rec = env.do(t, http.MethodPost, server.RouteResendCode, map[string]string{"email": "bob@example.com"})
	requireData(t, rec, http.StatusOK, nil)

	env.clock.Advance(30 * time.Second)
	rec = env.do(t, http.MethodPost, server.RouteResendCode, body)
	requireData(t, rec, http.StatusOK, nil)

	require.Equal(t, []string{"ResendConfirmationCode", "ResendConfirmationCode", "ResendConfirmationCode"}, env.idp.Calls())
}

func TestResendCodeProviderErrors(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{err: apperrors.ErrLimitExceeded, status: http.StatusTooManyRequests, code: server.CodeLimitExceeded},
		{err: apperrors.ErrInvalidParameter, status: http.StatusBadRequest, code: server.CodeAlreadyVerified},
		{err: apperrors.ErrAlreadyVerified, status: http.StatusBadRequest, code: server.CodeAlreadyVerified},
		{err: errors.New("boom"), status: http.StatusInternalServerError, code: server.CodeResendFailed},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			env := newTestEnv(t)
			env.idp.ResendConfirmationFunc = func(context.Context, string) error { return tt.err }
			rec := env.do(t, http.MethodPost, server.RouteResendCode, map[string]string{"email": "alice@example.com"})
			requireAPIError(t, rec, tt.status, tt.code)
		})
	}
}

func TestLogin(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, server.RouteLogin, map[string]string{"email": "fake@example.com", "password": "Passw0rd!"})

	var data sessionData
	requireData(t, rec, http.StatusOK, &data)
	require.Equal(t, "fake-user", data.User.UserID)
	require.Equal(t, provider.TokenTypeBearer, data.Tokens.TokenType)
	require.NotContains(t, rec.Body.String(), "fake-access-token")
	require.NotContains(t, rec.Body.String(), "fake-refresh-token")

	access := findCookie(rec, session.AccessTokenCookie)
	require.NotNil(t, access)
	require.Equal(t, "fake-access-token", access.Value)
	require.Equal(t, 3600, access.MaxAge)
	require.Equal(t, http.SameSiteStrictMode, access.SameSite)

	refresh := findCookie(rec, session.RefreshTokenCookie)
	require.NotNil(t, refresh)
	require.Equal(t, 30*24*60*60, refresh.MaxAge)
	require.Equal(t, http.SameSiteStrictMode, refresh.SameSite)
}

func TestLoginFailuresAreGeneric(t *testing.T) {
	for _, err := range []error{apperrors.ErrInvalidCredentials, apperrors.ErrUserNotConfirmed, apperrors.ErrUserNotFound} {
		t.Run(err.Error(), func(t *testing.T) {
			env := newTestEnv(t)
			env.idp.SignInFunc = func(context.Context, string, string) (*provider.TokenSet, error) { return nil, err }

			rec := env.do(t, http.MethodPost, server.RouteLogin, map[string]string{"email": "alice@example.com", "password": "x"})
			apiErr := requireAPIError(t, rec, http.StatusUnauthorized, server.CodeLoginFailed)
			require.Equal(t, "Invalid email or password", apiErr.Message)
			require.Nil(t, findCookie(rec, session.AccessTokenCookie))
		})
	}
}

func TestLogoutAlwaysClearsCookies(t *testing.T) {
	env := newTestEnv(t)
	env.idp.GlobalSignOutFunc = func(context.Context, string) error {
		return apperrors.ErrInvalidToken
	}

	rec := env.do(t, http.MethodPost, server.RouteLogout, nil, accessCookie("stale"))

	var data messageData
	requireData(t, rec, http.StatusOK, &data)
	require.Equal(t, "Logged out successfully", data.Message)
	requireCleared(t, rec, session.AccessTokenCookie)
	requireCleared(t, rec, session.RefreshTokenCookie)
	require.Equal(t, []string{"GlobalSignOut"}, env.idp.Calls())
}

func TestLogoutSurvivesProviderPanic(t *testing.T) {
	env := newTestEnv(t)
	env.idp.GlobalSignOutFunc = func(context.Context, string) error { panic("sdk exploded") }

	rec := env.do(t, http.MethodPost, server.RouteLogout, nil, accessCookie("tok"))
	requireData(t, rec, http.StatusOK, nil)
	requireCleared(t, rec, session.AccessTokenCookie)
}

func TestLogoutWithoutToken(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, server.RouteLogout, nil)
	requireData(t, rec, http.StatusOK, nil)
	requireCleared(t, rec, session.RefreshTokenCookie)
	require.Empty(t, env.idp.Calls())
}

func TestMe(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, server.RouteMe, nil)
	apiErr := requireAPIError(t, rec, http.StatusUnauthorized, server.CodeUnauthorized)
	require.Equal(t, "No access token provided", apiErr.Message)

	rec = env.do(t, http.MethodGet, server.RouteMe, nil, accessCookie("good"))
	var data sessionData
	requireData(t, rec, http.StatusOK, &data)
	require.Equal(t, "fake@example.com", data.User.Email)

	env.idp.GetUserFunc = func(context.Context, string) (*users.User, error) { return nil, apperrors.ErrInvalidToken }
	rec = env.do(t, http.MethodGet, server.RouteMe, nil, accessCookie("bad"))
	apiErr = requireAPIError(t, rec, http.StatusUnauthorized, server.CodeUnauthorized)
	require.Equal(t, "Invalid or expired token", apiErr.Message)
}

func TestMeAcceptsBearerHeader(t *testing.T) {
	env := newTestEnv(t)
	var got string
	env.idp.GetUserFunc = func(_ context.Context, accessToken string) (*users.User, error) {
		got = accessToken
		return providerfake.User(), nil
	}

	req, _ := http.NewRequest(http.MethodGet, server.RouteMe, nil)
	req.Header.Set("Authorization", "Bearer header-token")
	req.AddCookie(accessCookie("cookie-token"))
	rec := newRecorderFor(env, req)

	requireData(t, rec, http.StatusOK, nil)
	require.Equal(t, "header-token", got)
}

func TestRefresh(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, server.RouteRefresh, nil)
	requireAPIError(t, rec, http.StatusUnauthorized, server.CodeMissingRefreshToken)

	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"username": "alice-sub"}).SignedString([]byte("k"))
	require.NoError(t, err)

	var gotRefresh, gotUsername string
	env.idp.RefreshFunc = func(_ context.Context, refreshToken, username string) (*provider.TokenSet, error) {
		gotRefresh, gotUsername = refreshToken, username
		tokens := providerfake.Tokens()
		tokens.AccessToken = "new-access"
		tokens.RefreshToken = refreshToken
		return tokens, nil
	}

	rec = env.do(t, http.MethodPost, server.RouteRefresh, nil,
		&http.Cookie{Name: session.RefreshTokenCookie, Value: "r-1"},
		accessCookie(expired))

	var data sessionData
	requireData(t, rec, http.StatusOK, &data)
	require.Equal(t, 3600, data.Tokens.ExpiresIn)
	require.Equal(t, "r-1", gotRefresh)
	require.Equal(t, "alice-sub", gotUsername)

	access := findCookie(rec, session.AccessTokenCookie)
	require.NotNil(t, access)
	require.Equal(t, "new-access", access.Value)
	require.Equal(t, http.SameSiteLaxMode, access.SameSite)
	require.Nil(t, findCookie(rec, session.RefreshTokenCookie), "an unchanged refresh token is not rewritten")
	require.False(t, strings.Contains(rec.Body.String(), "new-access"))
}

func TestRefreshFailure(t *testing.T) {
	env := newTestEnv(t)
	env.idp.RefreshFunc = func(context.Context, string, string) (*provider.TokenSet, error) {
		return nil, apperrors.ErrInvalidRefreshToken
	}

	rec := env.do(t, http.MethodPost, server.RouteRefresh, nil, &http.Cookie{Name: session.RefreshTokenCookie, Value: "revoked"})
	requireAPIError(t, rec, http.StatusUnauthorized, server.CodeRefreshFailed)
}

func TestForgotPassword(t *testing.T) {
	env := newTestEnv(t)
	env.idp.ForgotPasswordFunc = func(context.Context, string) error { return apperrors.ErrUserNotFound }

	rec := env.do(t, http.MethodPost, server.RouteForgotPassword, map[string]string{"email": "ghost@example.com"})
	requireData(t, rec, http.StatusOK, nil)

	rec = env.do(t, http.MethodPost, server.RouteForgotPassword, map[string]string{"email": "ghost@example.com"})
	requireAPIError(t, rec, http.StatusTooManyRequests, server.CodeRateLimited)

	env.idp.ForgotPasswordFunc = func(context.Context, string) error { return apperrors.ErrLimitExceeded }
	rec = env.do(t, http.MethodPost, server.RouteForgotPassword, map[string]string{"email": "other@example.com"})
	requireAPIError(t, rec, http.StatusTooManyRequests, server.CodeLimitExceeded)
}

func TestResetPassword(t *testing.T) {
	body := func(pw string) map[string]string {
		return map[string]string{"email": "alice@example.com", "code": "654321", "newPassword": pw}
	}

	t.Run("WeakPassword", func(t *testing.T) {
		env := newTestEnv(t)
		rec := env.do(t, http.MethodPost, server.RouteResetPassword, body("alllowercase1"))
		apiErr := requireAPIError(t, rec, http.StatusBadRequest, server.CodeValidationError)
		require.Equal(t, []string{users.MsgPasswordNoUpper}, apiErr.Details)
	})

	tests := []struct {
		err    error
		status int
		code   string
	}{
		{err: apperrors.ErrCodeMismatch, status: http.StatusBadRequest, code: server.CodeInvalidCode},
		{err: apperrors.ErrCodeExpired, status: http.StatusBadRequest, code: server.CodeExpiredCode},
		{err: apperrors.ErrInvalidParameter, status: http.StatusBadRequest, code: server.CodeValidationError},
		{err: errors.New("boom"), status: http.StatusInternalServerError, code: server.CodeResetFailed},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			env := newTestEnv(t)
			env.idp.ConfirmForgotPasswordFunc = func(context.Context, string, string, string) error { return tt.err }
			rec := env.do(t, http.MethodPost, server.RouteResetPassword, body("Passw0rd!"))
			requireAPIError(t, rec, tt.status, tt.code)
		})
	}

	t.Run("Success", func(t *testing.T) {
		env := newTestEnv(t)
		rec := env.do(t, http.MethodPost, server.RouteResetPassword, body("Passw0rd!"))
		var data messageData
		requireData(t, rec, http.StatusOK, &data)
		require.Equal(t, "Password reset successfully", data.Message)
	})
}

func TestCorsPreflight(t *testing.T) {
	env := newTestEnv(t)

	req, _ := http.NewRequest(http.MethodOptions, server.RouteLogin, nil)
	req.Header.Set("Origin", allowedOrigin)
	rec := newRecorderFor(env, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, allowedOrigin, rec.Header().Get("Access-Control-Allow-Origin"))
	require.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
	require.NotEmpty(t, rec.Header().Get("Access-Control-Allow-Methods"))

	req, _ = http.NewRequest(http.MethodOptions, server.RouteLogin, nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec = newRecorderFor(env, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, server.RouteHealth, nil)
	var data map[string]string
	requireData(t, rec, http.StatusOK, &data)
	require.Equal(t, "ok", data["status"])
}
