package authclient_test

import (
	"context"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ESHWARGEEK/CodeLearn/authclient"
	"github.com/ESHWARGEEK/CodeLearn/internal/config"
	apperrors "github.com/ESHWARGEEK/CodeLearn/internal/errors"
	"github.com/ESHWARGEEK/CodeLearn/oauth"
	"github.com/ESHWARGEEK/CodeLearn/provider"
	"github.com/ESHWARGEEK/CodeLearn/provider/local"
	"github.com/ESHWARGEEK/CodeLearn/ratelimit"
	"github.com/ESHWARGEEK/CodeLearn/server"
	"github.com/ESHWARGEEK/CodeLearn/token"
	"github.com/ESHWARGEEK/CodeLearn/users"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testEmail    = "ada@example.com"
	testPassword = "Passw0rd"
	goodCode     = "good-code"
)

type codeBox struct {
	mu    sync.Mutex
	codes map[string]string
}

func (c *codeBox) sink(email, code string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.codes[email] = code
}

func (c *codeBox) get(email string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.codes[email]
}

type navRecorder struct {
	mu    sync.Mutex
	pages []string
}

func (n *navRecorder) Navigate(path string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.pages = append(n.pages, path)
}

func (n *navRecorder) last() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.pages) == 0 {
		return ""
	}
	return n.pages[len(n.pages)-1]
}

// codeExchanger signs the test user in for goodCode and rejects anything else.
type codeExchanger struct {
	*oauth.Authorizer
	idp *local.Provider
}

func (e *codeExchanger) Exchange(ctx context.Context, code string, _ oauth.Provider) (*provider.TokenSet, error) {
	if code != goodCode {
		return nil, apperrors.ErrExchangeFailed
	}
	return e.idp.SignIn(ctx, testEmail, testPassword)
}

func (e *codeExchanger) FetchProfile(ctx context.Context, accessToken string) (*users.User, error) {
	return e.idp.GetUser(ctx, accessToken)
}

type harness struct {
	url        string
	idp        *local.Provider
	codes      *codeBox
	authorizer *oauth.Authorizer
	clock      *clock

	mu          sync.Mutex
	hits        map[string]int
	failRefresh atomic.Bool

	// With holdRefresh set, refresh responses are computed, announced on
	// refreshStarted and only written once releaseRefresh is closed.
	holdRefresh    atomic.Bool
	refreshStarted chan struct{}
	releaseRefresh chan struct{}
}

func (h *harness) count(path string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.hits[path]
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newHarness(t *testing.T, opts ...local.Option) *harness {
	t.Helper()
	t.Setenv("ENV", "DEV")
	t.Setenv("APP_URL", "http://localhost:8080")
	t.Setenv("COGNITO_CLIENT_ID", "local-client")
	t.Setenv("COGNITO_DOMAIN", "https://auth.example.com")
	cfg := config.New()

	kp, err := token.GenerateRSAKeyPair("test", 2048)
	require.NoError(t, err)

	h := &harness{
		codes: &codeBox{codes: map[string]string{}},
		clock: &clock{now: time.Now()},
		hits:  map[string]int{},

		refreshStarted: make(chan struct{}, 4),
		releaseRefresh: make(chan struct{}),
	}
	opts = append([]local.Option{local.WithCodeSink(h.codes.sink)}, opts...)
	h.idp = local.New("http://localhost:8080/local", "local-client", token.NewSigner(kp), opts...)
	h.authorizer = oauth.NewAuthorizer(cfg, cfg.GetAppURL())

	srv, err := server.New(cfg, server.Deps{
		Provider:  h.idp,
		Verifier:  h.idp.Verifier(),
		Exchanger: &codeExchanger{Authorizer: h.authorizer, idp: h.idp},
		Limiter:   ratelimit.NewMemoryLimiter(cfg.GetResendWindow(), cfg.GetRateLimitEviction(), ratelimit.WithClock(h.clock.Now)),
	})
	require.NoError(t, err)

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.mu.Lock()
		h.hits[r.URL.Path]++
		h.mu.Unlock()
		if r.URL.Path != "/api/auth/refresh" {
			srv.ServeHTTP(w, r)
			return
		}

		rec := httptest.NewRecorder()
		if h.failRefresh.Load() {
			rec.Header().Set("Content-Type", "application/json")
			rec.WriteHeader(http.StatusUnauthorized)
			_, _ = rec.Write([]byte(`{"success":false,"error":{"code":"REFRESH_FAILED","message":"Failed to refresh token"}}`))
		} else {
			srv.ServeHTTP(rec, r)
		}
		if h.holdRefresh.Load() {
			h.refreshStarted <- struct{}{}
			<-h.releaseRefresh
		}
		for k, v := range rec.Header() {
			w.Header()[k] = v
		}
		w.WriteHeader(rec.Code)
		_, _ = w.Write(rec.Body.Bytes())
	}))
	t.Cleanup(ts.Close)
	h.url = ts.URL
	return h
}

func (h *harness) client(t *testing.T, opts ...authclient.ClientOption) (*authclient.Client, *navRecorder) {
	t.Helper()
	nav := &navRecorder{}
	opts = append([]authclient.ClientOption{authclient.WithNavigator(nav), authclient.WithAuthorizer(h.authorizer)}, opts...)
	c, err := authclient.New(h.url, opts...)
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c, nav
}

// registerConfirmed creates the test user and verifies it through the API.
func (h *harness) registerConfirmed(t *testing.T, c *authclient.Client) {
	t.Helper()
	ctx := context.Background()
	res, err := c.Signup(ctx, authclient.SignupInput{Email: testEmail, Password: testPassword, Name: "Ada", AcceptTerms: true})
	require.NoError(t, err)
	require.False(t, res.UserConfirmed)
	require.NoError(t, c.Verify(ctx, testEmail, h.codes.get(testEmail)))
}

func TestSignupUnconfirmedGoesToVerifyEmail(t *testing.T) {
	h := newHarness(t)
	c, nav := h.client(t)

	h.registerConfirmed(t, c)
	require.Equal(t, "/verify-email?email=ada%40example.com", nav.pages[0])
	require.False(t, c.State().IsAuthenticated)
}

func TestSignupConfirmedGoesToOnboarding(t *testing.T) {
	h := newHarness(t, local.WithAutoConfirm())
	c, nav := h.client(t)

	res, err := c.Signup(context.Background(), authclient.SignupInput{Email: testEmail, Password: testPassword, AcceptTerms: true})
	require.NoError(t, err)
	require.True(t, res.UserConfirmed)
	require.Equal(t, authclient.PageOnboarding, nav.last())

	state := c.State()
	require.True(t, state.IsAuthenticated)
	require.Equal(t, testEmail, state.User.Email)
	require.NotNil(t, state.Tokens)
}

func TestSignupValidationError(t *testing.T) {
	h := newHarness(t)
	c, nav := h.client(t)

	_, err := c.Signup(context.Background(), authclient.SignupInput{Email: testEmail, Password: "short"})
	var apiErr *authclient.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusBadRequest, apiErr.Status)
	require.Equal(t, server.CodeValidationError, apiErr.Code)
	require.NotEmpty(t, apiErr.Details)
	require.Empty(t, nav.pages)
}

func TestLoginLoadLogout(t *testing.T) {
	h := newHarness(t)
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	c, nav := h.client(t, authclient.WithHTTPClient(&http.Client{Jar: jar}))
	h.registerConfirmed(t, c)
	ctx := context.Background()

	require.NoError(t, c.Login(ctx, testEmail, testPassword))
	require.Equal(t, authclient.PageDashboard, nav.last())
	require.True(t, c.State().IsAuthenticated)

	// A second client sharing the cookie jar recovers the user from the cookies alone.
	other, _ := h.client(t, authclient.WithHTTPClient(&http.Client{Jar: jar}))
	require.NoError(t, other.Load(ctx))
	state := other.State()
	require.True(t, state.IsAuthenticated)
	require.False(t, state.IsLoading)
	require.Equal(t, testEmail, state.User.Email)

	c.Logout(ctx)
	require.Equal(t, authclient.PageLogin, nav.last())
	require.False(t, c.State().IsAuthenticated)
	require.Nil(t, c.State().Tokens)

	require.NoError(t, other.Load(ctx))
	require.False(t, other.State().IsAuthenticated)
}

func TestLoginFailure(t *testing.T) {
	h := newHarness(t)
	c, nav := h.client(t)
	h.registerConfirmed(t, c)

	err := c.Login(context.Background(), testEmail, "Wr0ngpass")
	var apiErr *authclient.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusUnauthorized, apiErr.Status)
	require.Equal(t, "Invalid email or password", apiErr.Message)
	require.False(t, c.State().IsAuthenticated)
	require.Len(t, nav.pages, 1)
}

func TestLogoutWhenServerUnreachable(t *testing.T) {
	nav := &navRecorder{}
	c, err := authclient.New("http://127.0.0.1:1", authclient.WithNavigator(nav))
	require.NoError(t, err)

	c.Logout(context.Background())
	require.Equal(t, authclient.PageLogin, nav.last())
	require.False(t, c.State().IsAuthenticated)
}

func TestProactiveRefresh(t *testing.T) {
	h := newHarness(t, local.WithAccessTTL(2*time.Second))
	c, _ := h.client(t, authclient.WithRefreshTiming(time.Minute, 50*time.Millisecond))
	h.registerConfirmed(t, c)

	require.NoError(t, c.Login(context.Background(), testEmail, testPassword))
	first := c.State().Tokens

	require.Eventually(t, func() bool {
		return h.count("/api/auth/refresh") >= 2
	}, 5*time.Second, 20*time.Millisecond)

	state := c.State()
	require.True(t, state.IsAuthenticated)
	require.NotNil(t, state.Tokens)
	require.GreaterOrEqual(t, state.Tokens.IssuedAt, first.IssuedAt)
}

func TestRefreshFailureLogsOut(t *testing.T) {
	h := newHarness(t, local.WithAccessTTL(2*time.Second))
	c, nav := h.client(t, authclient.WithRefreshTiming(time.Minute, 50*time.Millisecond))
	h.registerConfirmed(t, c)
	h.failRefresh.Store(true)

	require.NoError(t, c.Login(context.Background(), testEmail, testPassword))

	require.Eventually(t, func() bool {
		return nav.last() == authclient.PageLogin
	}, 5*time.Second, 20*time.Millisecond)
	require.False(t, c.State().IsAuthenticated)
	require.Equal(t, 1, h.count("/api/auth/logout"))
}

func (n *navRecorder) count(path string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	var hits int
	for _, p := range n.pages {
		if p == path {
			hits++
		}
	}
	return hits
}

func TestRefreshLandingAfterLogoutIsDropped(t *testing.T) {
	h := newHarness(t)
	c, nav := h.client(t)
	h.registerConfirmed(t, c)
	ctx := context.Background()
	require.NoError(t, c.Login(ctx, testEmail, testPassword))

	h.holdRefresh.Store(true)
	done := make(chan error, 1)
	go func() { done <- c.Refresh(ctx) }()
	<-h.refreshStarted

	c.Logout(ctx)
	close(h.releaseRefresh)
	require.NoError(t, <-done)

	state := c.State()
	require.False(t, state.IsAuthenticated)
	require.Nil(t, state.User)
	require.Nil(t, state.Tokens)
	require.Equal(t, 1, nav.count(authclient.PageLogin))
	require.Equal(t, 1, h.count("/api/auth/logout"))
}

func TestSharedRefreshFailureLogsOutOnce(t *testing.T) {
	h := newHarness(t)
	c, nav := h.client(t)
	h.registerConfirmed(t, c)
	ctx := context.Background()
	require.NoError(t, c.Login(ctx, testEmail, testPassword))

	h.failRefresh.Store(true)
	h.holdRefresh.Store(true)
	errs := make(chan error, 2)
	go func() { errs <- c.Refresh(ctx) }()
	<-h.refreshStarted
	go func() { errs <- c.Refresh(ctx) }()
	// Give the second caller time to join the in-flight refresh.
	time.Sleep(100 * time.Millisecond)
	close(h.releaseRefresh)

	require.Error(t, <-errs)
	require.Error(t, <-errs)
	require.Equal(t, 1, h.count("/api/auth/refresh"))
	require.Equal(t, 1, h.count("/api/auth/logout"))
	require.Equal(t, 1, nav.count(authclient.PageLogin))
	require.False(t, c.State().IsAuthenticated)
}

func TestRefreshDelay(t *testing.T) {
	issued := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	md := &provider.TokenMetadata{ExpiresIn: 3600, IssuedAt: issued.UnixMilli()}

	assert.Equal(t, 55*time.Minute, authclient.RefreshDelay(md, issued, 5*time.Minute, 10*time.Second))
	assert.Equal(t, 25*time.Minute, authclient.RefreshDelay(md, issued.Add(30*time.Minute), 5*time.Minute, 10*time.Second))
	assert.Equal(t, 10*time.Second, authclient.RefreshDelay(md, issued.Add(56*time.Minute), 5*time.Minute, 10*time.Second))
	assert.Equal(t, 10*time.Second, authclient.RefreshDelay(md, issued.Add(2*time.Hour), 5*time.Minute, 10*time.Second))
}

func TestResendCodeCooldown(t *testing.T) {
	h := newHarness(t)
	c, _ := h.client(t, authclient.WithClock(h.clock.Now))
	ctx := context.Background()

	_, err := c.Signup(ctx, authclient.SignupInput{Email: testEmail, Password: testPassword, AcceptTerms: true})
	require.NoError(t, err)

	require.NoError(t, c.ResendCode(ctx, testEmail))
	require.Equal(t, 1, h.count("/api/auth/resend-code"))

	err = c.ResendCode(ctx, "ADA@example.com")
	require.ErrorIs(t, err, apperrors.ErrRateLimited)
	require.Equal(t, 1, h.count("/api/auth/resend-code"))

	h.clock.Advance(61 * time.Second)
	require.NoError(t, c.ResendCode(ctx, testEmail))
	require.Equal(t, 2, h.count("/api/auth/resend-code"))
}

func TestOAuthRoundTrip(t *testing.T) {
	h := newHarness(t)
	c, nav := h.client(t)
	h.registerConfirmed(t, c)

	authorizeURL, err := c.BeginOAuth(oauth.GitHub)
	require.NoError(t, err)
	u, err := url.Parse(authorizeURL)
	require.NoError(t, err)
	require.Equal(t, "GitHub", u.Query().Get("identity_provider"))
	require.Equal(t, "http://localhost:8080/api/auth/callback/github", u.Query().Get("redirect_uri"))
	state := u.Query().Get("state")
	require.Len(t, state, 64)

	callback := "http://localhost:8080/api/auth/callback/github?" + url.Values{"code": {goodCode}, "state": {state}}.Encode()
	require.NoError(t, c.CompleteOAuth(context.Background(), callback))
	require.Equal(t, authclient.PageOnboarding, nav.last())
	require.True(t, c.State().IsAuthenticated)
	require.Equal(t, 1, h.count("/api/auth/callback/github/exchange"))

	// The state was consumed by the first callback.
	err = c.CompleteOAuth(context.Background(), callback)
	var cbErr *authclient.CallbackError
	require.ErrorAs(t, err, &cbErr)
	require.Equal(t, oauth.ReasonStateNotFound, cbErr.Reason)
	require.Equal(t, 1, h.count("/api/auth/callback/github/exchange"))
}

func TestOAuthCallbackRejected(t *testing.T) {
	tests := []struct {
		name   string
		target func(state string) string
		want   oauth.Reason
	}{
		{
			name:   "mismatch",
			target: func(string) string { return "/api/auth/callback/github?code=" + goodCode + "&state=forged" },
			want:   oauth.ReasonStateMismatch,
		},
		{
			name:   "provider error",
			target: func(state string) string { return "/api/auth/callback/google?error=access_denied&state=" + state },
			want:   oauth.Reason("access_denied"),
		},
		{
			name:   "invalid provider",
			target: func(state string) string { return "/api/auth/callback/gitlab?code=" + goodCode + "&state=" + state },
			want:   oauth.ReasonInvalidProvider,
		},
		{
			name:   "missing code",
			target: func(state string) string { return "/api/auth/callback/github?state=" + state },
			want:   oauth.ReasonMissingCode,
		},
		{
			name:   "missing state",
			target: func(string) string { return "/api/auth/callback/github?code=" + goodCode },
			want:   oauth.ReasonMissingState,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			c, nav := h.client(t)

			authorizeURL, err := c.BeginOAuth(oauth.GitHub)
			require.NoError(t, err)
			u, err := url.Parse(authorizeURL)
			require.NoError(t, err)

			err = c.CompleteOAuth(context.Background(), "http://localhost:8080"+tt.target(u.Query().Get("state")))
			var cbErr *authclient.CallbackError
			require.ErrorAs(t, err, &cbErr)
			require.Equal(t, tt.want, cbErr.Reason)
			require.Empty(t, nav.pages)
			require.Zero(t, h.count("/api/auth/callback/github/exchange"))
		})
	}
}

func TestOAuthExchangeFailure(t *testing.T) {
	h := newHarness(t)
	c, _ := h.client(t)

	authorizeURL, err := c.BeginOAuth(oauth.Google)
	require.NoError(t, err)
	u, err := url.Parse(authorizeURL)
	require.NoError(t, err)

	callback := "http://localhost:8080/api/auth/callback/google?" + url.Values{"code": {"bad"}, "state": {u.Query().Get("state")}}.Encode()
	err = c.CompleteOAuth(context.Background(), callback)
	var apiErr *authclient.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, server.CodeOAuthFailed, apiErr.Code)
	require.False(t, c.State().IsAuthenticated)
}

func TestBeginOAuthWithoutAuthorizer(t *testing.T) {
	c, err := authclient.New("http://localhost:8080")
	require.NoError(t, err)

	_, err = c.BeginOAuth(oauth.GitHub)
	require.ErrorIs(t, err, apperrors.ErrInvalidParameter)
}
