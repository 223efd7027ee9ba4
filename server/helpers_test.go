package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/ESHWARGEEK/CodeLearn/internal/config"
	apperrors "github.com/ESHWARGEEK/CodeLearn/internal/errors"
	"github.com/ESHWARGEEK/CodeLearn/oauth"
	"github.com/ESHWARGEEK/CodeLearn/provider"
	"github.com/ESHWARGEEK/CodeLearn/provider/providerfake"
	"github.com/ESHWARGEEK/CodeLearn/ratelimit"
	"github.com/ESHWARGEEK/CodeLearn/server"
	"github.com/ESHWARGEEK/CodeLearn/token"
	"github.com/ESHWARGEEK/CodeLearn/users"
	"github.com/stretchr/testify/require"
)

const allowedOrigin = "http://localhost:3000"

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// fakeVerifier accepts only the tokens it has claims for.
type fakeVerifier map[string]*token.Claims

func (f fakeVerifier) Verify(_ context.Context, raw string) (*token.Claims, error) {
	claims, ok := f[raw]
	if !ok {
		return nil, apperrors.ErrInvalidToken
	}
	return claims, nil
}

type fakeExchanger struct {
	ExchangeFunc     func(ctx context.Context, code string, p oauth.Provider) (*provider.TokenSet, error)
	FetchProfileFunc func(ctx context.Context, accessToken string) (*users.User, error)
	codes            []string
}

func (f *fakeExchanger) AuthorizeURL(p oauth.Provider, state string) string {
	return "https://auth.example.com/oauth2/authorize?" + url.Values{
		"identity_provider": {p.IdentityProviderName()},
		"state":             {state},
	}.Encode()
}

func (f *fakeExchanger) Exchange(ctx context.Context, code string, p oauth.Provider) (*provider.TokenSet, error) {
	f.codes = append(f.codes, code)
	if f.ExchangeFunc != nil {
		return f.ExchangeFunc(ctx, code, p)
	}
	return providerfake.Tokens(), nil
}

func (f *fakeExchanger) FetchProfile(ctx context.Context, accessToken string) (*users.User, error) {
	if f.FetchProfileFunc != nil {
		return f.FetchProfileFunc(ctx, accessToken)
	}
	return providerfake.User(), nil
}

// downstreamRecorder stands in for the frontend and remembers what reached it.
type downstreamRecorder struct {
	hits    int
	headers http.Header
	claims  *token.Claims
}

func (d *downstreamRecorder) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	d.hits++
	d.headers = r.Header.Clone()
	d.claims, _ = server.ClaimsFromContext(r.Context())
	_, _ = w.Write([]byte("page"))
}

type testEnv struct {
	server     *server.Server
	idp        *providerfake.FakeProvider
	verifier   fakeVerifier
	exchanger  *fakeExchanger
	downstream *downstreamRecorder
	clock      *testClock
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	t.Setenv("ENV", "DEV")
	t.Setenv("APP_URL", "http://localhost:8080")
	t.Setenv("ALLOWED_ORIGINS", allowedOrigin)
	cfg := config.New()

	env := &testEnv{
		idp:        providerfake.NewFakeProvider(),
		verifier:   fakeVerifier{},
		exchanger:  &fakeExchanger{},
		downstream: &downstreamRecorder{},
		clock:      newTestClock(),
	}
	limiter := ratelimit.NewMemoryLimiter(cfg.GetResendWindow(), cfg.GetRateLimitEviction(), ratelimit.WithClock(env.clock.Now))

	srv, err := server.New(cfg, server.Deps{
		Provider:   env.idp,
		Verifier:   env.verifier,
		Exchanger:  env.exchanger,
		Limiter:    limiter,
		Downstream: env.downstream,
		Clock:      env.clock.Now,
	})
	require.NoError(t, err)
	env.server = srv
	return env
}

func (e *testEnv) do(t *testing.T, method, target string, body any, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if raw, ok := body.(string); ok {
			buf.WriteString(raw)
		} else {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
	}
	req := httptest.NewRequest(method, target, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	e.server.ServeHTTP(rec, req)
	return rec
}

type envelope struct {
	Success bool             `json:"success"`
	Data    json.RawMessage  `json:"data"`
	Error   *server.APIError `json:"error"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return env
}

func requireAPIError(t *testing.T, rec *httptest.ResponseRecorder, status int, code string) *server.APIError {
	t.Helper()
	require.Equal(t, status, rec.Code, rec.Body.String())
	env := decodeEnvelope(t, rec)
	require.False(t, env.Success)
	require.NotNil(t, env.Error)
	require.Equal(t, code, env.Error.Code)
	return env.Error
}

func requireData(t *testing.T, rec *httptest.ResponseRecorder, status int, dst any) {
	t.Helper()
	require.Equal(t, status, rec.Code, rec.Body.String())
	env := decodeEnvelope(t, rec)
	require.True(t, env.Success)
	if dst != nil {
		require.NoError(t, json.Unmarshal(env.Data, dst))
	}
}

func findCookie(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func requireCleared(t *testing.T, rec *httptest.ResponseRecorder, name string) {
	t.Helper()
	c := findCookie(rec, name)
	require.NotNil(t, c, "expected %s to be cleared", name)
	require.Empty(t, c.Value)
	require.Less(t, c.MaxAge, 0)
}

func newRecorderFor(e *testEnv, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.server.ServeHTTP(rec, req)
	return rec
}
