// Package authclient keeps a browser-like view of the signed-in user. Session
// tokens live only in the cookie jar; the client holds the user and the token
// metadata it needs to refresh before expiry.
package authclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"path"
	"strings"
	"sync"
	"time"

	apperrors "github.com/ESHWARGEEK/CodeLearn/internal/errors"
	"github.com/ESHWARGEEK/CodeLearn/oauth"
	"github.com/ESHWARGEEK/CodeLearn/provider"
	"github.com/ESHWARGEEK/CodeLearn/users"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultHTTPTimeout = 30 * time.Second

	// DefaultRefreshLead is how long before expiry the access token is refreshed.
	DefaultRefreshLead = 5 * time.Minute
	// DefaultMinRefreshDelay stops a nearly expired token from refreshing in a tight loop.
	DefaultMinRefreshDelay = 10 * time.Second
	// DefaultResendCooldown matches the server's per-email resend window.
	DefaultResendCooldown = time.Minute
)

const (
	PageLogin       = "/login"
	PageDashboard   = "/dashboard"
	PageOnboarding  = "/onboarding"
	PageVerifyEmail = "/verify-email"
)

// Navigator moves the user to another page after an auth transition.
type Navigator interface {
	Navigate(path string)
}

type NavigatorFunc func(path string)

func (f NavigatorFunc) Navigate(path string) { f(path) }

// State is a snapshot of the client's auth state.
type State struct {
	User            *users.User
	Tokens          *provider.TokenMetadata
	IsLoading       bool
	IsAuthenticated bool
}

// APIError is a failed response from the auth API.
type APIError struct {
	Status  int      `json:"-"`
	Code    string   `json:"code"`
	Message string   `json:"message"`
	Details []string `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("auth api %d %s: %s", e.Status, e.Code, e.Message)
}

// CallbackError reports why an OAuth callback was rejected before any code exchange.
type CallbackError struct {
	Reason oauth.Reason
}

func (e *CallbackError) Error() string {
	return "oauth callback rejected: " + string(e.Reason)
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	authorizer *oauth.Authorizer
	guard      *oauth.Guard
	pending    *oauth.MemoryStore
	navigator  Navigator
	now        func() time.Time

	refreshLead     time.Duration
	minRefreshDelay time.Duration
	resendCooldown  time.Duration

	refreshGroup singleflight.Group

	mu         sync.Mutex
	state      State
	timer      *time.Timer
	closed     bool
	// generation changes whenever a session starts or ends, so a refresh that
	// lands late can tell its session is gone.
	generation uint64
	lastResend map[string]time.Time
}

type ClientOption func(*Client)

// WithHTTPClient uses the given client. A cookie jar is added when it has none,
// since the session only exists as cookies.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

func WithNavigator(n Navigator) ClientOption {
	return func(c *Client) {
		c.navigator = n
	}
}

func WithClock(now func() time.Time) ClientOption {
	return func(c *Client) {
		c.now = now
	}
}

// WithAuthorizer enables BeginOAuth against the hosted UI.
func WithAuthorizer(a *oauth.Authorizer) ClientOption {
	return func(c *Client) {
		c.authorizer = a
	}
}

func WithRefreshTiming(lead, minDelay time.Duration) ClientOption {
	return func(c *Client) {
		c.refreshLead = lead
		c.minRefreshDelay = minDelay
	}
}

func New(baseURL string, opts ...ClientOption) (*Client, error) {
	c := &Client{
		baseURL:         strings.TrimSuffix(baseURL, "/"),
		pending:         oauth.NewMemoryStore(),
		navigator:       NavigatorFunc(func(string) {}),
		now:             time.Now,
		refreshLead:     DefaultRefreshLead,
		minRefreshDelay: DefaultMinRefreshDelay,
		resendCooldown:  DefaultResendCooldown,
		lastResend:      make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: DefaultHTTPTimeout}
	}
	if c.httpClient.Jar == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, apperrors.Wrapf(err, "creating cookie jar")
		}
		c.httpClient.Jar = jar
	}
	c.guard = oauth.NewGuard(oauth.StateWindow, oauth.WithGuardClock(c.now))
	return c, nil
}

// State returns a copy of the current auth state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

type sessionData struct {
	User   *users.User             `json:"user"`
	Tokens *provider.TokenMetadata `json:"tokens"`
}

// Load asks the server who the cookies belong to. A rejected session leaves the
// client signed out without an error; only transport failures are returned.
func (c *Client) Load(ctx context.Context) error {
	c.mu.Lock()
	c.state.IsLoading = true
	c.mu.Unlock()

	var data sessionData
	err := c.do(ctx, http.MethodGet, "/api/auth/me", nil, &data)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.IsLoading = false
	if err != nil {
		c.resetLocked()
		var apiErr *APIError
		if apperrors.As(err, &apiErr) {
			return nil
		}
		return err
	}
	c.state.User = data.User
	c.state.IsAuthenticated = data.User != nil
	return nil
}

func (c *Client) Login(ctx context.Context, email, password string) error {
	var data sessionData
	body := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/api/auth/login", body, &data); err != nil {
		return err
	}
	c.setSession(data.User, data.Tokens)
	c.navigator.Navigate(PageDashboard)
	return nil
}

type SignupInput struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	Name        string `json:"name,omitempty"`
	AcceptTerms bool   `json:"acceptTerms"`
}

type SignupResult struct {
	UserID        string                  `json:"userId"`
	UserConfirmed bool                    `json:"userConfirmed"`
	Message       string                  `json:"message"`
	User          *users.User             `json:"user"`
	Tokens        *provider.TokenMetadata `json:"tokens"`
}

// Signup registers the account. A session comes back only when the pool confirmed
// the user immediately; otherwise the user is sent to verify their email.
func (c *Client) Signup(ctx context.Context, in SignupInput) (*SignupResult, error) {
	var res SignupResult
	if err := c.do(ctx, http.MethodPost, "/api/auth/signup", in, &res); err != nil {
		return nil, err
	}

	if res.User != nil {
		c.setSession(res.User, res.Tokens)
		c.navigator.Navigate(PageOnboarding)
		return &res, nil
	}
	c.navigator.Navigate(PageVerifyEmail + "?" + url.Values{"email": {in.Email}}.Encode())
	return &res, nil
}

func (c *Client) Verify(ctx context.Context, email, code string) error {
	body := map[string]string{"email": email, "code": code}
	return c.do(ctx, http.MethodPost, "/api/auth/verify", body, nil)
}

// ResendCode asks for a new verification code, at most once per cooldown per email.
func (c *Client) ResendCode(ctx context.Context, email string) error {
	key := strings.ToLower(strings.TrimSpace(email))

	c.mu.Lock()
	if last, ok := c.lastResend[key]; ok {
		if wait := c.resendCooldown - c.now().Sub(last); wait > 0 {
			c.mu.Unlock()
			return apperrors.Wrapf(apperrors.ErrRateLimited, "resend available in %s", wait.Round(time.Second))
		}
	}
	c.mu.Unlock()

	if err := c.do(ctx, http.MethodPost, "/api/auth/resend-code", map[string]string{"email": email}, nil); err != nil {
		return err
	}

	c.mu.Lock()
	c.lastResend[key] = c.now()
	c.mu.Unlock()
	return nil
}

// Logout signs out on the server, ignoring any failure, then forgets the session.
func (c *Client) Logout(ctx context.Context) {
	if err := c.do(ctx, http.MethodPost, "/api/auth/logout", nil, nil); err != nil {
		log.Ctx(ctx).Warn().Err(err).Msg("Logout request failed")
	}

	c.mu.Lock()
	c.resetLocked()
	c.mu.Unlock()
	c.navigator.Navigate(PageLogin)
}

// Refresh exchanges the refresh cookie for a new access token. Concurrent calls
// share one request. A failed refresh logs the user out once; a result that
// arrives after the session ended is dropped.
func (c *Client) Refresh(ctx context.Context) error {
	c.mu.Lock()
	generation := c.generation
	c.mu.Unlock()

	_, err, _ := c.refreshGroup.Do("refresh", func() (interface{}, error) {
		var data sessionData
		if err := c.do(ctx, http.MethodPost, "/api/auth/refresh", nil, &data); err != nil {
			c.mu.Lock()
			current := c.generation == generation
			c.mu.Unlock()
			if current {
				log.Ctx(ctx).Warn().Err(err).Msg("Token refresh failed; logging out")
				c.Logout(ctx)
			}
			return nil, err
		}

		c.mu.Lock()
		defer c.mu.Unlock()
		if c.generation != generation {
			log.Ctx(ctx).Debug().Msg("Session ended during refresh; dropping tokens")
			return nil, nil
		}
		c.state.Tokens = data.Tokens
		c.scheduleRefreshLocked()
		return nil, nil
	})
	return err
}

// BeginOAuth records a fresh state and returns the hosted UI URL to send the user to.
func (c *Client) BeginOAuth(p oauth.Provider) (string, error) {
	if c.authorizer == nil {
		return "", apperrors.Wrapf(apperrors.ErrInvalidParameter, "no authorizer configured")
	}
	st, err := c.guard.Begin(c.pending)
	if err != nil {
		return "", err
	}
	return c.authorizer.AuthorizeURL(p, st.Value), nil
}

type exchangeData struct {
	User               *users.User             `json:"user"`
	OnboardingComplete bool                    `json:"onboardingComplete"`
	Tokens             *provider.TokenMetadata `json:"tokens"`
}

// CompleteOAuth handles the URL the hosted UI redirected back to. The pending
// state is consumed whatever the outcome.
func (c *Client) CompleteOAuth(ctx context.Context, callbackURL string) error {
	u, err := url.Parse(callbackURL)
	if err != nil {
		return apperrors.Wrapf(apperrors.ErrInvalidParameter, "parsing callback url")
	}
	q := u.Query()
	returned := q.Get("state")
	stateErr := c.guard.Consume(c.pending, returned)

	if providerErr := q.Get("error"); providerErr != "" {
		return &CallbackError{Reason: oauth.Reason(providerErr)}
	}
	p, err := oauth.ParseProvider(path.Base(u.Path))
	if err != nil {
		return &CallbackError{Reason: oauth.ReasonInvalidProvider}
	}
	code := q.Get("code")
	if code == "" {
		return &CallbackError{Reason: oauth.ReasonMissingCode}
	}
	if returned == "" {
		return &CallbackError{Reason: oauth.ReasonMissingState}
	}
	if stateErr != nil {
		var se *oauth.StateError
		if apperrors.As(stateErr, &se) {
			return &CallbackError{Reason: se.Reason}
		}
		return &CallbackError{Reason: oauth.ReasonStateNotFound}
	}

	var data exchangeData
	if err := c.do(ctx, http.MethodPost, oauth.CallbackPath+p.String()+"/exchange", map[string]string{"code": code}, &data); err != nil {
		return err
	}
	c.setSession(data.User, data.Tokens)
	if data.OnboardingComplete {
		c.navigator.Navigate(PageDashboard)
	} else {
		c.navigator.Navigate(PageOnboarding)
	}
	return nil
}

// Close stops background refreshes without touching the session.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.stopTimerLocked()
}

func (c *Client) setSession(user *users.User, tokens *provider.TokenMetadata) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation++
	c.state.User = user
	c.state.Tokens = tokens
	c.state.IsAuthenticated = user != nil
	c.scheduleRefreshLocked()
}

func (c *Client) resetLocked() {
	c.generation++
	c.stopTimerLocked()
	c.state.User = nil
	c.state.Tokens = nil
	c.state.IsAuthenticated = false
}

func (c *Client) stopTimerLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

// scheduleRefreshLocked replaces any pending refresh with one timed from the
// current token metadata.
func (c *Client) scheduleRefreshLocked() {
	c.stopTimerLocked()
	if c.closed || c.state.Tokens == nil {
		return
	}
	delay := RefreshDelay(c.state.Tokens, c.now(), c.refreshLead, c.minRefreshDelay)
	c.timer = time.AfterFunc(delay, c.refreshInBackground)
}

func (c *Client) refreshInBackground() {
	ctx, cancel := context.WithTimeout(context.Background(), DefaultHTTPTimeout)
	defer cancel()
	_ = c.Refresh(ctx)
}

// RefreshDelay is the time until lead before the token expires, never less than minDelay.
func RefreshDelay(md *provider.TokenMetadata, now time.Time, lead, minDelay time.Duration) time.Duration {
	delay := md.ExpiresAt().Add(-lead).Sub(now)
	if delay < minDelay {
		return minDelay
	}
	return delay
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *APIError       `json:"error"`
}

func (c *Client) do(ctx context.Context, method, apiPath string, body, dst any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return apperrors.Wrapf(err, "encoding %s request", apiPath)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+apiPath, reader)
	if err != nil {
		return apperrors.Wrapf(err, "creating %s request", apiPath)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return apperrors.Wrapf(err, "%s %s", method, apiPath)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return apperrors.Wrapf(err, "decoding %s response (status %d)", apiPath, resp.StatusCode)
	}
	if !env.Success || resp.StatusCode >= http.StatusBadRequest {
		apiErr := env.Error
		if apiErr == nil {
			apiErr = &APIError{Message: http.StatusText(resp.StatusCode)}
		}
		apiErr.Status = resp.StatusCode
		return apiErr
	}
	if dst != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, dst); err != nil {
			return apperrors.Wrapf(err, "decoding %s data", apiPath)
		}
	}
	return nil
}
