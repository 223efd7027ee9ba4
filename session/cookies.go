package session

import (
	"net/http"
	"strings"
	"time"

	"github.com/ESHWARGEEK/CodeLearn/internal/config"
	"github.com/ESHWARGEEK/CodeLearn/provider"
)

const (
	// AccessTokenCookie carries the access token; its lifetime follows the provider's expiresIn
	AccessTokenCookie = "auth-token"
	// RefreshTokenCookie carries the refresh token for a fixed 30 days
	RefreshTokenCookie = "refresh-token"
)

// Manager issues and clears the session cookies. Cookies are always httpOnly
// and scoped to "/"; secure follows the environment.
type Manager struct {
	secure        bool
	refreshMaxAge time.Duration
}

func NewManager(cfg config.CookieConfig) *Manager {
	return &Manager{
		secure:        cfg.GetSecureCookies(),
		refreshMaxAge: cfg.GetRefreshTokenMaxAge(),
	}
}

// Issue sets both session cookies. Use http.SameSiteLaxMode for flows that arrive
// through a cross-site redirect and http.SameSiteStrictMode for same-site forms.
func (m *Manager) Issue(w http.ResponseWriter, tokens *provider.TokenSet, sameSite http.SameSite) {
	m.IssueAccess(w, tokens, sameSite)
	if tokens.RefreshToken != "" {
		m.set(w, RefreshTokenCookie, tokens.RefreshToken, int(m.refreshMaxAge.Seconds()), sameSite)
	}
}

// IssueAccess replaces only the access token cookie.
func (m *Manager) IssueAccess(w http.ResponseWriter, tokens *provider.TokenSet, sameSite http.SameSite) {
	m.set(w, AccessTokenCookie, tokens.AccessToken, tokens.ExpiresIn, sameSite)
}

// Clear deletes both session cookies.
func (m *Manager) Clear(w http.ResponseWriter) {
	m.set(w, AccessTokenCookie, "", -1, http.SameSiteLaxMode)
	m.set(w, RefreshTokenCookie, "", -1, http.SameSiteLaxMode)
}

func (m *Manager) set(w http.ResponseWriter, name, value string, maxAge int, sameSite http.SameSite) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: sameSite,
		MaxAge:   maxAge,
	})
}

// AccessToken returns the access token cookie value, or "".
func AccessToken(r *http.Request) string {
	return cookieValue(r, AccessTokenCookie)
}

// RefreshToken returns the refresh token cookie value, or "".
func RefreshToken(r *http.Request) string {
	return cookieValue(r, RefreshTokenCookie)
}

// BearerOrCookie prefers an Authorization bearer token and falls back to the access token cookie.
func BearerOrCookie(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		if token, ok := strings.CutPrefix(auth, "Bearer "); ok && strings.TrimSpace(token) != "" {
			return strings.TrimSpace(token)
		}
	}
	return AccessToken(r)
}

func cookieValue(r *http.Request, name string) string {
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return c.Value
}
