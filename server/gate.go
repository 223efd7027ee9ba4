package server

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/ESHWARGEEK/CodeLearn/session"
	"github.com/ESHWARGEEK/CodeLearn/token"
	"github.com/ESHWARGEEK/CodeLearn/users"
	"github.com/rs/zerolog/log"
)

// Identity headers forwarded to downstream handlers. Inbound copies are always stripped.
const (
	HeaderUserID    = "X-User-Id"
	HeaderUserTier  = "X-User-Tier"
	HeaderUserEmail = "X-User-Email"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

const (
	// ContextKeyUserID stores the authenticated user ID
	ContextKeyUserID ContextKey = "user_id"
	// ContextKeyTier stores the user's subscription tier
	ContextKeyTier ContextKey = "tier"
	// ContextKeyEmail stores the user's email
	ContextKeyEmail ContextKey = "email"
	// ContextKeyClaims stores the verified token claims
	ContextKeyClaims ContextKey = "claims"
)

// "/" is matched exactly, the rest by prefix.
var publicPaths = []string{"/login", "/signup", "/forgot-password", "/terms", "/privacy"}

var protectedPaths = []string{"/dashboard", "/learning", "/developer", "/portfolio", "/settings", "/onboarding"}

var tierAccess = map[users.Tier][]string{
	users.TierFree: {"/dashboard", "/learning", "/portfolio", "/settings", "/onboarding"},
	users.TierPro:  protectedPaths,
	users.TierTeam: protectedPaths,
}

func isPublicPath(path string) bool {
	return path == "/" || hasAnyPrefix(path, publicPaths)
}

func isProtectedPath(path string) bool {
	return hasAnyPrefix(path, protectedPaths)
}

// TierAllows reports whether tier may open path. Unknown tiers get the free allow-list.
func TierAllows(tier users.Tier, path string) bool {
	allowed, ok := tierAccess[tier]
	if !ok {
		allowed = tierAccess[users.TierFree]
	}
	return hasAnyPrefix(path, allowed)
}

func hasAnyPrefix(path string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

// RouteGate guards protected pages with the access token cookie and the tier allow-lists.
// API routes pass straight through; they authenticate themselves.
func (s *Server) RouteGate(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Header.Del(HeaderUserID)
		r.Header.Del(HeaderUserTier)
		r.Header.Del(HeaderUserEmail)

		path := r.URL.Path
		if isPublicPath(path) || strings.HasPrefix(path, "/api/") || !isProtectedPath(path) {
			next(w, r)
			return
		}

		rawToken := session.AccessToken(r)
		if rawToken == "" {
			redirectToLogin(w, r, url.Values{"redirect": {path}})
			return
		}

		claims, err := s.verifier.Verify(r.Context(), rawToken)
		if err != nil {
			log.Ctx(r.Context()).Debug().Err(err).Str("path", path).Msg("Session token rejected")
			s.cookies.Clear(w)
			redirectToLogin(w, r, url.Values{"redirect": {path}, "error": {"session_expired"}})
			return
		}

		tier := claims.Tier
		if tier == "" {
			tier = users.TierFree
		}
		if !TierAllows(tier, path) {
			http.Redirect(w, r, PageUpgrade, http.StatusSeeOther)
			return
		}

		r.Header.Set(HeaderUserID, claims.Subject)
		r.Header.Set(HeaderUserTier, string(tier))
		r.Header.Set(HeaderUserEmail, claims.Email)

		ctx := context.WithValue(r.Context(), ContextKeyUserID, claims.Subject)
		ctx = context.WithValue(ctx, ContextKeyTier, tier)
		ctx = context.WithValue(ctx, ContextKeyEmail, claims.Email)
		ctx = context.WithValue(ctx, ContextKeyClaims, claims)
		next(w, r.WithContext(ctx))
	}
}

// ClaimsFromContext returns the claims the gate verified for this request.
func ClaimsFromContext(ctx context.Context) (*token.Claims, bool) {
	claims, ok := ctx.Value(ContextKeyClaims).(*token.Claims)
	return claims, ok
}

func redirectToLogin(w http.ResponseWriter, r *http.Request, params url.Values) {
	target := PageLogin
	if len(params) > 0 {
		target += "?" + params.Encode()
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}
