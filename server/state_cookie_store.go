package server

import (
	"net/http"

	"github.com/ESHWARGEEK/CodeLearn/oauth"
)

const stateCookiePath = "/api/auth"

var _ oauth.Store = (*stateCookieStore)(nil)

// stateCookieStore keeps a pending OAuth state in short lived httpOnly cookies.
// Writes made during the request are visible to later reads in the same request.
type stateCookieStore struct {
	w       http.ResponseWriter
	r       *http.Request
	secure  bool
	maxAge  int
	pending map[string]*string
}

func (s *Server) newStateCookieStore(w http.ResponseWriter, r *http.Request) *stateCookieStore {
	return &stateCookieStore{
		w:       w,
		r:       r,
		secure:  s.config.GetSecureCookies(),
		maxAge:  int(s.config.GetOAuthStateWindow().Seconds()),
		pending: make(map[string]*string),
	}
}

func (c *stateCookieStore) Get(key string) (string, bool) {
	if v, ok := c.pending[key]; ok {
		if v == nil {
			return "", false
		}
		return *v, true
	}
	cookie, err := c.r.Cookie(key)
	if err != nil || cookie.Value == "" {
		return "", false
	}
	return cookie.Value, true
}

func (c *stateCookieStore) Set(key, value string) {
	c.pending[key] = &value
	c.write(key, value, c.maxAge)
}

func (c *stateCookieStore) Delete(key string) {
	c.pending[key] = nil
	c.write(key, "", -1)
}

// SameSite=Lax so the cookies survive the top level redirect back from the hosted UI.
func (c *stateCookieStore) write(name, value string, maxAge int) {
	http.SetCookie(c.w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     stateCookiePath,
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   maxAge,
	})
}
