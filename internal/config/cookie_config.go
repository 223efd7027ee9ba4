package config

import (
	"strings"
	"time"
)

type CookieConfig interface {
	GetSecureCookies() bool
	GetRefreshTokenMaxAge() time.Duration
	GetOAuthStateWindow() time.Duration
}

type Cookies struct {
	Secure bool
}

var _ CookieConfig = Cookies{}

// Secure cookies are required everywhere except local development over plain http.
// An https APP_URL always gets them.
func loadCookies(env EnvVars) Cookies {
	https := strings.HasPrefix(strings.ToLower(env.AppURL), "https://")
	return Cookies{Secure: !env.IsDevelopment() || https}
}

func (c Cookies) GetSecureCookies() bool {
	return c.Secure
}

func (Cookies) GetRefreshTokenMaxAge() time.Duration {
	return 30 * 24 * time.Hour
}

func (Cookies) GetOAuthStateWindow() time.Duration {
	return 5 * time.Minute
}
