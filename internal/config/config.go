package config

import (
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type Config interface {
	EnvConfig
	CorsConfig
	IdentityConfig
	CookieConfig
	RateLimitConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetEnv() string
	IsDevelopment() bool
	GetAppURL() string
	GetFrontendURL() string
	GetLogLevel() string
}

type CorsConfig interface {
	GetAllowedOrigins() AllowedOrigins
	GetAllowedMethods() string
	GetAllowedHeaders() string
}

type mainConfig struct {
	EnvVars
	Cors
	Identity
	Cookies
	RateLimit
}

// Load reads a .env file when one is present and snapshots the environment.
func Load() Config {
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("No .env file found, using process environment")
	}
	return New()
}

// New snapshots the process environment without touching .env files.
func New() Config {
	env := loadEnvVars()
	return mainConfig{
		EnvVars:   env,
		Cors:      loadCors(env.AppURL),
		Identity:  loadIdentity(),
		Cookies:   loadCookies(env),
		RateLimit: loadRateLimit(),
	}
}
