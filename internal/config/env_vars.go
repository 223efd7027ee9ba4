package config

import (
	"fmt"
	"os"
	"strings"
)

const (
	portEnvVar        = "PORT"
	appNameVar        = "APP_NAME"
	envVar            = "ENV"
	appURLVar         = "APP_URL"
	frontendURLVar    = "FRONTEND_URL"
	logLevelVar       = "LOG_LEVEL"
	developmentEnvTag = "DEV"
)

type EnvVars struct {
	Port        string
	AppName     string
	Env         string
	AppURL      string
	FrontendURL string
	LogLevel    string
}

var _ EnvConfig = EnvVars{}

func loadEnvVars() EnvVars {
	return EnvVars{
		Port:        GetEnv(portEnvVar, "8080"),
		AppName:     GetEnv(appNameVar, "CodeLearn Auth"),
		Env:         GetEnv(envVar, developmentEnvTag),
		AppURL:      strings.TrimSuffix(GetEnv(appURLVar, "http://localhost:8080"), "/"),
		FrontendURL: strings.TrimSuffix(GetEnv(frontendURLVar, ""), "/"),
		LogLevel:    GetEnv(logLevelVar, "info"),
	}
}

func (e EnvVars) GetPort() string {
	port := e.Port
	if port != "" && port[0] != ':' {
		port = fmt.Sprintf(":%s", port)
	}
	return port
}

func (e EnvVars) GetAppName() string {
	return e.AppName
}

func (e EnvVars) GetEnv() string {
	return e.Env
}

func (e EnvVars) IsDevelopment() bool {
	return strings.EqualFold(e.Env, developmentEnvTag)
}

// GetAppURL returns the public origin of the application (e.g., "https://codelearn.dev").
// OAuth redirect URIs are derived from it.
func (e EnvVars) GetAppURL() string {
	return e.AppURL
}

// GetFrontendURL returns the upstream that serves pages. Empty means no page upstream.
func (e EnvVars) GetFrontendURL() string {
	return e.FrontendURL
}

func (e EnvVars) GetLogLevel() string {
	return e.LogLevel
}

func GetEnv(envVar, defaultValue string) string {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	return value
}
