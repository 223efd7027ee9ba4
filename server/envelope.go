package server

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"
)

// API error codes returned in the error envelope.
const (
	CodeValidationError     = "VALIDATION_ERROR"
	CodeUserExists          = "USER_EXISTS"
	CodeSignupFailed        = "SIGNUP_FAILED"
	CodeInvalidCode         = "INVALID_CODE"
	CodeExpiredCode         = "EXPIRED_CODE"
	CodeAlreadyVerified     = "ALREADY_VERIFIED"
	CodeVerificationFailed  = "VERIFICATION_FAILED"
	CodeRateLimited         = "RATE_LIMITED"
	CodeLimitExceeded       = "LIMIT_EXCEEDED"
	CodeResendFailed        = "RESEND_FAILED"
	CodeLoginFailed         = "LOGIN_FAILED"
	CodeUnauthorized        = "UNAUTHORIZED"
	CodeMissingRefreshToken = "MISSING_REFRESH_TOKEN"
	CodeRefreshFailed       = "REFRESH_FAILED"
	CodeResetFailed         = "RESET_FAILED"
	CodeInvalidProvider     = "INVALID_PROVIDER"
	CodeOAuthFailed         = "OAUTH_FAILED"
	CodeNotFound            = "NOT_FOUND"
	CodeInternal            = "INTERNAL_ERROR"
)

// APIError is the body of a failed response.
type APIError struct {
	Code    string   `json:"code"`
	Message string   `json:"message"`
	Details []string `json:"details,omitempty"`
}

// Envelope wraps every JSON response from the auth API.
type Envelope struct {
	Success bool      `json:"success"`
	Data    any       `json:"data,omitempty"`
	Error   *APIError `json:"error,omitempty"`
}

type messageData struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Err(err).Msg("Failed to encode response")
	}
}

func writeData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, Envelope{Success: true, Data: data})
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeData(w, status, messageData{Message: message})
}

func writeError(w http.ResponseWriter, status int, code, message string, details ...string) {
	writeJSON(w, status, Envelope{
		Error: &APIError{
			Code:    code,
			Message: message,
			Details: details,
		},
	})
}
