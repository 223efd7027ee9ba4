package server

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/ESHWARGEEK/CodeLearn/internal/errors"
	"github.com/ESHWARGEEK/CodeLearn/provider"
	"github.com/ESHWARGEEK/CodeLearn/ratelimit"
	"github.com/ESHWARGEEK/CodeLearn/session"
	"github.com/ESHWARGEEK/CodeLearn/token"
	"github.com/ESHWARGEEK/CodeLearn/users"
	"github.com/rs/zerolog/log"
)

const signOutTimeout = 5 * time.Second

type signupRequest struct {
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required"`
	Name        string `json:"name" validate:"omitempty,max=100"`
	AcceptTerms bool   `json:"acceptTerms" validate:"eq=true"`
}

func (req *signupRequest) normalise() {
	req.Email = normaliseEmail(req.Email)
	req.Name = strings.TrimSpace(req.Name)
}

type signupResponse struct {
	UserID        string                  `json:"userId"`
	UserConfirmed bool                    `json:"userConfirmed"`
	Message       string                  `json:"message"`
	User          *users.User             `json:"user,omitempty"`
	Tokens        *provider.TokenMetadata `json:"tokens,omitempty"`
}

type sessionResponse struct {
	User   *users.User             `json:"user,omitempty"`
	Tokens *provider.TokenMetadata `json:"tokens,omitempty"`
}

type emailRequest struct {
	Email string `json:"email" validate:"required,email"`
}

func (req *emailRequest) normalise() {
	req.Email = normaliseEmail(req.Email)
}

type verifyRequest struct {
	Email string `json:"email" validate:"required,email"`
	Code  string `json:"code" validate:"required,len=6,numeric"`
}

func (req *verifyRequest) normalise() {
	req.Email = normaliseEmail(req.Email)
	req.Code = strings.TrimSpace(req.Code)
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func (req *loginRequest) normalise() {
	req.Email = normaliseEmail(req.Email)
}

// SignupHandler registers an account. Pools that confirm immediately also get a
// session so the client can go straight to onboarding.
func (s *Server) SignupHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req signupRequest
		details := decodeRequest(w, r, &req)
		details = passwordDetails(details, req.Password)
		if len(details) > 0 {
			writeError(w, http.StatusBadRequest, CodeValidationError, "Invalid input data", details...)
			return
		}

		ctx := r.Context()
		result, err := s.idp.SignUp(ctx, req.Email, req.Password, req.Name)
		if err != nil {
			log.Ctx(ctx).Err(err).Msg("Signup failed")
			switch {
			case apperrors.Is(err, apperrors.ErrUserExists):
				writeError(w, http.StatusConflict, CodeUserExists, "An account with this email already exists")
			case apperrors.Is(err, apperrors.ErrInvalidParameter):
				writeError(w, http.StatusBadRequest, CodeValidationError, "Invalid input data")
			default:
				writeError(w, http.StatusInternalServerError, CodeSignupFailed, "Failed to create account")
			}
			return
		}

		if !result.UserConfirmed {
			writeData(w, http.StatusCreated, signupResponse{
				UserID:        result.UserID,
				UserConfirmed: false,
				Message:       "Please check your email for verification code",
			})
			return
		}

		resp := signupResponse{
			UserID:        result.UserID,
			UserConfirmed: true,
			Message:       "Account created successfully",
		}
		tokens, user, err := s.signIn(ctx, req.Email, req.Password)
		if err != nil {
			// The account exists; the client falls back to the login page.
			log.Ctx(ctx).Err(err).Msg("Automatic sign-in after signup failed")
			writeData(w, http.StatusCreated, resp)
			return
		}
		s.cookies.Issue(w, tokens, http.SameSiteStrictMode)
		resp.User = user
		resp.Tokens = tokens.Metadata()
		writeData(w, http.StatusCreated, resp)
	}
}

func (s *Server) VerifyHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req verifyRequest
		if details := decodeRequest(w, r, &req); len(details) > 0 {
			writeError(w, http.StatusBadRequest, CodeValidationError, "Invalid verification code format", details...)
			return
		}

		ctx := r.Context()
		if err := s.idp.ConfirmSignUp(ctx, req.Email, req.Code); err != nil {
			log.Ctx(ctx).Err(err).Msg("Email verification failed")
			switch {
			case apperrors.Is(err, apperrors.ErrCodeMismatch):
				writeError(w, http.StatusBadRequest, CodeInvalidCode, "Invalid verification code. Please check and try again.")
			case apperrors.Is(err, apperrors.ErrCodeExpired):
				writeError(w, http.StatusBadRequest, CodeExpiredCode, "Verification code has expired. Please request a new code.")
			case apperrors.Is(err, apperrors.ErrAlreadyVerified):
				writeError(w, http.StatusBadRequest, CodeAlreadyVerified, "This email is already verified. Please login.")
			default:
				writeError(w, http.StatusInternalServerError, CodeVerificationFailed, "Failed to verify email")
			}
			return
		}
		writeMessage(w, http.StatusOK, "Email verified successfully")
	}
}

// ResendCodeHandler admits one resend per email per window. A failing limiter
// backend lets the request through.
func (s *Server) ResendCodeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req emailRequest
		if details := decodeRequest(w, r, &req); len(details) > 0 {
			writeError(w, http.StatusBadRequest, CodeValidationError, "Invalid email address", details...)
			return
		}

		ctx := r.Context()
		if !s.allow(ctx, ratelimit.Key("resend", req.Email)) {
			s.writeRateLimited(w, "Please wait 1 minute before requesting another code.")
			return
		}

		if err := s.idp.ResendConfirmationCode(ctx, req.Email); err != nil {
			log.Ctx(ctx).Err(err).Msg("Resend code failed")
			switch {
			case apperrors.Is(err, apperrors.ErrLimitExceeded):
				writeError(w, http.StatusTooManyRequests, CodeLimitExceeded, "Too many attempts. Please try again later.")
			case apperrors.Is(err, apperrors.ErrAlreadyVerified), apperrors.Is(err, apperrors.ErrInvalidParameter):
				writeError(w, http.StatusBadRequest, CodeAlreadyVerified, "This email is already verified. Please login.")
			default:
				writeError(w, http.StatusInternalServerError, CodeResendFailed, "Failed to resend verification code")
			}
			return
		}
		writeMessage(w, http.StatusOK, "Verification code sent successfully")
	}
}

// LoginHandler never tells the caller which part of the credentials was wrong.
func (s *Server) LoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req loginRequest
		if details := decodeRequest(w, r, &req); len(details) > 0 {
			writeError(w, http.StatusBadRequest, CodeValidationError, "Invalid input data", details...)
			return
		}

		ctx := r.Context()
		tokens, user, err := s.signIn(ctx, req.Email, req.Password)
		if err != nil {
			log.Ctx(ctx).Err(err).Msg("Login failed")
			writeError(w, http.StatusUnauthorized, CodeLoginFailed, "Invalid email or password")
			return
		}

		s.cookies.Issue(w, tokens, http.SameSiteStrictMode)
		writeData(w, http.StatusOK, sessionResponse{User: user, Tokens: tokens.Metadata()})
	}
}

// LogoutHandler always clears the session cookies and answers 200, whatever the
// provider says.
func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if accessToken := session.BearerOrCookie(r); accessToken != "" {
			s.globalSignOut(r.Context(), accessToken)
		}
		s.cookies.Clear(w)
		writeMessage(w, http.StatusOK, "Logged out successfully")
	}
}

func (s *Server) globalSignOut(ctx context.Context, accessToken string) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Ctx(ctx).Error().Interface("panic", rec).Msg("Global sign-out panicked")
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, signOutTimeout)
	defer cancel()
	if err := s.idp.GlobalSignOut(ctx, accessToken); err != nil {
		log.Ctx(ctx).Warn().Err(err).Msg("Global sign-out failed; clearing cookies anyway")
	}
}

func (s *Server) MeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		accessToken := session.BearerOrCookie(r)
		if accessToken == "" {
			writeError(w, http.StatusUnauthorized, CodeUnauthorized, "No access token provided")
			return
		}

		user, err := s.idp.GetUser(r.Context(), accessToken)
		if err != nil {
			log.Ctx(r.Context()).Debug().Err(err).Msg("Get user failed")
			writeError(w, http.StatusUnauthorized, CodeUnauthorized, "Invalid or expired token")
			return
		}
		writeData(w, http.StatusOK, sessionResponse{User: user})
	}
}

// RefreshHandler swaps the refresh token cookie for a new access token. The
// username for the secret hash comes from the expired access token, unverified.
func (s *Server) RefreshHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		refreshToken := session.RefreshToken(r)
		if refreshToken == "" {
			writeError(w, http.StatusUnauthorized, CodeMissingRefreshToken, "No refresh token provided")
			return
		}

		ctx := r.Context()
		username := token.UnverifiedUsername(session.AccessToken(r))
		tokens, err := s.idp.Refresh(ctx, refreshToken, username)
		if err != nil {
			log.Ctx(ctx).Err(err).Stringer("refresh_token", provider.Redacted(refreshToken)).Msg("Token refresh failed")
			writeError(w, http.StatusUnauthorized, CodeRefreshFailed, "Failed to refresh token")
			return
		}

		if tokens.RefreshToken != "" && tokens.RefreshToken != refreshToken {
			s.cookies.Issue(w, tokens, http.SameSiteLaxMode)
		} else {
			s.cookies.IssueAccess(w, tokens, http.SameSiteLaxMode)
		}
		writeData(w, http.StatusOK, sessionResponse{Tokens: tokens.Metadata()})
	}
}

func (s *Server) signIn(ctx context.Context, email, password string) (*provider.TokenSet, *users.User, error) {
	tokens, err := s.idp.SignIn(ctx, email, password)
	if err != nil {
		return nil, nil, err
	}
	user, err := s.idp.GetUser(ctx, tokens.AccessToken)
	if err != nil {
		return nil, nil, apperrors.Wrapf(err, "loading user after sign-in")
	}
	return tokens, user, nil
}

func (s *Server) allow(ctx context.Context, key string) bool {
	allowed, err := s.limiter.Allow(ctx, key)
	if err != nil {
		log.Ctx(ctx).Warn().Err(err).Str("key", key).Msg("Rate limiter unavailable; allowing request")
		return true
	}
	return allowed
}

func (s *Server) writeRateLimited(w http.ResponseWriter, message string) {
	w.Header().Set("Retry-After", strconv.Itoa(int(s.config.GetResendWindow().Seconds())))
	writeError(w, http.StatusTooManyRequests, CodeRateLimited, message)
}
