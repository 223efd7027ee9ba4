package server

import (
	"net/http"
	"strings"

	apperrors "github.com/ESHWARGEEK/CodeLearn/internal/errors"
	"github.com/ESHWARGEEK/CodeLearn/ratelimit"
	"github.com/rs/zerolog/log"
)

const forgotPasswordMessage = "If an account exists for this email, a reset code has been sent."

type resetPasswordRequest struct {
	Email       string `json:"email" validate:"required,email"`
	Code        string `json:"code" validate:"required,len=6,numeric"`
	NewPassword string `json:"newPassword" validate:"required"`
}

func (req *resetPasswordRequest) normalise() {
	req.Email = normaliseEmail(req.Email)
	req.Code = strings.TrimSpace(req.Code)
}

// ForgotPasswordHandler answers the same way whether or not the account exists.
func (s *Server) ForgotPasswordHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req emailRequest
		if details := decodeRequest(w, r, &req); len(details) > 0 {
			writeError(w, http.StatusBadRequest, CodeValidationError, "Invalid email address", details...)
			return
		}

		ctx := r.Context()
		if !s.allow(ctx, ratelimit.Key("forgot", req.Email)) {
			s.writeRateLimited(w, "Please wait 1 minute before requesting another reset code.")
			return
		}

		if err := s.idp.ForgotPassword(ctx, req.Email); err != nil {
			if apperrors.Is(err, apperrors.ErrLimitExceeded) {
				writeError(w, http.StatusTooManyRequests, CodeLimitExceeded, "Too many attempts. Please try again later.")
				return
			}
			log.Ctx(ctx).Warn().Err(err).Msg("Forgot password failed")
		}
		writeMessage(w, http.StatusOK, forgotPasswordMessage)
	}
}

func (s *Server) ResetPasswordHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req resetPasswordRequest
		details := decodeRequest(w, r, &req)
		details = passwordDetails(details, req.NewPassword)
		if len(details) > 0 {
			writeError(w, http.StatusBadRequest, CodeValidationError, "Invalid input data", details...)
			return
		}

		ctx := r.Context()
		if err := s.idp.ConfirmForgotPassword(ctx, req.Email, req.Code, req.NewPassword); err != nil {
			log.Ctx(ctx).Err(err).Msg("Reset password failed")
			switch {
			case apperrors.Is(err, apperrors.ErrCodeMismatch):
				writeError(w, http.StatusBadRequest, CodeInvalidCode, "Invalid reset code. Please check and try again.")
			case apperrors.Is(err, apperrors.ErrCodeExpired):
				writeError(w, http.StatusBadRequest, CodeExpiredCode, "Reset code has expired. Please request a new code.")
			case apperrors.Is(err, apperrors.ErrInvalidParameter):
				writeError(w, http.StatusBadRequest, CodeValidationError, "Invalid input data")
			case apperrors.Is(err, apperrors.ErrLimitExceeded):
				writeError(w, http.StatusTooManyRequests, CodeLimitExceeded, "Too many attempts. Please try again later.")
			default:
				writeError(w, http.StatusInternalServerError, CodeResetFailed, "Failed to reset password")
			}
			return
		}
		writeMessage(w, http.StatusOK, "Password reset successfully")
	}
}
