package cognito

import (
	"errors"
	"fmt"

	apperrors "github.com/ESHWARGEEK/CodeLearn/internal/errors"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider/types"
	"github.com/aws/smithy-go"
	"github.com/rs/zerolog/log"
)

// mapError translates Cognito exceptions into internal/errors sentinels. NotAuthorized and
// InvalidParameter mean different things depending on the call, so the caller picks them.
// The original error stays in the chain for logging.
func mapError(err error, notAuthorized, invalidParameter error) error {
	var (
		codeMismatch     *types.CodeMismatchException
		expiredCode      *types.ExpiredCodeException
		notAuth          *types.NotAuthorizedException
		limitExceeded    *types.LimitExceededException
		tooMany          *types.TooManyRequestsException
		tooManyAttempts  *types.TooManyFailedAttemptsException
		invalidParam     *types.InvalidParameterException
		invalidPassword  *types.InvalidPasswordException
		usernameExists   *types.UsernameExistsException
		userNotConfirmed *types.UserNotConfirmedException
		userNotFound     *types.UserNotFoundException
	)

	var sentinel error
	switch {
	case errors.As(err, &codeMismatch):
		sentinel = apperrors.ErrCodeMismatch
	case errors.As(err, &expiredCode):
		sentinel = apperrors.ErrCodeExpired
	case errors.As(err, &notAuth):
		sentinel = notAuthorized
	case errors.As(err, &limitExceeded), errors.As(err, &tooMany), errors.As(err, &tooManyAttempts):
		sentinel = apperrors.ErrLimitExceeded
	case errors.As(err, &invalidParam):
		sentinel = invalidParameter
	case errors.As(err, &invalidPassword):
		sentinel = apperrors.ErrInvalidParameter
	case errors.As(err, &usernameExists):
		sentinel = apperrors.ErrUserExists
	case errors.As(err, &userNotConfirmed):
		sentinel = apperrors.ErrUserNotConfirmed
	case errors.As(err, &userNotFound):
		sentinel = apperrors.ErrUserNotFound
	default:
		sentinel = apperrors.ErrInternal
	}

	log.Debug().Err(err).Str("cognito_code", errorCode(err)).Msg("Cognito call failed")
	return fmt.Errorf("%w: %w", sentinel, err)
}

// errorCode returns the Cognito exception name, or "" for non-API errors.
func errorCode(err error) string {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode()
	}
	return ""
}
