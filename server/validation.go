package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/ESHWARGEEK/CodeLearn/users"
	"github.com/go-playground/validator/v10"
)

const maxBodyBytes = 1 << 20

var validate = newValidator()

// normaliser is implemented by requests that clean their fields before validation.
type normaliser interface {
	normalise()
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report fields by their JSON names.
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// decodeRequest reads a JSON body into dst and validates its struct tags.
// It returns one message per problem; nil means dst is usable.
func decodeRequest(w http.ResponseWriter, r *http.Request, dst any) []string {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return []string{"body: must be a JSON object"}
	}
	if n, ok := dst.(normaliser); ok {
		n.normalise()
	}

	err := validate.Struct(dst)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return []string{err.Error()}
	}
	details := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		details = append(details, fieldMessage(fe))
	}
	return details
}

func fieldMessage(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return field + ": is required"
	case "email":
		return field + ": must be a valid email address"
	case "len":
		return fmt.Sprintf("%s: must be exactly %s characters", field, fe.Param())
	case "numeric":
		return field + ": must contain only digits"
	case "max":
		return fmt.Sprintf("%s: must be at most %s characters", field, fe.Param())
	case "eq":
		if field == "acceptTerms" {
			return "acceptTerms: the terms must be accepted"
		}
		return fmt.Sprintf("%s: must equal %s", field, fe.Param())
	default:
		return field + ": is invalid"
	}
}

// passwordDetails appends the password rule violations to details. An empty
// password is already reported as required.
func passwordDetails(details []string, password string) []string {
	if password == "" {
		return details
	}
	return append(details, users.PasswordRuleViolations(password)...)
}

func normaliseEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
