package users

import (
	"errors"
	"unicode"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"
)

const MinPasswordLength = 8

const (
	MsgPasswordTooShort = "Password must be at least 8 characters"
	MsgPasswordNoUpper  = "Password must contain at least one uppercase letter"
	MsgPasswordNoLower  = "Password must contain at least one lowercase letter"
	MsgPasswordNoNumber = "Password must contain at least one number"
)

// PasswordRuleViolations returns one message per failed rule, in a fixed order.
// An empty result means the password is acceptable.
func PasswordRuleViolations(password string) []string {
	var (
		hasUpper  bool
		hasLower  bool
		hasNumber bool
	)

	for _, char := range password {
		switch {
		case unicode.IsUpper(char):
			hasUpper = true
		case unicode.IsLower(char):
			hasLower = true
		case unicode.IsDigit(char):
			hasNumber = true
		}
	}

	var violations []string
	if utf8.RuneCountInString(password) < MinPasswordLength {
		violations = append(violations, MsgPasswordTooShort)
	}
	if !hasUpper {
		violations = append(violations, MsgPasswordNoUpper)
	}
	if !hasLower {
		violations = append(violations, MsgPasswordNoLower)
	}
	if !hasNumber {
		violations = append(violations, MsgPasswordNoNumber)
	}
	return violations
}

// ValidatePasswordStrength checks if password meets the pool policy:
// - At least 8 characters long
// - Contains uppercase and lowercase letters
// - Contains at least one number
func ValidatePasswordStrength(password string) error {
	if v := PasswordRuleViolations(password); len(v) > 0 {
		return errors.New(v[0])
	}
	return nil
}

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}
