package token

import (
	"github.com/golang-jwt/jwt/v5"
)

// UnverifiedUsername reads the pool username from a token without checking its signature
// or expiry. It is only used to compute the secret hash on refresh, where the access
// token has usually already expired. Returns "" when nothing usable is found.
func UnverifiedUsername(rawToken string) string {
	if rawToken == "" {
		return ""
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(rawToken, claims); err != nil {
		return ""
	}

	for _, key := range []string{ClaimUsername, ClaimCognitoUsername, "sub"} {
		if s, ok := claims[key].(string); ok && s != "" {
			return s
		}
	}
	return ""
}
