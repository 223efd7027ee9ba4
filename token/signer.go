package token

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// Signer signs and parses RS256 tokens with a single key pair
type Signer struct {
	keyPair *KeyPair
}

func NewSigner(keyPair *KeyPair) *Signer {
	return &Signer{
		keyPair: keyPair,
	}
}

func (s *Signer) Sign(claims jwt.MapClaims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = s.keyPair.KeyID

	signedToken, err := token.SignedString(s.keyPair.PrivateKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signedToken, nil
}

// Parse verifies the signature and standard time claims and returns the claims
func (s *Signer) Parse(rawToken string) (jwt.MapClaims, error) {
	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(rawToken, claims, s.verificationKey, jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}))
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, fmt.Errorf("token is not valid")
	}
	return claims, nil
}

func (s *Signer) verificationKey(token *jwt.Token) (any, error) {
	if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
		return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
	}
	return s.keyPair.PublicKey, nil
}

func (s *Signer) KeyPair() *KeyPair {
	return s.keyPair
}
