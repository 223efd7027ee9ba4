package token

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/pkg/errors"
)

// KeyPair represents an RSA key pair for signing RS256 tokens
type KeyPair struct {
	KeyID      string
	PrivateKey *rsa.PrivateKey
	PublicKey  *rsa.PublicKey
}

// GenerateRSAKeyPair generates a new RSA key pair for RS256 signing
func GenerateRSAKeyPair(keyID string, bits int) (*KeyPair, error) {
	if bits < 2048 {
		bits = 2048
	}

	privateKey, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return nil, errors.Wrap(err, "failed to generate RSA key")
	}

	return &KeyPair{
		KeyID:      keyID,
		PrivateKey: privateKey,
		PublicKey:  &privateKey.PublicKey,
	}, nil
}

// KeySet exposes the public key to an OIDC verifier without a network round trip
func (kp *KeyPair) KeySet() oidc.KeySet {
	return &oidc.StaticKeySet{PublicKeys: []crypto.PublicKey{kp.PublicKey}}
}
