package service

import (
	"crypto/sha256"
	"crypto/subtle"

	"github.com/DanielPopoola/webhook-receiver/internal/core/domain"
)

// Authenticator checks a presented signature against the shared secret.
type Authenticator struct {
	secretDigest [sha256.Size]byte
	configured   bool
}

func NewAuthenticator(secret string) *Authenticator {
	return &Authenticator{
		secretDigest: sha256.Sum256([]byte(secret)),
		configured:   secret != "",
	}
}

// Verify compares digests of both values so the comparison time depends on
// neither the content nor the length of the secret.
func (a *Authenticator) Verify(presented string) error {
	if a == nil || !a.configured || presented == "" {
		return domain.NewInvalidSignatureError()
	}

	digest := sha256.Sum256([]byte(presented))
	if subtle.ConstantTimeCompare(digest[:], a.secretDigest[:]) != 1 {
		return domain.NewInvalidSignatureError()
	}
	return nil
}
