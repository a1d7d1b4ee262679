package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"eventbooking/internal/domain"
)

type bcryptVerifier struct{}

// NewBcryptVerifier returns a SecretVerifier for hashes produced by HashSecret.
func NewBcryptVerifier() domain.SecretVerifier {
	return bcryptVerifier{}
}

// prehash folds the secret to a fixed 64-character input so bcrypt never sees more than 72 bytes.
func prehash(secret string) []byte {
	sum := sha256.Sum256([]byte(secret))
	return []byte(hex.EncodeToString(sum[:]))
}

// HashSecret hashes an organizer secret for storage in users.secret_hash.
func HashSecret(secret string, cost int) (string, error) {
	hash, err := bcrypt.GenerateFromPassword(prehash(secret), cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash secret: %w", err)
	}
	return string(hash), nil
}

func (bcryptVerifier) Verify(providedSecret, storedSecret string) bool {
	if providedSecret == "" || storedSecret == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(storedSecret), prehash(providedSecret)) == nil
}
