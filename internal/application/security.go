package application

import (
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

var ErrDecrypt = errors.New("ciphertext cannot be decrypted")

// SecurityService encrypts secret setting values with XChaCha20-Poly1305.
// The key is derived from the configured secret with SHA-256.
type SecurityService struct {
	aead cipher.AEAD
}

func NewSecurityService(secret string) (*SecurityService, error) {
	if secret == "" {
		return nil, errors.New("encryption secret is empty")
	}
	key := sha256.Sum256([]byte(secret))
	aead, err := chacha20poly1305.NewX(key[:])
	if err != nil {
		return nil, fmt.Errorf("cipher init: %w", err)
	}
	return &SecurityService{aead: aead}, nil
}

// Encrypt returns base64(nonce || ciphertext). scope is authenticated with
// the ciphertext, which then only decrypts under the same scope.
func (s *SecurityService) Encrypt(plaintext, scope string) (string, error) {
	nonce := make([]byte, s.aead.NonceSize(), s.aead.NonceSize()+len(plaintext)+s.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("nonce: %w", err)
	}
	sealed := s.aead.Seal(nonce, nonce, []byte(plaintext), []byte(scope))
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

func (s *SecurityService) Decrypt(token, scope string) (string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil || len(raw) < s.aead.NonceSize()+s.aead.Overhead() {
		return "", ErrDecrypt
	}
	nonce, sealed := raw[:s.aead.NonceSize()], raw[s.aead.NonceSize():]
	plain, err := s.aead.Open(nil, nonce, sealed, []byte(scope))
	if err != nil {
		return "", ErrDecrypt
	}
	return string(plain), nil
}
