package service

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// sealVersion prefixes every ciphertext so a future key rotation can tell
// which key sealed a stored bank snapshot.
const sealVersion = "v1:"

var errUnknownSealVersion = errors.New("unknown seal version")

// AESEncryptionService implements ports.EncryptionService with AES-256-GCM.
// The binding passed to Encrypt is authenticated as associated data, so a
// snapshot sealed for one user does not open for another.
type AESEncryptionService struct {
	aead cipher.AEAD
}

// NewAESEncryptionService takes the key as 64 hex characters.
func NewAESEncryptionService(hexKey string) (*AESEncryptionService, error) {
	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("decoding AES key: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("AES key must be 32 bytes, got %d", len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("creating cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("creating GCM: %w", err)
	}
	return &AESEncryptionService{aead: aead}, nil
}

// Encrypt returns "v1:" + hex(nonce || ciphertext).
func (s *AESEncryptionService) Encrypt(plaintext, binding string) (string, error) {
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generating nonce: %w", err)
	}
	sealed := s.aead.Seal(nonce, nonce, []byte(plaintext), []byte(binding))
	return sealVersion + hex.EncodeToString(sealed), nil
}

// Decrypt opens a value from Encrypt; binding must match the one used to seal it.
func (s *AESEncryptionService) Decrypt(ciphertext, binding string) (string, error) {
	body, ok := strings.CutPrefix(ciphertext, sealVersion)
	if !ok {
		return "", errUnknownSealVersion
	}
	sealed, err := hex.DecodeString(body)
	if err != nil {
		return "", fmt.Errorf("decoding ciphertext: %w", err)
	}

	n := s.aead.NonceSize()
	if len(sealed) < n+s.aead.Overhead() {
		return "", errors.New("ciphertext too short")
	}
	plaintext, err := s.aead.Open(nil, sealed[:n], sealed[n:], []byte(binding))
	if err != nil {
		return "", fmt.Errorf("opening sealed value: %w", err)
	}
	return string(plaintext), nil
}
