package service

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
)

// KeySize is the number of random bytes behind every API key.
const KeySize = 32

// KeyGenerator produces API key secrets and their digests.
type KeyGenerator struct {
	entropy io.Reader
}

// NewKeyGenerator returns a generator reading from entropy, or from
// crypto/rand when entropy is nil.
func NewKeyGenerator(entropy io.Reader) *KeyGenerator {
	if entropy == nil {
		entropy = rand.Reader
	}
	return &KeyGenerator{entropy: entropy}
}

// Generate returns a fresh 64 character hex secret and its SHA-256 digest.
// It never returns a partially random secret.
func (g *KeyGenerator) Generate() (plaintext, digest string, err error) {
	buf := make([]byte, KeySize)
	if _, err := io.ReadFull(g.entropy, buf); err != nil {
		return "", "", fmt.Errorf("%w: %w", ErrEntropyUnavailable, err)
	}
	plaintext = hex.EncodeToString(buf)
	return plaintext, HashAPIKey(plaintext), nil
}

// HashAPIKey returns the lowercase hex SHA-256 of a raw API key string.
func HashAPIKey(rawKey string) string {
	h := sha256.Sum256([]byte(rawKey))
	return hex.EncodeToString(h[:])
}
