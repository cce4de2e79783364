package service

import (
	"bytes"
	"encoding/hex"
	"errors"
	"strings"
	"testing"
	"testing/iotest"
)

func TestGenerateKey(t *testing.T) {
	gen := NewKeyGenerator(nil)

	plain, digest, err := gen.Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(plain) != 64 {
		t.Errorf("plaintext length = %d, want 64", len(plain))
	}
	if _, err := hex.DecodeString(plain); err != nil {
		t.Errorf("plaintext is not hex: %v", err)
	}
	if digest != HashAPIKey(plain) {
		t.Errorf("digest %q does not match HashAPIKey(plaintext)", digest)
	}
	if digest != strings.ToLower(digest) || len(digest) != 64 {
		t.Errorf("digest %q should be 64 lowercase hex chars", digest)
	}

	plain2, _, err := gen.Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if plain == plain2 {
		t.Error("two generated keys should differ")
	}
}

func TestGenerateKeyDeterministicEntropy(t *testing.T) {
	gen := NewKeyGenerator(bytes.NewReader(bytes.Repeat([]byte{0xab}, KeySize)))

	plain, _, err := gen.Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if want := strings.Repeat("ab", KeySize); plain != want {
		t.Errorf("got %q, want %q", plain, want)
	}
}

func TestGenerateKeyEntropyFailure(t *testing.T) {
	tests := []struct {
		name string
		gen  *KeyGenerator
	}{
		{"short read", NewKeyGenerator(bytes.NewReader(make([]byte, KeySize-1)))},
		{"read error", NewKeyGenerator(iotest.ErrReader(errors.New("no entropy")))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plain, digest, err := tt.gen.Generate()
			if !errors.Is(err, ErrEntropyUnavailable) {
				t.Fatalf("expected ErrEntropyUnavailable, got %v", err)
			}
			if plain != "" || digest != "" {
				t.Errorf("expected no secret on failure, got %q/%q", plain, digest)
			}
		})
	}
}

func TestHashAPIKey(t *testing.T) {
	// sha256("abc")
	want := "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"
	if got := HashAPIKey("abc"); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}
