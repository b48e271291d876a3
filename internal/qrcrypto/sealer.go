package qrcrypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

const keyInfo = "qrpass-payload-v1"

// Strict decoding rejects non-zero padding bits, so no two strings map to the same blob.
var blobEncoding = base64.RawURLEncoding.Strict()

var (
	// ErrEmptySecret is returned when the sealer is built without a secret.
	ErrEmptySecret = errors.New("qrcrypto: empty secret")
	// ErrMalformedBlob is returned for input that is not a sealed blob at all.
	ErrMalformedBlob = errors.New("qrcrypto: malformed blob")
	// ErrOpenFailed is returned when authentication of the ciphertext fails.
	ErrOpenFailed = errors.New("qrcrypto: open failed")
)

// Sealer encrypts payloads with AES-256-GCM under a key derived from the
// process-wide shared secret. Output is base64url(nonce || ciphertext || tag).
type Sealer struct {
	aead cipher.AEAD
}

// NewSealer derives the AES key from secret with HKDF-SHA256.
func NewSealer(secret string) (*Sealer, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}

	key := make([]byte, 32)
	h := hkdf.New(sha256.New, []byte(secret), nil, []byte(keyInfo))
	if _, err := io.ReadFull(h, key); err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &Sealer{aead: aead}, nil
}

// Seal encrypts plaintext with a fresh random nonce.
func (s *Sealer) Seal(plaintext []byte) (string, error) {
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}
	out := s.aead.Seal(nonce, nonce, plaintext, nil)
	return blobEncoding.EncodeToString(out), nil
}

// Open reverses Seal.
func (s *Sealer) Open(blob string) ([]byte, error) {
	raw, err := blobEncoding.DecodeString(blob)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedBlob, err)
	}
	if len(raw) < s.aead.NonceSize()+s.aead.Overhead() {
		return nil, fmt.Errorf("%w: too short", ErrMalformedBlob)
	}

	nonce, ct := raw[:s.aead.NonceSize()], raw[s.aead.NonceSize():]
	plaintext, err := s.aead.Open(nil, nonce, ct, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOpenFailed, err)
	}
	return plaintext, nil
}
