package qrcrypto

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/spec-kit/qrpass-service/internal/domain"
)

// canonicalPayload is the digest input. Field order is fixed by the struct.
type canonicalPayload struct {
	TokenID   string              `json:"token_id"`
	ExpiresAt time.Time           `json:"expires_at"`
	User      domain.UserSnapshot `json:"user"`
}

// NormalizeTime strips location and sub-microsecond precision so a value
// survives a round trip through JSON and Postgres unchanged.
func NormalizeTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

// Canonicalize returns the byte-stable serialization hashed by Digest.
func Canonicalize(tokenID string, expiresAt time.Time, user domain.UserSnapshot) ([]byte, error) {
	user.CreatedAt = NormalizeTime(user.CreatedAt)
	return json.Marshal(canonicalPayload{
		TokenID:   tokenID,
		ExpiresAt: NormalizeTime(expiresAt),
		User:      user,
	})
}

// Digest computes the hex SHA-256 of the canonical payload.
func Digest(tokenID string, expiresAt time.Time, user domain.UserSnapshot) (string, error) {
	data, err := Canonicalize(tokenID, expiresAt, user)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// VerifyDigest recomputes the digest and compares it in constant time.
func VerifyDigest(p domain.QRPayload) (bool, error) {
	want, err := Digest(p.TokenID, p.ExpiresAt, p.User)
	if err != nil {
		return false, err
	}
	return subtle.ConstantTimeCompare([]byte(want), []byte(p.IntegrityHash)) == 1, nil
}
