package domain

import "time"

// QRToken is the stored record of the most recent code issued for a user.
// There is at most one row per user; re-issuance overwrites it.
type QRToken struct {
	ID               string
	TokenID          string
	UserID           string
	EncryptedPayload string
	IntegrityHash    string
	ExpiresAt        time.Time
	Active           bool
	Redeemed         bool
	IssuedAt         time.Time
	UpdatedAt        time.Time
}

// IsExpired reports whether the token can no longer be redeemed at now.
func (t *QRToken) IsExpired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// UserSnapshot is the point-in-time copy of a user embedded in a payload.
// Field order is part of the digest input and must not change.
type UserSnapshot struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	BloodType string    `json:"blood_type"`
	Phone     string    `json:"phone"`
	Role      UserRole  `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// SnapshotOf copies the fields of u that travel inside a QR payload.
func SnapshotOf(u *User) UserSnapshot {
	return UserSnapshot{
		ID:        u.ID,
		Name:      u.Name,
		BloodType: u.BloodType,
		Phone:     u.Phone,
		Role:      u.Role,
		CreatedAt: u.CreatedAt,
	}
}

// QRPayload is the self-contained unit sealed into the encrypted blob.
type QRPayload struct {
	TokenID       string       `json:"token_id"`
	ExpiresAt     time.Time    `json:"expires_at"`
	User          UserSnapshot `json:"user"`
	IntegrityHash string       `json:"integrity_hash"`
}
