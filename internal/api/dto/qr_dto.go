package dto

import (
	"time"

	"github.com/spec-kit/qrpass-service/internal/domain"
	"github.com/spec-kit/qrpass-service/internal/qrimage"
	"github.com/spec-kit/qrpass-service/internal/service"
)

// GenerateQRRequest payload for issuance. ExpiresAt is optional.
type GenerateQRRequest struct {
	UserID    string     `json:"user_id"`
	ExpiresAt *time.Time `json:"expires_at"`
}

// VerifyQRRequest payload for self-contained verification.
type VerifyQRRequest struct {
	EncryptedPayload string `json:"encrypted_payload"`
}

// SnapshotResponse is the user data embedded in a payload.
type SnapshotResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	BloodType string    `json:"blood_type"`
	Phone     string    `json:"phone"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// GenerateQRResponse is returned by issuance.
type GenerateQRResponse struct {
	TokenID          string           `json:"token_id"`
	EncryptedPayload string           `json:"encrypted_payload"`
	QRContent        string           `json:"qr_content"`
	QRImage          string           `json:"qr_image"`
	ExpiresAt        time.Time        `json:"expires_at"`
	IssuedAt         time.Time        `json:"issued_at"`
	User             SnapshotResponse `json:"user"`
}

// VerifyQRResponse is returned by self-contained verification.
type VerifyQRResponse struct {
	TokenID    string           `json:"token_id"`
	VerifiedAt time.Time        `json:"verified_at"`
	ExpiresAt  time.Time        `json:"expires_at"`
	User       SnapshotResponse `json:"user"`
}

// ScanQRResponse is returned by lookup redemption.
type ScanQRResponse struct {
	ScannedAt time.Time    `json:"scanned_at"`
	User      UserResponse `json:"user"`
	QRInfo    QRInfo       `json:"qr_info"`
}

// QRInfo summarizes the redeemed token.
type QRInfo struct {
	TokenID   string    `json:"token_id"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
	Active    bool      `json:"active"`
}

// QRTokenResponse describes a stored token without its payload.
type QRTokenResponse struct {
	TokenID   string    `json:"token_id"`
	Active    bool      `json:"active"`
	Redeemed  bool      `json:"redeemed"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// QRDetailsResponse is returned by the token details endpoint.
type QRDetailsResponse struct {
	QR   QRTokenResponse `json:"qr"`
	User UserResponse    `json:"user"`
}

func newSnapshotResponse(s domain.UserSnapshot) SnapshotResponse {
	return SnapshotResponse{
		ID:        s.ID,
		Name:      s.Name,
		BloodType: s.BloodType,
		Phone:     s.Phone,
		Role:      string(s.Role),
		CreatedAt: s.CreatedAt,
	}
}

// NewQRTokenResponse maps a stored token.
func NewQRTokenResponse(t domain.QRToken) QRTokenResponse {
	return QRTokenResponse{
		TokenID:   t.TokenID,
		Active:    t.Active,
		Redeemed:  t.Redeemed,
		IssuedAt:  t.IssuedAt,
		ExpiresAt: t.ExpiresAt,
	}
}

// NewGenerateQRResponse maps an issuance result.
func NewGenerateQRResponse(q *service.IssuedQR) GenerateQRResponse {
	return GenerateQRResponse{
		TokenID:          q.TokenID,
		EncryptedPayload: q.Blob,
		QRContent:        q.QRContent,
		QRImage:          qrimage.DataURL(q.PNG),
		ExpiresAt:        q.ExpiresAt,
		IssuedAt:         q.IssuedAt,
		User:             newSnapshotResponse(q.Snapshot),
	}
}

// NewVerifyQRResponse maps a verification result.
func NewVerifyQRResponse(r *service.VerifyResult) VerifyQRResponse {
	return VerifyQRResponse{
		TokenID:    r.TokenID,
		VerifiedAt: r.VerifiedAt,
		ExpiresAt:  r.ExpiresAt,
		User:       newSnapshotResponse(r.User),
	}
}

// NewScanQRResponse maps a scan result.
func NewScanQRResponse(r *service.ScanResult) ScanQRResponse {
	return ScanQRResponse{
		ScannedAt: r.ScannedAt,
		User:      NewUserResponse(r.User),
		QRInfo: QRInfo{
			TokenID:   r.TokenID,
			IssuedAt:  r.IssuedAt,
			ExpiresAt: r.ExpiresAt,
			Active:    r.Active,
		},
	}
}

// NewQRDetailsResponse maps token details.
func NewQRDetailsResponse(d *service.TokenDetails) QRDetailsResponse {
	return QRDetailsResponse{
		QR:   NewQRTokenResponse(d.Token),
		User: NewUserResponse(d.User),
	}
}
