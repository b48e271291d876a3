package events

import "time"

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventQRIssued   EventType = "qr_issued"
	EventQRRedeemed EventType = "qr_redeemed"
	EventQRRevoked  EventType = "qr_revoked"
)

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	TokenID   string      `json:"token_id"`
	UserID    string      `json:"user_id"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// QRIssuedPayload payload.
type QRIssuedPayload struct {
	SupersededTokenID string    `json:"superseded_token_id,omitempty"`
	ExpiresAt         time.Time `json:"expires_at"`
}

// QRRedeemedPayload payload.
type QRRedeemedPayload struct {
	ScannedAt time.Time `json:"scanned_at"`
}
