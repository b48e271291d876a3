package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/qrpass-service/internal/events"
)

// NotificationService records token lifecycle events in the service log.
type NotificationService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, logger *zap.Logger) *NotificationService {
	return &NotificationService{
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventQRIssued, n.handleQRIssued)
	n.dispatcher.Subscribe(events.EventQRRedeemed, n.handleQRRedeemed)
	n.dispatcher.Subscribe(events.EventQRRevoked, n.handleQRRevoked)
}

func (n *NotificationService) handleQRIssued(_ context.Context, event events.Event) error {
	fields := eventFields(event)
	if payload, ok := event.Payload.(events.QRIssuedPayload); ok {
		fields = append(fields, zap.Time("expires_at", payload.ExpiresAt))
		if payload.SupersededTokenID != "" {
			fields = append(fields, zap.String("superseded_token_id", payload.SupersededTokenID))
		}
	}
	n.logger.Info("QRIssued", fields...)
	return nil
}

func (n *NotificationService) handleQRRedeemed(_ context.Context, event events.Event) error {
	fields := eventFields(event)
	if payload, ok := event.Payload.(events.QRRedeemedPayload); ok {
		fields = append(fields, zap.Time("scanned_at", payload.ScannedAt))
	}
	n.logger.Info("QRRedeemed", fields...)
	return nil
}

func (n *NotificationService) handleQRRevoked(_ context.Context, event events.Event) error {
	n.logger.Info("QRRevoked", eventFields(event)...)
	return nil
}

func eventFields(event events.Event) []zap.Field {
	return []zap.Field{
		zap.String("event_id", event.ID),
		zap.String("token_id", event.TokenID),
		zap.String("user_id", event.UserID),
		zap.Time("timestamp", event.Timestamp),
	}
}
