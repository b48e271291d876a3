package worker

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/qrpass-service/internal/cache"
	"github.com/spec-kit/qrpass-service/internal/events"
)

// StartCacheWorker subscribes image cache eviction to token lifecycle events.
func StartCacheWorker(dispatcher events.Dispatcher, images cache.ImageCache, logger *zap.Logger) {
	if dispatcher == nil || images == nil {
		return
	}

	dispatcher.Subscribe(events.EventQRIssued, func(ctx context.Context, e events.Event) error {
		payload, ok := e.Payload.(events.QRIssuedPayload)
		if !ok || payload.SupersededTokenID == "" {
			return nil
		}
		return evict(ctx, images, logger, payload.SupersededTokenID)
	})

	dispatcher.Subscribe(events.EventQRRevoked, func(ctx context.Context, e events.Event) error {
		return evict(ctx, images, logger, e.TokenID)
	})
}

func evict(ctx context.Context, images cache.ImageCache, logger *zap.Logger, tokenID string) error {
	if err := images.Delete(ctx, tokenID); err != nil {
		logger.Warn("qr image eviction failed", zap.String("token_id", tokenID), zap.Error(err))
		return err
	}
	logger.Debug("qr image evicted", zap.String("token_id", tokenID))
	return nil
}
