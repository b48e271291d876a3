package worker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"github.com/spec-kit/qrpass-service/internal/events"
)

type mockImageCache struct {
	mock.Mock
}

func (m *mockImageCache) Get(ctx context.Context, tokenID string) ([]byte, bool, error) {
	args := m.Called(ctx, tokenID)
	return nil, args.Bool(1), args.Error(2)
}

func (m *mockImageCache) Set(ctx context.Context, tokenID string, png []byte, ttl time.Duration) error {
	return m.Called(ctx, tokenID, png, ttl).Error(0)
}

func (m *mockImageCache) Delete(ctx context.Context, tokenIDs ...string) error {
	return m.Called(ctx, tokenIDs).Error(0)
}

func TestCacheWorker_EvictsSupersededToken(t *testing.T) {
	d := events.NewInMemoryDispatcher()
	images := new(mockImageCache)
	images.On("Delete", mock.Anything, []string{"old"}).Return(nil).Once()

	StartCacheWorker(d, images, zap.NewNop())
	err := d.Publish(context.Background(), events.Event{
		Type:    events.EventQRIssued,
		TokenID: "new",
		Payload: events.QRIssuedPayload{SupersededTokenID: "old"},
	})

	assert.NoError(t, err)
	images.AssertExpectations(t)
}

func TestCacheWorker_FirstIssuanceEvictsNothing(t *testing.T) {
	d := events.NewInMemoryDispatcher()
	images := new(mockImageCache)

	StartCacheWorker(d, images, zap.NewNop())
	err := d.Publish(context.Background(), events.Event{
		Type:    events.EventQRIssued,
		TokenID: "new",
		Payload: events.QRIssuedPayload{},
	})

	assert.NoError(t, err)
	images.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
}

func TestCacheWorker_EvictsRevokedToken(t *testing.T) {
	d := events.NewInMemoryDispatcher()
	images := new(mockImageCache)
	images.On("Delete", mock.Anything, []string{"tok"}).Return(nil).Once()

	StartCacheWorker(d, images, zap.NewNop())
	assert.NoError(t, d.Publish(context.Background(), events.Event{Type: events.EventQRRevoked, TokenID: "tok"}))

	images.AssertExpectations(t)
}
