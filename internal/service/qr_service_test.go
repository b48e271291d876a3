package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/qrpass-service/internal/cache"
	"github.com/spec-kit/qrpass-service/internal/config"
	"github.com/spec-kit/qrpass-service/internal/domain"
	"github.com/spec-kit/qrpass-service/internal/events"
	"github.com/spec-kit/qrpass-service/internal/observability"
	"github.com/spec-kit/qrpass-service/internal/qrcrypto"
	"github.com/spec-kit/qrpass-service/internal/qrimage"
	"github.com/spec-kit/qrpass-service/pkg/util/errorutil"
)

const testUserID = "7b9c1a0e-4a52-4c43-9b1d-1f0e6f3c2a11"

var baseTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func testUser() domain.User {
	return domain.User{
		ID:        testUserID,
		Name:      "Ada Lovelace",
		BloodType: "O-",
		Phone:     "+44 20 7946 0000",
		Role:      domain.UserRoleFull,
		CreatedAt: baseTime.Add(-48 * time.Hour),
	}
}

func testSnapshot() domain.UserSnapshot {
	u := testUser()
	return domain.SnapshotOf(&u)
}

type qrFixture struct {
	svc     *QRService
	store   *memoryStore
	clock   *testClock
	sealer  *qrcrypto.Sealer
	metrics *observability.Metrics
	events  *eventRecorder
}

type qrFixtureOption func(*config.QRConfig, *QRDependencies)

func withMode(mode config.VerifyMode) qrFixtureOption {
	return func(c *config.QRConfig, _ *QRDependencies) { c.VerifyMode = mode }
}

func withStoreCheck() qrFixtureOption {
	return func(c *config.QRConfig, _ *QRDependencies) { c.VerifyCheckStore = true }
}

func withImages(images cache.ImageCache) qrFixtureOption {
	return func(_ *config.QRConfig, d *QRDependencies) { d.Images = images }
}

func newQRFixture(t *testing.T, opts ...qrFixtureOption) *qrFixture {
	t.Helper()

	sealer, err := qrcrypto.NewSealer("test-secret")
	require.NoError(t, err)

	f := &qrFixture{
		store:   newMemoryStore(testUser()),
		clock:   &testClock{now: baseTime},
		sealer:  sealer,
		metrics: observability.NewMetrics(),
		events:  &eventRecorder{},
	}
	dispatcher := events.NewInMemoryDispatcher()
	f.events.subscribe(dispatcher)

	cfg := config.QRConfig{
		Secret:          "test-secret",
		DefaultTTLHours: 24,
		PublicBaseURL:   "https://qr.example.com",
		VerifyMode:      config.VerifyModeLookup,
		ImageSize:       128,
	}
	deps := QRDependencies{
		UserRepo:   f.store,
		TokenRepo:  f.store,
		Sealer:     sealer,
		Renderer:   qrimage.NewRenderer(cfg.ImageSize),
		Dispatcher: dispatcher,
		Metrics:    f.metrics,
		Logger:     zap.NewNop(),
		Clock:      f.clock.Now,
	}
	for _, opt := range opts {
		opt(&cfg, &deps)
	}
	f.svc = NewQRService(cfg, deps)
	return f
}

type eventRecorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *eventRecorder) subscribe(d events.Dispatcher) {
	record := func(_ context.Context, e events.Event) error {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.events = append(r.events, e)
		return nil
	}
	d.Subscribe(events.EventQRIssued, record)
	d.Subscribe(events.EventQRRedeemed, record)
	d.Subscribe(events.EventQRRevoked, record)
}

func (r *eventRecorder) ofType(t events.EventType) []events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []events.Event
	for _, e := range r.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

func TestQRService_IssueVerifyScanScenario(t *testing.T) {
	f := newQRFixture(t)
	ctx := context.Background()

	issued, err := f.svc.Issue(ctx, testUserID, baseTime.Add(24*time.Hour))
	require.NoError(t, err)
	require.NotEmpty(t, issued.TokenID)
	require.NotEmpty(t, issued.Blob)

	f.clock.Set(baseTime.Add(time.Hour))
	verified, err := f.svc.Verify(ctx, issued.Blob)
	require.NoError(t, err)
	assert.Equal(t, testSnapshot(), verified.User)
	assert.Equal(t, issued.TokenID, verified.TokenID)

	f.clock.Set(baseTime.Add(25 * time.Hour))
	_, err = f.svc.Verify(ctx, issued.Blob)
	assert.ErrorIs(t, err, errorutil.ErrExpired)

	f.clock.Set(baseTime.Add(time.Hour))
	scanned, err := f.svc.Scan(ctx, issued.TokenID)
	require.NoError(t, err)
	assert.Equal(t, testUser(), scanned.User)
	assert.Equal(t, baseTime.Add(time.Hour), scanned.ScannedAt)
	assert.True(t, scanned.ExpiresAt.Equal(baseTime.Add(24*time.Hour)))

	stored, err := f.store.GetByTokenID(ctx, issued.TokenID)
	require.NoError(t, err)
	assert.True(t, stored.Redeemed)

	_, err = f.svc.Scan(ctx, issued.TokenID)
	assert.ErrorIs(t, err, errorutil.ErrAlreadyRedeemed)
}

func TestQRService_ScanReturnsLiveUserData(t *testing.T) {
	f := newQRFixture(t)
	ctx := context.Background()

	issued, err := f.svc.Issue(ctx, testUserID, time.Time{})
	require.NoError(t, err)

	updated := testUser()
	updated.Phone = "+1 555 0100"
	f.store.users[testUserID] = updated

	verified, err := f.svc.Verify(ctx, issued.Blob)
	require.NoError(t, err)
	assert.Equal(t, testUser().Phone, verified.User.Phone)

	scanned, err := f.svc.Scan(ctx, issued.TokenID)
	require.NoError(t, err)
	assert.Equal(t, updated.Phone, scanned.User.Phone)
}

func TestQRService_IssueValidation(t *testing.T) {
	f := newQRFixture(t)
	ctx := context.Background()

	tests := []struct {
		name      string
		userID    string
		expiresAt time.Time
		want      error
	}{
		{"empty user id", "  ", baseTime.Add(time.Hour), errorutil.ErrValidation},
		{"non uuid user id", "1", baseTime.Add(time.Hour), errorutil.ErrValidation},
		{"expiry in the past", testUserID, baseTime.Add(-time.Minute), errorutil.ErrValidation},
		{"expiry equal to now", testUserID, baseTime, errorutil.ErrValidation},
		{"unknown user", "00000000-0000-4000-8000-000000000000", baseTime.Add(time.Hour), errorutil.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Issue(ctx, tt.userID, tt.expiresAt)
			assert.ErrorIs(t, err, tt.want)
		})
	}
	assert.Empty(t, f.store.tokens)
}

func TestQRService_IssueDefaultsExpiry(t *testing.T) {
	f := newQRFixture(t)

	issued, err := f.svc.Issue(context.Background(), testUserID, time.Time{})
	require.NoError(t, err)
	assert.True(t, issued.ExpiresAt.Equal(baseTime.Add(24*time.Hour)))
}

func TestQRService_IssueContentFollowsMode(t *testing.T) {
	ctx := context.Background()

	lookup := newQRFixture(t)
	issued, err := lookup.svc.Issue(ctx, testUserID, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, "https://qr.example.com/api/qr/scan/"+issued.TokenID, issued.QRContent)
	assert.NotEmpty(t, issued.PNG)

	selfContained := newQRFixture(t, withMode(config.VerifyModeSelfContained))
	issued, err = selfContained.svc.Issue(ctx, testUserID, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, issued.Blob, issued.QRContent)
	assert.NotEmpty(t, issued.PNG)
}

func TestQRService_VerifyExpiredBeforeIntegrity(t *testing.T) {
	f := newQRFixture(t)
	ctx := context.Background()

	snapshot := testSnapshot()
	blob := sealPayload(t, f.sealer, domain.QRPayload{
		TokenID:       "tok-1",
		ExpiresAt:     baseTime.Add(time.Hour),
		User:          snapshot,
		IntegrityHash: "0000",
	})

	_, err := f.svc.Verify(ctx, blob)
	assert.ErrorIs(t, err, errorutil.ErrIntegrityFailed)

	f.clock.Set(baseTime.Add(2 * time.Hour))
	_, err = f.svc.Verify(ctx, blob)
	assert.ErrorIs(t, err, errorutil.ErrExpired)
}

func TestQRService_VerifyRejectsEveryMutation(t *testing.T) {
	f := newQRFixture(t)
	ctx := context.Background()

	issued, err := f.svc.Issue(ctx, testUserID, time.Time{})
	require.NoError(t, err)

	for i := range issued.Blob {
		mutated := []byte(issued.Blob)
		if mutated[i] == 'A' {
			mutated[i] = 'B'
		} else {
			mutated[i] = 'A'
		}

		_, err := f.svc.Verify(ctx, string(mutated))
		require.Error(t, err, "mutation at %d accepted", i)
		ok := errors.Is(err, errorutil.ErrDecryptionFailed) || errors.Is(err, errorutil.ErrIntegrityFailed)
		assert.True(t, ok, "mutation at %d: unexpected error %v", i, err)
	}
}

func TestQRService_VerifyMalformed(t *testing.T) {
	f := newQRFixture(t)
	ctx := context.Background()

	notJSON, err := f.sealer.Seal([]byte("not json"))
	require.NoError(t, err)
	empty, err := f.sealer.Seal([]byte("{}"))
	require.NoError(t, err)
	otherSealer, err := qrcrypto.NewSealer("other-secret")
	require.NoError(t, err)
	foreign, err := otherSealer.Seal([]byte("{}"))
	require.NoError(t, err)

	tests := []struct {
		name string
		blob string
		want error
	}{
		{"empty", "", errorutil.ErrValidation},
		{"not base64", "%%%", errorutil.ErrDecryptionFailed},
		{"wrong secret", foreign, errorutil.ErrDecryptionFailed},
		{"not json", notJSON, errorutil.ErrMalformedPayload},
		{"missing fields", empty, errorutil.ErrMalformedPayload},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Verify(ctx, tt.blob)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestQRService_ReissueSupersedesPreviousToken(t *testing.T) {
	ctx := context.Background()

	t.Run("lookup forgets old token id", func(t *testing.T) {
		f := newQRFixture(t)
		first, err := f.svc.Issue(ctx, testUserID, time.Time{})
		require.NoError(t, err)
		second, err := f.svc.Issue(ctx, testUserID, time.Time{})
		require.NoError(t, err)

		_, err = f.svc.Scan(ctx, first.TokenID)
		assert.ErrorIs(t, err, errorutil.ErrNotFound)
		_, err = f.svc.Scan(ctx, second.TokenID)
		assert.NoError(t, err)

		issuedEvents := f.events.ofType(events.EventQRIssued)
		require.Len(t, issuedEvents, 2)
		payload, ok := issuedEvents[1].Payload.(events.QRIssuedPayload)
		require.True(t, ok)
		assert.Equal(t, first.TokenID, payload.SupersededTokenID)
	})

	t.Run("old blob stays valid without store check", func(t *testing.T) {
		f := newQRFixture(t, withMode(config.VerifyModeSelfContained))
		first, err := f.svc.Issue(ctx, testUserID, time.Time{})
		require.NoError(t, err)
		_, err = f.svc.Issue(ctx, testUserID, time.Time{})
		require.NoError(t, err)

		_, err = f.svc.Verify(ctx, first.Blob)
		assert.NoError(t, err)
	})

	t.Run("old blob rejected with store check", func(t *testing.T) {
		f := newQRFixture(t, withMode(config.VerifyModeSelfContained), withStoreCheck())
		first, err := f.svc.Issue(ctx, testUserID, time.Time{})
		require.NoError(t, err)
		second, err := f.svc.Issue(ctx, testUserID, time.Time{})
		require.NoError(t, err)

		_, err = f.svc.Verify(ctx, first.Blob)
		assert.ErrorIs(t, err, errorutil.ErrNotFound)
		_, err = f.svc.Verify(ctx, second.Blob)
		assert.NoError(t, err)
	})
}

func TestQRService_ScanEdgeCases(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown token", func(t *testing.T) {
		f := newQRFixture(t)
		_, err := f.svc.Scan(ctx, "missing")
		assert.ErrorIs(t, err, errorutil.ErrNotFound)
	})

	t.Run("empty token", func(t *testing.T) {
		f := newQRFixture(t)
		_, err := f.svc.Scan(ctx, "")
		assert.ErrorIs(t, err, errorutil.ErrValidation)
	})

	t.Run("expired at exactly expiresAt", func(t *testing.T) {
		f := newQRFixture(t)
		issued, err := f.svc.Issue(ctx, testUserID, baseTime.Add(time.Hour))
		require.NoError(t, err)

		f.clock.Set(baseTime.Add(time.Hour))
		_, err = f.svc.Scan(ctx, issued.TokenID)
		assert.ErrorIs(t, err, errorutil.ErrExpired)
	})

	t.Run("revoked token", func(t *testing.T) {
		f := newQRFixture(t)
		issued, err := f.svc.Issue(ctx, testUserID, time.Time{})
		require.NoError(t, err)
		require.NoError(t, f.svc.Revoke(ctx, issued.TokenID))

		_, err = f.svc.Scan(ctx, issued.TokenID)
		assert.ErrorIs(t, err, errorutil.ErrNotFound)
		assert.Len(t, f.events.ofType(events.EventQRRevoked), 1)
	})

	t.Run("revoke unknown token", func(t *testing.T) {
		f := newQRFixture(t)
		err := f.svc.Revoke(ctx, "missing")
		assert.ErrorIs(t, err, errorutil.ErrNotFound)
	})
}

func TestQRService_ConcurrentScansRedeemOnce(t *testing.T) {
	f := newQRFixture(t)
	ctx := context.Background()

	issued, err := f.svc.Issue(ctx, testUserID, time.Time{})
	require.NoError(t, err)

	const workers = 16
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		redeemed  int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Scan(ctx, issued.TokenID)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, errorutil.ErrAlreadyRedeemed):
				redeemed++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, workers-1, redeemed)
	assert.Len(t, f.events.ofType(events.EventQRRedeemed), 1)
}

func TestQRService_ScanLosesRedeemRace(t *testing.T) {
	users := new(MockUserRepository)
	tokens := new(MockQRTokenRepository)
	user := testUser()
	record := &domain.QRToken{TokenID: "tok-1", UserID: testUserID, ExpiresAt: baseTime.Add(time.Hour), Active: true}

	tokens.On("GetByTokenID", mock.Anything, "tok-1").Return(record, nil)
	users.On("GetByID", mock.Anything, testUserID).Return(&user, nil)
	tokens.On("MarkRedeemed", mock.Anything, "tok-1").Return(false, nil)

	svc := NewQRService(config.QRConfig{VerifyMode: config.VerifyModeLookup}, QRDependencies{
		UserRepo:  users,
		TokenRepo: tokens,
		Clock:     func() time.Time { return baseTime },
	})

	_, err := svc.Scan(context.Background(), "tok-1")
	assert.ErrorIs(t, err, errorutil.ErrAlreadyRedeemed)
	tokens.AssertExpectations(t)
	users.AssertExpectations(t)
}

func TestQRService_StoreFailuresAreInternal(t *testing.T) {
	boom := errors.New("connection reset")
	tokens := new(MockQRTokenRepository)
	tokens.On("GetByTokenID", mock.Anything, "tok-1").Return(nil, boom)
	tokens.On("Deactivate", mock.Anything, "tok-1").Return(boom)

	svc := NewQRService(config.QRConfig{}, QRDependencies{TokenRepo: tokens})

	_, err := svc.Scan(context.Background(), "tok-1")
	assert.ErrorIs(t, err, errorutil.ErrInternal)
	assert.ErrorIs(t, err, boom)

	err = svc.Revoke(context.Background(), "tok-1")
	assert.ErrorIs(t, err, errorutil.ErrInternal)
}

func TestQRService_Details(t *testing.T) {
	f := newQRFixture(t)
	ctx := context.Background()

	issued, err := f.svc.Issue(ctx, testUserID, time.Time{})
	require.NoError(t, err)

	details, err := f.svc.Details(ctx, issued.TokenID)
	require.NoError(t, err)
	assert.Equal(t, testUserID, details.User.ID)
	assert.True(t, details.Token.Active)
	assert.False(t, details.Token.Redeemed)

	_, err = f.svc.Details(ctx, "missing")
	assert.ErrorIs(t, err, errorutil.ErrNotFound)
}

func TestQRService_ImageUsesCache(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	f := newQRFixture(t, withImages(cache.NewImageCache(client)))
	ctx := context.Background()

	issued, err := f.svc.Issue(ctx, testUserID, baseTime.Add(2*time.Hour))
	require.NoError(t, err)
	assert.True(t, mr.Exists("qr:image:"+issued.TokenID))
	assert.Equal(t, 2*time.Hour, mr.TTL("qr:image:"+issued.TokenID))

	mr.Del("qr:image:" + issued.TokenID)
	png, err := f.svc.Image(ctx, issued.TokenID)
	require.NoError(t, err)
	assert.Equal(t, issued.PNG, png)
	assert.True(t, mr.Exists("qr:image:"+issued.TokenID))

	require.NoError(t, mr.Set("qr:image:"+issued.TokenID, "cached"))
	png, err = f.svc.Image(ctx, issued.TokenID)
	require.NoError(t, err)
	assert.Equal(t, []byte("cached"), png)

	require.NoError(t, f.svc.Revoke(ctx, issued.TokenID))
	_, err = f.svc.Image(ctx, issued.TokenID)
	assert.ErrorIs(t, err, errorutil.ErrNotFound)
}

func TestQRService_RecordsRedemptionMetrics(t *testing.T) {
	f := newQRFixture(t)
	ctx := context.Background()

	issued, err := f.svc.Issue(ctx, testUserID, time.Time{})
	require.NoError(t, err)
	_, err = f.svc.Scan(ctx, issued.TokenID)
	require.NoError(t, err)
	_, err = f.svc.Scan(ctx, issued.TokenID)
	require.Error(t, err)

	count, err := testutil.GatherAndCount(f.metrics.Registry(), "qrpass_qr_redemptions_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	issuedCount, err := testutil.GatherAndCount(f.metrics.Registry(), "qrpass_qr_issued_total")
	require.NoError(t, err)
	assert.Equal(t, 1, issuedCount)
}

func sealPayload(t *testing.T, sealer *qrcrypto.Sealer, payload domain.QRPayload) string {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	blob, err := sealer.Seal(raw)
	require.NoError(t, err)
	return blob
}
