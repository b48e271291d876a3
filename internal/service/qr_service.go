package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/qrpass-service/internal/cache"
	"github.com/spec-kit/qrpass-service/internal/config"
	"github.com/spec-kit/qrpass-service/internal/domain"
	"github.com/spec-kit/qrpass-service/internal/events"
	"github.com/spec-kit/qrpass-service/internal/observability"
	"github.com/spec-kit/qrpass-service/internal/qrcrypto"
	"github.com/spec-kit/qrpass-service/internal/qrimage"
	"github.com/spec-kit/qrpass-service/internal/repository"
	"github.com/spec-kit/qrpass-service/pkg/util/errorutil"
)

const (
	flowVerify = "verify"
	flowScan   = "scan"
)

// QRService issues QR tokens and redeems them through either verification flow.
type QRService struct {
	users      repository.UserRepository
	tokens     repository.QRTokenRepository
	sealer     *qrcrypto.Sealer
	renderer   *qrimage.Renderer
	images     cache.ImageCache
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger
	cfg        config.QRConfig
	now        func() time.Time
}

// QRDependencies bundles collaborators for the QR service.
type QRDependencies struct {
	UserRepo   repository.UserRepository
	TokenRepo  repository.QRTokenRepository
	Sealer     *qrcrypto.Sealer
	Renderer   *qrimage.Renderer
	Images     cache.ImageCache
	Dispatcher events.Dispatcher
	Metrics    *observability.Metrics
	Logger     *zap.Logger
	// Clock defaults to time.Now.
	Clock func() time.Time
}

// IssuedQR is the result of a successful issuance.
type IssuedQR struct {
	TokenID   string
	Blob      string
	ExpiresAt time.Time
	IssuedAt  time.Time
	QRContent string
	PNG       []byte
	Snapshot  domain.UserSnapshot
}

// VerifyResult is the outcome of self-contained verification. User is the
// snapshot taken at issuance and may be stale.
type VerifyResult struct {
	TokenID    string
	ExpiresAt  time.Time
	VerifiedAt time.Time
	User       domain.UserSnapshot
}

// ScanResult is the outcome of a lookup redemption, carrying live user data.
type ScanResult struct {
	User      domain.User
	TokenID   string
	ScannedAt time.Time
	IssuedAt  time.Time
	ExpiresAt time.Time
	Active    bool
}

// TokenDetails is a read-only view of a stored token and its owner.
type TokenDetails struct {
	Token domain.QRToken
	User  domain.User
}

// NewQRService constructs the service.
func NewQRService(cfg config.QRConfig, deps QRDependencies) *QRService {
	s := &QRService{
		users:      deps.UserRepo,
		tokens:     deps.TokenRepo,
		sealer:     deps.Sealer,
		renderer:   deps.Renderer,
		images:     deps.Images,
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		logger:     deps.Logger,
		cfg:        cfg,
		now:        deps.Clock,
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.images == nil {
		s.images = cache.NewImageCache(nil)
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s
}

// Issue creates a new token for the user, replacing any previous one.
// A zero expiresAt means the configured default lifetime.
func (s *QRService) Issue(ctx context.Context, userID string, expiresAt time.Time) (*IssuedQR, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, errorutil.NewValidationError("userId is required", nil)
	}
	if _, err := uuid.Parse(userID); err != nil {
		return nil, errorutil.NewValidationError("userId must be a UUID", map[string]any{"userId": userID})
	}

	now := s.now()
	if expiresAt.IsZero() {
		expiresAt = now.Add(s.cfg.DefaultTTL())
	}
	expiresAt = qrcrypto.NormalizeTime(expiresAt)
	if !expiresAt.After(now) {
		return nil, errorutil.NewValidationError("expiresAt must be in the future", map[string]any{"expiresAt": expiresAt})
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, notFoundOrInternal(err, "user", userID)
	}

	tokenID := uuid.NewString()
	snapshot := domain.SnapshotOf(user)
	snapshot.CreatedAt = qrcrypto.NormalizeTime(snapshot.CreatedAt)

	hash, err := qrcrypto.Digest(tokenID, expiresAt, snapshot)
	if err != nil {
		return nil, errorutil.NewInternalError(err)
	}
	plaintext, err := json.Marshal(domain.QRPayload{
		TokenID:       tokenID,
		ExpiresAt:     expiresAt,
		User:          snapshot,
		IntegrityHash: hash,
	})
	if err != nil {
		return nil, errorutil.NewInternalError(err)
	}
	blob, err := s.sealer.Seal(plaintext)
	if err != nil {
		return nil, errorutil.NewInternalError(err)
	}

	record := &domain.QRToken{
		TokenID:          tokenID,
		UserID:           user.ID,
		EncryptedPayload: blob,
		IntegrityHash:    hash,
		ExpiresAt:        expiresAt,
	}
	previous, err := s.tokens.Upsert(ctx, record)
	if err != nil {
		return nil, errorutil.NewInternalError(err)
	}

	content := s.contentFor(record)
	png, err := s.renderer.PNG(content)
	if err != nil {
		return nil, errorutil.NewInternalError(err)
	}
	s.cacheImage(ctx, tokenID, png, expiresAt.Sub(now))

	s.metrics.RecordIssued()
	s.logger.Info("qr issued",
		zap.String("token_id", tokenID),
		zap.String("user_id", user.ID),
		zap.Time("expires_at", expiresAt),
		zap.String("superseded_token_id", previous),
	)
	s.publishEvent(ctx, events.Event{
		Type:    events.EventQRIssued,
		TokenID: tokenID,
		UserID:  user.ID,
		Payload: events.QRIssuedPayload{SupersededTokenID: previous, ExpiresAt: expiresAt},
	})

	return &IssuedQR{
		TokenID:   tokenID,
		Blob:      blob,
		ExpiresAt: expiresAt,
		IssuedAt:  record.IssuedAt,
		QRContent: content,
		PNG:       png,
		Snapshot:  snapshot,
	}, nil
}

// Verify redeems a self-contained blob. Expiry is checked before the digest so
// an expired code always reports Expired. The store is consulted only when
// QR_VERIFY_CHECK_STORE is enabled; otherwise a superseded blob stays valid
// until it expires.
func (s *QRService) Verify(ctx context.Context, blob string) (result *VerifyResult, err error) {
	defer s.observeRedemption(flowVerify, &err)

	blob = strings.TrimSpace(blob)
	if blob == "" {
		return nil, errorutil.NewValidationError("encrypted payload is required", nil)
	}

	plaintext, err := s.sealer.Open(blob)
	if err != nil {
		return nil, errorutil.NewDecryptionFailed(err)
	}

	var payload domain.QRPayload
	if err := json.Unmarshal(plaintext, &payload); err != nil {
		return nil, errorutil.NewMalformedPayload("payload is not valid JSON")
	}
	if reason := missingPayloadField(payload); reason != "" {
		return nil, errorutil.NewMalformedPayload(reason)
	}

	now := s.now()
	if !now.Before(payload.ExpiresAt) {
		return nil, errorutil.NewExpired()
	}

	ok, err := qrcrypto.VerifyDigest(payload)
	if err != nil {
		return nil, errorutil.NewInternalError(err)
	}
	if !ok {
		s.logger.Warn("qr integrity check failed", zap.String("token_id", payload.TokenID))
		return nil, errorutil.NewIntegrityFailed()
	}

	if s.cfg.VerifyCheckStore {
		record, err := s.tokens.GetByTokenID(ctx, payload.TokenID)
		if err != nil {
			return nil, notFoundOrInternal(err, "qr token", payload.TokenID)
		}
		if !record.Active {
			return nil, errorutil.NewNotFound("qr token", map[string]any{"id": payload.TokenID})
		}
	}

	s.logger.Info("qr verified", zap.String("token_id", payload.TokenID), zap.String("user_id", payload.User.ID))
	return &VerifyResult{
		TokenID:    payload.TokenID,
		ExpiresAt:  payload.ExpiresAt,
		VerifiedAt: now,
		User:       payload.User,
	}, nil
}

// Scan redeems a token by id against the store. Each token redeems once; a
// concurrent second scan loses the conditional update and reports AlreadyRedeemed.
func (s *QRService) Scan(ctx context.Context, tokenID string) (result *ScanResult, err error) {
	defer s.observeRedemption(flowScan, &err)

	tokenID = strings.TrimSpace(tokenID)
	if tokenID == "" {
		return nil, errorutil.NewValidationError("tokenId is required", nil)
	}

	record, err := s.activeToken(ctx, tokenID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if record.IsExpired(now) {
		return nil, errorutil.NewExpired()
	}
	if record.Redeemed {
		return nil, errorutil.NewAlreadyRedeemed()
	}

	user, err := s.users.GetByID(ctx, record.UserID)
	if err != nil {
		return nil, notFoundOrInternal(err, "user", record.UserID)
	}

	redeemed, err := s.tokens.MarkRedeemed(ctx, tokenID)
	if err != nil {
		return nil, errorutil.NewInternalError(err)
	}
	if !redeemed {
		return nil, errorutil.NewAlreadyRedeemed()
	}

	s.logger.Info("qr scanned", zap.String("token_id", tokenID), zap.String("user_id", user.ID))
	s.publishEvent(ctx, events.Event{
		Type:    events.EventQRRedeemed,
		TokenID: tokenID,
		UserID:  user.ID,
		Payload: events.QRRedeemedPayload{ScannedAt: now},
	})

	return &ScanResult{
		User:      *user,
		TokenID:   tokenID,
		ScannedAt: now,
		IssuedAt:  record.IssuedAt,
		ExpiresAt: record.ExpiresAt,
		Active:    record.Active,
	}, nil
}

// Details returns token metadata and its owner without redeeming it.
func (s *QRService) Details(ctx context.Context, tokenID string) (*TokenDetails, error) {
	record, err := s.tokens.GetByTokenID(ctx, tokenID)
	if err != nil {
		return nil, notFoundOrInternal(err, "qr token", tokenID)
	}
	user, err := s.users.GetByID(ctx, record.UserID)
	if err != nil {
		return nil, notFoundOrInternal(err, "user", record.UserID)
	}
	return &TokenDetails{Token: *record, User: *user}, nil
}

// Image returns the PNG for an active token, rendering and caching it on a miss.
func (s *QRService) Image(ctx context.Context, tokenID string) ([]byte, error) {
	record, err := s.activeToken(ctx, tokenID)
	if err != nil {
		return nil, err
	}

	if png, ok, err := s.images.Get(ctx, tokenID); err != nil {
		s.logger.Warn("qr image cache read failed", zap.String("token_id", tokenID), zap.Error(err))
	} else if ok {
		return png, nil
	}

	png, err := s.renderer.PNG(s.contentFor(record))
	if err != nil {
		return nil, errorutil.NewInternalError(err)
	}
	s.cacheImage(ctx, tokenID, png, record.ExpiresAt.Sub(s.now()))
	return png, nil
}

// Revoke deactivates a token. Lookup scans and store-checked verification
// treat it as unknown afterwards.
func (s *QRService) Revoke(ctx context.Context, tokenID string) error {
	if err := s.tokens.Deactivate(ctx, tokenID); err != nil {
		return notFoundOrInternal(err, "qr token", tokenID)
	}
	s.logger.Info("qr revoked", zap.String("token_id", tokenID))
	s.publishEvent(ctx, events.Event{
		Type:    events.EventQRRevoked,
		TokenID: tokenID,
	})
	return nil
}

// VerifyMode reports which redemption flow the deployment exposes.
func (s *QRService) VerifyMode() config.VerifyMode {
	return s.cfg.VerifyMode
}

func (s *QRService) activeToken(ctx context.Context, tokenID string) (*domain.QRToken, error) {
	record, err := s.tokens.GetByTokenID(ctx, tokenID)
	if err != nil {
		return nil, notFoundOrInternal(err, "qr token", tokenID)
	}
	if !record.Active {
		return nil, errorutil.NewNotFound("qr token", map[string]any{"id": tokenID})
	}
	return record, nil
}

// contentFor returns the string encoded into the QR image.
func (s *QRService) contentFor(record *domain.QRToken) string {
	if s.cfg.VerifyMode == config.VerifyModeSelfContained {
		return record.EncryptedPayload
	}
	return s.cfg.ScanURL(record.TokenID)
}

func (s *QRService) cacheImage(ctx context.Context, tokenID string, png []byte, ttl time.Duration) {
	if err := s.images.Set(ctx, tokenID, png, ttl); err != nil {
		s.logger.Warn("qr image cache write failed", zap.String("token_id", tokenID), zap.Error(err))
	}
}

func (s *QRService) observeRedemption(flow string, errp *error) {
	outcome := "ok"
	if *errp != nil {
		outcome = errorutil.ToDomainError(*errp).Code
	}
	s.metrics.RecordRedemption(flow, outcome)
}

func (s *QRService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = s.now()
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("event handler failed", zap.String("event", string(event.Type)), zap.Error(err))
	}
}

func missingPayloadField(p domain.QRPayload) string {
	switch {
	case p.TokenID == "":
		return "token_id missing"
	case p.ExpiresAt.IsZero():
		return "expires_at missing"
	case p.User.ID == "":
		return "user.id missing"
	case p.IntegrityHash == "":
		return "integrity_hash missing"
	}
	return ""
}

func notFoundOrInternal(err error, resource, id string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return errorutil.NewNotFound(resource, map[string]any{"id": id})
	}
	return errorutil.NewInternalError(err)
}
