package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/qrpass-service/internal/repository"
	"github.com/spec-kit/qrpass-service/pkg/util/errorutil"
)

// MaintenanceService runs housekeeping that the request path never triggers.
type MaintenanceService struct {
	tokens repository.QRTokenRepository
	logger *zap.Logger
	now    func() time.Time
}

// NewMaintenanceService constructs the service.
func NewMaintenanceService(tokens repository.QRTokenRepository, logger *zap.Logger) *MaintenanceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MaintenanceService{tokens: tokens, logger: logger, now: time.Now}
}

// PurgeResult reports what a purge removed.
type PurgeResult struct {
	Cutoff  time.Time
	Deleted int64
}

// Purge deletes token records that expired more than olderThan ago, and
// redeemed records when includeRedeemed is set. Users are never touched.
func (s *MaintenanceService) Purge(ctx context.Context, olderThan time.Duration, includeRedeemed bool) (*PurgeResult, error) {
	if olderThan < 0 {
		return nil, errorutil.NewValidationError("olderThan must not be negative", nil)
	}

	cutoff := s.now().Add(-olderThan)
	deleted, err := s.tokens.Purge(ctx, cutoff, includeRedeemed)
	if err != nil {
		return nil, errorutil.NewInternalError(err)
	}

	s.logger.Info("qr tokens purged",
		zap.Time("cutoff", cutoff),
		zap.Bool("include_redeemed", includeRedeemed),
		zap.Int64("deleted", deleted),
	)
	return &PurgeResult{Cutoff: cutoff, Deleted: deleted}, nil
}
