package service

import (
	"crypto/subtle"
	"strings"

	"github.com/spec-kit/qrpass-service/internal/auth"
	"github.com/spec-kit/qrpass-service/internal/config"
	"github.com/spec-kit/qrpass-service/internal/domain"
	"github.com/spec-kit/qrpass-service/pkg/util/errorutil"
)

// AuthService authenticates the operator account configured for the deployment.
type AuthService struct {
	username     string
	passwordHash string
	tokenMgr     *auth.TokenManager
}

// NewAuthService builds the service.
func NewAuthService(cfg config.AuthConfig) *AuthService {
	return &AuthService{
		username:     cfg.OperatorUsername,
		passwordHash: cfg.OperatorPasswordHash,
		tokenMgr:     auth.NewTokenManager(cfg.JWTSecret, cfg.AccessTokenTTL()),
	}
}

// LoginOperator checks operator credentials and returns a signed access token.
// Login is disabled when no password hash is configured.
func (s *AuthService) LoginOperator(username, password string) (domain.AccessToken, error) {
	if s.passwordHash == "" {
		return domain.AccessToken{}, errorutil.NewUnauthorized("operator login disabled")
	}
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return domain.AccessToken{}, errorutil.NewValidationError("username and password are required", nil)
	}

	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(s.username)) == 1
	passErr := auth.ComparePassword(s.passwordHash, password)
	if !userOK || passErr != nil {
		return domain.AccessToken{}, errorutil.NewUnauthorized("invalid credentials")
	}
	return s.IssueOperatorToken(username)
}

// IssueOperatorToken signs a token for subjectID without checking credentials.
func (s *AuthService) IssueOperatorToken(subjectID string) (domain.AccessToken, error) {
	token, err := s.tokenMgr.GenerateToken(subjectID, domain.SubjectTypeOperator)
	if err != nil {
		return domain.AccessToken{}, errorutil.NewInternalError(err)
	}
	return token, nil
}

// TokenManager exposes the underlying token manager for middleware usage.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}
