package service

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/qrpass-service/internal/domain"
	"github.com/spec-kit/qrpass-service/internal/repository"
	"github.com/spec-kit/qrpass-service/pkg/util/errorutil"
)

// UserService manages the people QR codes are issued for.
type UserService struct {
	users  repository.UserRepository
	tokens repository.QRTokenRepository
}

// CreateUserInput describes user creation payload.
type CreateUserInput struct {
	Name      string
	BloodType string
	Phone     string
	Role      string
}

// UserWithToken pairs a user with their current token, if any.
type UserWithToken struct {
	User  domain.User
	Token *domain.QRToken
}

// NewUserService constructs the service.
func NewUserService(users repository.UserRepository, tokens repository.QRTokenRepository) *UserService {
	return &UserService{users: users, tokens: tokens}
}

// Create validates input and stores a new user. Role defaults to EMERGENCY.
func (s *UserService) Create(ctx context.Context, input CreateUserInput) (*domain.User, error) {
	user := &domain.User{
		Name:      strings.TrimSpace(input.Name),
		BloodType: strings.TrimSpace(input.BloodType),
		Phone:     strings.TrimSpace(input.Phone),
	}

	var missing []string
	if user.Name == "" {
		missing = append(missing, "name")
	}
	if user.BloodType == "" {
		missing = append(missing, "bloodType")
	}
	if user.Phone == "" {
		missing = append(missing, "phone")
	}
	if len(missing) > 0 {
		return nil, errorutil.NewValidationError("missing required fields", map[string]any{"fields": missing})
	}

	role, ok := domain.ParseUserRole(input.Role)
	if !ok {
		return nil, errorutil.NewValidationError("invalid role", map[string]any{
			"role":    input.Role,
			"allowed": []domain.UserRole{domain.UserRoleEmergency, domain.UserRoleFull},
		})
	}
	user.Role = role

	if err := s.users.Create(ctx, user); err != nil {
		return nil, errorutil.NewInternalError(err)
	}
	return user, nil
}

// Get returns a user by id.
func (s *UserService) Get(ctx context.Context, id string) (*domain.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, errorutil.NewNotFound("user", map[string]any{"id": id})
	}
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, notFoundOrInternal(err, "user", id)
	}
	return user, nil
}

// GetWithToken returns a user together with their current QR token.
func (s *UserService) GetWithToken(ctx context.Context, id string) (*UserWithToken, error) {
	user, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	result := &UserWithToken{User: *user}
	token, err := s.tokens.GetByUserID(ctx, user.ID)
	switch {
	case err == nil:
		result.Token = token
	case errors.Is(err, pgx.ErrNoRows):
	default:
		return nil, errorutil.NewInternalError(err)
	}
	return result, nil
}

// List returns all users ordered by creation time.
func (s *UserService) List(ctx context.Context) ([]domain.User, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, errorutil.NewInternalError(err)
	}
	return users, nil
}
