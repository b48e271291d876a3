package service

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/qrpass-service/internal/domain"
	"github.com/spec-kit/qrpass-service/pkg/util/errorutil"
)

func TestUserService_Create(t *testing.T) {
	tests := []struct {
		name      string
		input     CreateUserInput
		mockSetup func(*MockUserRepository)
		wantRole  domain.UserRole
		wantErr   error
	}{
		{
			name:  "defaults role to emergency",
			input: CreateUserInput{Name: " Ada ", BloodType: "O-", Phone: "555"},
			mockSetup: func(repo *MockUserRepository) {
				repo.On("Create", mock.Anything, mock.MatchedBy(func(u *domain.User) bool {
					return u.Name == "Ada" && u.Role == domain.UserRoleEmergency
				})).Return(nil)
			},
			wantRole: domain.UserRoleEmergency,
		},
		{
			name:  "accepts lowercase full role",
			input: CreateUserInput{Name: "Ada", BloodType: "O-", Phone: "555", Role: "full"},
			mockSetup: func(repo *MockUserRepository) {
				repo.On("Create", mock.Anything, mock.Anything).Return(nil)
			},
			wantRole: domain.UserRoleFull,
		},
		{
			name:      "missing fields",
			input:     CreateUserInput{Name: "Ada"},
			mockSetup: func(*MockUserRepository) {},
			wantErr:   errorutil.ErrValidation,
		},
		{
			name:      "unknown role",
			input:     CreateUserInput{Name: "Ada", BloodType: "O-", Phone: "555", Role: "ADMIN"},
			mockSetup: func(*MockUserRepository) {},
			wantErr:   errorutil.ErrValidation,
		},
		{
			name:  "store failure",
			input: CreateUserInput{Name: "Ada", BloodType: "O-", Phone: "555"},
			mockSetup: func(repo *MockUserRepository) {
				repo.On("Create", mock.Anything, mock.Anything).Return(errors.New("db down"))
			},
			wantErr: errorutil.ErrInternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(MockUserRepository)
			tt.mockSetup(repo)
			svc := NewUserService(repo, new(MockQRTokenRepository))

			user, err := svc.Create(context.Background(), tt.input)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, user)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.wantRole, user.Role)
			}
			repo.AssertExpectations(t)
		})
	}
}

func TestUserService_CreateReportsMissingFields(t *testing.T) {
	svc := NewUserService(new(MockUserRepository), new(MockQRTokenRepository))

	_, err := svc.Create(context.Background(), CreateUserInput{Phone: "555"})
	de := errorutil.ToDomainError(err)
	require.NotNil(t, de)
	assert.Equal(t, []string{"name", "bloodType"}, de.Details["fields"])
}

func TestUserService_Get(t *testing.T) {
	user := testUser()
	repo := new(MockUserRepository)
	repo.On("GetByID", mock.Anything, testUserID).Return(&user, nil)
	repo.On("GetByID", mock.Anything, "00000000-0000-4000-8000-000000000000").Return(nil, pgx.ErrNoRows)
	svc := NewUserService(repo, new(MockQRTokenRepository))
	ctx := context.Background()

	got, err := svc.Get(ctx, testUserID)
	require.NoError(t, err)
	assert.Equal(t, user, *got)

	_, err = svc.Get(ctx, "00000000-0000-4000-8000-000000000000")
	assert.ErrorIs(t, err, errorutil.ErrNotFound)

	_, err = svc.Get(ctx, "not-a-uuid")
	assert.ErrorIs(t, err, errorutil.ErrNotFound)
}

func TestUserService_GetWithToken(t *testing.T) {
	user := testUser()
	token := &domain.QRToken{TokenID: "tok-1", UserID: testUserID, Active: true}
	ctx := context.Background()

	t.Run("with token", func(t *testing.T) {
		users := new(MockUserRepository)
		tokens := new(MockQRTokenRepository)
		users.On("GetByID", mock.Anything, testUserID).Return(&user, nil)
		tokens.On("GetByUserID", mock.Anything, testUserID).Return(token, nil)

		got, err := NewUserService(users, tokens).GetWithToken(ctx, testUserID)
		require.NoError(t, err)
		assert.Equal(t, token, got.Token)
	})

	t.Run("without token", func(t *testing.T) {
		users := new(MockUserRepository)
		tokens := new(MockQRTokenRepository)
		users.On("GetByID", mock.Anything, testUserID).Return(&user, nil)
		tokens.On("GetByUserID", mock.Anything, testUserID).Return(nil, pgx.ErrNoRows)

		got, err := NewUserService(users, tokens).GetWithToken(ctx, testUserID)
		require.NoError(t, err)
		assert.Nil(t, got.Token)
		assert.Equal(t, user, got.User)
	})
}

func TestUserService_List(t *testing.T) {
	repo := new(MockUserRepository)
	repo.On("List", mock.Anything).Return([]domain.User{testUser()}, nil)

	users, err := NewUserService(repo, nil).List(context.Background())
	require.NoError(t, err)
	assert.Len(t, users, 1)
}
