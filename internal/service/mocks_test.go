package service

import (
	"context"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/mock"

	"github.com/spec-kit/qrpass-service/internal/domain"
)

// MockUserRepository is a mock implementation of repository.UserRepository.
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) Create(ctx context.Context, user *domain.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockUserRepository) List(ctx context.Context) ([]domain.User, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.User), args.Error(1)
}

// MockQRTokenRepository is a mock implementation of repository.QRTokenRepository.
type MockQRTokenRepository struct {
	mock.Mock
}

func (m *MockQRTokenRepository) Upsert(ctx context.Context, token *domain.QRToken) (string, error) {
	args := m.Called(ctx, token)
	return args.String(0), args.Error(1)
}

func (m *MockQRTokenRepository) GetByTokenID(ctx context.Context, tokenID string) (*domain.QRToken, error) {
	args := m.Called(ctx, tokenID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.QRToken), args.Error(1)
}

func (m *MockQRTokenRepository) GetByUserID(ctx context.Context, userID string) (*domain.QRToken, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.QRToken), args.Error(1)
}

func (m *MockQRTokenRepository) MarkRedeemed(ctx context.Context, tokenID string) (bool, error) {
	args := m.Called(ctx, tokenID)
	return args.Bool(0), args.Error(1)
}

func (m *MockQRTokenRepository) Deactivate(ctx context.Context, tokenID string) error {
	args := m.Called(ctx, tokenID)
	return args.Error(0)
}

func (m *MockQRTokenRepository) Purge(ctx context.Context, expiredBefore time.Time, includeRedeemed bool) (int64, error) {
	args := m.Called(ctx, expiredBefore, includeRedeemed)
	return args.Get(0).(int64), args.Error(1)
}

// memoryStore is an in-memory stand-in for both repositories with the same
// upsert-by-user and conditional-redeem semantics as the Postgres versions.
type memoryStore struct {
	mu     sync.Mutex
	users  map[string]domain.User
	tokens map[string]*domain.QRToken // keyed by user id
}

func newMemoryStore(users ...domain.User) *memoryStore {
	s := &memoryStore{users: map[string]domain.User{}, tokens: map[string]*domain.QRToken{}}
	for _, u := range users {
		s.users[u.ID] = u
	}
	return s
}

func (s *memoryStore) Create(_ context.Context, user *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[user.ID] = *user
	return nil
}

func (s *memoryStore) GetByID(_ context.Context, id string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &u, nil
}

func (s *memoryStore) List(_ context.Context) ([]domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u)
	}
	return out, nil
}

func (s *memoryStore) Upsert(_ context.Context, token *domain.QRToken) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	previous := ""
	if old, ok := s.tokens[token.UserID]; ok {
		previous = old.TokenID
	}
	token.Active = true
	token.Redeemed = false
	token.IssuedAt = time.Now().UTC()
	token.UpdatedAt = token.IssuedAt
	stored := *token
	s.tokens[token.UserID] = &stored
	return previous, nil
}

func (s *memoryStore) GetByTokenID(_ context.Context, tokenID string) (*domain.QRToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t := s.findLocked(tokenID); t != nil {
		cp := *t
		return &cp, nil
	}
	return nil, pgx.ErrNoRows
}

func (s *memoryStore) GetByUserID(_ context.Context, userID string) (*domain.QRToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tokens[userID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *t
	return &cp, nil
}

func (s *memoryStore) MarkRedeemed(_ context.Context, tokenID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.findLocked(tokenID)
	if t == nil || t.Redeemed {
		return false, nil
	}
	t.Redeemed = true
	return true, nil
}

func (s *memoryStore) Deactivate(_ context.Context, tokenID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.findLocked(tokenID)
	if t == nil {
		return pgx.ErrNoRows
	}
	t.Active = false
	return nil
}

func (s *memoryStore) Purge(_ context.Context, expiredBefore time.Time, includeRedeemed bool) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for userID, t := range s.tokens {
		if t.ExpiresAt.Before(expiredBefore) || (includeRedeemed && t.Redeemed) {
			delete(s.tokens, userID)
			n++
		}
	}
	return n, nil
}

func (s *memoryStore) findLocked(tokenID string) *domain.QRToken {
	for _, t := range s.tokens {
		if t.TokenID == tokenID {
			return t
		}
	}
	return nil
}

// testClock is a settable clock for expiry tests.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}
