package federation_test

import (
	"context"
	"time"

	"github.com/pilab-dev/planauth/domain"
	"github.com/pilab-dev/planauth/internal/federation"
	"github.com/stretchr/testify/mock"
)

// MockUserRepository is a testify mock of domain.UserRepository.
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockUserRepository) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockUserRepository) CreateUser(ctx context.Context, user *domain.User) error {
	return m.Called(ctx, user).Error(0)
}

func (m *MockUserRepository) UpdateUser(ctx context.Context, user *domain.User) error {
	return m.Called(ctx, user).Error(0)
}

func (m *MockUserRepository) DeleteUser(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

// MockResolver is a testify mock of federation.SessionResolver.
type MockResolver struct {
	mock.Mock
}

func (m *MockResolver) Resolve(ctx context.Context, token string) (*federation.ExternalSession, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*federation.ExternalSession), args.Error(1)
}

// MockProvisioner is a testify mock of federation.SubjectProvisioner.
type MockProvisioner struct {
	mock.Mock
}

func (m *MockProvisioner) EnsureLocalSubject(ctx context.Context, ext federation.ExternalUser) (*domain.User, error) {
	args := m.Called(ctx, ext)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

// stubHasher avoids bcrypt cost in provisioning tests.
type stubHasher struct {
	err error
}

func (h stubHasher) Hash(password string) (string, error) {
	if h.err != nil {
		return "", h.err
	}
	return "hashed:" + password, nil
}

var t0 = time.Date(2025, 7, 1, 9, 0, 0, 0, time.UTC)
