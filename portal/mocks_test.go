package portal_test

import (
	"context"
	"errors"
	"time"

	"github.com/pilab-dev/planauth/domain"
	"github.com/pilab-dev/planauth/portal"
	"github.com/stretchr/testify/mock"
)

var t0 = time.Date(2025, time.June, 2, 10, 0, 0, 0, time.UTC)

type MockAccounts struct {
	mock.Mock
}

func (m *MockAccounts) GetAccount(ctx context.Context, username string) (*domain.PortalAccount, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.PortalAccount), args.Error(1)
}

func (m *MockAccounts) UpsertAccount(ctx context.Context, account *domain.PortalAccount) error {
	return m.Called(ctx, account).Error(0)
}

type MockPermissions struct {
	mock.Mock
}

func (m *MockPermissions) RoleFor(ctx context.Context, username string) (string, error) {
	args := m.Called(ctx, username)
	return args.String(0), args.Error(1)
}

type MockHistory struct {
	mock.Mock
}

func (m *MockHistory) RecordLogin(ctx context.Context, record *domain.LoginRecord) error {
	return m.Called(ctx, record).Error(0)
}

type MockAuthenticator struct {
	mock.Mock
}

func (m *MockAuthenticator) Authenticate(ctx context.Context, login, password string) (*portal.Identity, error) {
	args := m.Called(ctx, login, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*portal.Identity), args.Error(1)
}

// plainVerifier compares "hash:"+password without bcrypt cost.
type plainVerifier struct{}

func (plainVerifier) Verify(hashedPassword, password string) error {
	if hashedPassword != "hash:"+password {
		return errors.New("password mismatch")
	}
	return nil
}
