package federation_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/pilab-dev/planauth/domain"
	"github.com/pilab-dev/planauth/internal/federation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestNormalizeUsername(t *testing.T) {
	tests := []struct {
		name string
		user federation.ExternalUser
		want string
	}{
		{"username wins", federation.ExternalUser{Username: "jdoe", DisplayName: "John", Email: "john@corp.io"}, "jdoe"},
		{"username with domain", federation.ExternalUser{Username: "jdoe@corp.io"}, "jdoe"},
		{"display name next", federation.ExternalUser{DisplayName: "john.doe", Email: "x@corp.io"}, "john.doe"},
		{"email last", federation.ExternalUser{Email: "jane@corp.io"}, "jane"},
		{"nothing falls back to a fixed name", federation.ExternalUser{Role: domain.RoleAdmin}, "user"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, federation.NormalizeUsername(tt.user))
		})
	}
}

func TestProvisioner_ReturnsExistingUser(t *testing.T) {
	ctx := context.Background()
	repo := new(MockUserRepository)
	existing := &domain.User{ID: "u-1", Email: "jane@corp.io", Username: "jane", Role: "editor"}
	repo.On("GetUserByEmail", ctx, "jane@corp.io").Return(existing, nil)

	p := federation.NewProvisioner(repo, stubHasher{}, true)
	user, err := p.EnsureLocalSubject(ctx, federation.ExternalUser{Email: " Jane@Corp.io", Username: "jane", Role: "editor"})
	require.NoError(t, err)
	assert.Same(t, existing, user)

	repo.AssertExpectations(t)
	repo.AssertNotCalled(t, "UpdateUser", mock.Anything, mock.Anything)
	repo.AssertNotCalled(t, "CreateUser", mock.Anything, mock.Anything)
}

func TestProvisioner_RefreshesDriftedAttributes(t *testing.T) {
	ctx := context.Background()
	repo := new(MockUserRepository)
	repo.On("GetUserByEmail", ctx, "jane@corp.io").
		Return(&domain.User{ID: "u-1", Email: "jane@corp.io", Username: "old", Role: "viewer"}, nil)
	repo.On("UpdateUser", ctx, mock.MatchedBy(func(u *domain.User) bool {
		return u.ID == "u-1" && u.Username == "jane" && u.Role == "admin" && !u.UpdatedAt.IsZero()
	})).Return(nil)

	p := federation.NewProvisioner(repo, stubHasher{}, true)
	user, err := p.EnsureLocalSubject(ctx, federation.ExternalUser{Email: "jane@corp.io", Username: "jane", Role: "admin"})
	require.NoError(t, err)
	assert.Equal(t, "jane", user.Username)
	assert.Equal(t, "admin", user.Role)
	repo.AssertExpectations(t)
}

func TestProvisioner_RefreshFailureIsNotFatal(t *testing.T) {
	ctx := context.Background()
	repo := new(MockUserRepository)
	repo.On("GetUserByEmail", ctx, "jane@corp.io").
		Return(&domain.User{ID: "u-1", Email: "jane@corp.io", Username: "jane", Role: "viewer"}, nil)
	repo.On("UpdateUser", ctx, mock.Anything).Return(errors.New("write conflict"))

	p := federation.NewProvisioner(repo, stubHasher{}, true)
	user, err := p.EnsureLocalSubject(ctx, federation.ExternalUser{Email: "jane@corp.io", Username: "jane"})
	require.NoError(t, err)
	assert.Equal(t, "user", user.Role)
	repo.AssertExpectations(t)
}

func TestProvisioner_CreatesUnknownUser(t *testing.T) {
	ctx := context.Background()
	repo := new(MockUserRepository)
	repo.On("GetUserByEmail", ctx, "new@corp.io").Return(nil, domain.ErrUserNotFound)
	repo.On("CreateUser", ctx, mock.AnythingOfType("*domain.User")).Return(nil)

	p := federation.NewProvisioner(repo, stubHasher{}, true)
	user, err := p.EnsureLocalSubject(ctx, federation.ExternalUser{Email: "new@corp.io", DisplayName: "new"})
	require.NoError(t, err)

	assert.NotEmpty(t, user.ID)
	assert.Equal(t, "new@corp.io", user.Email)
	assert.Equal(t, "new", user.Username)
	assert.Equal(t, domain.RoleUser, user.Role)
	assert.True(t, strings.HasPrefix(user.PasswordHash, "hashed:"))
	assert.Greater(t, len(user.PasswordHash), len("hashed:"))
	assert.False(t, user.CreatedAt.IsZero())
	repo.AssertExpectations(t)
}

func TestProvisioner_ConcurrentCreateRefetches(t *testing.T) {
	ctx := context.Background()
	repo := new(MockUserRepository)
	winner := &domain.User{ID: "u-winner", Email: "new@corp.io", Username: "new", Role: "user"}
	repo.On("GetUserByEmail", ctx, "new@corp.io").Return(nil, domain.ErrUserNotFound).Once()
	repo.On("CreateUser", ctx, mock.Anything).Return(domain.ErrUserExists)
	repo.On("GetUserByEmail", ctx, "new@corp.io").Return(winner, nil).Once()

	p := federation.NewProvisioner(repo, stubHasher{}, true)
	user, err := p.EnsureLocalSubject(ctx, federation.ExternalUser{Email: "new@corp.io"})
	require.NoError(t, err)
	assert.Same(t, winner, user)
	repo.AssertExpectations(t)
}

func TestProvisioner_AutoProvisionDisabled(t *testing.T) {
	ctx := context.Background()
	repo := new(MockUserRepository)
	repo.On("GetUserByEmail", ctx, "new@corp.io").Return(nil, domain.ErrUserNotFound)

	p := federation.NewProvisioner(repo, stubHasher{}, false)
	user, err := p.EnsureLocalSubject(ctx, federation.ExternalUser{Email: "new@corp.io"})
	assert.Nil(t, user)
	assert.ErrorIs(t, err, federation.ErrProvisioningDisabled)
	repo.AssertNotCalled(t, "CreateUser", mock.Anything, mock.Anything)
}

func TestProvisioner_Failures(t *testing.T) {
	ctx := context.Background()

	t.Run("no email", func(t *testing.T) {
		p := federation.NewProvisioner(new(MockUserRepository), stubHasher{}, true)
		_, err := p.EnsureLocalSubject(ctx, federation.ExternalUser{Username: "ghost"})
		assert.ErrorIs(t, err, federation.ErrPortalRejected)
	})

	t.Run("lookup error", func(t *testing.T) {
		repo := new(MockUserRepository)
		dbErr := errors.New("connection reset")
		repo.On("GetUserByEmail", ctx, "a@corp.io").Return(nil, dbErr)

		p := federation.NewProvisioner(repo, stubHasher{}, true)
		_, err := p.EnsureLocalSubject(ctx, federation.ExternalUser{Email: "a@corp.io"})
		assert.ErrorIs(t, err, dbErr)
	})

	t.Run("hash error", func(t *testing.T) {
		repo := new(MockUserRepository)
		repo.On("GetUserByEmail", ctx, "a@corp.io").Return(nil, domain.ErrUserNotFound)

		p := federation.NewProvisioner(repo, stubHasher{err: errors.New("boom")}, true)
		_, err := p.EnsureLocalSubject(ctx, federation.ExternalUser{Email: "a@corp.io"})
		assert.Error(t, err)
		repo.AssertNotCalled(t, "CreateUser", mock.Anything, mock.Anything)
	})

	t.Run("create error", func(t *testing.T) {
		repo := new(MockUserRepository)
		dbErr := errors.New("disk full")
		repo.On("GetUserByEmail", ctx, "a@corp.io").Return(nil, domain.ErrUserNotFound)
		repo.On("CreateUser", ctx, mock.Anything).Return(dbErr)

		p := federation.NewProvisioner(repo, stubHasher{}, true)
		_, err := p.EnsureLocalSubject(ctx, federation.ExternalUser{Email: "a@corp.io"})
		assert.ErrorIs(t, err, dbErr)
	})
}
