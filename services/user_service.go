package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pilab-dev/planauth/domain"
	"github.com/rs/zerolog/log"
)

// SeedAccount is an account created by SeedDefaults.
type SeedAccount struct {
	Email    string
	Username string
	Role     string
	Password string
}

// DefaultAccounts are the development logins of a fresh installation.
var DefaultAccounts = []SeedAccount{
	{Email: "admin@plankit.com", Username: "Admin User", Role: domain.RoleAdmin, Password: "admin123"},
	{Email: "editor@plankit.com", Username: "Editor User", Role: domain.RoleEditor, Password: "editor123"},
	{Email: "viewer@plankit.com", Username: "Viewer User", Role: domain.RoleViewer, Password: "viewer123"},
}

// UserService manages local accounts.
type UserService struct {
	users  domain.UserRepository
	hasher PasswordHasher
}

func NewUserService(users domain.UserRepository, hasher PasswordHasher) *UserService {
	return &UserService{users: users, hasher: hasher}
}

// CreateUser stores a new account with a hashed password.
func (s *UserService) CreateUser(ctx context.Context, email, username, role, password string) (*domain.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, errors.New("email and password are required")
	}
	if role == "" {
		role = domain.RoleViewer
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := time.Now().UTC()
	user := &domain.User{
		ID:           uuid.NewString(),
		Email:        email,
		Username:     username,
		Role:         role,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// SeedDefaults creates every account in accounts whose email is not yet
// taken and returns how many were created.
func (s *UserService) SeedDefaults(ctx context.Context, accounts []SeedAccount) (int, error) {
	created := 0
	for _, account := range accounts {
		_, err := s.users.GetUserByEmail(ctx, account.Email)
		if err == nil {
			continue
		}
		if !errors.Is(err, domain.ErrUserNotFound) {
			return created, fmt.Errorf("failed to look up %s: %w", account.Email, err)
		}

		if _, err := s.CreateUser(ctx, account.Email, account.Username, account.Role, account.Password); err != nil {
			if errors.Is(err, domain.ErrUserExists) {
				continue
			}
			return created, fmt.Errorf("failed to seed %s: %w", account.Email, err)
		}
		log.Info().Str("email", account.Email).Str("role", account.Role).Msg("Seeded default account")
		created++
	}
	return created, nil
}
