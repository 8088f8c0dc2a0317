package domain

import "context"

// UserReader is the read side of the user store used on every request.
type UserReader interface {
	GetUserByID(ctx context.Context, id string) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
}

// UserRepository persists local subjects.
type UserRepository interface {
	UserReader
	CreateUser(ctx context.Context, user *User) error
	UpdateUser(ctx context.Context, user *User) error
	DeleteUser(ctx context.Context, id string) error
}

// PortalAccountRepository holds the portal's local fallback accounts.
type PortalAccountRepository interface {
	GetAccount(ctx context.Context, username string) (*PortalAccount, error)
	UpsertAccount(ctx context.Context, account *PortalAccount) error
}

// PermissionRepository maps portal login names to roles.
type PermissionRepository interface {
	// RoleFor returns the assigned role, or "" when none is assigned.
	RoleFor(ctx context.Context, username string) (string, error)
}

// LoginHistoryRepository records successful directory logins.
type LoginHistoryRepository interface {
	RecordLogin(ctx context.Context, record *LoginRecord) error
}
