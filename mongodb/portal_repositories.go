package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pilab-dev/planauth/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// PortalAccountRepository stores the portal's fallback accounts, keyed by
// login name.
type PortalAccountRepository struct {
	accounts *mongo.Collection
}

func NewPortalAccountRepository(db *mongo.Database) *PortalAccountRepository {
	return &PortalAccountRepository{accounts: db.Collection(PortalAccountsCollection)}
}

func (r *PortalAccountRepository) GetAccount(ctx context.Context, username string) (*domain.PortalAccount, error) {
	var account domain.PortalAccount
	if err := r.accounts.FindOne(ctx, bson.M{"_id": username}).Decode(&account); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to find portal account: %w", err)
	}
	return &account, nil
}

func (r *PortalAccountRepository) UpsertAccount(ctx context.Context, account *domain.PortalAccount) error {
	if account.CreatedAt.IsZero() {
		account.CreatedAt = time.Now().UTC()
	}
	_, err := r.accounts.ReplaceOne(ctx, bson.M{"_id": account.Username}, account, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to upsert portal account: %w", err)
	}
	return nil
}

// PermissionRepository reads role assignments of portal logins.
type PermissionRepository struct {
	permissions *mongo.Collection
}

type permissionDocument struct {
	Username string `bson:"username"`
	Role     string `bson:"role"`
}

// NewPermissionRepository creates the repository and its lookup index.
func NewPermissionRepository(ctx context.Context, db *mongo.Database) (*PermissionRepository, error) {
	repo := &PermissionRepository{permissions: db.Collection(PortalPermissionsCollection)}

	_, err := repo.permissions.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "username", Value: 1}},
		Options: options.Index().SetName("username"),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create permission index: %w", err)
	}
	return repo, nil
}

// RoleFor returns the first role assigned to username, or "" if none is.
func (r *PermissionRepository) RoleFor(ctx context.Context, username string) (string, error) {
	var doc permissionDocument
	err := r.permissions.FindOne(ctx, bson.M{"username": username}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return "", nil
		}
		return "", fmt.Errorf("failed to find role: %w", err)
	}
	return doc.Role, nil
}

// SetRole assigns role to username, replacing any previous assignment.
func (r *PermissionRepository) SetRole(ctx context.Context, username, role string) error {
	_, err := r.permissions.UpdateOne(ctx,
		bson.M{"username": username},
		bson.M{"$set": bson.M{"role": role}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("failed to set role: %w", err)
	}
	return nil
}

// LoginHistoryRepository appends login records.
type LoginHistoryRepository struct {
	history *mongo.Collection
}

func NewLoginHistoryRepository(db *mongo.Database) *LoginHistoryRepository {
	return &LoginHistoryRepository{history: db.Collection(LoginHistoryCollection)}
}

func (r *LoginHistoryRepository) RecordLogin(ctx context.Context, record *domain.LoginRecord) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	if _, err := r.history.InsertOne(ctx, record); err != nil {
		return fmt.Errorf("failed to record login: %w", err)
	}
	return nil
}

var (
	_ domain.PortalAccountRepository = (*PortalAccountRepository)(nil)
	_ domain.PermissionRepository    = (*PermissionRepository)(nil)
	_ domain.LoginHistoryRepository  = (*LoginHistoryRepository)(nil)
)
