package mongodb_test

import (
	"context"
	"testing"

	"github.com/pilab-dev/planauth/domain"
	"github.com/pilab-dev/planauth/mongodb"
	"github.com/pilab-dev/planauth/mongodb/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

func TestPortalAccountRepository(t *testing.T) {
	db := testutil.SetupTestMongoDB(t, "planauth_accounts_test")
	repo := mongodb.NewPortalAccountRepository(db)
	ctx := context.Background()

	_, err := repo.GetAccount(ctx, "kiosk")
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)

	require.NoError(t, repo.UpsertAccount(ctx, &domain.PortalAccount{Username: "kiosk", PasswordHash: "h1"}))
	require.NoError(t, repo.UpsertAccount(ctx, &domain.PortalAccount{Username: "kiosk", PasswordHash: "h2"}))

	got, err := repo.GetAccount(ctx, "kiosk")
	require.NoError(t, err)
	assert.Equal(t, "h2", got.PasswordHash)
}

func TestPermissionRepository_RoleFor(t *testing.T) {
	db := testutil.SetupTestMongoDB(t, "planauth_permissions_test")
	ctx := context.Background()
	repo, err := mongodb.NewPermissionRepository(ctx, db)
	require.NoError(t, err)

	role, err := repo.RoleFor(ctx, "jdoe")
	require.NoError(t, err)
	assert.Empty(t, role)

	require.NoError(t, repo.SetRole(ctx, "jdoe", domain.RoleEditor))
	role, err = repo.RoleFor(ctx, "jdoe")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleEditor, role)
}

func TestLoginHistoryRepository_RecordLogin(t *testing.T) {
	db := testutil.SetupTestMongoDB(t, "planauth_history_test")
	repo := mongodb.NewLoginHistoryRepository(db)
	ctx := context.Background()

	record := &domain.LoginRecord{Username: "jdoe", Date: "02-06-2025", Month: 6, IPAddress: "10.0.0.5"}
	require.NoError(t, repo.RecordLogin(ctx, record))
	assert.NotEmpty(t, record.ID)

	count, err := db.Collection(mongodb.LoginHistoryCollection).CountDocuments(ctx, bson.M{"username": "jdoe"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
}
