package users

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/technoshop/technoshop-backend/pkg/db/dbtest"
	"github.com/technoshop/technoshop-backend/pkg/enums"
	"github.com/technoshop/technoshop-backend/pkg/types"
)

func seedUser(t *testing.T, repo *Repository, name, email string) *CreateUserDTO {
	t.Helper()
	dto := &CreateUserDTO{Name: name, Email: email, PasswordHash: "hash"}
	_, err := repo.Create(context.Background(), *dto)
	require.NoError(t, err)
	return dto
}

func TestCreateNormalisesAndDefaultsRole(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(dbtest.Open(t))

	created, err := repo.Create(ctx, CreateUserDTO{Name: " Sara ", Email: "Sara@Example.com ", PasswordHash: "hash"})
	require.NoError(t, err)
	assert.True(t, types.IsObjectIDHex(created.ID.String()))
	assert.Equal(t, "Sara", created.Name)
	assert.Equal(t, "sara@example.com", created.Email)
	assert.Equal(t, enums.UserRoleCustomer, created.Role)

	byEmail, err := repo.FindByEmail(ctx, "SARA@example.com")
	require.NoError(t, err)
	assert.Equal(t, created.ID, byEmail.ID)

	byID, err := repo.FindByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.Email, byID.Email)

	_, err = repo.FindByID(ctx, types.NewObjectID())
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestEmailTakenAndCount(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(dbtest.Open(t))

	n, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	seedUser(t, repo, "One", "dup@example.com")
	taken, err := repo.EmailTaken(ctx, " DUP@example.com")
	require.NoError(t, err)
	assert.True(t, taken)

	taken, err = repo.EmailTaken(ctx, "free@example.com")
	require.NoError(t, err)
	assert.False(t, taken)

	_, err = repo.Create(ctx, CreateUserDTO{Name: "Two", Email: "DUP@example.com", PasswordHash: "h"})
	assert.Error(t, err, "unique index must reject a second owner")

	n, err = repo.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestUpdateLastLogin(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(dbtest.Open(t))
	seedUser(t, repo, "Ali", "ali@example.com")
	user, err := repo.FindByEmail(ctx, "ali@example.com")
	require.NoError(t, err)
	assert.Nil(t, user.LastLoginAt)

	at := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	require.NoError(t, repo.UpdateLastLogin(ctx, user.ID, at))

	loaded, err := repo.FindByID(ctx, user.ID)
	require.NoError(t, err)
	require.NotNil(t, loaded.LastLoginAt)
	assert.True(t, loaded.LastLoginAt.Equal(at))

	dto := FromModel(loaded)
	assert.Equal(t, loaded.ID, dto.ID)
	assert.Nil(t, FromModel(nil))
}
