package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	pkgAuth "github.com/technoshop/technoshop-backend/pkg/auth"
	"github.com/technoshop/technoshop-backend/pkg/config"
	"github.com/technoshop/technoshop-backend/pkg/db/models"
	"github.com/technoshop/technoshop-backend/pkg/enums"
	pkgerrors "github.com/technoshop/technoshop-backend/pkg/errors"
	"github.com/technoshop/technoshop-backend/pkg/security"
	"github.com/technoshop/technoshop-backend/pkg/types"
)

var (
	testJWT      = config.JWTConfig{Secret: "secret", Issuer: "technoshop", ExpirationMinutes: 15}
	testPassword = config.PasswordConfig{ArgonMemoryKB: 64, ArgonTime: 1, ArgonParallelism: 1, ArgonSaltLen: 16, ArgonKeyLen: 32}
)

type stubUserRepo struct {
	user      *models.User
	findErr   error
	lastLogin time.Time
}

func (s *stubUserRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	if s.findErr != nil {
		return nil, s.findErr
	}
	if s.user == nil || s.user.Email != email {
		return nil, gorm.ErrRecordNotFound
	}
	copy := *s.user
	return &copy, nil
}

func (s *stubUserRepo) UpdateLastLogin(ctx context.Context, id types.ObjectID, at time.Time) error {
	s.lastLogin = at
	return nil
}

type stubSessions struct {
	accessIDs []string
	err       error
}

func (s *stubSessions) Generate(ctx context.Context, accessID string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	s.accessIDs = append(s.accessIDs, accessID)
	return "refresh-" + accessID, nil
}

func newUser(t *testing.T, role enums.UserRole) *models.User {
	t.Helper()
	hash, err := security.HashPassword("correct-horse", testPassword)
	require.NoError(t, err)
	return &models.User{ID: types.NewObjectID(), Name: "Sara", Email: "sara@example.com", PasswordHash: hash, Role: role}
}

func TestLoginIssuesTokens(t *testing.T) {
	repo := &stubUserRepo{user: newUser(t, enums.UserRoleAdmin)}
	sessions := &stubSessions{}
	svc, err := NewService(ServiceParams{UserRepo: repo, SessionManager: sessions, JWTConfig: testJWT})
	require.NoError(t, err)

	resp, err := svc.Login(context.Background(), LoginRequest{Email: "  sara@example.com ", Password: "correct-horse"})
	require.NoError(t, err)
	require.Len(t, sessions.accessIDs, 1)
	assert.Equal(t, "refresh-"+sessions.accessIDs[0], resp.RefreshToken)
	assert.False(t, repo.lastLogin.IsZero())
	require.NotNil(t, resp.User.LastLoginAt)

	claims, err := pkgAuth.ParseAccessToken(testJWT, resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, repo.user.ID, claims.UserID)
	assert.Equal(t, enums.UserRoleAdmin, claims.Role)
	assert.Equal(t, sessions.accessIDs[0], claims.ID)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	repo := &stubUserRepo{user: newUser(t, enums.UserRoleCustomer)}
	svc, err := NewService(ServiceParams{UserRepo: repo, SessionManager: &stubSessions{}, JWTConfig: testJWT, PasswordConfig: testPassword})
	require.NoError(t, err)

	cases := []LoginRequest{
		{Email: "", Password: "x"},
		{Email: "nobody@example.com", Password: "correct-horse"},
		{Email: "sara@example.com", Password: "wrong"},
	}
	for _, req := range cases {
		_, err := svc.Login(context.Background(), req)
		assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized), "request %+v: %v", req, err)
	}
}

func TestLoginSurfacesRepositoryFailure(t *testing.T) {
	repo := &stubUserRepo{findErr: errors.New("db down")}
	svc, err := NewService(ServiceParams{UserRepo: repo, SessionManager: &stubSessions{}, JWTConfig: testJWT, PasswordConfig: testPassword})
	require.NoError(t, err)

	_, err = svc.Login(context.Background(), LoginRequest{Email: "sara@example.com", Password: "x"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInternal))
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	_, err := NewService(ServiceParams{SessionManager: &stubSessions{}})
	assert.Error(t, err)
	_, err = NewService(ServiceParams{UserRepo: &stubUserRepo{}})
	assert.Error(t, err)
}

func TestLoginSessionStoreFailureIsDependencyError(t *testing.T) {
	repo := &stubUserRepo{user: newUser(t, enums.UserRoleCustomer)}
	svc, err := NewService(ServiceParams{UserRepo: repo, SessionManager: &stubSessions{err: errors.New("redis down")}, JWTConfig: testJWT})
	require.NoError(t, err)

	_, err = svc.Login(context.Background(), LoginRequest{Email: "SARA@example.com", Password: "correct-horse"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency), "got %v", err)
}
