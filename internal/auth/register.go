package auth

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/technoshop/technoshop-backend/internal/users"
	"github.com/technoshop/technoshop-backend/pkg/config"
	"github.com/technoshop/technoshop-backend/pkg/db"
	"github.com/technoshop/technoshop-backend/pkg/db/models"
	"github.com/technoshop/technoshop-backend/pkg/enums"
	pkgerrors "github.com/technoshop/technoshop-backend/pkg/errors"
	"github.com/technoshop/technoshop-backend/pkg/security"
)

// RegisterService creates accounts and signs them in.
type RegisterService interface {
	Register(ctx context.Context, req RegisterRequest) (*LoginResponse, error)
}

// RegisterServiceParams packages the dependencies for the registration flow.
type RegisterServiceParams struct {
	DB             *db.Client
	SessionManager sessionManager
	JWTConfig      config.JWTConfig
	PasswordConfig config.PasswordConfig
	// FirstUserIsAdmin promotes the very first account to admin.
	FirstUserIsAdmin bool
}

type registerService struct {
	db               *db.Client
	session          sessionManager
	jwtCfg           config.JWTConfig
	passwordCfg      config.PasswordConfig
	firstUserIsAdmin bool
	now              func() time.Time
}

// NewRegisterService builds a registration service with the provided dependencies.
func NewRegisterService(params RegisterServiceParams) (RegisterService, error) {
	if params.DB == nil {
		return nil, fmt.Errorf("database client required")
	}
	if params.SessionManager == nil {
		return nil, fmt.Errorf("session manager is required")
	}
	return &registerService{
		db:               params.DB,
		session:          params.SessionManager,
		jwtCfg:           params.JWTConfig,
		passwordCfg:      params.PasswordConfig,
		firstUserIsAdmin: params.FirstUserIsAdmin,
		now:              time.Now,
	}, nil
}

func (s *registerService) Register(ctx context.Context, req RegisterRequest) (*LoginResponse, error) {
	email := users.NormalizeEmail(req.Email)
	if email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email is required")
	}

	passwordHash, err := security.HashPassword(req.Password, s.passwordCfg)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}

	var user *models.User
	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		userRepo := users.NewRepository(tx)

		taken, err := userRepo.EmailTaken(ctx, email)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check user email")
		}
		if taken {
			return pkgerrors.New(pkgerrors.CodeConflict, "email already registered")
		}

		role := enums.UserRoleCustomer
		if s.firstUserIsAdmin {
			count, err := userRepo.Count(ctx)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "count users")
			}
			if count == 0 {
				role = enums.UserRoleAdmin
			}
		}

		created, err := userRepo.Create(ctx, users.CreateUserDTO{
			Name:         req.Name,
			Email:        email,
			PasswordHash: passwordHash,
			Role:         role,
		})
		if err != nil {
			if db.IsUniqueViolation(err, "") {
				return pkgerrors.New(pkgerrors.CodeConflict, "email already registered")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create user")
		}
		user = created
		return nil
	})
	if err != nil {
		return nil, err
	}

	return issueTokens(ctx, s.jwtCfg, s.session, user, s.now().UTC())
}
