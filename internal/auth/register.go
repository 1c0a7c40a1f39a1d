package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mdelarosa/tallypos-backend/internal/users"
	"github.com/mdelarosa/tallypos-backend/pkg/config"
	"github.com/mdelarosa/tallypos-backend/pkg/db"
	"github.com/mdelarosa/tallypos-backend/pkg/db/models"
	pkgerrors "github.com/mdelarosa/tallypos-backend/pkg/errors"
	"github.com/mdelarosa/tallypos-backend/pkg/security"
)

// RegisterService handles the vendor onboarding transaction.
type RegisterService interface {
	Register(ctx context.Context, req RegisterRequest) (*users.VendorDTO, error)
}

// RegisterServiceParams packages the dependencies for the registration flow.
type RegisterServiceParams struct {
	DB             *db.Client
	PasswordConfig config.PasswordConfig
}

type registerService struct {
	db          *db.Client
	passwordCfg config.PasswordConfig
}

// NewRegisterService builds a registration service with the provided dependencies.
func NewRegisterService(params RegisterServiceParams) (RegisterService, error) {
	if params.DB == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "database client required")
	}
	return &registerService{
		db:          params.DB,
		passwordCfg: params.PasswordConfig,
	}, nil
}

func (s *registerService) Register(ctx context.Context, req RegisterRequest) (*users.VendorDTO, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email is required")
	}

	passwordHash, err := security.HashPassword(req.Password, s.passwordCfg)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}

	var vendor *models.Vendor
	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := users.NewRepository(tx)

		if _, err := repo.FindByEmail(ctx, email); err == nil {
			return pkgerrors.New(pkgerrors.CodeConflict, "email already registered")
		} else if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check vendor email")
		}

		vendor, err = repo.Create(ctx, users.CreateVendorDTO{
			Email:        email,
			PasswordHash: passwordHash,
			DisplayName:  req.DisplayName,
			BusinessName: req.BusinessName,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create vendor")
		}

		if req.Device.ID != uuid.Nil {
			if _, err := repo.RegisterDevice(ctx, &models.Device{
				ID:       req.Device.ID,
				VendorID: vendor.ID,
				Label:    req.Device.Label,
				Platform: req.Device.Platform,
			}); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "register device")
			}
		}

		if err := repo.UpdateLastLogin(ctx, vendor.ID, time.Now().UTC()); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "stamp first login")
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return users.FromModel(vendor), nil
}
