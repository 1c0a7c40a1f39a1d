package auth

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mdelarosa/tallypos-backend/internal/plans"
	pkgAuth "github.com/mdelarosa/tallypos-backend/pkg/auth"
	"github.com/mdelarosa/tallypos-backend/pkg/auth/session"
	"github.com/mdelarosa/tallypos-backend/pkg/config"
	"github.com/mdelarosa/tallypos-backend/pkg/db/models"
	"github.com/mdelarosa/tallypos-backend/pkg/enums"
	pkgerrors "github.com/mdelarosa/tallypos-backend/pkg/errors"
	"github.com/mdelarosa/tallypos-backend/pkg/security"
)

func TestServiceLoginIssuesTokensWithPlanTier(t *testing.T) {
	password := "vendor-secret"
	vendor := &models.Vendor{
		ID:           uuid.New(),
		Email:        "vendor@example.com",
		PasswordHash: mustHashPassword(t, password),
		DisplayName:  "Vendor",
		IsActive:     true,
	}
	cfg := testJWTConfig()
	deviceID := uuid.New()

	svc, _, err := buildTestService(vendor, plans.State{Tier: enums.PlanTierPro}, cfg)
	if err != nil {
		t.Fatalf("build service: %v", err)
	}

	resp, err := svc.Login(context.Background(), LoginRequest{
		Email:    vendor.Email,
		Password: password,
		Device:   DeviceInfo{ID: deviceID},
	})
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	claims, err := pkgAuth.ParseAccessToken(cfg, resp.AccessToken)
	if err != nil {
		t.Fatalf("parse access token: %v", err)
	}
	if claims.UserID != vendor.ID {
		t.Fatalf("expected user claim %s, got %s", vendor.ID, claims.UserID)
	}
	if claims.DeviceID != deviceID {
		t.Fatalf("expected device claim %s, got %s", deviceID, claims.DeviceID)
	}
	if claims.PlanTier != enums.PlanTierPro {
		t.Fatalf("expected pro tier claim, got %s", claims.PlanTier)
	}
	if claims.ID == "" {
		t.Fatalf("expected jti claim to be set")
	}
	if resp.RefreshToken == "" {
		t.Fatalf("expected refresh token to be set")
	}
	if resp.User == nil || resp.User.LastLoginAt == nil {
		t.Fatalf("expected last login stamp on response")
	}
}

func TestServiceLoginRejectsWrongPassword(t *testing.T) {
	vendor := &models.Vendor{
		ID:           uuid.New(),
		Email:        "vendor@example.com",
		PasswordHash: mustHashPassword(t, "right"),
		IsActive:     true,
	}

	svc, _, err := buildTestService(vendor, plans.State{Tier: enums.PlanTierFree}, testJWTConfig())
	if err != nil {
		t.Fatalf("build service: %v", err)
	}

	_, err = svc.Login(context.Background(), LoginRequest{
		Email:    vendor.Email,
		Password: "wrong",
		Device:   DeviceInfo{ID: uuid.New()},
	})
	assertCode(t, err, pkgerrors.CodeUnauthorized)
}

func TestServiceLoginRejectsInactiveVendor(t *testing.T) {
	password := "vendor-secret"
	vendor := &models.Vendor{
		ID:           uuid.New(),
		Email:        "vendor@example.com",
		PasswordHash: mustHashPassword(t, password),
		IsActive:     false,
	}

	svc, _, err := buildTestService(vendor, plans.State{Tier: enums.PlanTierFree}, testJWTConfig())
	if err != nil {
		t.Fatalf("build service: %v", err)
	}

	_, err = svc.Login(context.Background(), LoginRequest{
		Email:    vendor.Email,
		Password: password,
		Device:   DeviceInfo{ID: uuid.New()},
	})
	assertCode(t, err, pkgerrors.CodeUnauthorized)
}

func TestServiceLoginRejectsForeignDevice(t *testing.T) {
	password := "vendor-secret"
	vendor := &models.Vendor{
		ID:           uuid.New(),
		Email:        "vendor@example.com",
		PasswordHash: mustHashPassword(t, password),
		IsActive:     true,
	}
	deviceID := uuid.New()

	repo := &stubVendorRepo{
		vendor: vendor,
		device: &models.Device{ID: deviceID, VendorID: uuid.New()},
	}
	svc, err := NewService(ServiceParams{
		VendorRepo:     repo,
		SessionManager: &stubSessionManager{refreshToken: "refresh-token"},
		Plans:          stubPlanSource{state: plans.State{Tier: enums.PlanTierFree}},
		JWTConfig:      testJWTConfig(),
	})
	if err != nil {
		t.Fatalf("build service: %v", err)
	}

	_, err = svc.Login(context.Background(), LoginRequest{
		Email:    vendor.Email,
		Password: password,
		Device:   DeviceInfo{ID: deviceID},
	})
	assertCode(t, err, pkgerrors.CodeForbidden)
}

func TestServiceRefreshRotatesAndRemintsPlanTier(t *testing.T) {
	cfg := testJWTConfig()
	userID, deviceID := uuid.New(), uuid.New()

	accessToken, err := pkgAuth.MintAccessToken(cfg, time.Now().UTC(), pkgAuth.AccessTokenPayload{
		UserID:   userID,
		DeviceID: deviceID,
		PlanTier: enums.PlanTierPro,
		JTI:      "old-access-id",
	})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}

	sessionMgr := &stubSessionManager{
		refreshToken: "rotated-refresh",
		newAccessID:  "new-access-id",
	}
	svc, err := NewService(ServiceParams{
		VendorRepo:     &stubVendorRepo{},
		SessionManager: sessionMgr,
		Plans:          stubPlanSource{state: plans.State{Tier: enums.PlanTierFree}},
		JWTConfig:      cfg,
	})
	if err != nil {
		t.Fatalf("build service: %v", err)
	}

	resp, err := svc.Refresh(context.Background(), RefreshRequest{
		AccessToken:  accessToken,
		RefreshToken: "provided-refresh",
	})
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if sessionMgr.rotatedFrom != "old-access-id" {
		t.Fatalf("expected rotation from old jti, got %q", sessionMgr.rotatedFrom)
	}
	if resp.RefreshToken != "rotated-refresh" {
		t.Fatalf("unexpected refresh token %q", resp.RefreshToken)
	}

	claims, err := pkgAuth.ParseAccessToken(cfg, resp.AccessToken)
	if err != nil {
		t.Fatalf("parse rotated token: %v", err)
	}
	if claims.ID != "new-access-id" {
		t.Fatalf("expected new jti, got %q", claims.ID)
	}
	if claims.PlanTier != enums.PlanTierFree {
		t.Fatalf("expected downgraded tier on rotation, got %s", claims.PlanTier)
	}
}

func TestServiceRefreshRejectsBadRefreshToken(t *testing.T) {
	cfg := testJWTConfig()
	accessToken, err := pkgAuth.MintAccessToken(cfg, time.Now().UTC(), pkgAuth.AccessTokenPayload{
		UserID:   uuid.New(),
		DeviceID: uuid.New(),
		PlanTier: enums.PlanTierFree,
		JTI:      "access-id",
	})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}

	svc, err := NewService(ServiceParams{
		VendorRepo:     &stubVendorRepo{},
		SessionManager: &stubSessionManager{rotateErr: true},
		Plans:          stubPlanSource{},
		JWTConfig:      cfg,
	})
	if err != nil {
		t.Fatalf("build service: %v", err)
	}

	_, err = svc.Refresh(context.Background(), RefreshRequest{
		AccessToken:  accessToken,
		RefreshToken: "stolen",
	})
	assertCode(t, err, pkgerrors.CodeUnauthorized)
}

func TestServiceLogoutRevokesSession(t *testing.T) {
	cfg := testJWTConfig()
	accessToken, err := pkgAuth.MintAccessToken(cfg, time.Now().UTC(), pkgAuth.AccessTokenPayload{
		UserID:   uuid.New(),
		DeviceID: uuid.New(),
		PlanTier: enums.PlanTierFree,
		JTI:      "access-id",
	})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}

	sessionMgr := &stubSessionManager{}
	svc, err := NewService(ServiceParams{
		VendorRepo:     &stubVendorRepo{},
		SessionManager: sessionMgr,
		Plans:          stubPlanSource{},
		JWTConfig:      cfg,
	})
	if err != nil {
		t.Fatalf("build service: %v", err)
	}

	if err := svc.Logout(context.Background(), accessToken); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if sessionMgr.revoked != "access-id" {
		t.Fatalf("expected revoke of jti, got %q", sessionMgr.revoked)
	}
}

func buildTestService(vendor *models.Vendor, state plans.State, jwtCfg config.JWTConfig) (Service, *stubSessionManager, error) {
	sessionMgr := &stubSessionManager{refreshToken: "refresh-token"}
	svc, err := NewService(ServiceParams{
		VendorRepo:     &stubVendorRepo{vendor: vendor},
		SessionManager: sessionMgr,
		Plans:          stubPlanSource{state: state},
		JWTConfig:      jwtCfg,
	})
	return svc, sessionMgr, err
}

func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{
		Secret:            "secret",
		Issuer:            "tallypos",
		ExpirationMinutes: 30,
	}
}

func mustHashPassword(t *testing.T, password string) string {
	t.Helper()
	hash, err := security.HashPassword(password, config.PasswordConfig{})
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	return hash
}

func assertCode(t *testing.T, err error, code pkgerrors.Code) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", code)
	}
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != code {
		t.Fatalf("expected %s error, got %v", code, err)
	}
}

type stubVendorRepo struct {
	vendor *models.Vendor
	device *models.Device
}

func (s *stubVendorRepo) FindByEmail(ctx context.Context, email string) (*models.Vendor, error) {
	if s.vendor == nil || s.vendor.Email != email {
		return nil, gorm.ErrRecordNotFound
	}
	return s.vendor, nil
}

func (s *stubVendorRepo) UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	if s.vendor != nil && s.vendor.ID == id {
		s.vendor.LastLoginAt = &at
	}
	return nil
}

func (s *stubVendorRepo) RegisterDevice(ctx context.Context, device *models.Device) (*models.Device, error) {
	if s.device != nil {
		return s.device, nil
	}
	now := time.Now().UTC()
	device.LastSeenAt = &now
	return device, nil
}

type stubSessionManager struct {
	refreshToken string
	newAccessID  string
	rotatedFrom  string
	revoked      string
	rotateErr    bool
}

func (s *stubSessionManager) Generate(ctx context.Context, accessID string) (string, error) {
	return s.refreshToken, nil
}

func (s *stubSessionManager) Rotate(ctx context.Context, oldAccessID, provided string) (string, string, error) {
	if s.rotateErr {
		return "", "", session.ErrInvalidRefreshToken
	}
	s.rotatedFrom = oldAccessID
	return s.newAccessID, s.refreshToken, nil
}

func (s *stubSessionManager) Revoke(ctx context.Context, accessID string) error {
	s.revoked = accessID
	return nil
}

type stubPlanSource struct {
	state plans.State
}

func (s stubPlanSource) StateFor(ctx context.Context, userID uuid.UUID) (plans.State, error) {
	return s.state, nil
}
