package auth

import (
	"github.com/google/uuid"

	"github.com/mdelarosa/tallypos-backend/internal/users"
)

// DeviceInfo identifies the device a request comes from. The id is minted on
// the device and reused across sign-ins.
type DeviceInfo struct {
	ID       uuid.UUID `json:"id" validate:"required"`
	Label    *string   `json:"label,omitempty"`
	Platform *string   `json:"platform,omitempty"`
}

// RegisterRequest contains the payload for onboarding a new vendor.
type RegisterRequest struct {
	Email        string     `json:"email" validate:"required,email"`
	Password     string     `json:"password" validate:"required,min=8"`
	DisplayName  string     `json:"display_name" validate:"required"`
	BusinessName *string    `json:"business_name,omitempty"`
	Device       DeviceInfo `json:"device" validate:"required"`
}

// LoginRequest captures the credentials sent to the login endpoint.
type LoginRequest struct {
	Email    string     `json:"email" validate:"required,email"`
	Password string     `json:"password" validate:"required"`
	Device   DeviceInfo `json:"device" validate:"required"`
}

// RefreshRequest rotates a refresh token minted at login.
type RefreshRequest struct {
	AccessToken  string `json:"access_token" validate:"required"`
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// LoginResponse contains the token pair and profile returned on success.
type LoginResponse struct {
	AccessToken  string           `json:"access_token"`
	RefreshToken string           `json:"refresh_token"`
	User         *users.VendorDTO `json:"user"`
	Device       *users.DeviceDTO `json:"device"`
}

// RefreshResponse carries the rotated token pair.
type RefreshResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}
