package users

import (
	"time"

	"github.com/google/uuid"

	"github.com/mdelarosa/tallypos-backend/pkg/db/models"
)

// CreateVendorDTO carries the fields needed to insert a vendor.
type CreateVendorDTO struct {
	Email        string
	PasswordHash string
	DisplayName  string
	BusinessName *string
}

// ToModel converts the DTO into a persistable vendor row.
func (d CreateVendorDTO) ToModel() *models.Vendor {
	return &models.Vendor{
		Email:        d.Email,
		PasswordHash: d.PasswordHash,
		DisplayName:  d.DisplayName,
		BusinessName: d.BusinessName,
		IsActive:     true,
	}
}

// VendorDTO is the API-facing view of a vendor account.
type VendorDTO struct {
	ID           uuid.UUID  `json:"id"`
	Email        string     `json:"email"`
	DisplayName  string     `json:"display_name"`
	BusinessName *string    `json:"business_name,omitempty"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// FromModel maps a vendor row to its DTO.
func FromModel(vendor *models.Vendor) *VendorDTO {
	if vendor == nil {
		return nil
	}
	return &VendorDTO{
		ID:           vendor.ID,
		Email:        vendor.Email,
		DisplayName:  vendor.DisplayName,
		BusinessName: vendor.BusinessName,
		LastLoginAt:  vendor.LastLoginAt,
		CreatedAt:    vendor.CreatedAt,
	}
}

// DeviceDTO is the API-facing view of a registered device.
type DeviceDTO struct {
	ID         uuid.UUID  `json:"id"`
	Label      *string    `json:"label,omitempty"`
	Platform   *string    `json:"platform,omitempty"`
	LastSeenAt *time.Time `json:"last_seen_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// DeviceFromModel maps a device row to its DTO.
func DeviceFromModel(device *models.Device) *DeviceDTO {
	if device == nil {
		return nil
	}
	return &DeviceDTO{
		ID:         device.ID,
		Label:      device.Label,
		Platform:   device.Platform,
		LastSeenAt: device.LastSeenAt,
		CreatedAt:  device.CreatedAt,
	}
}
