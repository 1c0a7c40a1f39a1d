package users

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mdelarosa/tallypos-backend/pkg/db/models"
)

// Repository exposes vendor and device persistence operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a users repo bound to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a new vendor and returns the persisted model.
func (r *Repository) Create(ctx context.Context, dto CreateVendorDTO) (*models.Vendor, error) {
	vendor := dto.ToModel()
	if err := r.db.WithContext(ctx).Create(vendor).Error; err != nil {
		return nil, err
	}
	return vendor, nil
}

// FindByEmail retrieves the vendor matching the provided email.
func (r *Repository) FindByEmail(ctx context.Context, email string) (*models.Vendor, error) {
	var vendor models.Vendor
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&vendor).Error; err != nil {
		return nil, err
	}
	return &vendor, nil
}

// FindByID loads a vendor by id.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Vendor, error) {
	var vendor models.Vendor
	if err := r.db.WithContext(ctx).First(&vendor, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &vendor, nil
}

// UpdateLastLogin refreshes the vendor's last_login_at timestamp.
func (r *Repository) UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.Vendor{}).
		Where("id = ?", id).
		UpdateColumn("last_login_at", at).Error
}

// RegisterDevice upserts the device row for the vendor, refreshing its
// last_seen_at. Device ids are minted on the device so reinstalls keep them.
func (r *Repository) RegisterDevice(ctx context.Context, device *models.Device) (*models.Device, error) {
	now := time.Now().UTC()

	var existing models.Device
	err := r.db.WithContext(ctx).First(&existing, "id = ?", device.ID).Error
	if err != nil {
		if err != gorm.ErrRecordNotFound {
			return nil, err
		}
		device.LastSeenAt = &now
		if err := r.db.WithContext(ctx).Create(device).Error; err != nil {
			return nil, err
		}
		return device, nil
	}

	updates := map[string]any{"last_seen_at": now}
	if device.Label != nil {
		updates["label"] = *device.Label
	}
	if device.Platform != nil {
		updates["platform"] = *device.Platform
	}
	if err := r.db.WithContext(ctx).
		Model(&models.Device{}).
		Where("id = ?", existing.ID).
		Updates(updates).Error; err != nil {
		return nil, err
	}
	existing.LastSeenAt = &now
	return &existing, nil
}

// FindDevice loads a device by id.
func (r *Repository) FindDevice(ctx context.Context, id uuid.UUID) (*models.Device, error) {
	var device models.Device
	if err := r.db.WithContext(ctx).First(&device, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &device, nil
}

// ListDevicesByVendor returns the vendor's registered devices, newest first.
func (r *Repository) ListDevicesByVendor(ctx context.Context, vendorID uuid.UUID) ([]models.Device, error) {
	var devices []models.Device
	if err := r.db.WithContext(ctx).
		Where("vendor_id = ?", vendorID).
		Order("created_at DESC").
		Find(&devices).Error; err != nil {
		return nil, err
	}
	return devices, nil
}
