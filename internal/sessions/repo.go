package sessions

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mdelarosa/tallypos-backend/pkg/db/models"
	"github.com/mdelarosa/tallypos-backend/pkg/enums"
)

// Repository handles share-session persistence.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateSession(ctx context.Context, session *models.ShareSession) error
	FindActiveSessionByCode(ctx context.Context, code string) (*models.ShareSession, error)
	FindSessionByID(ctx context.Context, id uuid.UUID) (*models.ShareSession, error)
	FindActiveSessionByHost(ctx context.Context, hostUserID uuid.UUID) (*models.ShareSession, error)
	EndSession(ctx context.Context, id uuid.UUID) error
	EndSessionsCreatedBefore(ctx context.Context, cutoff time.Time) (int64, error)
	CreateParticipant(ctx context.Context, participant *models.ShareSessionParticipant) error
	UpdateParticipant(ctx context.Context, participant *models.ShareSessionParticipant) error
	FindParticipantByDevice(ctx context.Context, sessionID, deviceID uuid.UUID) (*models.ShareSessionParticipant, error)
	FindParticipantByID(ctx context.Context, id uuid.UUID) (*models.ShareSessionParticipant, error)
	ListParticipants(ctx context.Context, sessionID uuid.UUID) ([]models.ShareSessionParticipant, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a sessions repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateSession(ctx context.Context, session *models.ShareSession) error {
	return r.db.WithContext(ctx).Create(session).Error
}

func (r *repository) FindActiveSessionByCode(ctx context.Context, code string) (*models.ShareSession, error) {
	if code == "" {
		return nil, nil
	}
	var session models.ShareSession
	if err := r.db.WithContext(ctx).
		Where("code = ? AND status = ?", code, enums.SessionStatusActive).
		First(&session).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &session, nil
}

func (r *repository) FindSessionByID(ctx context.Context, id uuid.UUID) (*models.ShareSession, error) {
	var session models.ShareSession
	if err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&session).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &session, nil
}

func (r *repository) FindActiveSessionByHost(ctx context.Context, hostUserID uuid.UUID) (*models.ShareSession, error) {
	var session models.ShareSession
	if err := r.db.WithContext(ctx).
		Where("host_user_id = ? AND status = ?", hostUserID, enums.SessionStatusActive).
		Order("created_at DESC").
		First(&session).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &session, nil
}

func (r *repository) EndSession(ctx context.Context, id uuid.UUID) error {
	now := time.Now().UTC()
	return r.db.WithContext(ctx).
		Model(&models.ShareSession{}).
		Where("id = ? AND status = ?", id, enums.SessionStatusActive).
		Updates(map[string]any{
			"status":   enums.SessionStatusEnded,
			"ended_at": now,
		}).Error
}

// EndSessionsCreatedBefore closes sessions older than the device record TTL
// so the sweep keeps the table aligned with what devices can still restore.
func (r *repository) EndSessionsCreatedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.ShareSession{}).
		Where("status = ? AND created_at < ?", enums.SessionStatusActive, cutoff).
		Updates(map[string]any{
			"status":   enums.SessionStatusEnded,
			"ended_at": time.Now().UTC(),
		})
	return result.RowsAffected, result.Error
}

func (r *repository) CreateParticipant(ctx context.Context, participant *models.ShareSessionParticipant) error {
	return r.db.WithContext(ctx).Create(participant).Error
}

func (r *repository) UpdateParticipant(ctx context.Context, participant *models.ShareSessionParticipant) error {
	return r.db.WithContext(ctx).Save(participant).Error
}

func (r *repository) FindParticipantByDevice(ctx context.Context, sessionID, deviceID uuid.UUID) (*models.ShareSessionParticipant, error) {
	var participant models.ShareSessionParticipant
	if err := r.db.WithContext(ctx).
		Where("session_id = ? AND device_id = ?", sessionID, deviceID).
		First(&participant).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &participant, nil
}

func (r *repository) FindParticipantByID(ctx context.Context, id uuid.UUID) (*models.ShareSessionParticipant, error) {
	var participant models.ShareSessionParticipant
	if err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&participant).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &participant, nil
}

func (r *repository) ListParticipants(ctx context.Context, sessionID uuid.UUID) ([]models.ShareSessionParticipant, error) {
	var participants []models.ShareSessionParticipant
	if err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at ASC").
		Find(&participants).Error; err != nil {
		return nil, err
	}
	return participants, nil
}
