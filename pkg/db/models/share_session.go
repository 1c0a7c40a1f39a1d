package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/mdelarosa/tallypos-backend/pkg/enums"
)

// ShareSession is a join-code-protected scope letting several devices
// read/write one host vendor's inventory and orders.
type ShareSession struct {
	ID               uuid.UUID           `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Code             string              `gorm:"column:code;not null;uniqueIndex:ux_share_sessions_code"`
	HostUserID       uuid.UUID           `gorm:"column:host_user_id;type:uuid;not null;index"`
	HostDeviceID     uuid.UUID           `gorm:"column:host_device_id;type:uuid;not null"`
	EventID          *uuid.UUID          `gorm:"column:event_id;type:uuid"`
	PassphraseHash   *string             `gorm:"column:passphrase_hash"`
	ApprovalRequired bool                `gorm:"column:approval_required;not null;default:false"`
	Status           enums.SessionStatus `gorm:"column:status;type:session_status;not null;default:'active'"`
	EndedAt          *time.Time          `gorm:"column:ended_at"`
	CreatedAt        time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

// ShareSessionParticipant tracks one device's membership in a session,
// including the pending state used by the host-approval gate.
type ShareSessionParticipant struct {
	ID         uuid.UUID        `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	SessionID  uuid.UUID        `gorm:"column:session_id;type:uuid;not null;index;uniqueIndex:ux_session_participant_device,priority:1"`
	UserID     uuid.UUID        `gorm:"column:user_id;type:uuid;not null"`
	DeviceID   uuid.UUID        `gorm:"column:device_id;type:uuid;not null;uniqueIndex:ux_session_participant_device,priority:2"`
	Status     enums.JoinStatus `gorm:"column:status;type:join_status;not null;default:'pending'"`
	ApprovedAt *time.Time       `gorm:"column:approved_at"`
	LeftAt     *time.Time       `gorm:"column:left_at"`
	CreatedAt  time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}
