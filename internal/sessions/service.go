package sessions

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mdelarosa/tallypos-backend/internal/plans"
	"github.com/mdelarosa/tallypos-backend/pkg/config"
	"github.com/mdelarosa/tallypos-backend/pkg/db/models"
	"github.com/mdelarosa/tallypos-backend/pkg/enums"
	pkgerrors "github.com/mdelarosa/tallypos-backend/pkg/errors"
	"github.com/mdelarosa/tallypos-backend/pkg/logger"
	"github.com/mdelarosa/tallypos-backend/pkg/outbox"
	"github.com/mdelarosa/tallypos-backend/pkg/outbox/payloads"
	"github.com/mdelarosa/tallypos-backend/pkg/security"
)

const maxCodeAttempts = 5

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type planSource interface {
	StateFor(ctx context.Context, userID uuid.UUID) (plans.State, error)
}

// ServiceParams groups dependencies for the sessions service.
type ServiceParams struct {
	Repo     Repository
	Devices  DeviceStore
	Plans    planSource
	Tx       txRunner
	Outbox   outboxPublisher
	Config   config.SessionsConfig
	Password config.PasswordConfig
	Logger   *logger.Logger
}

// Service runs the share-session state machine: create, join with an
// optional approval gate, end, and refresh.
type Service struct {
	repo     Repository
	devices  DeviceStore
	plans    planSource
	tx       txRunner
	outbox   outboxPublisher
	cfg      config.SessionsConfig
	password config.PasswordConfig
	logger   *logger.Logger
}

// NewService builds a sessions service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, errors.New("repo is required")
	}
	if params.Devices == nil {
		return nil, errors.New("device store is required")
	}
	if params.Plans == nil {
		return nil, errors.New("plan source is required")
	}
	if params.Tx == nil {
		return nil, errors.New("transaction runner is required")
	}
	if params.Outbox == nil {
		return nil, errors.New("outbox publisher is required")
	}
	if params.Config.JoinCodeLength <= 0 {
		params.Config.JoinCodeLength = 6
	}
	return &Service{
		repo:     params.Repo,
		devices:  params.Devices,
		plans:    params.Plans,
		tx:       params.Tx,
		outbox:   params.Outbox,
		cfg:      params.Config,
		password: params.Password,
		logger:   params.Logger,
	}, nil
}

// CreateInput configures a new hosted session.
type CreateInput struct {
	UserID           uuid.UUID
	DeviceID         uuid.UUID
	EventID          *uuid.UUID
	Passphrase       *string
	ApprovalRequired bool
}

// JoinInput carries a join attempt from a participant device.
type JoinInput struct {
	UserID     uuid.UUID
	DeviceID   uuid.UUID
	Code       string
	Passphrase *string
}

// JoinResult is either an approved session record or a pending marker.
// Pending joins never persist anything on the joining device.
type JoinResult struct {
	Status enums.JoinStatus `json:"status"`
	Record *DeviceRecord    `json:"record,omitempty"`
}

// DecideInput is the host's verdict on a pending participant.
type DecideInput struct {
	HostUserID    uuid.UUID
	SessionID     uuid.UUID
	ParticipantID uuid.UUID
	Approve       bool
}

// Create opens a session hosted by the calling device and stores its record.
func (s *Service) Create(ctx context.Context, input CreateInput) (*DeviceRecord, error) {
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if input.DeviceID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "device id is required")
	}

	var passphraseHash *string
	if input.Passphrase != nil {
		if len(*input.Passphrase) < s.cfg.MinPassphraseLength {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "passphrase is too short")
		}
		hash, err := security.HashPassword(*input.Passphrase, s.password)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash passphrase")
		}
		passphraseHash = &hash
	}

	hostState, err := s.plans.StateFor(ctx, input.UserID)
	if err != nil {
		return nil, err
	}

	var session *models.ShareSession
	if err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)

		created, err := s.insertWithFreshCode(ctx, txRepo, input, passphraseHash)
		if err != nil {
			return err
		}
		session = created

		now := time.Now().UTC()
		participant := &models.ShareSessionParticipant{
			SessionID:  session.ID,
			UserID:     input.UserID,
			DeviceID:   input.DeviceID,
			Status:     enums.JoinStatusApproved,
			ApprovedAt: &now,
		}
		if err := txRepo.CreateParticipant(ctx, participant); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: insert host participant")
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventSessionCreated,
			AggregateType: enums.AggregateShareSession,
			AggregateID:   session.ID,
			OwnerUserID:   input.UserID,
			Actor:         actorRef(input.UserID, input.DeviceID),
			Data: payloads.SessionLifecycleEvent{
				SessionID:  session.ID,
				Code:       session.Code,
				HostUserID: session.HostUserID,
				Status:     enums.SessionStatusActive.String(),
			},
		})
	}); err != nil {
		if pkgerrors.As(err) != nil {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create session")
	}

	record := s.buildRecord(session, input.UserID, input.DeviceID, hostState)
	if err := s.persistRecord(ctx, input.UserID, input.DeviceID, record); err != nil {
		return nil, err
	}
	return &record, nil
}

// Join attempts to enter the session behind code. Approved joins persist a
// device record; anything else returns pending with no local state change.
func (s *Service) Join(ctx context.Context, input JoinInput) (*JoinResult, error) {
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if input.DeviceID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "device id is required")
	}
	code := NormalizeJoinCode(input.Code)
	if code == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "join code is required")
	}

	session, err := s.repo.FindActiveSessionByCode(ctx, code)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load session")
	}
	if session == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "invalid join code")
	}

	if session.PassphraseHash != nil {
		if input.Passphrase == nil {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "passphrase required")
		}
		ok, err := security.VerifyPassword(*input.Passphrase, *session.PassphraseHash)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "verify passphrase")
		}
		if !ok {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid passphrase")
		}
	}

	existing, err := s.repo.FindParticipantByDevice(ctx, session.ID, input.DeviceID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load participant")
	}
	if existing != nil && existing.Status == enums.JoinStatusRejected {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "join request was rejected")
	}

	isHost := input.UserID == session.HostUserID
	alreadyApproved := existing != nil && existing.Status == enums.JoinStatusApproved

	if session.ApprovalRequired && !isHost && !alreadyApproved {
		if err := s.recordPendingJoin(ctx, session, existing, input); err != nil {
			return nil, err
		}
		return &JoinResult{Status: enums.JoinStatusPending}, nil
	}

	if err := s.recordApprovedJoin(ctx, session, existing, input); err != nil {
		return nil, err
	}

	hostState, err := s.plans.StateFor(ctx, session.HostUserID)
	if err != nil {
		return nil, err
	}
	record := s.buildRecord(session, input.UserID, input.DeviceID, hostState)
	if err := s.persistRecord(ctx, input.UserID, input.DeviceID, record); err != nil {
		return nil, err
	}
	return &JoinResult{Status: enums.JoinStatusApproved, Record: &record}, nil
}

// Decide resolves a pending join request. Only the host may decide.
func (s *Service) Decide(ctx context.Context, input DecideInput) error {
	if input.HostUserID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}

	session, err := s.repo.FindSessionByID(ctx, input.SessionID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load session")
	}
	if session == nil || session.Status != enums.SessionStatusActive {
		return pkgerrors.New(pkgerrors.CodeNotFound, "session not found")
	}
	if session.HostUserID != input.HostUserID {
		return pkgerrors.New(pkgerrors.CodeForbidden, "only the host can decide joins")
	}

	participant, err := s.repo.FindParticipantByID(ctx, input.ParticipantID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load participant")
	}
	if participant == nil || participant.SessionID != session.ID {
		return pkgerrors.New(pkgerrors.CodeNotFound, "join request not found")
	}
	if participant.Status != enums.JoinStatusPending {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "join request already decided")
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)

		now := time.Now().UTC()
		if input.Approve {
			participant.Status = enums.JoinStatusApproved
			participant.ApprovedAt = &now
		} else {
			participant.Status = enums.JoinStatusRejected
		}
		if err := txRepo.UpdateParticipant(ctx, participant); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: update participant")
		}

		userID := participant.UserID
		deviceID := participant.DeviceID
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventSessionJoinDecided,
			AggregateType: enums.AggregateShareSession,
			AggregateID:   session.ID,
			OwnerUserID:   session.HostUserID,
			Actor:         actorRef(input.HostUserID, uuid.Nil),
			Data: payloads.SessionLifecycleEvent{
				SessionID:  session.ID,
				Code:       session.Code,
				HostUserID: session.HostUserID,
				UserID:     &userID,
				DeviceID:   &deviceID,
				JoinStatus: participant.Status.String(),
			},
		})
	})
}

// End leaves (or, for the host, closes) the active session. Local state is
// cleared first and unconditionally; remote cleanup is best effort because a
// device must never stay stranded in a dead session.
func (s *Service) End(ctx context.Context, userID, deviceID uuid.UUID) error {
	record, err := s.devices.Restore(ctx, userID, deviceID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "restore device record")
	}
	if record == nil {
		return nil
	}

	if err := s.devices.Clear(ctx, userID, deviceID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear device record")
	}

	if err := s.notifyEnd(ctx, record, userID, deviceID); err != nil && s.logger != nil {
		logCtx := s.logger.WithFields(ctx, map[string]any{
			"session_code": record.Code,
			"error":        err.Error(),
		})
		s.logger.Warn(logCtx, "session end notification failed")
	}
	return nil
}

func (s *Service) notifyEnd(ctx context.Context, record *DeviceRecord, userID, deviceID uuid.UUID) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)

		if record.IsHost {
			if err := txRepo.EndSession(ctx, record.SessionID); err != nil {
				return err
			}
			return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventSessionEnded,
				AggregateType: enums.AggregateShareSession,
				AggregateID:   record.SessionID,
				OwnerUserID:   record.HostUserID,
				Actor:         actorRef(userID, deviceID),
				Data: payloads.SessionLifecycleEvent{
					SessionID:  record.SessionID,
					Code:       record.Code,
					HostUserID: record.HostUserID,
					Status:     enums.SessionStatusEnded.String(),
				},
			})
		}

		participant, err := txRepo.FindParticipantByDevice(ctx, record.SessionID, deviceID)
		if err != nil {
			return err
		}
		if participant == nil {
			return nil
		}
		now := time.Now().UTC()
		participant.Status = enums.JoinStatusLeft
		participant.LeftAt = &now
		if err := txRepo.UpdateParticipant(ctx, participant); err != nil {
			return err
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventSessionLeft,
			AggregateType: enums.AggregateShareSession,
			AggregateID:   record.SessionID,
			OwnerUserID:   record.HostUserID,
			Actor:         actorRef(userID, deviceID),
			Data: payloads.SessionLifecycleEvent{
				SessionID:  record.SessionID,
				Code:       record.Code,
				HostUserID: record.HostUserID,
				UserID:     &userID,
				DeviceID:   &deviceID,
				JoinStatus: enums.JoinStatusLeft.String(),
			},
		})
	})
}

// Refresh revalidates the stored record against the session table. Sessions
// the backend no longer recognizes, and joins that lost their approval, clear
// the local record the same way End does, minus the remote calls.
func (s *Service) Refresh(ctx context.Context, userID, deviceID uuid.UUID) (*DeviceRecord, error) {
	record, err := s.devices.Restore(ctx, userID, deviceID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "restore device record")
	}
	if record == nil {
		return nil, nil
	}

	session, err := s.repo.FindActiveSessionByCode(ctx, record.Code)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load session")
	}
	if session == nil || session.ID != record.SessionID {
		return nil, s.clearLocal(ctx, userID, deviceID)
	}

	if !record.IsHost {
		participant, err := s.repo.FindParticipantByDevice(ctx, session.ID, deviceID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load participant")
		}
		if participant == nil || participant.Status != enums.JoinStatusApproved {
			return nil, s.clearLocal(ctx, userID, deviceID)
		}
	}

	hostState, err := s.plans.StateFor(ctx, session.HostUserID)
	if err != nil {
		return nil, err
	}

	updated := *record
	updated.EventID = session.EventID
	updated.ApprovalRequired = session.ApprovalRequired
	updated.RequiresPassphrase = session.PassphraseHash != nil
	updated.HostPlanTier = hostState.Tier
	updated.HostPlanPaused = hostState.Paused
	updated.Revision = record.Revision + 1

	if err := s.devices.Persist(ctx, userID, deviceID, updated); err != nil {
		if errors.Is(err, ErrStaleRecord) {
			// A newer join or end won the race; surface whatever it stored.
			return s.devices.Restore(ctx, userID, deviceID)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist device record")
	}
	return &updated, nil
}

func (s *Service) clearLocal(ctx context.Context, userID, deviceID uuid.UUID) error {
	if err := s.devices.Clear(ctx, userID, deviceID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear device record")
	}
	return nil
}

func (s *Service) insertWithFreshCode(ctx context.Context, txRepo Repository, input CreateInput, passphraseHash *string) (*models.ShareSession, error) {
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code, err := GenerateJoinCode(s.cfg.JoinCodeLength)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate join code")
		}

		taken, err := txRepo.FindActiveSessionByCode(ctx, code)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: check code")
		}
		if taken != nil {
			continue
		}

		session := &models.ShareSession{
			Code:             code,
			HostUserID:       input.UserID,
			HostDeviceID:     input.DeviceID,
			EventID:          input.EventID,
			PassphraseHash:   passphraseHash,
			ApprovalRequired: input.ApprovalRequired,
			Status:           enums.SessionStatusActive,
		}
		if err := txRepo.CreateSession(ctx, session); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: insert session")
		}
		return session, nil
	}
	return nil, pkgerrors.New(pkgerrors.CodeDependency, "could not allocate a unique join code")
}

func (s *Service) recordPendingJoin(ctx context.Context, session *models.ShareSession, existing *models.ShareSessionParticipant, input JoinInput) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)

		if existing == nil {
			participant := &models.ShareSessionParticipant{
				SessionID: session.ID,
				UserID:    input.UserID,
				DeviceID:  input.DeviceID,
				Status:    enums.JoinStatusPending,
			}
			if err := txRepo.CreateParticipant(ctx, participant); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: insert participant")
			}
			existing = participant
		} else if existing.Status != enums.JoinStatusPending {
			existing.Status = enums.JoinStatusPending
			existing.LeftAt = nil
			if err := txRepo.UpdateParticipant(ctx, existing); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: update participant")
			}
		}

		userID := input.UserID
		deviceID := input.DeviceID
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventSessionJoinPending,
			AggregateType: enums.AggregateShareSession,
			AggregateID:   session.ID,
			OwnerUserID:   session.HostUserID,
			Actor:         actorRef(input.UserID, input.DeviceID),
			Data: payloads.SessionLifecycleEvent{
				SessionID:  session.ID,
				Code:       session.Code,
				HostUserID: session.HostUserID,
				UserID:     &userID,
				DeviceID:   &deviceID,
				JoinStatus: enums.JoinStatusPending.String(),
			},
		})
	})
}

func (s *Service) recordApprovedJoin(ctx context.Context, session *models.ShareSession, existing *models.ShareSessionParticipant, input JoinInput) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)

		now := time.Now().UTC()
		if existing == nil {
			participant := &models.ShareSessionParticipant{
				SessionID:  session.ID,
				UserID:     input.UserID,
				DeviceID:   input.DeviceID,
				Status:     enums.JoinStatusApproved,
				ApprovedAt: &now,
			}
			if err := txRepo.CreateParticipant(ctx, participant); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: insert participant")
			}
		} else if existing.Status != enums.JoinStatusApproved {
			existing.Status = enums.JoinStatusApproved
			existing.ApprovedAt = &now
			existing.LeftAt = nil
			if err := txRepo.UpdateParticipant(ctx, existing); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: update participant")
			}
		}

		userID := input.UserID
		deviceID := input.DeviceID
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventSessionJoined,
			AggregateType: enums.AggregateShareSession,
			AggregateID:   session.ID,
			OwnerUserID:   session.HostUserID,
			Actor:         actorRef(input.UserID, input.DeviceID),
			Data: payloads.SessionLifecycleEvent{
				SessionID:  session.ID,
				Code:       session.Code,
				HostUserID: session.HostUserID,
				UserID:     &userID,
				DeviceID:   &deviceID,
				JoinStatus: enums.JoinStatusApproved.String(),
			},
		})
	})
}

func (s *Service) buildRecord(session *models.ShareSession, userID, deviceID uuid.UUID, hostState plans.State) DeviceRecord {
	return DeviceRecord{
		Code:               session.Code,
		SessionID:          session.ID,
		EventID:            session.EventID,
		HostUserID:         session.HostUserID,
		HostDeviceID:       session.HostDeviceID,
		IsHost:             userID == session.HostUserID,
		HostPlanTier:       hostState.Tier,
		HostPlanPaused:     hostState.Paused,
		RequiresPassphrase: session.PassphraseHash != nil,
		ApprovalRequired:   session.ApprovalRequired,
		CreatedAt:          time.Now().UTC(),
	}
}

// persistRecord overwrites the device's record, carrying the revision counter
// forward so the stale-write guard keeps working across sessions.
func (s *Service) persistRecord(ctx context.Context, userID, deviceID uuid.UUID, record DeviceRecord) error {
	current, err := s.devices.Restore(ctx, userID, deviceID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "restore device record")
	}
	record.Revision = 1
	if current != nil {
		record.Revision = current.Revision + 1
	}
	if err := s.devices.Persist(ctx, userID, deviceID, record); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist device record")
	}
	return nil
}

func actorRef(userID, deviceID uuid.UUID) *outbox.ActorRef {
	actor := &outbox.ActorRef{UserID: userID}
	if deviceID != uuid.Nil {
		device := deviceID
		actor.DeviceID = &device
	}
	return actor
}
