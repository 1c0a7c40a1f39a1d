package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/mdelarosa/tallypos-backend/api/responses"
	"github.com/mdelarosa/tallypos-backend/api/validators"
	"github.com/mdelarosa/tallypos-backend/internal/sessions"
	pkgerrors "github.com/mdelarosa/tallypos-backend/pkg/errors"
	"github.com/mdelarosa/tallypos-backend/pkg/logger"
)

type createSessionRequest struct {
	EventID          *uuid.UUID `json:"event_id,omitempty"`
	Passphrase       *string    `json:"passphrase,omitempty"`
	ApprovalRequired bool       `json:"approval_required"`
}

type joinSessionRequest struct {
	Code       string  `json:"code" validate:"required"`
	Passphrase *string `json:"passphrase,omitempty"`
}

type decideSessionRequest struct {
	SessionID     uuid.UUID `json:"session_id" validate:"required"`
	ParticipantID uuid.UUID `json:"participant_id" validate:"required"`
	Approve       bool      `json:"approve"`
}

// SessionCreate opens a share session hosted by the calling device.
func SessionCreate(svc *sessions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "sessions service unavailable"))
			return
		}

		userID, deviceID, err := requestIdentity(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body createSessionRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		record, err := svc.Create(r.Context(), sessions.CreateInput{
			UserID:           userID,
			DeviceID:         deviceID,
			EventID:          body.EventID,
			Passphrase:       body.Passphrase,
			ApprovalRequired: body.ApprovalRequired,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, record)
	}
}

// SessionJoin attempts to join a hosted session by code.
func SessionJoin(svc *sessions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "sessions service unavailable"))
			return
		}

		userID, deviceID, err := requestIdentity(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body joinSessionRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Join(r.Context(), sessions.JoinInput{
			UserID:     userID,
			DeviceID:   deviceID,
			Code:       body.Code,
			Passphrase: body.Passphrase,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, result)
	}
}

// SessionDecide records the host's verdict on a pending participant.
func SessionDecide(svc *sessions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "sessions service unavailable"))
			return
		}

		userID, _, err := requestIdentity(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body decideSessionRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Decide(r.Context(), sessions.DecideInput{
			HostUserID:    userID,
			SessionID:     body.SessionID,
			ParticipantID: body.ParticipantID,
			Approve:       body.Approve,
		}); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"status": "decided"})
	}
}

// SessionEnd leaves or ends the device's current session.
func SessionEnd(svc *sessions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "sessions service unavailable"))
			return
		}

		userID, deviceID, err := requestIdentity(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.End(r.Context(), userID, deviceID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"status": "ended"})
	}
}

// SessionRefresh revalidates the device's stored session record.
func SessionRefresh(svc *sessions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "sessions service unavailable"))
			return
		}

		userID, deviceID, err := requestIdentity(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		record, err := svc.Refresh(r.Context(), userID, deviceID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, record)
	}
}

// SessionCurrent reports the effective scope the device operates in.
func SessionCurrent(resolver scopeResolver, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scope, _, err := requestScope(r, resolver)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, scope)
	}
}
