package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/mdelarosa/tallypos-backend/api/middleware"
	"github.com/mdelarosa/tallypos-backend/internal/sessions"
	pkgerrors "github.com/mdelarosa/tallypos-backend/pkg/errors"
)

type scopeResolver interface {
	Resolve(ctx context.Context, userID, deviceID uuid.UUID) (sessions.Scope, error)
}

// requestIdentity extracts the authenticated user and device ids seeded by the
// auth middleware.
func requestIdentity(r *http.Request) (uuid.UUID, uuid.UUID, error) {
	userID, err := uuid.Parse(middleware.UserIDFromContext(r.Context()))
	if err != nil || userID == uuid.Nil {
		return uuid.Nil, uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	deviceID, err := uuid.Parse(middleware.DeviceIDFromContext(r.Context()))
	if err != nil {
		deviceID = uuid.Nil
	}
	return userID, deviceID, nil
}

// requestScope resolves the effective data scope for the calling device.
func requestScope(r *http.Request, resolver scopeResolver) (sessions.Scope, uuid.UUID, error) {
	userID, deviceID, err := requestIdentity(r)
	if err != nil {
		return sessions.Scope{}, uuid.Nil, err
	}
	if resolver == nil {
		return sessions.Scope{}, uuid.Nil, pkgerrors.New(pkgerrors.CodeInternal, "scope resolver unavailable")
	}
	scope, err := resolver.Resolve(r.Context(), userID, deviceID)
	if err != nil {
		return sessions.Scope{}, uuid.Nil, err
	}
	return scope, deviceID, nil
}
