package sessions

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/mdelarosa/tallypos-backend/internal/plans"
	pkgerrors "github.com/mdelarosa/tallypos-backend/pkg/errors"
)

// Scope is the resolved data scope for a device: whose rows it reads and
// writes, and under which plan. With no active session both fall back to the
// signed-in user; inside a session they follow the host.
type Scope struct {
	OwnerUserID uuid.UUID   `json:"ownerUserId"`
	SessionID   *uuid.UUID  `json:"sessionId,omitempty"`
	Plan        plans.State `json:"plan"`
}

// Resolver derives the effective scope for inventory and order operations.
type Resolver struct {
	devices DeviceStore
	plans   planSource
}

// NewResolver builds a session scope resolver.
func NewResolver(devices DeviceStore, planSrc planSource) (*Resolver, error) {
	if devices == nil {
		return nil, errors.New("device store is required")
	}
	if planSrc == nil {
		return nil, errors.New("plan source is required")
	}
	return &Resolver{devices: devices, plans: planSrc}, nil
}

// Resolve returns the scope the device is currently operating in.
func (r *Resolver) Resolve(ctx context.Context, userID, deviceID uuid.UUID) (Scope, error) {
	if userID == uuid.Nil {
		return Scope{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}

	if deviceID != uuid.Nil {
		record, err := r.devices.Restore(ctx, userID, deviceID)
		if err != nil {
			return Scope{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "restore device record")
		}
		if record != nil {
			sessionID := record.SessionID
			return Scope{
				OwnerUserID: record.HostUserID,
				SessionID:   &sessionID,
				Plan: plans.State{
					Tier:   record.HostPlanTier,
					Paused: record.HostPlanPaused,
				},
			}, nil
		}
	}

	state, err := r.plans.StateFor(ctx, userID)
	if err != nil {
		return Scope{}, err
	}
	return Scope{OwnerUserID: userID, Plan: state}, nil
}
