package sessions

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/mdelarosa/tallypos-backend/internal/plans"
	"github.com/mdelarosa/tallypos-backend/pkg/enums"
)

func TestResolveWithoutSessionUsesOwnIdentity(t *testing.T) {
	ctx := context.Background()
	userID, deviceID := uuid.New(), uuid.New()
	planSrc := &stubPlans{states: map[uuid.UUID]plans.State{
		userID: {Tier: enums.PlanTierPro},
	}}

	resolver, err := NewResolver(newMemDeviceStore(), planSrc)
	if err != nil {
		t.Fatalf("new resolver: %v", err)
	}

	scope, err := resolver.Resolve(ctx, userID, deviceID)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if scope.OwnerUserID != userID || scope.SessionID != nil {
		t.Fatalf("expected own scope, got %+v", scope)
	}
	if scope.Plan.Tier != enums.PlanTierPro {
		t.Fatalf("expected own plan, got %s", scope.Plan.Tier)
	}
}

func TestResolveInsideSessionFollowsHost(t *testing.T) {
	ctx := context.Background()
	userID, deviceID := uuid.New(), uuid.New()
	hostID := uuid.New()
	sessionID := uuid.New()

	devices := newMemDeviceStore()
	_ = devices.Persist(ctx, userID, deviceID, DeviceRecord{
		Code:           "AB3XYZ",
		SessionID:      sessionID,
		HostUserID:     hostID,
		HostPlanTier:   enums.PlanTierEnterprise,
		HostPlanPaused: false,
		Revision:       1,
	})

	resolver, err := NewResolver(devices, &stubPlans{states: map[uuid.UUID]plans.State{}})
	if err != nil {
		t.Fatalf("new resolver: %v", err)
	}

	scope, err := resolver.Resolve(ctx, userID, deviceID)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if scope.OwnerUserID != hostID {
		t.Fatalf("expected host-owned scope, got %s", scope.OwnerUserID)
	}
	if scope.SessionID == nil || *scope.SessionID != sessionID {
		t.Fatalf("session id missing from scope: %+v", scope)
	}
	if scope.Plan.Tier != enums.PlanTierEnterprise {
		t.Fatalf("expected mirrored host plan, got %s", scope.Plan.Tier)
	}
}

func TestResolveRevertsAfterSessionEnds(t *testing.T) {
	ctx := context.Background()
	userID, deviceID := uuid.New(), uuid.New()
	hostID := uuid.New()

	devices := newMemDeviceStore()
	_ = devices.Persist(ctx, userID, deviceID, DeviceRecord{
		Code:       "AB3XYZ",
		SessionID:  uuid.New(),
		HostUserID: hostID,
		Revision:   1,
	})
	resolver, err := NewResolver(devices, &stubPlans{states: map[uuid.UUID]plans.State{}})
	if err != nil {
		t.Fatalf("new resolver: %v", err)
	}

	if err := devices.Clear(ctx, userID, deviceID); err != nil {
		t.Fatalf("clear: %v", err)
	}

	scope, err := resolver.Resolve(ctx, userID, deviceID)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if scope.OwnerUserID != userID {
		t.Fatalf("scope should revert to the signed-in user, got %s", scope.OwnerUserID)
	}
}
