package plans

import (
	"github.com/mdelarosa/tallypos-backend/pkg/enums"
)

// State is the effective billing state applied to a vendor's data. It is
// mirrored into share sessions so participants inherit the host's quota.
type State struct {
	Tier   enums.PlanTier `json:"tier"`
	Paused bool           `json:"paused"`
}

// LimitFor maps a plan state to the maximum number of live inventory items.
// Paused subscriptions and the free tier share the same fixed cap. For paid
// tiers the plan row's configured cap applies; nil means uncapped.
func LimitFor(tier enums.PlanTier, paused bool, freeTierLimit int, planMax *int) *int {
	if paused || tier == enums.PlanTierFree || !tier.IsValid() {
		limit := freeTierLimit
		return &limit
	}
	if planMax == nil {
		return nil
	}
	limit := *planMax
	return &limit
}
