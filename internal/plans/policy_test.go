package plans

import (
	"testing"

	"github.com/mdelarosa/tallypos-backend/pkg/enums"
)

func TestLimitForFreeAndPausedShareTheCap(t *testing.T) {
	freeLimit := 5
	max := 500

	free := LimitFor(enums.PlanTierFree, false, freeLimit, nil)
	if free == nil || *free != freeLimit {
		t.Fatalf("expected free cap %d, got %v", freeLimit, free)
	}

	for _, tier := range []enums.PlanTier{enums.PlanTierFree, enums.PlanTierPro, enums.PlanTierEnterprise} {
		paused := LimitFor(tier, true, freeLimit, &max)
		if paused == nil || *paused != *free {
			t.Fatalf("paused %s should match free cap, got %v", tier, paused)
		}
	}
}

func TestLimitForPaidTierUsesPlanCap(t *testing.T) {
	max := 500
	got := LimitFor(enums.PlanTierPro, false, 5, &max)
	if got == nil || *got != max {
		t.Fatalf("expected plan cap %d, got %v", max, got)
	}
}

func TestLimitForPaidTierWithoutCapIsUnlimited(t *testing.T) {
	if got := LimitFor(enums.PlanTierEnterprise, false, 5, nil); got != nil {
		t.Fatalf("expected unlimited, got %d", *got)
	}
}

func TestLimitForUnknownTierFallsBackToFreeCap(t *testing.T) {
	got := LimitFor(enums.PlanTier("legacy"), false, 5, nil)
	if got == nil || *got != 5 {
		t.Fatalf("expected free cap for unknown tier, got %v", got)
	}
}

func TestLimitForReturnsCopies(t *testing.T) {
	max := 10
	got := LimitFor(enums.PlanTierPro, false, 5, &max)
	*got = 99
	if max != 10 {
		t.Fatal("policy must not alias the caller's cap")
	}
}
