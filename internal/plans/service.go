package plans

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/mdelarosa/tallypos-backend/pkg/config"
	"github.com/mdelarosa/tallypos-backend/pkg/db/models"
	"github.com/mdelarosa/tallypos-backend/pkg/enums"
	pkgerrors "github.com/mdelarosa/tallypos-backend/pkg/errors"
	"github.com/mdelarosa/tallypos-backend/pkg/logger"
)

// ServiceParams groups dependencies for the plans service.
type ServiceParams struct {
	Repo   Repository
	Cache  Cache
	Config config.PlansConfig
	Logger *logger.Logger
}

// Service resolves a vendor's effective plan state and item quota.
type Service struct {
	repo   Repository
	cache  Cache
	cfg    config.PlansConfig
	logger *logger.Logger
}

// NewService builds a plans service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, errors.New("repo is required")
	}
	if params.Cache == nil {
		return nil, errors.New("cache is required")
	}
	if params.Config.FreeTierItemLimit <= 0 {
		return nil, errors.New("free tier item limit must be positive")
	}
	return &Service{
		repo:   params.Repo,
		cache:  params.Cache,
		cfg:    params.Config,
		logger: params.Logger,
	}, nil
}

// StateFor resolves the effective plan state for a user. Users without an
// entitled subscription resolve to the free tier.
func (s *Service) StateFor(ctx context.Context, userID uuid.UUID) (State, error) {
	cached, err := s.cache.Get(ctx, userID.String())
	if err != nil {
		if s.logger != nil {
			s.logger.Warn(s.logger.WithField(ctx, "error", err.Error()), "plan cache read failed")
		}
	} else if cached != nil {
		return *cached, nil
	}

	state, err := s.resolveState(ctx, userID)
	if err != nil {
		return State{}, err
	}

	if err := s.cache.Set(ctx, userID.String(), state); err != nil && s.logger != nil {
		s.logger.Warn(s.logger.WithField(ctx, "error", err.Error()), "plan cache write failed")
	}
	return state, nil
}

func (s *Service) resolveState(ctx context.Context, userID uuid.UUID) (State, error) {
	sub, err := s.repo.FindLatestSubscriptionByUser(ctx, userID)
	if err != nil {
		return State{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load subscription")
	}
	if sub == nil || !sub.Status.CountsAsEntitled() {
		return State{Tier: enums.PlanTierFree}, nil
	}
	return State{
		Tier:   sub.PlanTier,
		Paused: sub.Paused || sub.Status == enums.SubscriptionStatusPaused,
	}, nil
}

// LimitFor computes the live-item cap for a user's current plan state.
// A nil result means the user is uncapped.
func (s *Service) LimitFor(ctx context.Context, userID uuid.UUID) (*int, error) {
	state, err := s.StateFor(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.LimitForState(ctx, state)
}

// LimitForState computes the cap for an already-resolved plan state. Session
// participants use this with the host's mirrored state.
func (s *Service) LimitForState(ctx context.Context, state State) (*int, error) {
	if state.Paused || state.Tier == enums.PlanTierFree || !state.Tier.IsValid() {
		return LimitFor(state.Tier, state.Paused, s.cfg.FreeTierItemLimit, nil), nil
	}

	plan, err := s.repo.FindBillingPlanByTier(ctx, state.Tier)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load billing plan")
	}
	var planMax *int
	if plan != nil {
		planMax = plan.MaxItems
	}
	return LimitFor(state.Tier, state.Paused, s.cfg.FreeTierItemLimit, planMax), nil
}

// Invalidate drops a user's cached plan state. Billing webhooks call this
// after writing a subscription snapshot so the next lookup rereads the row.
func (s *Service) Invalidate(ctx context.Context, userID uuid.UUID) error {
	return s.cache.Invalidate(ctx, userID.String())
}

// ListPlans returns billing plans filtered by the supplied query.
func (s *Service) ListPlans(ctx context.Context, params ListBillingPlansQuery) ([]models.BillingPlan, error) {
	return s.repo.ListBillingPlans(ctx, params)
}
