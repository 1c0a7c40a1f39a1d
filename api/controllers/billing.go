package controllers

import (
	"context"
	"net/http"

	"github.com/mdelarosa/tallypos-backend/api/responses"
	"github.com/mdelarosa/tallypos-backend/internal/plans"
	"github.com/mdelarosa/tallypos-backend/pkg/db/models"
	"github.com/mdelarosa/tallypos-backend/pkg/enums"
	pkgerrors "github.com/mdelarosa/tallypos-backend/pkg/errors"
	"github.com/mdelarosa/tallypos-backend/pkg/logger"
)

type planLister interface {
	ListPlans(ctx context.Context, params plans.ListBillingPlansQuery) ([]models.BillingPlan, error)
}

// BillingPlans lists the active billing plans vendors can subscribe to.
func BillingPlans(svc planLister, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "plans service unavailable"))
			return
		}

		status := enums.PlanStatusActive
		list, err := svc.ListPlans(r.Context(), plans.ListBillingPlansQuery{Status: &status})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, list)
	}
}
