package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/mdelarosa/tallypos-backend/api/responses"
	"github.com/mdelarosa/tallypos-backend/api/validators"
	"github.com/mdelarosa/tallypos-backend/internal/sessions"
	"github.com/mdelarosa/tallypos-backend/internal/staging"
	pkgerrors "github.com/mdelarosa/tallypos-backend/pkg/errors"
	"github.com/mdelarosa/tallypos-backend/pkg/logger"
)

// StagedCreate stages an item under an event without touching live inventory.
func StagedCreate(svc staging.Service, resolver scopeResolver, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "staging service unavailable"))
			return
		}

		scope, _, err := requestScope(r, resolver)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		eventID, err := validators.ParsePathUUID(chi.URLParam(r, "eventId"), "eventId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body staging.StageItemInput
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		item, err := svc.StageItem(r.Context(), scope, eventID, body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, item)
	}
}

// StagedList returns the staged rows for an event.
func StagedList(svc staging.Service, resolver scopeResolver, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "staging service unavailable"))
			return
		}

		scope, _, err := requestScope(r, resolver)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		eventID, err := validators.ParsePathUUID(chi.URLParam(r, "eventId"), "eventId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		list, err := svc.ListStaged(r.Context(), scope, eventID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, list)
	}
}

// StagedRelease releases a staged row back out of the event.
func StagedRelease(svc staging.Service, resolver scopeResolver, logg *logger.Logger) http.HandlerFunc {
	return stagedTransition(svc, resolver, logg, func(r *http.Request, scope sessions.Scope, stagedID uuid.UUID) (any, error) {
		return svc.ReleaseItem(r.Context(), scope, stagedID)
	})
}

// StagedConvert converts a staged row into a live inventory item.
func StagedConvert(svc staging.Service, resolver scopeResolver, logg *logger.Logger) http.HandlerFunc {
	return stagedTransition(svc, resolver, logg, func(r *http.Request, scope sessions.Scope, stagedID uuid.UUID) (any, error) {
		return svc.ConvertItem(r.Context(), scope, stagedID)
	})
}

// StagedDelete drops a staged row entirely.
func StagedDelete(svc staging.Service, resolver scopeResolver, logg *logger.Logger) http.HandlerFunc {
	return stagedTransition(svc, resolver, logg, func(r *http.Request, scope sessions.Scope, stagedID uuid.UUID) (any, error) {
		if err := svc.DeleteStaged(r.Context(), scope, stagedID); err != nil {
			return nil, err
		}
		return map[string]string{"status": "deleted"}, nil
	})
}

func stagedTransition(
	svc staging.Service,
	resolver scopeResolver,
	logg *logger.Logger,
	apply func(*http.Request, sessions.Scope, uuid.UUID) (any, error),
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "staging service unavailable"))
			return
		}

		scope, _, err := requestScope(r, resolver)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		stagedID, err := validators.ParsePathUUID(chi.URLParam(r, "stagedId"), "stagedId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := apply(r, scope, stagedID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, result)
	}
}
