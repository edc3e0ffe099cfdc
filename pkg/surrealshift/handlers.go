package surrealshift

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/surrealdb/surrealshift/pkg/coordinator"
	"github.com/surrealdb/surrealshift/pkg/migration"
	"github.com/surrealdb/surrealshift/pkg/models"
	"github.com/surrealdb/surrealshift/pkg/store"
)

// CorrelationHeader carries the correlation ID in and out of every request.
const CorrelationHeader = "X-Correlation-ID"

func (a *App) correlationMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(CorrelationHeader)
		if id == "" {
			id = migration.NewCorrelationID()
		}
		w.Header().Set(CorrelationHeader, id)
		next.ServeHTTP(w, r.WithContext(migration.WithCorrelationID(r.Context(), id)))
	})
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	response, _ := json.Marshal(payload)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		_, _ = w.Write(response)
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// statusFor maps coordinator and registry errors onto HTTP statuses.
func statusFor(err error) int {
	var flagValue *migration.InvalidFlagValueError
	switch {
	case errors.Is(err, migration.ErrInvalidPhase),
		errors.Is(err, migration.ErrUnknownFlag),
		errors.As(err, &flagValue),
		errors.Is(err, models.ErrInvalid),
		errors.Is(err, coordinator.ErrInvalidQuantity),
		errors.Is(err, coordinator.ErrInvalidStatus),
		errors.Is(err, coordinator.ErrInvalidParent):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, migration.ErrValidationFailed),
		errors.Is(err, coordinator.ErrInsufficientInventory),
		errors.Is(err, store.ErrConflict):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// respondFailure writes err with its mapped status. A failed dual read also
// carries the divergence list.
func (a *App) respondFailure(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		a.logger.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	}

	var vf *migration.ValidationFailedError
	if errors.As(err, &vf) && vf.Report != nil {
		respondJSON(w, status, map[string]any{
			"error":          vf.Message,
			"correlation_id": vf.Report.CorrelationID,
			"errors":         vf.Report.Errors,
		})
		return
	}
	respondError(w, status, err.Error())
}

func readJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: invalid request payload: %v", models.ErrInvalid, err)
	}
	return nil
}

// decode reads a JSON body into v and checks its validate tags.
func decode(r *http.Request, v any) error {
	if err := readJSON(r, v); err != nil {
		return err
	}
	return models.Validate("request", v)
}

func (a *App) handleHealth(w http.ResponseWriter, r *http.Request) {
	phase := a.registry.Phase()
	respondJSON(w, http.StatusOK, map[string]any{
		"status":     "healthy",
		"phase":      int(phase),
		"phase_name": phase.String(),
		"time":       time.Now().Unix(),
	})
}

func (a *App) flagsPayload() map[string]any {
	flags := a.registry.AllFlags()
	return map[string]any{
		"flags":      flags.Map(),
		"phase":      int(flags.Phase),
		"phase_name": flags.Phase.String(),
	}
}

func (a *App) handleGetFlags(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, a.flagsPayload())
}

type setFlagsRequest struct {
	Flags map[string]any `json:"flags" validate:"required,min=1"`
}

// handleSetFlags applies every flag in the request or, when any name or
// value is rejected, none of them.
func (a *App) handleSetFlags(w http.ResponseWriter, r *http.Request) {
	var req setFlagsRequest
	if err := decode(r, &req); err != nil {
		a.respondFailure(w, r, err)
		return
	}
	if err := a.registry.SetFlags(req.Flags); err != nil {
		a.respondFailure(w, r, err)
		return
	}
	a.logger.Info().Interface("flags", req.Flags).Msg("migration flags changed")
	respondJSON(w, http.StatusOK, a.flagsPayload())
}

type setPhaseRequest struct {
	Phase int `json:"phase"`
}

func (a *App) handleSetPhase(w http.ResponseWriter, r *http.Request) {
	var req setPhaseRequest
	if err := decode(r, &req); err != nil {
		a.respondFailure(w, r, err)
		return
	}
	if err := a.registry.SetPhase(migration.Phase(req.Phase)); err != nil {
		a.respondFailure(w, r, err)
		return
	}
	a.logger.Info().Stringer("phase", migration.Phase(req.Phase)).Msg("migration phase changed")
	respondJSON(w, http.StatusOK, a.flagsPayload())
}

func (a *App) handleReset(w http.ResponseWriter, r *http.Request) {
	a.registry.Reset()
	a.logger.Info().Msg("migration flags reset")
	respondJSON(w, http.StatusOK, a.flagsPayload())
}

func (a *App) handleCompensations(w http.ResponseWriter, r *http.Request) {
	pending, err := a.journal.Pending(r.Context(), time.Time{})
	if err != nil {
		a.respondFailure(w, r, err)
		return
	}
	if pending == nil {
		pending = []*models.Compensation{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"pending": pending})
}

func (a *App) handleReconcile(w http.ResponseWriter, r *http.Request) {
	res, err := a.reconciler.Sweep(r.Context())
	if err != nil {
		a.respondFailure(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

func (a *App) handleBackfill(w http.ResponseWriter, r *http.Request) {
	results, err := a.coordinators.Backfill(r.Context())
	if err != nil {
		a.respondFailure(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"results": results})
}
