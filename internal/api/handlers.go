package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/slotgrid/availability-engine/internal/engine"
	redisclient "github.com/slotgrid/availability-engine/internal/redis"
	"github.com/slotgrid/availability-engine/internal/schedule"
	"github.com/slotgrid/availability-engine/internal/slot"
)

// Engine is the orchestrator surface the handlers need. It is satisfied by
// *engine.Service and stubbed in tests.
type Engine interface {
	Generate(ctx context.Context, businessID uuid.UUID, opts engine.Options) (engine.Report, error)
	Regenerate(ctx context.Context, businessID uuid.UUID, opts engine.Options) (engine.Report, error)
	Cleanup(ctx context.Context, businessID uuid.UUID, opts engine.Options) (engine.Report, error)
	CleanupAndRegenerate(ctx context.Context, businessID uuid.UUID, opts engine.Options) (engine.Report, error)
	DetectConflicts(ctx context.Context, businessID uuid.UUID, candidate schedule.WeekSchedule, opts engine.Options) ([]engine.Conflict, error)
}

type runFunc func(ctx context.Context, businessID uuid.UUID, opts engine.Options) (engine.Report, error)

func runHandler(run runFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		businessID, err := uuid.Parse(chi.URLParam(r, "businessID"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_business_id", "business id must be a valid UUID")
			return
		}

		var req RunRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		opts, err := req.toOptions()
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", err.Error())
			return
		}

		rep, err := run(r.Context(), businessID, opts)
		if err != nil {
			handleRunError(w, rep, err)
			return
		}

		writeJSON(w, http.StatusOK, toRunResponse(rep))
	}
}

func (req RunRequest) toOptions() (engine.Options, error) {
	opts := engine.Options{Force: req.Force, BatchSize: req.BatchSize}

	if req.From != "" {
		from, err := time.Parse("2006-01-02", req.From)
		if err != nil {
			return engine.Options{}, fmt.Errorf("from must be YYYY-MM-DD: %v", err)
		}
		opts.From = from
	}
	if req.To != "" {
		to, err := time.Parse("2006-01-02", req.To)
		if err != nil {
			return engine.Options{}, fmt.Errorf("to must be YYYY-MM-DD: %v", err)
		}
		opts.To = to
	}
	return opts, nil
}

func handleRunError(w http.ResponseWriter, rep engine.Report, err error) {
	var conflictErr *engine.ConflictError
	var configErr *engine.ConfigError
	var batchErr *engine.BatchError

	switch {
	case errors.As(err, &conflictErr):
		writeJSON(w, http.StatusConflict, ConflictErrorResponse{
			Error:     "conflict_detected",
			Details:   err.Error(),
			Conflicts: toConflictPayloads(conflictErr.Conflicts),
		})
	case errors.As(err, &configErr):
		writeError(w, http.StatusUnprocessableEntity, "configuration_incomplete", err.Error())
	case errors.Is(err, engine.ErrBusinessBusy), errors.Is(err, redisclient.ErrLockNotAcquired):
		writeError(w, http.StatusConflict, "engine_busy", "another run is in progress for this business, retry shortly")
	case errors.Is(err, engine.ErrProtectionQuery):
		writeError(w, http.StatusServiceUnavailable, "protection_unavailable", "reservation ledger could not be queried; no deletion was performed")
	case errors.As(err, &batchErr):
		writeJSON(w, http.StatusInternalServerError, struct {
			ErrorResponse
			RunResponse
		}{
			ErrorResponse{Error: "batch_write_failed", Details: err.Error()},
			toRunResponse(rep),
		})
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

func conflictCheckHandler(eng Engine, schedules schedule.Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		businessID, err := uuid.Parse(chi.URLParam(r, "businessID"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_business_id", "business id must be a valid UUID")
			return
		}

		var req ConflictCheckRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		candidate, err := parseWeek(req.Week)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_week_schedule", err.Error())
			return
		}

		conflicts, err := eng.DetectConflicts(r.Context(), businessID, candidate, engine.Options{})
		if err != nil {
			var configErr *engine.ConfigError
			if errors.As(err, &configErr) {
				writeError(w, http.StatusUnprocessableEntity, "configuration_incomplete", err.Error())
				return
			}
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}

		resp := ConflictCheckResponse{
			Valid:     len(conflicts) == 0,
			Conflicts: toConflictPayloads(conflicts),
		}

		// The mitigation path: force each conflicted date open so existing
		// reservations keep their day, then the caller re-runs generate.
		// This is the caller's write, not the engine's.
		if req.AutoProtect && len(conflicts) > 0 {
			for _, c := range conflicts {
				ex := schedule.CalendarException{
					BusinessID: businessID,
					Date:       c.Date,
					Open:       true,
					Reason:     "kept open for existing reservations",
				}
				if err := schedules.CreateException(r.Context(), ex); err != nil {
					writeError(w, http.StatusInternalServerError, "auto_protect_failed", err.Error())
					return
				}
				resp.ProtectedDates = append(resp.ProtectedDates, c.Date.Format("2006-01-02"))
			}
			resp.Valid = true
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

func listSlotsHandler(slots slot.Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		businessID, err := uuid.Parse(chi.URLParam(r, "businessID"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_business_id", "business id must be a valid UUID")
			return
		}

		from := engine.DateOnly(time.Now())
		to := from.AddDate(0, 0, 30)

		if v := r.URL.Query().Get("from"); v != "" {
			from, err = time.Parse("2006-01-02", v)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_range", "from must be YYYY-MM-DD")
				return
			}
		}
		if v := r.URL.Query().Get("to"); v != "" {
			to, err = time.Parse("2006-01-02", v)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_range", "to must be YYYY-MM-DD")
				return
			}
		}

		result, err := slots.ListByRange(r.Context(), businessID, from, to)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}

		payload := make([]SlotPayload, len(result))
		for i, s := range result {
			payload[i] = toSlotPayload(s)
		}
		writeJSON(w, http.StatusOK, payload)
	}
}
