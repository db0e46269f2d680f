package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/slotgrid/availability-engine/internal/engine"
	"github.com/slotgrid/availability-engine/internal/schedule"
	"github.com/slotgrid/availability-engine/internal/slot"
)

type RunRequest struct {
	From      string `json:"from,omitempty"` // 2006-01-02
	To        string `json:"to,omitempty"`
	Force     bool   `json:"force,omitempty"`
	BatchSize int    `json:"batch_size,omitempty"`
}

type RunResponse struct {
	Created            int               `json:"created"`
	Deleted            int               `json:"deleted"`
	Preserved          int               `json:"preserved"`
	PreservedProtected int               `json:"preserved_protected"`
	Skipped            int               `json:"skipped"`
	DaysProcessed      int               `json:"days_processed"`
	Conflicts          []ConflictPayload `json:"conflicts,omitempty"`
}

type ReservationPayload struct {
	ID         uuid.UUID `json:"id"`
	Date       string    `json:"date"`
	StartAt    time.Time `json:"start_at"`
	ResourceID *string   `json:"resource_id,omitempty"`
	Status     string    `json:"status"`
}

type ConflictPayload struct {
	Date         string               `json:"date"`
	Weekday      string               `json:"weekday"`
	Reservations []ReservationPayload `json:"reservations"`
}

type BlockPayload struct {
	Open  string `json:"open"`
	Close string `json:"close"`
}

type ConflictCheckRequest struct {
	Week        map[string][]BlockPayload `json:"week"`
	AutoProtect bool                      `json:"auto_protect,omitempty"`
}

type ConflictCheckResponse struct {
	Valid          bool              `json:"valid"`
	Conflicts      []ConflictPayload `json:"conflicts,omitempty"`
	ProtectedDates []string          `json:"protected_dates,omitempty"`
}

type SlotPayload struct {
	ID              uuid.UUID `json:"id"`
	ResourceID      *string   `json:"resource_id,omitempty"`
	Date            string    `json:"date"`
	StartTime       time.Time `json:"start_time"`
	EndTime         time.Time `json:"end_time"`
	DurationMinutes int       `json:"duration_minutes"`
	Status          string    `json:"status"`
}

type ConflictErrorResponse struct {
	Error     string            `json:"error"`
	Details   string            `json:"details,omitempty"`
	Conflicts []ConflictPayload `json:"conflicts"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func toRunResponse(rep engine.Report) RunResponse {
	return RunResponse{
		Created:            rep.Created,
		Deleted:            rep.Deleted,
		Preserved:          rep.Preserved,
		PreservedProtected: rep.Protected,
		Skipped:            rep.Skipped,
		DaysProcessed:      rep.DaysProcessed,
		Conflicts:          toConflictPayloads(rep.Conflicts),
	}
}

func toConflictPayloads(conflicts []engine.Conflict) []ConflictPayload {
	if len(conflicts) == 0 {
		return nil
	}
	out := make([]ConflictPayload, len(conflicts))
	for i, c := range conflicts {
		reservations := make([]ReservationPayload, len(c.Reservations))
		for j, rv := range c.Reservations {
			var resourceID *string
			if rv.ResourceID != nil {
				s := rv.ResourceID.String()
				resourceID = &s
			}
			reservations[j] = ReservationPayload{
				ID:         rv.ID,
				Date:       rv.Date.Format("2006-01-02"),
				StartAt:    rv.StartAt,
				ResourceID: resourceID,
				Status:     string(rv.Status),
			}
		}
		out[i] = ConflictPayload{
			Date:         c.Date.Format("2006-01-02"),
			Weekday:      strings.ToLower(c.Weekday.String()),
			Reservations: reservations,
		}
	}
	return out
}

func toSlotPayload(s slot.Slot) SlotPayload {
	var resourceID *string
	if s.ResourceID != nil {
		v := s.ResourceID.String()
		resourceID = &v
	}
	return SlotPayload{
		ID:              s.ID,
		ResourceID:      resourceID,
		Date:            s.SlotDate.Format("2006-01-02"),
		StartTime:       s.StartTime,
		EndTime:         s.EndTime,
		DurationMinutes: s.DurationMinutes,
		Status:          string(s.Status),
	}
}

var weekdayNames = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

func parseWeek(payload map[string][]BlockPayload) (schedule.WeekSchedule, error) {
	week := make(schedule.WeekSchedule, len(payload))
	for name, blocks := range payload {
		day, ok := weekdayNames[strings.ToLower(name)]
		if !ok {
			return nil, fmt.Errorf("unknown weekday %q", name)
		}
		for _, b := range blocks {
			week[day] = append(week[day], schedule.TimeBlock{Open: b.Open, Close: b.Close})
		}
	}
	if err := week.Validate(); err != nil {
		return nil, err
	}
	return week, nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}
