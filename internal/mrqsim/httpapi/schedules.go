package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/marqueehq/marquee/api/types/v1alpha1"
	"github.com/marqueehq/marquee/internal/mrqview/schedule"
)

// handleCurrent answers the viewer poll. The payload shape is the contract
// viewers depend on: success plus data, where null data is an
// authoritative empty answer.
func (h *Handler) handleCurrent(w http.ResponseWriter, r *http.Request) {
	current, err := h.resolver.Current(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("current-content resolution failed")
		h.respondError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, v1alpha1.CurrentContentResponse{
		Success: current.Success,
		Data:    current.Data,
		Message: current.Message,
	})
}

func (h *Handler) handleCreateSchedule(w http.ResponseWriter, r *http.Request) {
	var s v1alpha1.Schedule
	if err := json.NewDecoder(r.Body).Decode(&s); err != nil {
		h.respondError(w, ErrInvalidRequest("invalid request body"))
		return
	}

	// The authority re-checks what consoles should have validated already
	if result := schedule.Validate(s); !result.Valid() {
		h.respondValidation(w, result)
		return
	}

	created, err := h.repo.CreateSchedule(r.Context(), s)
	if err != nil {
		h.respondError(w, err)
		return
	}

	h.logger.Info().Str("scheduleId", created.ID).Str("name", created.Name).Msg("schedule created")
	h.notifyChange(r, &created)
	h.respondJSON(w, http.StatusCreated, created)
}

func (h *Handler) handleListSchedules(w http.ResponseWriter, r *http.Request) {
	schedules, err := h.repo.ListSchedules(r.Context())
	if err != nil {
		h.respondError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, v1alpha1.ScheduleList{
		Items:      schedules,
		TotalCount: len(schedules),
	})
}

func (h *Handler) handleGetSchedule(w http.ResponseWriter, r *http.Request) {
	s, err := h.repo.GetSchedule(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, s)
}

func (h *Handler) handleUpdateSchedule(w http.ResponseWriter, r *http.Request) {
	var s v1alpha1.Schedule
	if err := json.NewDecoder(r.Body).Decode(&s); err != nil {
		h.respondError(w, ErrInvalidRequest("invalid request body"))
		return
	}
	s.ID = chi.URLParam(r, "id")

	if result := schedule.Validate(s); !result.Valid() {
		h.respondValidation(w, result)
		return
	}

	updated, err := h.repo.UpdateSchedule(r.Context(), s)
	if err != nil {
		h.respondError(w, err)
		return
	}

	h.notifyChange(r, nil)
	h.respondJSON(w, http.StatusOK, updated)
}

func (h *Handler) handleDeleteSchedule(w http.ResponseWriter, r *http.Request) {
	if err := h.repo.DeleteSchedule(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.respondError(w, err)
		return
	}

	h.notifyChange(r, nil)
	h.respondJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *Handler) handlePutContent(w http.ResponseWriter, r *http.Request) {
	var item v1alpha1.ContentItem
	if err := json.NewDecoder(r.Body).Decode(&item); err != nil {
		h.respondError(w, ErrInvalidRequest("invalid request body"))
		return
	}

	if err := h.repo.PutContent(r.Context(), item); err != nil {
		h.respondError(w, err)
		return
	}
	h.respondJSON(w, http.StatusCreated, item)
}

func (h *Handler) handleListContent(w http.ResponseWriter, r *http.Request) {
	items, err := h.repo.ListContent(r.Context())
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, items)
}

func (h *Handler) handleGetContent(w http.ResponseWriter, r *http.Request) {
	item, err := h.repo.GetContent(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, item)
}

func (h *Handler) respondValidation(w http.ResponseWriter, result schedule.ValidationResult) {
	h.respondJSON(w, http.StatusBadRequest, map[string]interface{}{
		"error":  "schedule failed validation",
		"fields": result.Errors,
	})
}

// notifyChange pushes a refresh hint plus the freshly resolved answer to
// connected viewers, and announces created schedules to every client.
func (h *Handler) notifyChange(r *http.Request, created *v1alpha1.Schedule) {
	if h.hub == nil {
		return
	}

	h.hub.BroadcastRefresh("schedule state changed")
	if created != nil {
		h.hub.BroadcastScheduleCreated(*created)
	}

	current, err := h.resolver.Current(r.Context())
	if err != nil {
		h.logger.Warn().Err(err).Msg("skipping broadcast: resolution failed")
		return
	}
	h.hub.BroadcastCurrent(current)
}
