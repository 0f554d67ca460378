package api

import (
	"errors"
	"net/http"

	engine "github.com/langboard/engine"
	"github.com/langboard/engine/id"
	"github.com/langboard/engine/schedule"
)

type scheduleRequest struct {
	BotID     string `json:"bot_id"`
	ProjectID string `json:"project_id"`
	Cron      string `json:"cron"`
	Timezone  string `json:"timezone"`
	Enabled   *bool  `json:"enabled,omitempty"`
}

func (h *Handler) createSchedule(w http.ResponseWriter, r *http.Request) {
	var req scheduleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	botID, err := id.ParseBotID(req.BotID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid bot ID")
		return
	}
	projectID, err := id.Parse(req.ProjectID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid project ID")
		return
	}

	s, createErr := h.engine.Schedules().Create(r.Context(), schedule.Input{
		BotID:     botID,
		ProjectID: projectID,
		Cron:      req.Cron,
		Timezone:  req.Timezone,
	})
	if createErr != nil {
		writeError(w, http.StatusBadRequest, createErr.Error())
		return
	}

	writeJSON(w, http.StatusCreated, s)
}

func (h *Handler) listSchedules(w http.ResponseWriter, r *http.Request) {
	projectID, err := id.Parse(queryParam(r, "project_id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "project_id query parameter is required")
		return
	}

	opts := schedule.ListOpts{
		Offset: queryInt(r, "offset", 0),
		Limit:  queryInt(r, "limit", 50),
	}

	schedules, listErr := h.engine.Schedules().List(r.Context(), projectID, opts)
	if listErr != nil {
		writeError(w, http.StatusInternalServerError, listErr.Error())
		return
	}

	writeJSON(w, http.StatusOK, schedules)
}

func (h *Handler) getSchedule(w http.ResponseWriter, r *http.Request) {
	schedID, err := id.ParseScheduleID(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid schedule ID")
		return
	}

	s, getErr := h.engine.Schedules().Get(r.Context(), schedID)
	if getErr != nil {
		if errors.Is(getErr, engine.ErrScheduleNotFound) {
			writeError(w, http.StatusNotFound, "schedule not found")
			return
		}
		writeError(w, http.StatusInternalServerError, getErr.Error())
		return
	}

	writeJSON(w, http.StatusOK, s)
}

func (h *Handler) updateSchedule(w http.ResponseWriter, r *http.Request) {
	schedID, err := id.ParseScheduleID(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid schedule ID")
		return
	}

	var req scheduleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	s, updateErr := h.engine.Schedules().Update(r.Context(), schedID, schedule.Input{
		Cron:     req.Cron,
		Timezone: req.Timezone,
	}, req.Enabled)
	if updateErr != nil {
		if errors.Is(updateErr, engine.ErrScheduleNotFound) {
			writeError(w, http.StatusNotFound, "schedule not found")
			return
		}
		writeError(w, http.StatusBadRequest, updateErr.Error())
		return
	}

	writeJSON(w, http.StatusOK, s)
}

func (h *Handler) deleteSchedule(w http.ResponseWriter, r *http.Request) {
	schedID, err := id.ParseScheduleID(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid schedule ID")
		return
	}

	if deleteErr := h.engine.Schedules().Delete(r.Context(), schedID); deleteErr != nil {
		if errors.Is(deleteErr, engine.ErrScheduleNotFound) {
			writeError(w, http.StatusNotFound, "schedule not found")
			return
		}
		writeError(w, http.StatusInternalServerError, deleteErr.Error())
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
